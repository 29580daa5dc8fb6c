package coverage

import (
	"errors"
	"testing"
)

func TestHooksWriteToRegisteredMap(t *testing.T) {
	m, _ := NewMap(4)
	if err := Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer Unregister(m)

	other, _ := NewMap(4)
	if err := Register(other); !errors.Is(err, ErrRegistered) {
		t.Errorf("second Register error = %v, want ErrRegistered", err)
	}

	Hit(0)
	Hit(0)
	Hit(2)
	Record(1)
	Record(1)
	Hit(99)
	Hit(-3)

	want := []byte{2, 1, 1, 0}
	for i, w := range want {
		if got, _ := m.Get(i); got != w {
			t.Errorf("index %d = %d, want %d", i, got, w)
		}
	}

	Objective()
	if v, _ := m.Get(m.ObjectiveIndex()); v != 1 {
		t.Errorf("objective slot = %d, want 1", v)
	}
}

func TestHitSaturates(t *testing.T) {
	m, _ := NewMap(2)
	if err := Register(m); err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer Unregister(m)

	for i := 0; i < 300; i++ {
		Hit(0)
	}
	if v, _ := m.Get(0); v != 0xff {
		t.Errorf("counter = %d, want 255", v)
	}
}

func TestHooksWithoutMapAreNoops(t *testing.T) {
	if Active() != nil {
		t.Fatal("unexpected registered map")
	}
	Hit(0)
	Record(0)
	Objective()
}
