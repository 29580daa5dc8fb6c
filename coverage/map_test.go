package coverage

import (
	"errors"
	"testing"
)

func TestResetZeroesEveryCounter(t *testing.T) {
	for size := 2; size <= 64; size *= 2 {
		m, err := NewMap(size)
		if err != nil {
			t.Fatalf("NewMap(%d): %v", size, err)
		}
		for i := range m.Bytes() {
			m.Bytes()[i] = byte(i*7 + 1)
		}
		m.Reset()
		for i := 0; i < m.Len(); i++ {
			v, _ := m.Get(i)
			b, _ := m.Bucket(i)
			if v != 0 || b != 0 {
				t.Errorf("size %d index %d: got value %d bucket %d after reset", size, i, v, b)
			}
		}
	}
}

func TestGetOutOfRange(t *testing.T) {
	m, _ := NewMap(4)
	if _, err := m.Get(4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get(4) error = %v, want ErrOutOfRange", err)
	}
	if _, err := m.Get(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Get(-1) error = %v, want ErrOutOfRange", err)
	}
	if _, err := m.Bucket(10); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Bucket(10) error = %v, want ErrOutOfRange", err)
	}
}

func TestNewMapRejectsEmpty(t *testing.T) {
	if _, err := NewMap(0); !errors.Is(err, ErrMapSize) {
		t.Errorf("NewMap(0) error = %v, want ErrMapSize", err)
	}
	if _, err := Wrap(nil); !errors.Is(err, ErrMapSize) {
		t.Errorf("Wrap(nil) error = %v, want ErrMapSize", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		in, want byte
	}{
		{0, BucketNone},
		{1, Bucket1},
		{2, Bucket2},
		{3, Bucket3},
		{4, Bucket4to7},
		{7, Bucket4to7},
		{8, Bucket8to15},
		{15, Bucket8to15},
		{16, Bucket16to31},
		{31, Bucket16to31},
		{32, Bucket32to127},
		{127, Bucket32to127},
		{128, Bucket128Up},
		{255, Bucket128Up},
	}
	for _, c := range cases {
		if got := Classify(c.in); got != c.want {
			t.Errorf("Classify(%d) = %d, want %d", c.in, got, c.want)
		}
	}

	prev := Classify(0)
	for v := 1; v < 256; v++ {
		cur := Classify(byte(v))
		if cur < prev {
			t.Fatalf("buckets not monotone at %d: %d < %d", v, cur, prev)
		}
		prev = cur
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	m, _ := NewMap(3)
	m.Bytes()[1] = 9
	snap := m.Snapshot()
	m.Reset()
	if snap[1] != 9 {
		t.Errorf("snapshot changed after reset: %v", snap)
	}
}
