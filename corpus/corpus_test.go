package corpus

import (
	"bytes"
	"errors"
	"testing"
)

func TestAddCopiesInput(t *testing.T) {
	c := New()
	in := []byte("seed")
	cov := []byte{1, 0, 2}
	e := c.Add(in, cov)
	in[0] = 'X'
	cov[0] = 9
	if !bytes.Equal(e.Input, []byte("seed")) {
		t.Errorf("entry input aliased caller buffer: %q", e.Input)
	}
	if e.Coverage[0] != 1 {
		t.Errorf("entry coverage aliased caller buffer: %v", e.Coverage)
	}
	if e.ID == 0 {
		t.Error("entry has no id")
	}
}

func TestAddEmptyInput(t *testing.T) {
	c := New()
	e := c.Add(nil, nil)
	if e.Input == nil || len(e.Input) != 0 {
		t.Errorf("empty input stored as %v", e.Input)
	}
}

func TestGetAndFirst(t *testing.T) {
	c := New()
	if _, err := c.First(); !errors.Is(err, ErrEmpty) {
		t.Errorf("First on empty corpus: %v", err)
	}
	c.Add([]byte{1}, nil)
	c.Add([]byte{2}, nil)
	first, err := c.First()
	if err != nil || first.Input[0] != 1 {
		t.Errorf("First = %v, %v", first, err)
	}
	if _, err := c.Get(2); err == nil {
		t.Error("Get past the end succeeded")
	}
}

func TestQueueSchedulerEmpty(t *testing.T) {
	s := NewQueueScheduler()
	if _, err := s.Next(New()); !errors.Is(err, ErrEmpty) {
		t.Errorf("Next on empty corpus: %v", err)
	}
}

func TestQueueSchedulerFairness(t *testing.T) {
	for k := 1; k <= 6; k++ {
		c := New()
		for i := 0; i < k; i++ {
			c.Add([]byte{byte(i)}, nil)
		}
		s := NewQueueScheduler()
		for round := 0; round < 3; round++ {
			for i := 0; i < k; i++ {
				e, err := s.Next(c)
				if err != nil {
					t.Fatalf("Next: %v", err)
				}
				if e.Input[0] != byte(i) {
					t.Fatalf("k=%d round %d pick %d: got entry %d", k, round, i, e.Input[0])
				}
			}
		}
	}
}

func TestQueueSchedulerSeesNewEntries(t *testing.T) {
	c := New()
	c.Add([]byte{0}, nil)
	c.Add([]byte{1}, nil)
	s := NewQueueScheduler()

	s.Next(c) // 0
	c.Add([]byte{2}, nil)
	var got []byte
	for i := 0; i < 4; i++ {
		e, _ := s.Next(c)
		got = append(got, e.Input[0])
	}
	if want := []byte{1, 2, 0, 1}; !bytes.Equal(got, want) {
		t.Errorf("picks = %v, want %v", got, want)
	}
}
