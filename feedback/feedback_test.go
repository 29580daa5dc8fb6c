package feedback

import (
	"testing"

	"alma.local/greybox/coverage"
)

func mapWith(t *testing.T, vals ...byte) *coverage.Map {
	t.Helper()
	m, err := coverage.NewMap(len(vals))
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	copy(m.Bytes(), vals)
	return m
}

// sparse hides the *coverage.Map fast path.
type sparse struct{ *coverage.Map }

func TestMaxMapPartialMerge(t *testing.T) {
	f := NewMaxMap(5)

	ok, err := f.IsInteresting(mapWith(t, 1, 0, 3, 0, 0))
	if err != nil || !ok {
		t.Fatalf("first run: interesting=%v err=%v", ok, err)
	}
	if f.Max(0) != coverage.Bucket1 || f.Max(2) != coverage.Bucket3 {
		t.Errorf("max after first run: %d %d", f.Max(0), f.Max(2))
	}

	// Same buckets: nothing new.
	if ok, _ := f.IsInteresting(mapWith(t, 1, 0, 3, 0, 0)); ok {
		t.Error("identical coverage reported as interesting")
	}

	// 5 and 6 share a bucket with each other but not with 3.
	if ok, _ := f.IsInteresting(mapWith(t, 0, 0, 5, 0, 0)); !ok {
		t.Error("bucket increase not reported")
	}
	if ok, _ := f.IsInteresting(mapWith(t, 0, 0, 6, 0, 0)); ok {
		t.Error("count change within a bucket reported as interesting")
	}

	// Only index 1 improves; index 0 went down and must keep its max.
	if ok, _ := f.IsInteresting(mapWith(t, 0, 2, 1, 0, 0)); !ok {
		t.Error("single improved index not reported")
	}
	if f.Max(0) != coverage.Bucket1 || f.Max(1) != coverage.Bucket2 || f.Max(2) != coverage.Bucket4to7 {
		t.Errorf("unexpected max state: %d %d %d", f.Max(0), f.Max(1), f.Max(2))
	}
	if f.Covered() != 3 {
		t.Errorf("Covered() = %d, want 3", f.Covered())
	}
}

func TestMaxMapMonotone(t *testing.T) {
	f := NewMaxMap(3)
	if ok, _ := f.IsInteresting(mapWith(t, 200, 0, 0)); !ok {
		t.Fatal("top bucket not reported")
	}
	if f.Max(0) != coverage.TopBucket {
		t.Fatalf("Max(0) = %d, want top bucket", f.Max(0))
	}
	for v := 0; v < 256; v++ {
		if ok, _ := f.IsInteresting(mapWith(t, byte(v), 0, 0)); ok {
			t.Fatalf("value %d reported after top bucket was reached", v)
		}
	}
}

func TestMaxMapIgnoresObjectiveSlot(t *testing.T) {
	f := NewMaxMap(4)
	if ok, _ := f.IsInteresting(mapWith(t, 0, 0, 0, 1)); ok {
		t.Error("objective slot contributed to novelty")
	}
	if f.Covered() != 0 {
		t.Errorf("Covered() = %d, want 0", f.Covered())
	}
}

func TestMaxMapGenericObserver(t *testing.T) {
	f := NewMaxMap(3)
	ok, err := f.IsInteresting(sparse{mapWith(t, 0, 4, 0)})
	if err != nil || !ok {
		t.Fatalf("interesting=%v err=%v", ok, err)
	}
	if f.Max(1) != coverage.Bucket4to7 {
		t.Errorf("Max(1) = %d", f.Max(1))
	}
}

func TestMaxMapSizeMismatch(t *testing.T) {
	f := NewMaxMap(3)
	if _, err := f.IsInteresting(mapWith(t, 0, 0, 0, 0)); err == nil {
		t.Error("expected an error for a mismatched observer")
	}
}

func TestMaxMapReset(t *testing.T) {
	f := NewMaxMap(3)
	f.IsInteresting(mapWith(t, 9, 9, 0))
	f.Reset()
	if f.Max(0) != 0 || f.Covered() != 0 {
		t.Error("reset did not clear state")
	}
	if ok, _ := f.IsInteresting(mapWith(t, 9, 0, 0)); !ok {
		t.Error("coverage not new after reset")
	}
}

func TestObjectiveDependsOnlyOnLastSlot(t *testing.T) {
	o := NewObjective(4)
	for v := 0; v < 256; v++ {
		for _, rest := range [][]byte{{0, 0, 0}, {255, 17, 1}} {
			m := mapWith(t, rest[0], rest[1], rest[2], byte(v))
			got, err := o.IsInteresting(m)
			if err != nil {
				t.Fatalf("IsInteresting: %v", err)
			}
			if got != (v == 1) {
				t.Errorf("slot=%d rest=%v: got %v", v, rest, got)
			}
		}
	}
}

func TestObjectiveDoesNotTouchNovelty(t *testing.T) {
	f := NewMaxMap(2)
	o := NewObjective(2)
	m := mapWith(t, 0, 1)
	if ok, _ := o.IsInteresting(m); !ok {
		t.Fatal("objective not detected")
	}
	if ok, _ := f.IsInteresting(m); ok {
		t.Error("objective-only run reported as novel")
	}
}
