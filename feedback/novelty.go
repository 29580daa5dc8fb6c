package feedback

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"alma.local/greybox/coverage"
)

// MaxMap is the novelty predicate. It keeps the highest hitcount bucket ever
// observed per index and reports an execution as interesting when any index
// exceeds it. The objective slot is never tracked.
type MaxMap struct {
	max     []byte
	covered *bitset.BitSet
}

var _ Feedback = (*MaxMap)(nil)

// NewMaxMap returns a zeroed max map for an observer of size counters.
func NewMaxMap(size int) *MaxMap {
	tracked := size - 1
	if tracked < 0 {
		tracked = 0
	}
	return &MaxMap{
		max:     make([]byte, tracked),
		covered: bitset.New(uint(tracked)),
	}
}

// IsInteresting scans the whole map once, merging every improved index.
func (f *MaxMap) IsInteresting(obs coverage.Observer) (bool, error) {
	if obs.Len()-1 != len(f.max) {
		return false, fmt.Errorf("feedback: observer has %d counters, max map tracks %d", obs.Len(), len(f.max)+1)
	}
	interesting := false
	if m, ok := obs.(*coverage.Map); ok {
		for i, v := range m.Bytes()[:len(f.max)] {
			if f.merge(i, v) {
				interesting = true
			}
		}
		return interesting, nil
	}
	for i := range f.max {
		v, err := obs.Get(i)
		if err != nil {
			return false, err
		}
		if f.merge(i, v) {
			interesting = true
		}
	}
	return interesting, nil
}

func (f *MaxMap) merge(i int, raw byte) bool {
	b := coverage.Classify(raw)
	if b <= f.max[i] {
		return false
	}
	f.max[i] = b
	f.covered.Set(uint(i))
	return true
}

// Max returns the recorded bucket for index i.
func (f *MaxMap) Max(i int) byte {
	if i < 0 || i >= len(f.max) {
		return 0
	}
	return f.max[i]
}

// Covered is the number of indices ever seen non-zero.
func (f *MaxMap) Covered() uint {
	return f.covered.Count()
}

// Reset zeroes the max map for a new session.
func (f *MaxMap) Reset() {
	clear(f.max)
	f.covered.ClearAll()
}
