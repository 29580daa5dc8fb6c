package mutator

import "math/rand"

// DefaultMaxStackPow bounds the stack depth at 1<<7 operators.
const DefaultMaxStackPow = 7

// Havoc stacks randomly drawn operators into one candidate.
type Havoc struct {
	rng         *rand.Rand
	maxStackPow int
	ops         []Operator
}

// NewHavoc builds a havoc mutator. Stack depth is drawn from
// {2, 4, ..., 1<<maxStackPow}.
func NewHavoc(rng *rand.Rand, maxStackPow int) *Havoc {
	if maxStackPow < 1 {
		maxStackPow = DefaultMaxStackPow
	}
	return &Havoc{rng: rng, maxStackPow: maxStackPow, ops: Operators}
}

// Depth draws a stack depth.
func (h *Havoc) Depth() int {
	return 1 << uint(1+h.rng.Intn(h.maxStackPow))
}

// Mutate returns a mutated copy of input and whether any operator applied.
func (h *Havoc) Mutate(input []byte) ([]byte, bool) {
	out := append([]byte{}, input...)
	applied := false
	for n := h.Depth(); n > 0; n-- {
		op := h.ops[h.rng.Intn(len(h.ops))]
		var ok bool
		out, ok = Apply(op, out, h.rng)
		applied = applied || ok
	}
	return out, applied
}
