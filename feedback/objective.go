package feedback

import "alma.local/greybox/coverage"

// Objective reports whether the designated slot reads exactly 1. It holds no
// state and is independent of novelty.
type Objective struct {
	index int
}

var _ Feedback = (*Objective)(nil)

// NewObjective watches the last index of a map with size counters.
func NewObjective(size int) *Objective {
	return &Objective{index: size - 1}
}

func (o *Objective) IsInteresting(obs coverage.Observer) (bool, error) {
	v, err := obs.Get(o.index)
	if err != nil {
		return false, err
	}
	return v == 1, nil
}
