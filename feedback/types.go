package feedback

import "alma.local/greybox/coverage"

// Feedback judges one execution from its coverage snapshot.
type Feedback interface {
	IsInteresting(obs coverage.Observer) (bool, error)
}

// Signature is a compact summary of a session's executions.
type Signature struct {
	Executions  int // Candidates handed to the sandbox
	Completed   int // Harness returned normally
	TimedOut    int // Killed at the hang deadline
	Crashed     int // Terminated abnormally
	Interesting int // Admitted to the corpus by novelty
	Solutions   int // Admitted to the solutions by the objective
	// Statuses counts executions per status name (e.g., "completed", "timed-out", "crashed").
	Statuses map[string]int
}

// NewSignature initializes a Signature with a non-nil Statuses map.
func NewSignature() Signature {
	return Signature{
		Statuses: make(map[string]int),
	}
}
