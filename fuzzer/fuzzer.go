package fuzzer

import (
	"context"

	"alma.local/greybox/executor"
)

// Outcome is the verdict on one executed candidate.
type Outcome struct {
	Status      executor.Status
	Interesting bool // Admitted to the corpus
	Objective   bool // Admitted to the solutions
}

// Fuzzer executes candidates and reports feedback.
type Fuzzer interface {
	// Execute runs input in the sandbox and evaluates both predicates.
	Execute(ctx context.Context, input []byte) (Outcome, error)

	// Reset clears the session's coverage knowledge.
	Reset()

	// TotalCoverage returns the number of map indices covered so far.
	TotalCoverage() float64

	// NewCoverage returns the indices newly covered by the last execution.
	NewCoverage() float64
}
