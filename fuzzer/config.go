package fuzzer

import (
	"errors"
	"fmt"
	"time"

	"alma.local/greybox/harness"
	"alma.local/greybox/mutator"
)

var (
	// ErrSetup wraps every failure before fuzzing starts: map allocation,
	// sandbox construction, seed generation.
	ErrSetup = errors.New("fuzzer: setup failed")
	// ErrNoHarness is returned for a config without a harness.
	ErrNoHarness = errors.New("fuzzer: no harness")
)

// DefaultTimeout is used when Config.Timeout is zero, in microseconds.
const DefaultTimeout uint64 = 2_000_000

// Config is the entry record for one fuzzing session.
type Config struct {
	// Harness is the function under test. It must be registered with
	// harness.Register so sandbox children can resolve it.
	Harness *harness.Target
	// MapSize is the number of coverage counters; the last one is the
	// objective slot.
	MapSize int
	// Timeout is the session budget in microseconds.
	Timeout uint64
	// ExecTimeout is the per-execution hang limit in microseconds. Zero
	// means Timeout.
	ExecTimeout uint64
	// DataSize is the length of Seed to use.
	DataSize int
	// Seed is read, never retained.
	Seed []byte
	// Solution receives the solution bytes on success and is untouched
	// otherwise. May be nil.
	Solution []byte
	// RNGSeed seeds the mutation engine. The zero value reproduces the
	// default deterministic schedule.
	RNGSeed int64
	// MaxStackPow bounds the havoc stack depth at 1<<MaxStackPow.
	MaxStackPow int
	// Metrics is optional; a private set is created when nil.
	Metrics *Metrics
	// Executable overrides the binary used for sandbox children.
	Executable string
}

func (c *Config) setDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ExecTimeout == 0 {
		c.ExecTimeout = c.Timeout
	}
	if c.MaxStackPow <= 0 {
		c.MaxStackPow = mutator.DefaultMaxStackPow
	}
}

func (c *Config) validate() error {
	if c.Harness == nil {
		return fmt.Errorf("%w: %w", ErrSetup, ErrNoHarness)
	}
	if c.MapSize < 1 {
		return fmt.Errorf("%w: map size must be at least 1, got %d", ErrSetup, c.MapSize)
	}
	if c.DataSize < 0 || c.DataSize > len(c.Seed) {
		return fmt.Errorf("%w: data size %d with a %d-byte seed", ErrSetup, c.DataSize, len(c.Seed))
	}
	return nil
}

func micros(us uint64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
