// Package solver answers repeated "find an input" queries with fuzzing
// sessions. Results are cached per query and call sites that keep failing
// are eventually skipped.
package solver

import (
	"context"
	"encoding/binary"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"alma.local/greybox/fuzzer"
	"alma.local/greybox/harness"
)

var log = logrus.WithField("prefix", "solver")

// Automaton bounds. A site at giveUp is never fuzzed again.
const (
	giveUp    = -2
	confident = 2
)

// FuzzFunc runs one session. fuzzer.Fuzz in production.
type FuzzFunc func(ctx context.Context, cfg fuzzer.Config) (fuzzer.Result, error)

// Query is one request for an input that makes Target reach its objective.
type Query struct {
	// Site identifies the caller location the query comes from.
	Site    string
	Target  *harness.Target
	MapSize int
	// Seed is the starting input; solutions have the same length.
	Seed []byte
}

type cached struct {
	solved   bool
	solution []byte
}

// Stats counts how queries were answered.
type Stats struct {
	Queries int
	Hits    int
	Skipped int
	Solved  int
	Failed  int
}

type Solver struct {
	fuzz    FuzzFunc
	timeout uint64
	metrics *fuzzer.Metrics
	// Per-session knobs copied into every query's config.
	execTimeout uint64
	rngSeed     int64
	maxStackPow int

	mu        sync.Mutex
	results   map[uint64]cached
	automaton map[string]int
	stats     Stats

	// Sessions share a process-wide coverage map, so they run one at a time.
	run   sync.Mutex
	group singleflight.Group
}

// New returns a solver running fuzz (fuzzer.Fuzz when nil) with a session
// budget of timeout microseconds.
func New(fuzz FuzzFunc, timeout uint64) *Solver {
	if fuzz == nil {
		fuzz = fuzzer.Fuzz
	}
	s := &Solver{
		fuzz:      fuzz,
		results:   make(map[uint64]cached),
		automaton: make(map[string]int),
	}
	s.SetTimeout(timeout)
	return s
}

// SetTimeout sets the per-query budget in microseconds, zero meaning the
// engine default.
func (s *Solver) SetTimeout(us uint64) {
	if us == 0 {
		us = fuzzer.DefaultTimeout
	}
	s.mu.Lock()
	s.timeout = us
	s.mu.Unlock()
}

// SetSession sets the per-execution hang limit (microseconds), the mutation
// RNG seed and the havoc stack power used by every session. Zero values keep
// the engine defaults.
func (s *Solver) SetSession(execTimeout uint64, rngSeed int64, maxStackPow int) {
	s.mu.Lock()
	s.execTimeout, s.rngSeed, s.maxStackPow = execTimeout, rngSeed, maxStackPow
	s.mu.Unlock()
}

// SetMetrics shares one metric set across all sessions.
func (s *Solver) SetMetrics(m *fuzzer.Metrics) {
	s.mu.Lock()
	s.metrics = m
	s.mu.Unlock()
}

// Solve returns a solution for q. ok is false when fuzzing failed, the
// cached answer is a failure, or q.Site has been given up on. Errors come
// only from sessions that could not run.
func (s *Solver) Solve(ctx context.Context, q Query) (solution []byte, ok bool, err error) {
	key := digest(q)

	s.mu.Lock()
	s.stats.Queries++
	state := s.automaton[q.Site]
	if state <= giveUp {
		s.stats.Skipped++
		s.mu.Unlock()
		log.WithField("site", q.Site).Debug("Site given up, not fuzzing")
		return nil, false, nil
	}
	if c, hit := s.results[key]; hit {
		s.stats.Hits++
		s.mu.Unlock()
		log.WithFields(logrus.Fields{"site": q.Site, "solved": c.solved}).Debug("Cache hit")
		return clone(c.solution), c.solved, nil
	}
	session := fuzzer.Config{
		Harness:     q.Target,
		MapSize:     q.MapSize,
		Timeout:     s.timeout,
		ExecTimeout: s.execTimeout,
		Seed:        q.Seed,
		DataSize:    len(q.Seed),
		RNGSeed:     s.rngSeed,
		MaxStackPow: s.maxStackPow,
		Metrics:     s.metrics,
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(strconv.FormatUint(key, 16), func() (interface{}, error) {
		s.run.Lock()
		defer s.run.Unlock()
		buf := make([]byte, len(q.Seed))
		cfg := session
		cfg.Solution = buf
		res, err := s.fuzz(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c := cached{solved: res.Solved}
		if res.Solved {
			c.solution = buf
		}
		return c, nil
	})
	if err != nil {
		return nil, false, err
	}
	c := v.(cached)

	s.mu.Lock()
	if _, dup := s.results[key]; !dup {
		s.results[key] = c
		s.step(q.Site, c.solved)
	}
	s.mu.Unlock()
	return clone(c.solution), c.solved, nil
}

func (s *Solver) step(site string, solved bool) {
	state := s.automaton[site]
	if solved {
		s.stats.Solved++
		if state < confident {
			state++
		}
	} else {
		s.stats.Failed++
		if state > giveUp {
			state--
		}
	}
	s.automaton[site] = state
	log.WithFields(logrus.Fields{"site": site, "solved": solved, "state": state}).Debug("Fuzzing attempt finished")
}

// State is the automaton value of site, in [-2, 2].
func (s *Solver) State(site string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.automaton[site]
}

func (s *Solver) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// digest keys a query by everything that determines its session.
func digest(q Query) uint64 {
	h := xxhash.New()
	if q.Target != nil {
		h.WriteString(q.Target.Name)
	}
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(q.MapSize))
	h.Write(n[:])
	h.Write(q.Seed)
	return h.Sum64()
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
