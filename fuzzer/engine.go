package fuzzer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"alma.local/greybox/corpus"
	"alma.local/greybox/coverage"
	"alma.local/greybox/executor"
	"alma.local/greybox/feedback"
	"alma.local/greybox/generator"
	"alma.local/greybox/mutator"
)

var log = logrus.WithField("prefix", "fuzzer")

// State is the phase of a fuzzing session.
type State int

const (
	Init State = iota
	Seeding
	Fuzzing
	Solved
	DeadlineExpired
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Seeding:
		return "seeding"
	case Fuzzing:
		return "fuzzing"
	case Solved:
		return "solved"
	case DeadlineExpired:
		return "deadline-expired"
	}
	return "unknown"
}

// Result is the terminal outcome of a session.
type Result struct {
	Solved    bool
	Solution  []byte // Full solution bytes when Solved
	State     State
	Elapsed   time.Duration // Time spent in the fuzzing phase
	Signature feedback.Signature
}

// Engine owns every piece of per-session state: the shared map, the max map,
// both corpora, the schedule cursor and the mutation RNG. It is driven by a
// single goroutine.
type Engine struct {
	cfg       Config
	sandbox   *executor.Sandbox
	novelty   *feedback.MaxMap
	objective *feedback.Objective
	corpus    *corpus.Corpus
	solutions *corpus.Corpus
	scheduler *corpus.QueueScheduler
	havoc     *mutator.Havoc
	metrics   *Metrics
	sig       feedback.Signature
	state     State
	lastNew   float64
}

var _ Fuzzer = (*Engine)(nil)

// NewEngine performs session INIT. The returned engine must be closed.
func NewEngine(cfg Config) (*Engine, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	sb, err := executor.New(cfg.Harness, executor.Options{
		MapSize:    cfg.MapSize,
		Timeout:    micros(cfg.ExecTimeout),
		Executable: cfg.Executable,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	if err := coverage.Register(sb.Observer()); err != nil {
		sb.Close()
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Engine{
		cfg:       cfg,
		sandbox:   sb,
		novelty:   feedback.NewMaxMap(cfg.MapSize),
		objective: feedback.NewObjective(cfg.MapSize),
		corpus:    corpus.New(),
		solutions: corpus.New(),
		scheduler: corpus.NewQueueScheduler(),
		havoc:     mutator.NewHavoc(rand.New(rand.NewSource(cfg.RNGSeed)), cfg.MaxStackPow),
		metrics:   metrics,
		sig:       feedback.NewSignature(),
		state:     Init,
	}, nil
}

// Close releases the shared map and its process-wide registration.
func (e *Engine) Close() error {
	coverage.Unregister(e.sandbox.Observer())
	return e.sandbox.Close()
}

// Run seeds the corpus and fuzzes until a solution is found or the budget
// elapses. Per-candidate hangs and crashes are absorbed; only setup and spawn
// failures, or ctx cancellation, are returned as errors.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	if e.state != Init {
		return Result{State: e.state}, fmt.Errorf("fuzzer: session already ran (state %v)", e.state)
	}
	log.WithFields(logrus.Fields{
		"target":   e.cfg.Harness.Name,
		"mapSize":  e.cfg.MapSize,
		"dataSize": e.cfg.DataSize,
		"budget":   micros(e.cfg.Timeout),
	}).Info("Starting fuzzing session")

	if err := e.seed(ctx); err != nil {
		return e.result(0), err
	}

	e.state = Fuzzing
	started := time.Now()
	budget := micros(e.cfg.Timeout)
	for {
		if e.solutions.Len() > 0 {
			return e.solve(time.Since(started))
		}
		if time.Since(started) > budget {
			e.state = DeadlineExpired
			log.WithFields(logrus.Fields{
				"executions": e.sig.Executions,
				"corpus":     e.corpus.Len(),
			}).Info("Fuzzing failed")
			return e.result(time.Since(started)), nil
		}
		if err := ctx.Err(); err != nil {
			return e.result(time.Since(started)), err
		}
		if err := e.step(ctx); err != nil {
			return e.result(time.Since(started)), err
		}
	}
}

// seed runs the generator once and force-admits its input.
func (e *Engine) seed(ctx context.Context) error {
	e.state = Seeding
	gen, err := generator.NewSeed(e.cfg.Seed, e.cfg.DataSize)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	inputs, err := generator.Initial(gen, 1)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSetup, err)
	}
	out, err := e.execute(ctx, inputs[0], true)
	if err != nil {
		return err
	}
	log.WithField("status", out.Status).Debug("Seed executed")
	return nil
}

func (e *Engine) step(ctx context.Context) error {
	entry, err := e.scheduler.Next(e.corpus)
	if err != nil {
		return err
	}
	candidate, _ := e.havoc.Mutate(entry.Input)
	_, err = e.execute(ctx, candidate, false)
	return err
}

// Execute runs one candidate and applies both predicates.
func (e *Engine) Execute(ctx context.Context, input []byte) (Outcome, error) {
	return e.execute(ctx, input, false)
}

func (e *Engine) execute(ctx context.Context, input []byte, force bool) (Outcome, error) {
	res, err := e.sandbox.Run(ctx, input)
	if err != nil {
		return Outcome{}, err
	}
	e.account(res)

	out := Outcome{Status: res.Status}
	obs := e.sandbox.Observer()
	e.lastNew = 0
	var snapshot []byte
	if res.Status == executor.Completed {
		before := e.novelty.Covered()
		if out.Interesting, err = e.novelty.IsInteresting(obs); err != nil {
			return out, err
		}
		e.lastNew = float64(e.novelty.Covered() - before)
		if out.Objective, err = e.objective.IsInteresting(obs); err != nil {
			return out, err
		}
		snapshot = obs.Snapshot()
	}

	if out.Interesting || force {
		entry := e.corpus.Add(input, snapshot)
		if out.Interesting {
			e.sig.Interesting++
		}
		log.WithFields(logrus.Fields{
			"id":     entry.ID,
			"corpus": e.corpus.Len(),
			"forced": force && !out.Interesting,
		}).Debug("Corpus entry added")
	}
	if out.Objective {
		e.solutions.Add(input, snapshot)
		e.sig.Solutions++
	}

	e.metrics.CorpusSize.Set(float64(e.corpus.Len()))
	e.metrics.Solutions.Set(float64(e.solutions.Len()))
	e.metrics.CoveredEdges.Set(float64(e.novelty.Covered()))
	return out, nil
}

func (e *Engine) account(res executor.Result) {
	e.sig.Executions++
	e.sig.Statuses[res.Status.String()]++
	switch res.Status {
	case executor.Completed:
		e.sig.Completed++
	case executor.TimedOut:
		e.sig.TimedOut++
	case executor.Crashed:
		e.sig.Crashed++
	}
	e.metrics.Executions.WithLabelValues(res.Status.String()).Inc()
	e.metrics.ExecDuration.Observe(res.Elapsed.Seconds())
}

// solve copies the first solution into the caller's buffer, at most
// len(Solution) bytes.
func (e *Engine) solve(elapsed time.Duration) (Result, error) {
	first, err := e.solutions.First()
	if err != nil {
		return e.result(elapsed), err
	}
	e.state = Solved
	copy(e.cfg.Solution, first.Input)
	log.WithFields(logrus.Fields{
		"ms":         elapsed.Milliseconds(),
		"executions": e.sig.Executions,
		"size":       len(first.Input),
	}).Info("Fuzzing successful")

	res := e.result(elapsed)
	res.Solved = true
	res.Solution = append([]byte{}, first.Input...)
	return res, nil
}

func (e *Engine) result(elapsed time.Duration) Result {
	return Result{State: e.state, Elapsed: elapsed, Signature: e.sig}
}

// State is the session phase.
func (e *Engine) State() State {
	return e.state
}

// Corpus is the main corpus.
func (e *Engine) Corpus() *corpus.Corpus {
	return e.corpus
}

// Solutions holds objective-triggering inputs.
func (e *Engine) Solutions() *corpus.Corpus {
	return e.solutions
}

func (e *Engine) Reset() {
	e.novelty.Reset()
	e.lastNew = 0
}

func (e *Engine) TotalCoverage() float64 {
	return float64(e.novelty.Covered())
}

func (e *Engine) NewCoverage() float64 {
	return e.lastNew
}

// Fuzz runs one complete session for cfg. On success the solution is also
// written to cfg.Solution.
func Fuzz(ctx context.Context, cfg Config) (Result, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && !errors.Is(cerr, context.Canceled) {
			log.WithError(cerr).Warn("Closing sandbox")
		}
	}()
	return e.Run(ctx)
}
