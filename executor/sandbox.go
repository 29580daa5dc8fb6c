package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"alma.local/greybox/coverage"
	"alma.local/greybox/harness"
)

var log = logrus.WithField("prefix", "executor")

var (
	// ErrSpawn means no isolated child could be started. It is fatal to the
	// iteration that hit it.
	ErrSpawn = errors.New("executor: cannot spawn child")
	// ErrSetup is returned when a sandbox cannot be constructed.
	ErrSetup = errors.New("executor: setup failed")
)

const (
	envTarget  = "GREYBOX_CHILD_TARGET"
	envMapSize = "GREYBOX_CHILD_MAP_SIZE"

	// Descriptors as seen by the child; ExtraFiles start at 3.
	mapFD    = 3
	reportFD = 4

	// exitSetup is the child's exit code when it could not reach the harness.
	// It is informational only: a harness may exit with any code, so the
	// parent relies on readyMarker instead.
	exitSetup = 125

	// readyMarker is written to the report pipe right before the harness
	// runs. A child that exits without it never reached the harness.
	readyMarker byte = 0xa5

	teardownDelay = 100 * time.Millisecond
	outputTail    = 4 << 10
)

// Options configures a Sandbox.
type Options struct {
	MapSize    int
	Timeout    time.Duration // Per-execution hang limit
	Executable string        // Defaults to the running binary
}

// Result describes one execution.
type Result struct {
	Status  Status
	Code    int           // Harness return value, valid when Completed
	Elapsed time.Duration // Wall clock from spawn to reap
	Reason  string        // Why a crash was declared
	Output  []byte        // Tail of the child's stderr
}

// Sandbox runs each candidate in a fresh child process that maps the shared
// coverage region. The child is the sole writer of the map while it runs; the
// parent reads it only after the child has been reaped.
type Sandbox struct {
	target *harness.Target
	region *coverage.Region
	cov    *coverage.Map
	opts   Options
	state  Status
}

// New allocates the shared map and prepares to run target.
func New(target *harness.Target, opts Options) (*Sandbox, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: nil target", ErrSetup)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %v", ErrSetup, opts.Timeout)
	}
	if opts.Executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: locate executable: %v", ErrSetup, err)
		}
		opts.Executable = exe
	}
	region, err := coverage.NewRegion("greybox-"+target.Name, opts.MapSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	return &Sandbox{
		target: target,
		region: region,
		cov:    region.Map(),
		opts:   opts,
		state:  Ready,
	}, nil
}

// Observer is the coverage map filled by the most recent execution.
func (s *Sandbox) Observer() *coverage.Map {
	return s.cov
}

// State is the status of the most recent execution.
func (s *Sandbox) State() Status {
	return s.state
}

func (s *Sandbox) Close() error {
	return s.region.Close()
}

// Run executes the harness on input in a child process. Hangs and crashes
// are reported through Result.Status; an error means the child could not be
// spawned or ctx was cancelled.
func (s *Sandbox) Run(ctx context.Context, input []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.cov.Reset()
	s.state = Ready

	rp, wp, err := os.Pipe()
	if err != nil {
		return Result{}, fmt.Errorf("%w: report pipe: %v", ErrSpawn, err)
	}
	defer rp.Close()

	runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	output := newTailBuffer(outputTail)
	cmd := exec.CommandContext(runCtx, s.opts.Executable)
	cmd.Env = append(os.Environ(),
		envTarget+"="+s.target.Name,
		envMapSize+"="+strconv.Itoa(s.cov.Len()),
	)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stderr = output
	cmd.ExtraFiles = []*os.File{s.region.File(), wp}
	cmd.WaitDelay = teardownDelay
	isolate(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		wp.Close()
		return Result{}, fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	wp.Close()
	s.state = Running

	var (
		g   errgroup.Group
		raw []byte
	)
	g.Go(func() error {
		var err error
		raw, err = io.ReadAll(rp)
		return err
	})
	waitErr := cmd.Wait()
	readErr := g.Wait()

	res := Result{Elapsed: time.Since(start), Output: output.Bytes()}
	ready := readErr == nil && len(raw) > 0 && raw[0] == readyMarker
	var rep Report
	reported := ready && rep.UnmarshalSSZ(raw[1:]) == nil

	switch {
	case waitErr == nil && reported:
		res.Status = Completed
		res.Code = int(rep.Code)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = TimedOut
		log.WithFields(logrus.Fields{
			"target":  s.target.Name,
			"elapsed": res.Elapsed,
		}).Debug("Execution timed out")
	case ctx.Err() != nil:
		s.state = Ready
		return res, ctx.Err()
	case !ready:
		s.state = Ready
		return res, fmt.Errorf("%w: child setup (%v): %s", ErrSpawn, waitErr, bytes.TrimSpace(res.Output))
	default:
		res.Status = Crashed
		if waitErr != nil {
			res.Reason = waitErr.Error()
		} else {
			res.Reason = "exited without a report"
		}
		log.WithFields(logrus.Fields{
			"target": s.target.Name,
			"reason": res.Reason,
		}).Debug("Execution crashed")
	}
	s.state = res.Status
	return res, nil
}
