package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"alma.local/greybox/config"
	"alma.local/greybox/executor"
	"alma.local/greybox/fuzzer"
	"alma.local/greybox/internal/targets"
	"alma.local/greybox/solver"
)

var log = logrus.WithField("prefix", "greybox")

func main() {
	// Sandbox children re-enter here and never return.
	executor.Main()

	var (
		cfgPath     = flag.String("config", "", "YAML config file; flags override its values")
		target      = flag.String("target", "", "Target to fuzz (see -list)")
		seed        = flag.String("seed", "", "Seed input as hex; defaults to the target's seed")
		mapSize     = flag.Int("map-size", 0, "Coverage map size; defaults to the target's size")
		timeout     = flag.Duration("timeout", 0, "Session budget (default 2s)")
		execTimeout = flag.Duration("exec-timeout", 0, "Per-execution hang limit (default: -timeout)")
		rngSeed     = flag.Int64("rng-seed", 0, "Mutation RNG seed")
		maxStack    = flag.Int("max-stack", 0, "Havoc stack power (default 7)")
		metricsAddr = flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
		logLevel    = flag.String("log-level", "", "Log level (default info)")
		jobsPath    = flag.String("jobs", "", "JSON batch file; runs every job through the caching solver")
		list        = flag.Bool("list", false, "List built-in targets and exit")
	)
	flag.Parse()

	if *list {
		for _, s := range targets.All() {
			fmt.Printf("%-18s map=%-3d seed=%-3d %s\n", s.Target.Name, s.MapSize, len(s.Seed), s.About)
		}
		return
	}

	var file config.File
	if *cfgPath != "" {
		var err error
		if file, err = config.Load(*cfgPath); err != nil {
			log.WithError(err).Fatal("Loading config")
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			file.Target = *target
		case "seed":
			file.Seed = *seed
		case "map-size":
			file.MapSize = *mapSize
		case "timeout":
			file.Timeout = *timeout
		case "exec-timeout":
			file.ExecTimeout = *execTimeout
		case "rng-seed":
			file.RNGSeed = *rngSeed
		case "max-stack":
			file.MaxStack = *maxStack
		case "metrics-addr":
			file.MetricsAddr = *metricsAddr
		case "log-level":
			file.LogLevel = *logLevel
		}
	})
	if err := file.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(file.Level())

	metrics := fuzzer.NewMetrics()
	if file.MetricsAddr != "" {
		go serveMetrics(file.MetricsAddr, metrics)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *jobsPath != "" {
		if err := runJobs(ctx, *jobsPath, file, metrics); err != nil {
			log.WithError(err).Error("Batch failed")
			os.Exit(2)
		}
		return
	}
	os.Exit(runOne(ctx, file, metrics))
}

// runOne fuzzes a single target and returns the process exit code: 0 when
// solved, 1 when the budget ran out, 2 on error.
func runOne(ctx context.Context, file config.File, metrics *fuzzer.Metrics) int {
	if spec, err := targets.Find(file.Target); err == nil {
		if file.MapSize == 0 {
			file.MapSize = spec.MapSize
		}
		if file.Seed == "" {
			file.Seed = hex.EncodeToString(spec.Seed)
		}
	}
	cfg, err := file.Fuzzer()
	if err != nil {
		log.WithError(err).Error("Building session")
		return 2
	}
	cfg.Metrics = metrics

	res, err := fuzzer.Fuzz(ctx, cfg)
	if err != nil {
		log.WithError(err).Error("Fuzzing aborted")
		return 2
	}
	sig := res.Signature
	fmt.Printf("state=%s executions=%d completed=%d timed-out=%d crashed=%d corpus-adds=%d elapsed=%s\n",
		res.State, sig.Executions, sig.Completed, sig.TimedOut, sig.Crashed, sig.Interesting,
		res.Elapsed.Round(time.Millisecond))
	if !res.Solved {
		return 1
	}
	fmt.Printf("solution=%s\n", hex.EncodeToString(cfg.Solution))
	return 0
}

func runJobs(ctx context.Context, path string, file config.File, metrics *fuzzer.Metrics) error {
	jobs, err := targets.LoadJobs(path)
	if err != nil {
		return err
	}
	s := solver.New(nil, uint64(file.Timeout/time.Microsecond))
	s.SetSession(uint64(file.ExecTimeout/time.Microsecond), file.RNGSeed, file.MaxStack)
	s.SetMetrics(metrics)
	for _, job := range jobs {
		spec, err := job.Resolve()
		if err != nil {
			return err
		}
		sol, ok, err := s.Solve(ctx, solver.Query{
			Site:    job.Site,
			Target:  spec.Target,
			MapSize: spec.MapSize,
			Seed:    spec.Seed,
		})
		if err != nil {
			return fmt.Errorf("job %q: %w", job.Site, err)
		}
		if ok {
			fmt.Printf("%s\t%s\tsolved\t%s\n", job.Site, job.Target, hex.EncodeToString(sol))
		} else {
			fmt.Printf("%s\t%s\tunsolved\t(state %d)\n", job.Site, job.Target, s.State(job.Site))
		}
	}
	st := s.Stats()
	log.WithFields(logrus.Fields{
		"queries": st.Queries,
		"hits":    st.Hits,
		"skipped": st.Skipped,
		"solved":  st.Solved,
		"failed":  st.Failed,
	}).Info("Batch finished")
	return nil
}

func serveMetrics(addr string, m *fuzzer.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Metrics server stopped")
	}
}
