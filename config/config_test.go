package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"alma.local/greybox/harness"
)

var configTarget = harness.Register("config/target", func([]byte) int { return 0 })

const full = `
target: config/target
map_size: 16
timeout: 1500ms
exec_timeout: 250ms
seed: "64006f"
rng_seed: 7
max_stack: 5
log_level: debug
metrics_addr: ":9100"
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(full))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := File{
		Target:      "config/target",
		MapSize:     16,
		Timeout:     1500 * time.Millisecond,
		ExecTimeout: 250 * time.Millisecond,
		Seed:        "64006f",
		RNGSeed:     7,
		MaxStack:    5,
		LogLevel:    "debug",
		MetricsAddr: ":9100",
	}
	if f != want {
		t.Errorf("Parse = %+v\nwant %+v", f, want)
	}
	if f.Level() != logrus.DebugLevel {
		t.Errorf("level = %v", f.Level())
	}
}

func TestFuzzerConfig(t *testing.T) {
	f, err := Parse([]byte(full))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := f.Fuzzer()
	if err != nil {
		t.Fatalf("Fuzzer: %v", err)
	}
	if cfg.Harness != configTarget {
		t.Errorf("harness = %v", cfg.Harness)
	}
	if cfg.Timeout != 1_500_000 || cfg.ExecTimeout != 250_000 {
		t.Errorf("timeouts = %d/%d", cfg.Timeout, cfg.ExecTimeout)
	}
	if !bytes.Equal(cfg.Seed, []byte{'d', 0, 'o'}) || cfg.DataSize != 3 || len(cfg.Solution) != 3 {
		t.Errorf("seed = %q size %d solution %d", cfg.Seed, cfg.DataSize, len(cfg.Solution))
	}
	if cfg.MapSize != 16 || cfg.RNGSeed != 7 || cfg.MaxStackPow != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestDefaults(t *testing.T) {
	f, err := Parse([]byte("target: config/target\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if f.Level() != logrus.InfoLevel {
		t.Errorf("level = %v", f.Level())
	}
	cfg, err := f.Fuzzer()
	if err != nil {
		t.Fatalf("Fuzzer: %v", err)
	}
	if cfg.Timeout != 0 || len(cfg.Seed) != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "target: x\nbogus: 1\n",
		"bad duration":  "timeout: soon\n",
		"negative":      "timeout: -1s\n",
		"bare integer":  "timeout: 2\n",
		"sub-micro":     "exec_timeout: 500ns\n",
		"odd hex":       "seed: \"abc\"\n",
		"bad level":     "log_level: loud\n",
		"negative size": "map_size: -3\n",
		"not yaml":      "target: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(body)); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestUnknownTarget(t *testing.T) {
	f := File{Target: "config/missing"}
	_, err := f.Fuzzer()
	if !errors.Is(err, ErrInvalid) || !errors.Is(err, harness.ErrUnknown) {
		t.Errorf("expected ErrInvalid and ErrUnknown, got %v", err)
	}
	if _, err := (File{}).Fuzzer(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for an empty target, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greybox.yaml")
	if err := os.WriteFile(path, []byte(full), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Target != "config/target" {
		t.Errorf("target = %q", f.Target)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("missing file accepted")
	}
}
