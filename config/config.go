// Package config loads session settings from YAML.
//
// Durations are Go duration strings ("1500ms", "2s"); the seed is hex.
//
//	target: strchr
//	map_size: 4
//	timeout: 2s
//	exec_timeout: 250ms
//	seed: "00000000"
//	rng_seed: 0
//	max_stack: 7
//	log_level: info
//	metrics_addr: ":9100"
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"alma.local/greybox/fuzzer"
	"alma.local/greybox/harness"
)

// ErrInvalid wraps every rejected configuration.
var ErrInvalid = errors.New("config: invalid")

// File mirrors the YAML document.
type File struct {
	Target      string        `mapstructure:"target"`
	MapSize     int           `mapstructure:"map_size"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`
	Seed        string        `mapstructure:"seed"`
	RNGSeed     int64         `mapstructure:"rng_seed"`
	MaxStack    int           `mapstructure:"max_stack"`
	LogLevel    string        `mapstructure:"log_level"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// Load reads and validates the file at path.
func Load(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML document. Unknown keys are rejected.
func Parse(raw []byte) (File, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var f File
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &f,
	})
	if err != nil {
		return File{}, err
	}
	if err := dec.Decode(doc); err != nil {
		return File{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return f, f.Validate()
}

// Validate checks fields independently of any registry.
func (f File) Validate() error {
	if f.MapSize < 0 {
		return fmt.Errorf("%w: map_size %d", ErrInvalid, f.MapSize)
	}
	if f.Timeout < 0 || f.ExecTimeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	// Bare integers decode as nanoseconds and would truncate to zero, which
	// means "default" downstream.
	for name, d := range map[string]time.Duration{"timeout": f.Timeout, "exec_timeout": f.ExecTimeout} {
		if d > 0 && d < time.Microsecond {
			return fmt.Errorf("%w: %s %v is below 1µs; use a duration string such as \"2s\"", ErrInvalid, name, d)
		}
	}
	if f.MaxStack < 0 {
		return fmt.Errorf("%w: max_stack %d", ErrInvalid, f.MaxStack)
	}
	if _, err := hex.DecodeString(f.Seed); err != nil {
		return fmt.Errorf("%w: seed: %v", ErrInvalid, err)
	}
	if f.LogLevel != "" {
		if _, err := logrus.ParseLevel(f.LogLevel); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// Level is the configured log level, info when unset.
func (f File) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(f.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Fuzzer resolves the target and builds an engine config. The whole seed is
// used and the solution buffer has the same length.
func (f File) Fuzzer() (fuzzer.Config, error) {
	if f.Target == "" {
		return fuzzer.Config{}, fmt.Errorf("%w: no target", ErrInvalid)
	}
	target, err := harness.Lookup(f.Target)
	if err != nil {
		return fuzzer.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	seed, err := hex.DecodeString(f.Seed)
	if err != nil {
		return fuzzer.Config{}, fmt.Errorf("%w: seed: %v", ErrInvalid, err)
	}
	return fuzzer.Config{
		Harness:     target,
		MapSize:     f.MapSize,
		Timeout:     micros(f.Timeout),
		ExecTimeout: micros(f.ExecTimeout),
		DataSize:    len(seed),
		Seed:        seed,
		Solution:    make([]byte, len(seed)),
		RNGSeed:     f.RNGSeed,
		MaxStackPow: f.MaxStack,
	}, nil
}

func micros(d time.Duration) uint64 {
	return uint64(d / time.Microsecond)
}
