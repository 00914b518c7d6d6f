// Package envconfig reads the environment-variable knobs of spec §4.9
// (INTVL, SOLVER_NUM_THREADS / OMP_NUM_THREADS) through viper's
// AutomaticEnv binding. The teacher's go.mod carries spf13/viper as a
// direct dependency but no file in that tree ever imports it -- a
// leftover from the cobra-cli scaffold's generated root.go, which
// normally wires viper.AutomaticEnv/BindEnv in initConfig. This package
// is that wiring, finally given something to read.
package envconfig

import (
	"strconv"

	"github.com/spf13/viper"

	"github.com/hpcwave/wavesolve"
)

// Config holds the environment-derived knobs the CLI falls back to when
// the corresponding flag was not set explicitly.
type Config struct {
	// CheckpointInterval is the wall-clock seconds between checkpoints
	// (INTVL, spec §4.7). Zero disables periodic checkpointing.
	CheckpointInterval float64

	// NumThreads is the shared-memory worker count (SOLVER_NUM_THREADS,
	// falling back to OMP_NUM_THREADS, spec §4.9). Zero means "let the
	// caller pick a default" (the CLI uses 1).
	NumThreads int
}

// Load reads INTVL, SOLVER_NUM_THREADS and OMP_NUM_THREADS from the
// process environment via viper. A malformed value for either variable
// is not fatal (spec §4.9, §7 BadEnv): it is reported as an error
// wrapping wavesolve.BadEnv, but Load still returns a usable Config with
// that field at its zero value so the caller can fall back to a flag or
// built-in default.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	_ = v.BindEnv("intvl", "INTVL")
	_ = v.BindEnv("solver_num_threads", "SOLVER_NUM_THREADS")
	_ = v.BindEnv("omp_num_threads", "OMP_NUM_THREADS")

	var cfg Config
	var err error

	if raw := v.GetString("intvl"); raw != "" {
		if f, parseErr := strconv.ParseFloat(raw, 64); parseErr == nil && f >= 0 {
			cfg.CheckpointInterval = f
		} else {
			err = wavesolve.NewError(wavesolve.BadEnv, "envconfig.Load",
				&strconv.NumError{Func: "ParseFloat", Num: raw, Err: strconv.ErrSyntax})
		}
	}

	threadVar, raw := "SOLVER_NUM_THREADS", v.GetString("solver_num_threads")
	if raw == "" {
		threadVar, raw = "OMP_NUM_THREADS", v.GetString("omp_num_threads")
	}
	if raw != "" {
		if n, parseErr := strconv.Atoi(raw); parseErr == nil && n > 0 {
			cfg.NumThreads = n
		} else if err == nil {
			err = wavesolve.NewError(wavesolve.BadEnv, "envconfig.Load",
				&strconv.NumError{Func: "Atoi", Num: threadVar + "=" + raw, Err: strconv.ErrSyntax})
		}
	}

	return cfg, err
}
