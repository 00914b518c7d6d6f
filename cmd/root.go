/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"

	"github.com/hpcwave/wavesolve"
	"github.com/hpcwave/wavesolve/distributed"
	"github.com/hpcwave/wavesolve/driver"
	"github.com/hpcwave/wavesolve/engine"
	"github.com/hpcwave/wavesolve/internal/envconfig"
	"github.com/hpcwave/wavesolve/statefile"
)

// logger is the driver's structured-ish diagnostics sink: a package-level
// *log.Logger on stderr, the same shape 0x5844-wave2D uses, not a
// structured logging library (none of the retrieved repos reach for one
// here).
var logger = log.New(os.Stderr, "", log.Lmsgprefix|log.Ltime)

var rootCmd = &cobra.Command{
	Use:   "wavesolve <input.wo> <output.wo>",
	Short: "Damped 2D wave equation solver",
	Long: `wavesolve integrates a damped linear wave equation on a 2D
rectangular grid with fixed boundaries until its energy falls to the
termination threshold, checkpointing periodically and writing a final
output state.`,
	Args: cobra.ExactArgs(2),
	RunE: runWavesolve,
}

// Execute runs the root command; main.go's sole job is to call this.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().IntP("threads", "t", 0, "worker count for the shared-memory engine, rank count with --distributed (0 = SOLVER_NUM_THREADS/OMP_NUM_THREADS, else 1)")
	rootCmd.Flags().Float64P("interval", "i", 0, "checkpoint wall-clock interval in seconds, <= 0 disables (unset = use INTVL env var, default disabled)")
	rootCmd.Flags().Bool("distributed", false, "use the distributed (rank-partitioned) engine instead of shared-memory; it treats the state file's t as remaining simulated time, the shared-memory engine as elapsed time")
	rootCmd.Flags().String("profile-cpu", "", "enable CPU profiling when non-empty; the profile is written to cpu.pprof in the current directory, not to the given name")
	rootCmd.Flags().String("profile-mem", "", "write a heap profile to this file")
}

func runWavesolve(cmd *cobra.Command, args []string) error {
	inputPath, err := homedir.Expand(args[0])
	if err != nil {
		return err
	}
	outputPath, err := homedir.Expand(args[1])
	if err != nil {
		return err
	}

	threads, _ := cmd.Flags().GetInt("threads")
	interval, _ := cmd.Flags().GetFloat64("interval")
	useDistributed, _ := cmd.Flags().GetBool("distributed")
	cpuProfile, _ := cmd.Flags().GetString("profile-cpu")
	memProfile, _ := cmd.Flags().GetString("profile-mem")

	env, envErr := envconfig.Load()
	if envErr != nil {
		logger.Printf("warning: %v (falling back to defaults)", envErr)
	}
	if !cmd.Flags().Changed("interval") && env.CheckpointInterval > 0 {
		interval = env.CheckpointInterval
	}
	if threads == 0 {
		if env.NumThreads > 0 {
			threads = env.NumThreads
		} else {
			threads = 1
		}
	}

	if cpuProfile != "" {
		stop := profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
		defer stop.Stop()
	}

	var build driver.Build
	if useDistributed {
		build = func(loadPath string) (driver.Engine, int, error) {
			eng, err := distributed.New(loadPath, threads)
			if err != nil {
				return nil, 0, err
			}
			return eng, eng.InteriorCells(), nil
		}
	} else {
		build = func(loadPath string) (driver.Engine, int, error) {
			g, err := statefile.Load(loadPath)
			if err != nil {
				return nil, 0, err
			}
			eng := engine.New(g, threads)
			return eng, g.InteriorCells(), nil
		}
	}

	logger.Printf("start input=%s output=%s threads=%d distributed=%v interval=%gs",
		inputPath, outputPath, threads, useDistributed, interval)

	result, err := driver.Run(inputPath, outputPath, build, driver.Options{CheckpointInterval: interval, Logger: logger})
	if err != nil {
		if werr, ok := err.(*wavesolve.Error); ok {
			logger.Printf("error: %s", werr)
			return fmt.Errorf("%s", werr)
		}
		logger.Printf("error: %v", err)
		return err
	}

	logger.Printf("done steps=%d final_t=%g", result.Steps, result.FinalTime)

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			logger.Printf("warning: could not write heap profile: %v", err)
		} else {
			defer f.Close()
			if err := pprof.WriteHeapProfile(f); err != nil {
				logger.Printf("warning: could not write heap profile: %v", err)
			}
		}
	}

	return nil
}
