// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sakura/springbreak/motion"
	"github.com/spf13/cobra"
)

var (
	simThreshold float64
	simInterval  time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <samples.csv>",
	Short: "Replay recorded motion samples through the shake filter",
	Long: `Replays a CSV recording of accelerometer samples through the shake
filter and prints every detected shake. Each row is
"timestamp_ms,x,y,z"; a header row is skipped.

Examples:
  springbreak simulate walk.csv
  springbreak simulate --threshold 500 --interval 50ms shake.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().Float64Var(&simThreshold, "threshold", 0, "shake threshold override")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "minimum sample interval override")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		printError("failed to load config", err)
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		printError("failed to open recording", err)
		return err
	}
	defer f.Close()

	samples, err := motion.NewCSVReader(f).ReadAll()
	if err != nil {
		printError("failed to read recording", err)
		return err
	}

	opts := cfg.MotionOptions()
	if cmd.Flags().Changed("threshold") {
		opts.ShakeThreshold = &simThreshold
	}
	if simInterval != 0 {
		opts.MinSampleInterval = simInterval
	}

	out := cmd.OutOrStdout()
	detector, err := motion.NewDetector("simulate",
		motion.DispatcherFunc(func(
			_ context.Context,
			_ string,
			ev motion.ShakeEvent,
		) error {
			fmt.Fprintf(out, "shake at %d ms (speed %.1f)\n",
				ev.TimestampMillis, ev.Speed)
			return nil
		}),
		opts,
		motion.WithLogger(log),
	)
	if err != nil {
		printError("invalid motion settings", err)
		return err
	}

	ctx := cmd.Context()
	for _, s := range samples {
		detector.Process(ctx, s)
	}

	st := detector.Stats()
	fmt.Fprintf(out, "\n%d samples: %d seeded, %d accepted, %d debounced, %d out of order, %d shakes\n",
		len(samples), st.Seeded, st.Accepted, st.Debounced, st.OutOfOrder, st.Shakes)
	return nil
}
