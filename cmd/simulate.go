package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/icusim/app"
	coremqtt "github.com/kilianp07/icusim/core/mqtt"
)

var (
	simRounds int
	simSeed   int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one simulation and write its outputs",
	RunE:  runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simRounds, "rounds", "r", 0, "number of rounds (overrides config)")
	simulateCmd.Flags().Int64VarP(&simSeed, "seed", "s", 0, "base seed (overrides config)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	req := coremqtt.RunRequest{Rounds: simRounds}
	if cmd.Flags().Changed("seed") {
		req.Seed = &simSeed
	}
	out, err := svc.Run(ctx, app.SourceCLI, req)
	if err != nil {
		return err
	}
	rec := out.Record
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d rounds over %d days from %s\n",
		rec.ID, rec.Rounds, rec.HorizonDays, rec.HorizonStart.Format(time.DateOnly))
	fmt.Fprintf(cmd.OutOrStdout(), "peak occupancy: %.1f beds on %s\n", rec.PeakMean, rec.PeakDate.Format(time.DateOnly))
	for _, row := range out.Rows {
		if !row.Date.Equal(rec.PeakDate) {
			continue
		}
		for _, iv := range row.Intervals {
			fmt.Fprintf(cmd.OutOrStdout(), "  %g%% interval: [%d, %d]\n", iv.Mass*100, iv.Lower, iv.Upper)
		}
	}
	return nil
}
