package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/icusim/app"
	"github.com/kilianp07/icusim/config"
)

var admissionsCmd = &cobra.Command{
	Use:   "admissions",
	Short: "Print the normalized admissions series",
	RunE:  runAdmissions,
}

func init() {
	rootCmd.AddCommand(admissionsCmd)
}

func runAdmissions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	in, err := app.LoadInputs(cfg.Input)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, in.Admissions)
	for _, e := range in.Admissions.Series() {
		fmt.Fprintf(w, "%s\t%d\n", e.Date.Format(time.DateOnly), e.Count)
	}
	fmt.Fprintf(w, "stay pool: %d durations, mean %.2f days, max %d\n",
		in.Sampler.Len(), in.Sampler.Mean(), in.Sampler.MaxDuration())
	return nil
}
