package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/icusim/app"
	"github.com/kilianp07/icusim/config"
	"github.com/kilianp07/icusim/infra/logger"

	// Registers the nop, prometheus and influx metrics sinks.
	_ "github.com/kilianp07/icusim/infra/metrics"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "icusim",
	Short:        "Monte Carlo ICU occupancy simulator",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func newService() (*app.Service, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func closeService(svc *app.Service) {
	if err := svc.Close(); err != nil {
		logger.New("main").Errorf("service close: %v", err)
	}
}
