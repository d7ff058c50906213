package config

import "github.com/kilianp07/icusim/pkg/export"

// OutputConfig selects where results are written. Empty paths skip the file.
type OutputConfig struct {
	SummaryPath  string `json:"summary_path"`
	EnsemblePath string `json:"ensemble_path"`
	Format       string `json:"format"`
}

// SetDefaults applies fallback values for optional fields.
func (c *OutputConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = string(export.FormatCSV)
	}
}

// Validate checks the format name.
func (c OutputConfig) Validate() error {
	_, err := export.ParseFormat(c.Format)
	return err
}
