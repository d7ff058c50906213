package config

import (
	"fmt"

	"github.com/kilianp07/icusim/core/simulation"
)

// SimulationConfig defines the Monte Carlo run.
type SimulationConfig struct {
	Rounds         int       `json:"rounds"`
	Seed           int64     `json:"seed"`
	Workers        int       `json:"workers"`
	HorizonCapDays int       `json:"horizon_cap_days"`
	Probabilities  []float64 `json:"probabilities"`
}

// SetDefaults applies fallback values for optional fields.
func (c *SimulationConfig) SetDefaults() {
	if c.Rounds == 0 {
		c.Rounds = 100
	}
	if len(c.Probabilities) == 0 {
		c.Probabilities = append([]float64(nil), simulation.DefaultMasses...)
	}
}

// Validate checks the run parameters.
func (c SimulationConfig) Validate() error {
	if c.Rounds < 1 {
		return fmt.Errorf("simulation.rounds must be >= 1")
	}
	if c.Workers < 0 {
		return fmt.Errorf("simulation.workers must be >= 0")
	}
	if c.HorizonCapDays < 0 {
		return fmt.Errorf("simulation.horizon_cap_days must be >= 0")
	}
	for _, p := range c.Probabilities {
		if !(p > 0 && p < 1) {
			return fmt.Errorf("simulation.probabilities: %v outside (0, 1)", p)
		}
	}
	return nil
}

// Core returns the simulator configuration.
func (c SimulationConfig) Core() simulation.Config {
	return simulation.Config{
		Rounds:         c.Rounds,
		Seed:           c.Seed,
		Workers:        c.Workers,
		HorizonCapDays: c.HorizonCapDays,
	}
}
