package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/model"
)

type AdmissionDef struct {
	Date  string `yaml:"date"`
	Count int    `yaml:"count"`
}

func (a AdmissionDef) ToModel() (admissions.Observation, error) {
	d, err := time.Parse(time.DateOnly, a.Date)
	if err != nil {
		return admissions.Observation{}, fmt.Errorf("admission date %q: %w", a.Date, err)
	}
	return admissions.Observation{Date: d, Count: a.Count}, nil
}

type IntervalDef struct {
	Date  string  `yaml:"date"`
	Mass  float64 `yaml:"mass"`
	Lower int     `yaml:"lower"`
	Upper int     `yaml:"upper"`
}

type Expected struct {
	// Error names the expected sentinel: empty_pool, invalid_argument,
	// validation or duplicate_date.
	Error     string        `yaml:"error,omitempty"`
	Days      int           `yaml:"days,omitempty"`
	Curve     []int         `yaml:"curve,omitempty"`
	AllZero   bool          `yaml:"all_zero,omitempty"`
	MaxBeds   int           `yaml:"max_beds,omitempty"`
	PeakDate  string        `yaml:"peak_date,omitempty"`
	Intervals []IntervalDef `yaml:"intervals,omitempty"`
}

type Scenario struct {
	Name           string           `yaml:"name"`
	Description    string           `yaml:"description,omitempty"`
	Admissions     []AdmissionDef   `yaml:"admissions"`
	Durations      []model.Duration `yaml:"durations"`
	Rounds         int              `yaml:"rounds"`
	Seed           int64            `yaml:"seed"`
	Workers        int              `yaml:"workers,omitempty"`
	HorizonCapDays int              `yaml:"horizon_cap_days,omitempty"`
	Expected       Expected         `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func parseError(name string) error {
	switch name {
	case "empty_pool":
		return model.ErrEmptyPool
	case "invalid_argument":
		return model.ErrInvalidArgument
	case "validation":
		return model.ErrValidation
	case "duplicate_date":
		return model.ErrDuplicateDate
	default:
		return nil
	}
}
