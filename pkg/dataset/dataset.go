// Package dataset reads the CSV inputs of a simulation: ICU stay records
// with admission and outcome dates, and daily admission counts. Files ending
// in .gz are decompressed transparently.
package dataset

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/icusim/core/admissions"
	"github.com/kilianp07/icusim/core/duration"
	"github.com/kilianp07/icusim/core/model"
)

// Default column names, matching the public ICU stay exports.
const (
	DefaultStartColumn = "DATE_START"
	DefaultEndColumn   = "DATE_END"
	DefaultDateColumn  = "date"
	DefaultCountColumn = "count"
	DefaultLayout      = time.DateOnly
)

// Options selects columns and the date layout.
type Options struct {
	StartColumn string
	EndColumn   string
	DateColumn  string
	CountColumn string
	Layout      string
}

func (o Options) withDefaults() Options {
	if o.StartColumn == "" {
		o.StartColumn = DefaultStartColumn
	}
	if o.EndColumn == "" {
		o.EndColumn = DefaultEndColumn
	}
	if o.DateColumn == "" {
		o.DateColumn = DefaultDateColumn
	}
	if o.CountColumn == "" {
		o.CountColumn = DefaultCountColumn
	}
	if o.Layout == "" {
		o.Layout = DefaultLayout
	}
	return o
}

// table iterates the rows of a headed CSV file by column name.
type table struct {
	r       *csv.Reader
	columns map[string]int
	line    int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: missing header", model.ErrValidation)
	}
	if err != nil {
		return nil, err
	}
	t := &table{r: cr, columns: make(map[string]int, len(header)), line: 1}
	for i, h := range header {
		t.columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range required {
		if _, ok := t.columns[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", model.ErrValidation, c)
		}
	}
	return t, nil
}

// next returns the next row or io.EOF.
func (t *table) next() ([]string, error) {
	row, err := t.r.Read()
	if err != nil {
		return nil, err
	}
	t.line++
	return row, nil
}

func (t *table) get(row []string, column string) string {
	i := t.columns[column]
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ReadStays reads stay records. Rows without an outcome date are patients
// still in the unit and yield open stays.
func ReadStays(r io.Reader, opts Options) ([]duration.Stay, error) {
	opts = opts.withDefaults()
	t, err := newTable(r, opts.StartColumn, opts.EndColumn)
	if err != nil {
		return nil, err
	}
	var stays []duration.Stay
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			return stays, nil
		}
		if err != nil {
			return nil, err
		}
		startRaw, endRaw := t.get(row, opts.StartColumn), t.get(row, opts.EndColumn)
		if startRaw == "" {
			continue
		}
		var stay duration.Stay
		if stay.Start, err = time.Parse(opts.Layout, startRaw); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrValidation, t.line, err)
		}
		if endRaw != "" {
			if stay.End, err = time.Parse(opts.Layout, endRaw); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", model.ErrValidation, t.line, err)
			}
		}
		stays = append(stays, stay)
	}
}

// ReadAdmissions reads daily admission counts.
func ReadAdmissions(r io.Reader, opts Options) ([]admissions.Observation, error) {
	opts = opts.withDefaults()
	t, err := newTable(r, opts.DateColumn, opts.CountColumn)
	if err != nil {
		return nil, err
	}
	var obs []admissions.Observation
	for {
		row, err := t.next()
		if errors.Is(err, io.EOF) {
			return obs, nil
		}
		if err != nil {
			return nil, err
		}
		date, err := time.Parse(opts.Layout, t.get(row, opts.DateColumn))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrValidation, t.line, err)
		}
		count, err := strconv.Atoi(t.get(row, opts.CountColumn))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: count: %v", model.ErrValidation, t.line, err)
		}
		obs = append(obs, admissions.Observation{Date: date, Count: count})
	}
}

// AdmissionsFromStays counts stays, open ones included, per admission day in
// chronological order.
func AdmissionsFromStays(stays []duration.Stay) []admissions.Observation {
	counts := make(map[time.Time]int)
	var days []time.Time
	for _, s := range stays {
		d := model.DayOf(s.Start)
		if _, ok := counts[d]; !ok {
			days = append(days, d)
		}
		counts[d]++
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	obs := make([]admissions.Observation, len(days))
	for i, d := range days {
		obs[i] = admissions.Observation{Date: d, Count: counts[d]}
	}
	return obs
}

// Open opens path for reading, decompressing it when it ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	g, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &gzipFile{Reader: g, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	return errors.Join(g.Reader.Close(), g.f.Close())
}

// LoadStays reads stay records from path.
func LoadStays(path string, opts Options) ([]duration.Stay, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	stays, err := ReadStays(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stays, nil
}

// LoadAdmissions reads daily admission counts from path.
func LoadAdmissions(path string, opts Options) ([]admissions.Observation, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	obs, err := ReadAdmissions(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return obs, nil
}
