// Package export writes simulation results as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kilianp07/icusim/core/simulation"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. An empty name selects CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// WriteSummaryJSON writes the summary rows to w in JSON format.
func WriteSummaryJSON(w io.Writer, rows []simulation.SummaryRow) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteSummaryCSV writes one line per date. Interval columns are named lbNN
// and ubNN after the mass of the first row's intervals.
func WriteSummaryCSV(w io.Writer, rows []simulation.SummaryRow) error {
	cw := csv.NewWriter(w)
	header := []string{"date", "mean", "median", "std_dev", "min", "max"}
	if len(rows) > 0 {
		for _, iv := range rows[0].Intervals {
			pct := percent(iv.Mass)
			header = append(header, "lb"+pct, "ub"+pct)
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Date.Format(time.DateOnly),
			formatFloat(r.Mean),
			formatFloat(r.Median),
			formatFloat(r.StdDev),
			strconv.Itoa(r.Min),
			strconv.Itoa(r.Max),
		}
		for _, iv := range r.Intervals {
			rec = append(rec, strconv.Itoa(iv.Lower), strconv.Itoa(iv.Upper))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Ensemble is the JSON document of a raw ensemble.
type Ensemble struct {
	RunID  string   `json:"run_id,omitempty"`
	Seed   int64    `json:"seed"`
	Dates  []string `json:"dates"`
	Rounds [][]int  `json:"rounds"`
}

// WriteEnsembleJSON writes every round of res to w.
func WriteEnsembleJSON(w io.Writer, res *simulation.Results) error {
	dates := res.Dates()
	doc := Ensemble{RunID: res.RunID(), Seed: res.Seed(), Dates: make([]string, len(dates)), Rounds: res.RawEnsemble()}
	for i, d := range dates {
		doc.Dates[i] = d.Format(time.DateOnly)
	}
	return json.NewEncoder(w).Encode(doc)
}

// WriteEnsembleCSV writes one line per date with one column per round.
func WriteEnsembleCSV(w io.Writer, res *simulation.Results) error {
	cw := csv.NewWriter(w)
	header := make([]string, 1, res.Rounds()+1)
	header[0] = "date"
	for i := 0; i < res.Rounds(); i++ {
		header = append(header, "round_"+strconv.Itoa(i))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	ensemble := res.RawEnsemble()
	rec := make([]string, len(header))
	for col, d := range res.Dates() {
		rec[0] = d.Format(time.DateOnly)
		for i, row := range ensemble {
			rec[i+1] = strconv.Itoa(row[col])
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummaryFile writes the summary to path in the given format.
func WriteSummaryFile(path string, f Format, rows []simulation.SummaryRow) error {
	return writeFile(path, func(w io.Writer) error {
		if f == FormatJSON {
			return WriteSummaryJSON(w, rows)
		}
		return WriteSummaryCSV(w, rows)
	})
}

// WriteEnsembleFile writes the raw ensemble to path in the given format.
func WriteEnsembleFile(path string, f Format, res *simulation.Results) error {
	return writeFile(path, func(w io.Writer) error {
		if f == FormatJSON {
			return WriteEnsembleJSON(w, res)
		}
		return WriteEnsembleCSV(w, res)
	})
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func percent(p float64) string {
	return strconv.FormatFloat(math.Round(p*1e5)/1e3, 'f', -1, 64)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
