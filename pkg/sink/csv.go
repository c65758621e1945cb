package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"trial-sponsor-tracker/pkg/pipeline/types"
)

// Header is the exported column order; the first column is the row index
var Header = []string{
	"",
	"NCT ID",
	"Acronym",
	"Sponsor",
	"Overall Status",
	"Start Date",
	"Conditions",
	"Interventions",
	"Locations",
	"Primary Completion Date",
	"Study First Post Date",
	"Last Update Post Date",
	"Study Type",
	"Phases",
	"Publicly Traded",
	"Ticker",
}

// CSVSink writes the aggregate as one CSV file per run, replacing the
// previous file
type CSVSink struct {
	path string
}

// NewCSVSink creates a sink writing to path
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (s *CSVSink) Name() string { return "csv" }

// Write replaces the file atomically so readers never see a partial export
func (s *CSVSink) Write(ctx context.Context, run *types.RunReport, rows []types.Row) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".trials-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set mode on %s: %w", tmp.Name(), err)
	}
	if err := WriteCSV(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to move export into place: %w", err)
	}
	return nil
}

// WriteCSV encodes rows with Header as the first line
func WriteCSV(w io.Writer, rows []types.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(csvRecord(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(row types.Row) []string {
	rec := row.Record
	return []string{
		strconv.Itoa(row.Index),
		rec.NCTID,
		rec.Acronym,
		rec.Sponsor,
		rec.OverallStatus,
		rec.StartDate,
		rec.Conditions.String(),
		rec.Interventions.String(),
		rec.Locations.String(),
		rec.PrimaryCompletionDate,
		rec.StudyFirstPostDate,
		rec.LastUpdatePostDate,
		rec.StudyType,
		rec.Phases.String(),
		formatBool(row.PubliclyTraded()),
		row.Resolution.TickerOrEmpty(),
	}
}

func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
