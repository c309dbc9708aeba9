package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeGROOVE-dev/horas/pkg/clock"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/codeGROOVE-dev/horas/pkg/report"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// SheetName makes a category label usable as a worksheet name.
func SheetName(label string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(label))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return "Sheet"
	}
	return name
}

// WriteXLSX writes one worksheet per category with the padded
// Date, Start_N, Stop_N, Total Hours layout.
func WriteXLSX(w io.Writer, results []horas.RecordResult) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("closing workbook", "error", err)
		}
	}()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	tables := report.Tables(results)
	if len(tables) == 0 {
		tables = []report.Table{{Label: "Sheet1", Header: report.Header(0)}}
	}

	used := make(map[string]bool)
	for i, table := range tables {
		name := uniqueName(SheetName(table.Label), used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("naming sheet %q: %w", name, err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("creating sheet %q: %w", name, err)
		}

		if err := writeRow(f, name, 1, table.Header); err != nil {
			return err
		}
		if err := f.SetRowStyle(name, 1, 1, bold); err != nil {
			return fmt.Errorf("styling header of %q: %w", name, err)
		}
		for r, row := range table.Rows {
			if err := writeRow(f, name, r+2, row); err != nil {
				return err
			}
		}

		last, err := excelize.ColumnNumberToName(len(table.Header))
		if err != nil {
			return fmt.Errorf("sizing columns of %q: %w", name, err)
		}
		if err := f.SetColWidth(name, "A", last, 12); err != nil {
			return fmt.Errorf("sizing columns of %q: %w", name, err)
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func uniqueName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func writeRow(f *excelize.File, sheet string, n int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("writing %s!%s: %w", sheet, cell, err)
	}
	return nil
}

// WriteCSV writes every category into one csv in long form:
// Category, Date, Start, Stop, Duration, one line per interval.
// Records without data for a category get a single line with blank times.
func WriteCSV(w io.Writer, results []horas.RecordResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Category", report.DateColumn, "Start", "Stop", "Duration"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	sorted := report.SortByDate(results)
	for _, table := range report.Tables(results) {
		for i := range sorted {
			c, ok := sorted[i].Category(table.Category)
			if !ok {
				continue
			}
			date := report.FormatDate(&sorted[i])
			if !c.HasData {
				if err := cw.Write([]string{table.Label, date, "", "", ""}); err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
				continue
			}
			for _, p := range c.Pairs {
				line := []string{table.Label, date, clock.FormatClock(p.Start), clock.FormatClock(p.Stop), clock.FormatDuration(p.Duration())}
				if err := cw.Write(line); err != nil {
					return fmt.Errorf("writing csv: %w", err)
				}
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// FileSink writes results to a path, choosing the encoding by extension:
// .xlsx and .csv produce tables, .html, .md, .pdf and .txt produce reports.
// It satisfies horas.ResultSink.
type FileSink struct {
	Path    string
	Options report.Options
}

// Write creates the file and renders results into it.
func (s *FileSink) Write(ctx context.Context, results []horas.RecordResult) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	write, err := s.writer()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	f, err := os.Create(s.Path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", s.Path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", s.Path, cerr)
		}
	}()

	return write(f, results)
}

func (s *FileSink) writer() (func(io.Writer, []horas.RecordResult) error, error) {
	if format, err := DetectFormat(s.Path); err == nil {
		if format == FormatXLSX {
			return WriteXLSX, nil
		}
		return WriteCSV, nil
	}
	if format, ok := report.FormatForPath(s.Path); ok {
		opts := s.Options
		opts.NoColor = true
		return func(w io.Writer, results []horas.RecordResult) error {
			return report.Render(w, format, results, opts)
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s.Path)
}
