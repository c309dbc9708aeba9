// Package sheet reads input rows from xlsx or csv files and writes the
// per-category result tables back out.
package sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/config"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported sheet format")
	// ErrNoRows is returned when a sheet holds no data rows.
	ErrNoRows = errors.New("sheet has no data rows")
)

// Format is a spreadsheet encoding.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DetectFormat picks a format from a file name or URL path.
func DetectFormat(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Options controls how rows are read.
type Options struct {
	// Sheet names the worksheet to read. Empty means the first one.
	Sheet string
	// DateLayouts are tried in order against text dates.
	DateLayouts []string
	// NoHeader treats the first row as data.
	NoHeader bool
}

func (o Options) layouts() []string {
	if len(o.DateLayouts) == 0 {
		return config.DefaultDateLayouts
	}
	return o.DateLayouts
}

// Read decodes records from r. The first column of every row is the date;
// the remaining cells are handed to the processor untouched.
func Read(r io.Reader, format Format, opts Options) ([]horas.Record, error) {
	var rows [][]string
	var err error
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(r, opts.Sheet)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if !opts.NoHeader && len(rows) > 0 {
		rows = rows[1:]
	}

	var records []horas.Record
	for _, row := range rows {
		if blank(row) {
			continue
		}
		raw := strings.TrimSpace(row[0])
		cells := make([]any, 0, len(row)-1)
		for _, c := range row[1:] {
			cells = append(cells, c)
		}
		records = append(records, horas.Record{
			Date:    ParseDate(raw, opts.layouts()),
			RawDate: raw,
			Cells:   cells,
			Index:   len(records),
		})
	}
	if len(records) == 0 {
		return nil, ErrNoRows
	}
	return records, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseDate turns a date cell into a time. Numeric cells are Excel serial
// dates; text is tried against layouts in order. Unparseable input yields
// the zero time.
func ParseDate(raw string, layouts []string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
		return time.Time{}
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

func readXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("closing workbook", "error", err)
		}
	}()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrNoRows
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	return rows, nil
}

// FileSource reads records from a local file. It satisfies horas.RowSource.
type FileSource struct {
	Path    string
	Options Options
}

// Records opens and decodes the file.
func (s *FileSource) Records(ctx context.Context) ([]horas.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := DetectFormat(s.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.Path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Debug("closing input", "path", s.Path, "error", err)
		}
	}()
	return Read(f, format, s.Options)
}

// BytesSource decodes records from an in-memory payload, such as an upload
// or a download. It satisfies horas.RowSource.
type BytesSource struct {
	Data    []byte
	Format  Format
	Options Options
}

// Records decodes the payload.
func (s *BytesSource) Records(ctx context.Context) ([]horas.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Read(bytes.NewReader(s.Data), s.Format, s.Options)
}
