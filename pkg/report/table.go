// Package report lays processed records out as per-category tables and
// renders them for terminals, HTML, markdown and PDF.
package report

import (
	"slices"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/horas/pkg/clock"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
)

// DateLayout is how record dates are printed (day first).
const DateLayout = "02/01/2006"

// Column names of the result tables.
const (
	DateColumn  = "Date"
	TotalColumn = "Total Hours"
)

// Table is the padded layout of one category: Date, Start_1, Stop_1, ...,
// Start_N, Stop_N, Total Hours, where N is the largest pair count of any row.
type Table struct {
	Category string
	Label    string
	Header   []string
	Rows     [][]string
	// Pairs is N, the number of start/stop column pairs.
	Pairs int
}

// SortByDate returns a copy of results ordered by date. Records without a
// parsed date go last; ties keep their input order.
func SortByDate(results []horas.RecordResult) []horas.RecordResult {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b horas.RecordResult) int {
		switch {
		case a.Date.IsZero() && b.Date.IsZero():
			return 0
		case a.Date.IsZero():
			return 1
		case b.Date.IsZero():
			return -1
		default:
			return a.Date.Compare(b.Date)
		}
	})
	return sorted
}

// FormatDate renders a record's date, falling back to the raw cell text.
func FormatDate(r *horas.RecordResult) string {
	if r.Date.IsZero() {
		return r.RawDate
	}
	return r.Date.Format(DateLayout)
}

// FormatTotal renders a category total, blank when there is no data.
func FormatTotal(c *horas.CategoryResult) string {
	if !c.HasData {
		return ""
	}
	return clock.FormatDuration(c.Total)
}

// Tables builds one table per category, in the order categories appear in
// the results. Rows are sorted by date.
func Tables(results []horas.RecordResult) []Table {
	sorted := SortByDate(results)

	var tables []Table
	index := make(map[string]int)
	for i := range sorted {
		for _, c := range sorted[i].Categories {
			if _, ok := index[c.Category]; ok {
				continue
			}
			index[c.Category] = len(tables)
			label := c.Label
			if label == "" {
				label = c.Category
			}
			tables = append(tables, Table{Category: c.Category, Label: label})
		}
	}

	for t := range tables {
		table := &tables[t]
		for i := range sorted {
			if c, ok := sorted[i].Category(table.Category); ok && len(c.Pairs) > table.Pairs {
				table.Pairs = len(c.Pairs)
			}
		}
		table.Header = Header(table.Pairs)

		for i := range sorted {
			c, _ := sorted[i].Category(table.Category)
			table.Rows = append(table.Rows, row(&sorted[i], &c, table.Pairs))
		}
	}
	return tables
}

// Header returns the column names for n start/stop pairs.
func Header(n int) []string {
	header := make([]string, 0, 2*n+2)
	header = append(header, DateColumn)
	for i := 1; i <= n; i++ {
		header = append(header, "Start_"+strconv.Itoa(i), "Stop_"+strconv.Itoa(i))
	}
	return append(header, TotalColumn)
}

func row(r *horas.RecordResult, c *horas.CategoryResult, n int) []string {
	cells := make([]string, 0, 2*n+2)
	cells = append(cells, FormatDate(r))
	for i := range n {
		if i < len(c.Pairs) {
			cells = append(cells, clock.FormatClock(c.Pairs[i].Start), clock.FormatClock(c.Pairs[i].Stop))
		} else {
			cells = append(cells, "", "")
		}
	}
	return append(cells, FormatTotal(c))
}

// Spans renders a category's pairs as "08:00:00-09:00:00, 13:00:00-17:00:00".
func Spans(c *horas.CategoryResult) string {
	parts := make([]string, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		parts = append(parts, clock.FormatClock(p.Start)+"-"+clock.FormatClock(p.Stop))
	}
	return strings.Join(parts, ", ")
}
