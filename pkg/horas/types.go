package horas

import (
	"context"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/category"
	"github.com/codeGROOVE-dev/horas/pkg/interval"
)

// Option configures a Processor.
type Option func(*OptionHolder)

// WithCategories replaces the default driving/resting/waiting categories.
func WithCategories(cats ...category.Category) Option {
	return func(o *OptionHolder) {
		o.categories = cats
	}
}

// WithWorkers sets how many records are reconstructed concurrently.
// Zero uses GOMAXPROCS; negative values mean one.
func WithWorkers(n int) Option {
	return func(o *OptionHolder) {
		o.workers = n
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	categories []category.Category
	workers    int
}

// Record is one input row: its date plus the raw cells that follow the date column.
type Record struct {
	Date    time.Time `json:"date"`
	RawDate string    `json:"raw_date,omitempty"`
	Cells   []any     `json:"cells"`
	Index   int       `json:"index"`
}

// CategoryResult holds the intervals found for one category of one record.
// HasData is false when no valid interval was found; Total is then
// meaningless and must be shown as blank, not as zero.
type CategoryResult struct {
	Category string          `json:"category"`
	Label    string          `json:"label,omitempty"`
	Pairs    []interval.Pair `json:"pairs"`
	Total    time.Duration   `json:"total"`
	HasData  bool            `json:"has_data"`
}

// RecordResult is the outcome for one record across every configured category.
type RecordResult struct {
	Date       time.Time        `json:"date"`
	RawDate    string           `json:"raw_date,omitempty"`
	Categories []CategoryResult `json:"categories"`
	Index      int              `json:"index"`
}

// Category returns the result for the named category.
func (r *RecordResult) Category(name string) (CategoryResult, bool) {
	for _, c := range r.Categories {
		if c.Category == name {
			return c, true
		}
	}
	return CategoryResult{}, false
}

// RowSource supplies the records to process.
type RowSource interface {
	Records(ctx context.Context) ([]Record, error)
}

// ResultSink consumes processed records. Layout, padding and date sorting
// are the sink's business.
type ResultSink interface {
	Write(ctx context.Context, results []RecordResult) error
}
