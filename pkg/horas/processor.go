// Package horas turns rows of coded timestamp cells into per-category
// work, rest and waiting intervals.
package horas

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/codeGROOVE-dev/horas/pkg/category"
	"github.com/codeGROOVE-dev/horas/pkg/event"
	"github.com/codeGROOVE-dev/horas/pkg/interval"
)

// Processor reconstructs intervals for every configured category.
// It holds no per-row state and is safe for concurrent use.
type Processor struct {
	logger     *slog.Logger
	categories []category.Category
	workers    int
}

// New creates a Processor using the default logger.
func New(opts ...Option) *Processor {
	return NewWithLogger(slog.Default(), opts...)
}

// NewWithLogger creates a new Processor with a custom logger.
func NewWithLogger(logger *slog.Logger, opts ...Option) *Processor {
	optHolder := &OptionHolder{}
	for _, opt := range opts {
		opt(optHolder)
	}

	if logger == nil {
		logger = slog.Default()
	}

	cats := optHolder.categories
	if len(cats) == 0 {
		cats = category.Defaults()
	}

	workers := optHolder.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	return &Processor{
		logger:     logger,
		categories: append([]category.Category(nil), cats...),
		workers:    workers,
	}
}

// Categories returns the categories this processor evaluates, in output order.
func (p *Processor) Categories() []category.Category {
	return append([]category.Category(nil), p.categories...)
}

// ProcessRecord reconstructs every category for a single record.
func (p *Processor) ProcessRecord(rec Record) RecordResult {
	// Parse and sort once; each category reads the same ordered sequence.
	ordered := event.Order(event.Extract(rec.Cells))

	result := RecordResult{
		Index:      rec.Index,
		Date:       rec.Date,
		RawDate:    rec.RawDate,
		Categories: make([]CategoryResult, 0, len(p.categories)),
	}
	for _, c := range p.categories {
		pairs := interval.Reconstruct(ordered, c)
		total, ok := interval.Total(pairs)
		result.Categories = append(result.Categories, CategoryResult{
			Category: c.Name,
			Label:    c.DisplayName(),
			Pairs:    pairs,
			Total:    total,
			HasData:  ok,
		})
	}
	return result
}

// Process reconstructs all records using a bounded pool of workers.
// Results come back in input order regardless of completion order.
func (p *Processor) Process(ctx context.Context, records []Record) ([]RecordResult, error) {
	results := make([]RecordResult, len(records))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, p.workers)

dispatch:
	for i := range records {
		select {
		case <-ctx.Done():
			break dispatch
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = p.ProcessRecord(records[i])
		}(i)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("processing records: %w", err)
	}

	p.logger.Debug("processed records", "records", len(records), "workers", p.workers, "categories", len(p.categories))
	return results, nil
}

// Run reads every record from src, processes them and hands the results to sink.
func (p *Processor) Run(ctx context.Context, src RowSource, sink ResultSink) error {
	records, err := src.Records(ctx)
	if err != nil {
		return fmt.Errorf("reading records: %w", err)
	}
	p.logger.Info("records loaded", "count", len(records))

	results, err := p.Process(ctx, records)
	if err != nil {
		return err
	}

	empty := 0
	for i := range results {
		hasData := false
		for _, c := range results[i].Categories {
			hasData = hasData || c.HasData
		}
		if !hasData {
			empty++
		}
	}
	if empty > 0 {
		p.logger.Debug("records without intervals", "count", empty)
	}

	if err := sink.Write(ctx, results); err != nil {
		return fmt.Errorf("writing results: %w", err)
	}
	return nil
}
