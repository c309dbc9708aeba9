// Package main implements the horas CLI, which rebuilds driving, rest and
// waiting intervals from coded timestamp sheets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/config"
	"github.com/codeGROOVE-dev/horas/pkg/histogram"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/codeGROOVE-dev/horas/pkg/httpcache"
	"github.com/codeGROOVE-dev/horas/pkg/remote"
	"github.com/codeGROOVE-dev/horas/pkg/report"
	"github.com/codeGROOVE-dev/horas/pkg/sheet"
)

var (
	sheetName  = flag.String("sheet", "", "Worksheet to read (default: first sheet)")
	output     = flag.String("output", "", "Write results to a .xlsx, .csv, .html, .md, .pdf or .txt file (default: terminal)")
	configPath = flag.String("config", "", "Category config file (or set HORAS_CONFIG)")
	workers    = flag.Int("workers", -1, "Records processed concurrently (default: config value, 0 = GOMAXPROCS)")
	title      = flag.String("title", "", "Report title")
	cacheDir   = flag.String("cache-dir", "", "Download cache directory (or set CACHE_DIR)")
	noCache    = flag.Bool("no-cache", false, "Disable the download cache")
	noColor    = flag.Bool("no-color", false, "Disable colored output")
	noHeader   = flag.Bool("no-header", false, "Treat the first row as data")
	showEmpty  = flag.Bool("show-empty", false, "List records without intervals")
	showHist   = flag.Bool("histogram", false, "Chart when intervals happen during the day")
	dumpConfig = flag.Bool("dump-config", false, "Print the effective configuration and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("horas CLI v1.0.0")
		return
	}

	level := slog.LevelError
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if *configPath == "" {
		*configPath = os.Getenv("HORAS_CONFIG")
	}
	if *cacheDir == "" {
		*cacheDir = os.Getenv("CACHE_DIR")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		os.Exit(1)
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	if *dumpConfig {
		if err := config.Dump(os.Stdout, cfg); err != nil {
			logger.Error("dumping config", "error", err)
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input.xlsx|input.csv|https://...>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, args[0], os.Stdout); err != nil {
		stop()
		logger.Error("processing failed", "error", err)
		if !*verbose {
			fmt.Fprintf(os.Stderr, "horas: %v\n", err)
		}
		os.Exit(1) //nolint:gocritic // stop() already called
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, input string, stdout io.Writer) error {
	cats, err := cfg.BuildCategories()
	if err != nil {
		return err
	}
	processor := horas.NewWithLogger(logger, horas.WithCategories(cats...), horas.WithWorkers(cfg.Workers))

	opts := sheet.Options{
		Sheet:       *sheetName,
		DateLayouts: cfg.DateLayouts,
		NoHeader:    *noHeader,
	}

	src, closeSrc, err := source(ctx, logger, input, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSrc(); err != nil {
			logger.Warn("closing download cache", "error", err)
		}
	}()

	reportOpts := report.Options{Title: *title, NoColor: *noColor, ShowEmpty: *showEmpty}
	collector := &collectSink{}
	var out horas.ResultSink = &report.WriterSink{W: stdout, Format: report.FormatText, Options: reportOpts}
	if *output != "" {
		out = &sheet.FileSink{Path: *output, Options: reportOpts}
	}
	sink := teeSink{collector, out}

	if err := processor.Run(ctx, src, sink); err != nil {
		return err
	}

	if *output != "" {
		fmt.Fprintf(stdout, "wrote %d records to %s\n", len(collector.results), *output)
	}
	if *showHist {
		fmt.Fprint(stdout, "\n"+histogram.Render(histogram.Build(collector.results), *noColor))
	}
	return nil
}

// source picks a local file or a download. The returned func releases the
// download cache, if one was opened.
func source(ctx context.Context, logger *slog.Logger, input string, opts sheet.Options) (horas.RowSource, func() error, error) {
	noop := func() error { return nil }

	if !remote.IsURL(input) {
		if _, err := sheet.DetectFormat(input); err != nil {
			return nil, noop, err
		}
		return &sheet.FileSource{Path: input, Options: opts}, noop, nil
	}

	var fetchOpts []remote.Option
	closeCache := noop
	if !*noCache {
		cache, err := openCache(ctx, logger, *cacheDir)
		if err != nil {
			logger.Warn("download cache unavailable", "error", err)
		} else {
			fetchOpts = append(fetchOpts, remote.WithCache(cache))
			closeCache = cache.Close
		}
	}

	fetcher := remote.NewWithLogger(logger, fetchOpts...)
	return &remote.Source{Fetcher: fetcher, URL: input, Options: opts}, closeCache, nil
}

func openCache(ctx context.Context, logger *slog.Logger, dir string) (*httpcache.Cache, error) {
	if dir == "" {
		userCacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("locating cache directory: %w", err)
		}
		dir = filepath.Join(userCacheDir, "horas")
	}
	return httpcache.NewDiskCache(ctx, dir, 24*time.Hour, logger)
}

// collectSink keeps the results for the summary and histogram.
type collectSink struct {
	results []horas.RecordResult
}

func (c *collectSink) Write(_ context.Context, results []horas.RecordResult) error {
	c.results = results
	return nil
}

// teeSink hands results to every sink, stopping at the first error.
type teeSink []horas.ResultSink

func (t teeSink) Write(ctx context.Context, results []horas.RecordResult) error {
	for _, s := range t {
		if err := s.Write(ctx, results); err != nil {
			return err
		}
	}
	return nil
}
