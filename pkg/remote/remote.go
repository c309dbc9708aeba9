// Package remote downloads input sheets over HTTP, with retries and an
// optional cache.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/codeGROOVE-dev/horas/pkg/httpcache"
	"github.com/codeGROOVE-dev/horas/pkg/sheet"
	"github.com/codeGROOVE-dev/retry"
)

// MaxDownload caps the size of a downloaded sheet.
const MaxDownload = 32 << 20

// ErrTooLarge is returned when a download exceeds MaxDownload.
var ErrTooLarge = errors.New("download too large")

// IsURL reports whether s looks like an http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HTTPClient is the subset of *http.Client the fetcher needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Fetcher.
type Option func(*OptionHolder)

// OptionHolder holds configuration options.
type OptionHolder struct {
	client   HTTPClient
	cache    *httpcache.Cache
	attempts uint
	delay    time.Duration
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c HTTPClient) Option {
	return func(o *OptionHolder) {
		o.client = c
	}
}

// WithCache serves repeated downloads from c, revalidating stale entries.
func WithCache(c *httpcache.Cache) Option {
	return func(o *OptionHolder) {
		o.cache = c
	}
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *OptionHolder) {
		o.attempts = attempts
		o.delay = delay
	}
}

// Fetcher downloads sheets.
type Fetcher struct {
	client   HTTPClient
	cache    *httpcache.Cache
	logger   *slog.Logger
	attempts uint
	delay    time.Duration
}

// NewWithLogger creates a Fetcher with a custom logger.
func NewWithLogger(logger *slog.Logger, opts ...Option) *Fetcher {
	optHolder := &OptionHolder{
		attempts: 5,
		delay:    500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(optHolder)
	}
	if logger == nil {
		logger = slog.Default()
	}
	client := optHolder.client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{
		client:   client,
		cache:    optHolder.cache,
		logger:   logger,
		attempts: max(optHolder.attempts, 1),
		delay:    optHolder.delay,
	}
}

// Download is a fetched sheet.
type Download struct {
	Data        []byte
	Format      sheet.Format
	ContentType string
	FromCache   bool
}

// Fetch downloads rawURL. The sheet format comes from the Content-Type when
// it is a spreadsheet type, otherwise from the URL path.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Download, error) {
	var cached httpcache.Entry
	var haveCached bool
	if f.cache != nil {
		cached, haveCached = f.cache.Get(rawURL)
		if haveCached && cached.Fresh(time.Now()) {
			f.logger.Debug("serving download from cache", "url", rawURL)
			return download(rawURL, cached.Data, cached.ContentType, true)
		}
	}

	var data []byte
	var contentType, etag string
	notModified := false

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
			}
			if haveCached && cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}

			resp, err := f.client.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					f.logger.Debug("failed to close response body", "error", err)
				}
			}()

			switch {
			case resp.StatusCode == http.StatusNotModified && haveCached:
				notModified = true
				return nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
				return fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
			case resp.StatusCode != http.StatusOK:
				return retry.Unrecoverable(fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode))
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownload+1))
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}
			if len(body) > MaxDownload {
				return retry.Unrecoverable(fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxDownload))
			}
			data = body
			contentType = resp.Header.Get("Content-Type")
			etag = resp.Header.Get("ETag")
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(f.delay/2+time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("retrying download", "attempt", n+1, "url", rawURL, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}

	if notModified {
		f.logger.Debug("download not modified", "url", rawURL)
		entry, ok := f.cache.Touch(rawURL)
		if !ok {
			entry = cached
		}
		return download(rawURL, entry.Data, entry.ContentType, true)
	}

	if f.cache != nil {
		f.cache.Set(rawURL, data, etag, contentType)
	}
	return download(rawURL, data, contentType, false)
}

func download(rawURL string, data []byte, contentType string, fromCache bool) (*Download, error) {
	format, err := formatFor(rawURL, contentType)
	if err != nil {
		return nil, err
	}
	return &Download{Data: data, Format: format, ContentType: contentType, FromCache: fromCache}, nil
}

func formatFor(rawURL, contentType string) (sheet.Format, error) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch {
		case mediaType == "text/csv" || mediaType == "application/csv":
			return sheet.FormatCSV, nil
		case strings.HasPrefix(mediaType, "application/vnd.openxmlformats-officedocument.spreadsheetml"),
			mediaType == "application/vnd.ms-excel.sheet.macroenabled.12":
			return sheet.FormatXLSX, nil
		}
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	return sheet.DetectFormat(path)
}

// Source downloads and decodes a remote sheet. It satisfies horas.RowSource.
type Source struct {
	Fetcher *Fetcher
	URL     string
	Options sheet.Options
}

// Records fetches the sheet and decodes its rows.
func (s *Source) Records(ctx context.Context) ([]horas.Record, error) {
	d, err := s.Fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	src := &sheet.BytesSource{Data: d.Data, Format: d.Format, Options: s.Options}
	return src.Records(ctx)
}
