package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/codeGROOVE-dev/horas/pkg/horas"
)

// ErrUnknownFormat is returned for report formats Render cannot produce.
var ErrUnknownFormat = errors.New("unknown report format")

// Format names a report renderer.
type Format string

// Report formats.
const (
	FormatText     Format = "text"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
)

// ParseFormat maps a user supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt", "terminal":
		return FormatText, nil
	case "html", "htm":
		return FormatHTML, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatForPath picks a report format from a file extension.
func FormatForPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return FormatHTML, true
	case ".md", ".markdown":
		return FormatMarkdown, true
	case ".pdf":
		return FormatPDF, true
	case ".txt":
		return FormatText, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type of a format's output.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Render writes results in the given format.
func Render(w io.Writer, format Format, results []horas.RecordResult, opts Options) error {
	switch format {
	case FormatText, "":
		return Terminal(w, results, opts)
	case FormatHTML:
		return HTML(w, results, opts)
	case FormatMarkdown:
		return Markdown(w, results, opts)
	case FormatPDF:
		return PDF(w, results, opts)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriterSink renders results to a writer. It satisfies horas.ResultSink.
type WriterSink struct {
	W       io.Writer
	Format  Format
	Options Options
}

// Write renders results unless ctx is already done.
func (s *WriterSink) Write(ctx context.Context, results []horas.RecordResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return Render(s.W, s.Format, results, s.Options)
}
