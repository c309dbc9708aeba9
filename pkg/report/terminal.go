package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/clock"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/fatih/color"
)

// Options tweaks rendering.
type Options struct {
	// Title heads HTML, markdown and PDF output.
	Title string
	// NoColor disables ANSI colors in terminal output.
	NoColor bool
	// ShowEmpty lists records without intervals in terminal output.
	ShowEmpty bool
}

func (o Options) title() string {
	if o.Title == "" {
		return "Interval Report"
	}
	return o.Title
}

// Terminal writes a per-category listing of every record's intervals.
// Records without data for a category are skipped unless ShowEmpty is set.
func Terminal(w io.Writer, results []horas.RecordResult, opts Options) error {
	heading := color.New(color.FgCyan, color.Bold)
	dateColor := color.New(color.FgYellow)
	totalColor := color.New(color.FgGreen, color.Bold)
	grey := color.New(color.FgHiBlack)
	if opts.NoColor {
		for _, c := range []*color.Color{heading, dateColor, totalColor, grey} {
			c.DisableColor()
		}
	}

	sorted := SortByDate(results)
	for _, table := range Tables(results) {
		if _, err := heading.Fprintf(w, "\n%s\n", table.Label); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, strings.Repeat("─", 50)); err != nil {
			return err
		}

		var grand time.Duration
		shown, empty := 0, 0
		for i := range sorted {
			c, _ := sorted[i].Category(table.Category)
			if !c.HasData {
				empty++
				if opts.ShowEmpty {
					if _, err := grey.Fprintf(w, "%-12s no intervals\n", FormatDate(&sorted[i])); err != nil {
						return err
					}
				}
				continue
			}
			shown++
			grand += c.Total

			if _, err := dateColor.Fprintf(w, "%-12s", FormatDate(&sorted[i])); err != nil {
				return err
			}
			for _, p := range c.Pairs {
				if _, err := fmt.Fprintf(w, " %s → %s", clock.FormatClock(p.Start), clock.FormatClock(p.Stop)); err != nil {
					return err
				}
			}
			if _, err := totalColor.Fprintf(w, "  (%s)\n", FormatTotal(&c)); err != nil {
				return err
			}
		}

		if shown == 0 {
			if _, err := grey.Fprintln(w, "no intervals found"); err != nil {
				return err
			}
			continue
		}
		summary := fmt.Sprintf("%d records, total %s", shown, clock.FormatDuration(grand))
		if empty > 0 {
			summary += fmt.Sprintf(", %d without data", empty)
		}
		if _, err := grey.Fprintln(w, summary); err != nil {
			return err
		}
	}
	return nil
}
