// Package histogram shows when during the day each category's intervals fall.
package histogram

import (
	"fmt"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/fatih/color"
)

const (
	// BucketWidth is the resolution of the histogram.
	BucketWidth = 30 * time.Minute
	// Buckets covers one day.
	Buckets = int(24 * time.Hour / BucketWidth)

	maxBar = 40
)

// Histogram holds, per category, the time spent inside each half-hour bucket
// summed over every record. Intervals past midnight are cut at 24:00.
type Histogram struct {
	Labels    []string
	Occupancy [][Buckets]time.Duration
}

// Build accumulates the intervals of every record.
func Build(results []horas.RecordResult) *Histogram {
	h := &Histogram{}
	index := make(map[string]int)

	for i := range results {
		for _, c := range results[i].Categories {
			idx, ok := index[c.Category]
			if !ok {
				idx = len(h.Labels)
				index[c.Category] = idx
				label := c.Label
				if label == "" {
					label = c.Category
				}
				h.Labels = append(h.Labels, label)
				h.Occupancy = append(h.Occupancy, [Buckets]time.Duration{})
			}
			for _, p := range c.Pairs {
				h.add(idx, p.Start, p.Stop)
			}
		}
	}
	return h
}

func (h *Histogram) add(idx int, start, stop time.Duration) {
	for b := range Buckets {
		lo := time.Duration(b) * BucketWidth
		hi := lo + BucketWidth
		overlap := min(stop, hi) - max(start, lo)
		if overlap > 0 {
			h.Occupancy[idx][b] += overlap
		}
	}
}

// Total returns the time summed over every category for bucket b.
func (h *Histogram) Total(b int) time.Duration {
	var sum time.Duration
	for i := range h.Occupancy {
		sum += h.Occupancy[i][b]
	}
	return sum
}

func categoryColor(i int) *color.Color {
	colors := []*color.Color{
		color.New(color.FgBlue),
		color.New(color.FgYellow),
		color.New(color.FgRed),
	}
	if i < len(colors) {
		return colors[i]
	}
	return color.New(color.FgHiBlack)
}

// Render draws one line per half hour between the first and last busy
// bucket, with a bar stacked by category.
func Render(h *Histogram, noColor bool) string {
	var out strings.Builder

	out.WriteString("Time of day (30-minute resolution)\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")

	first, last := -1, -1
	var peak time.Duration
	for b := range Buckets {
		total := h.Total(b)
		if total == 0 {
			continue
		}
		if first < 0 {
			first = b
		}
		last = b
		peak = max(peak, total)
	}
	if first < 0 {
		return out.String() + "No intervals to chart\n"
	}

	colors := make([]*color.Color, len(h.Labels))
	legend := make([]string, len(h.Labels))
	for i, label := range h.Labels {
		colors[i] = categoryColor(i)
		if noColor {
			colors[i].DisableColor()
		}
		legend[i] = colors[i].Sprint("█") + " " + label
	}
	out.WriteString(strings.Join(legend, "   ") + "\n\n")

	for b := first; b <= last; b++ {
		at := time.Duration(b) * BucketWidth
		total := h.Total(b)
		line := fmt.Sprintf("%02d:%02d ", int(at.Hours()), int(at.Minutes())%60)
		if total == 0 {
			out.WriteString(line + "\n")
			continue
		}
		line += fmt.Sprintf("(%5s) ", formatMinutes(total))

		width := scale(total, peak)
		var bar strings.Builder
		remaining := width
		for i := range h.Occupancy {
			if remaining == 0 {
				break
			}
			d := h.Occupancy[i][b]
			if d == 0 {
				continue
			}
			seg := max(int(int64(d)*int64(width)/int64(total)), 1)
			seg = min(seg, remaining)
			bar.WriteString(colors[i].Sprint(strings.Repeat("█", seg)))
			remaining -= seg
		}
		out.WriteString(line + bar.String() + "\n")
	}
	return out.String()
}

func scale(d, peak time.Duration) int {
	return max(int(int64(d)*maxBar/int64(peak)), 1)
}

func formatMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02d", m/60, m%60)
}
