// Package interval rebuilds start/stop intervals from ordered events.
//
// Raw recordings are noisy: the same start marker is often entered twice and a
// single stop is frequently followed by re-readings of other codes. The
// reconstruction keeps the first start of an open interval, collapses every
// run of non-start events to its last stop, and drops pairs that are not longer
// than MinDuration.
package interval

import (
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/category"
	"github.com/codeGROOVE-dev/horas/pkg/event"
)

// MinDuration is the noise threshold. Pairs must be strictly longer to count.
const MinDuration = 60 * time.Second

// Pair is a validated start/stop span, both expressed as offsets since midnight.
type Pair struct {
	Start time.Duration `json:"start"`
	Stop  time.Duration `json:"stop"`
}

// Duration returns Stop - Start.
func (p Pair) Duration() time.Duration {
	return p.Stop - p.Start
}

// Valid reports whether the pair is longer than MinDuration.
func (p Pair) Valid() bool {
	return p.Duration() > MinDuration
}

// Reconstruct walks chronologically ordered events and returns the intervals
// for category c. It never fails: rows without usable markers yield nil.
//
// While no interval is open, only a start code matters. Once open, further
// start codes are ignored until a stop is resolved. A run of consecutive
// non-start events resolves to the time of the last stop code in the run; if
// the run holds no stop code the interval stays open. An interval still open
// when the events run out is dropped.
func Reconstruct(ordered []event.Event, c category.Category) []Pair {
	var pairs []Pair
	var start time.Duration
	open := false

	for i := 0; i < len(ordered); i++ {
		ev := ordered[i]

		if c.IsStart(ev.Code) {
			if !open {
				start = ev.Time
				open = true
			}
			continue
		}
		if !open {
			continue
		}

		var stop time.Duration
		found := false
		j := i
		for ; j < len(ordered) && !c.IsStart(ordered[j].Code); j++ {
			if c.IsStop(ordered[j].Code) {
				stop = ordered[j].Time
				found = true
			}
		}
		// Resume at the next start (the loop increment lands on j).
		i = j - 1

		if !found {
			continue
		}
		if p := (Pair{Start: start, Stop: stop}); p.Valid() {
			pairs = append(pairs, p)
		}
		open = false
	}

	return pairs
}

// ReconstructRow parses, orders and reconstructs one row of raw cells.
// The caller must leave the date column out of cells.
func ReconstructRow(cells []any, c category.Category) []Pair {
	return Reconstruct(event.Order(event.Extract(cells)), c)
}

// Total sums the pair durations. It reports false when there are no pairs,
// which callers must render as "no data" rather than a zero duration.
func Total(pairs []Pair) (time.Duration, bool) {
	if len(pairs) == 0 {
		return 0, false
	}
	var total time.Duration
	for _, p := range pairs {
		total += p.Duration()
	}
	return total, true
}
