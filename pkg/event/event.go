// Package event parses coded timestamp cells into events and orders them.
package event

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"time"
)

// cellPattern matches "<code>-<HH>:<MM>:<SS>" at the start of a cell.
// Anything after the seconds group is ignored.
var cellPattern = regexp.MustCompile(`^(\d+)-(\d{2}):(\d{2}):(\d{2})`)

// Event is a single coded observation taken from one cell of a row.
type Event struct {
	// Code is the leading digit group; its meaning depends on the category.
	Code int `json:"code"`
	// Time is the offset since midnight of the row's date.
	Time time.Duration `json:"time"`
	// Position is the cell index the event was parsed from.
	Position int `json:"position"`
}

// Parse converts a cell's text into an Event.
// It reports false for cells that do not follow the event grammar.
func Parse(cell string) (Event, bool) {
	m := cellPattern.FindStringSubmatch(cell)
	if m == nil {
		return Event{}, false
	}

	code, err := strconv.Atoi(m[1])
	if err != nil {
		// Only reachable when the code overflows int.
		return Event{}, false
	}

	// Two-digit groups always fit, so these conversions cannot fail.
	hours, _ := strconv.Atoi(m[2])
	minutes, _ := strconv.Atoi(m[3])
	seconds, _ := strconv.Atoi(m[4])

	return Event{
		Code: code,
		Time: time.Duration(hours)*time.Hour +
			time.Duration(minutes)*time.Minute +
			time.Duration(seconds)*time.Second,
	}, true
}

// Normalize stringifies a raw cell value so it can be matched against the
// event grammar. Spreadsheet readers hand back strings, numbers or nil.
func Normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Extract parses every cell of a row, skipping cells that do not match.
// Position is set to the cell's index so ties can be broken by column order.
func Extract(cells []any) []Event {
	var events []Event
	for i, cell := range cells {
		ev, ok := Parse(Normalize(cell))
		if !ok {
			continue
		}
		ev.Position = i
		events = append(events, ev)
	}
	return events
}

// Order returns a copy of events sorted by time of day. Events sharing a time
// keep their input order; nothing is merged or deduplicated.
func Order(events []Event) []Event {
	ordered := slices.Clone(events)
	slices.SortStableFunc(ordered, func(a, b Event) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})
	return ordered
}

// String renders the event back in its cell form, e.g. "1-08:15:30".
func (e Event) String() string {
	total := int64(e.Time / time.Second)
	return fmt.Sprintf("%d-%02d:%02d:%02d", e.Code, total/3600, (total/60)%60, total%60)
}
