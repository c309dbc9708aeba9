// Package clock formats the durations and time-of-day offsets produced by
// interval reconstruction. All values are offsets since midnight of the
// record's date; no timezone is involved.
package clock

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDuration is returned by ParseDuration for text it did not produce.
var ErrInvalidDuration = errors.New("invalid duration")

const day = 24 * time.Hour

var durationPattern = regexp.MustCompile(`^(-)?(?:(\d+) days?, )?(\d+):(\d{2}):(\d{2})$`)

// FormatDuration renders d as H:MM:SS, prefixed with "D day(s), " once it
// reaches 24 hours. Sub-second precision is truncated.
// Example: FormatDuration(90*time.Minute) == "1:30:00"
// Example: FormatDuration(50*time.Hour) == "2 days, 2:00:00"
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}

	days := int64(d / day)
	rest := int64((d % day) / time.Second)
	hms := fmt.Sprintf("%d:%02d:%02d", rest/3600, (rest/60)%60, rest%60)

	switch days {
	case 0:
		return sign + hms
	case 1:
		return sign + "1 day, " + hms
	default:
		return fmt.Sprintf("%s%d days, %s", sign, days, hms)
	}
}

// ParseDuration is the inverse of FormatDuration.
func ParseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var days int64
	if m[2] != "" {
		var err error
		if days, err = strconv.ParseInt(m[2], 10, 64); err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, s, err)
		}
	}
	hours, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, s, err)
	}
	minutes, _ := strconv.ParseInt(m[4], 10, 64)
	seconds, _ := strconv.ParseInt(m[5], 10, 64)
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	d := time.Duration(days)*day +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// FormatClock renders a time-of-day offset as HH:MM:SS. Offsets past
// midnight keep counting hours (25:10:00) so they stay comparable.
func FormatClock(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
}
