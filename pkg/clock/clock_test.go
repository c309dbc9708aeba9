package clock

import (
	"errors"
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"zero", 0, "0:00:00"},
		{"one hour", time.Hour, "1:00:00"},
		{"minutes and seconds", 61 * time.Second, "0:01:01"},
		{"just under a day", 24*time.Hour - time.Second, "23:59:59"},
		{"one day", 24 * time.Hour, "1 day, 0:00:00"},
		{"one day and change", 25*time.Hour + 30*time.Minute, "1 day, 1:30:00"},
		{"several days", 50 * time.Hour, "2 days, 2:00:00"},
		{"truncates sub-second", 90*time.Second + 900*time.Millisecond, "0:01:30"},
		{"negative", -90 * time.Minute, "-1:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseDurationRoundTrip(t *testing.T) {
	for _, d := range []time.Duration{
		0,
		59 * time.Second,
		time.Hour,
		10*time.Hour + 5*time.Minute + 3*time.Second,
		24 * time.Hour,
		49*time.Hour + 59*time.Minute + 59*time.Second,
		-2 * time.Hour,
	} {
		text := FormatDuration(d)
		got, err := ParseDuration(text)
		if err != nil {
			t.Errorf("ParseDuration(%q) error = %v", text, err)
			continue
		}
		if got != d {
			t.Errorf("ParseDuration(FormatDuration(%v)) = %v", d, got)
		}
	}
}

func TestParseDurationRejects(t *testing.T) {
	for _, s := range []string{"", "1:00", "01:60:00", "1:00:60", "2 weeks, 1:00:00", "1 day,1:00:00", "abc"} {
		if _, err := ParseDuration(s); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("ParseDuration(%q) error = %v, want ErrInvalidDuration", s, err)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00"},
		{8 * time.Hour, "08:00:00"},
		{13*time.Hour + 5*time.Minute + 9*time.Second, "13:05:09"},
		{25*time.Hour + 10*time.Minute, "25:10:00"},
		{-time.Minute, "00:00:00"},
	}

	for _, tt := range tests {
		if got := FormatClock(tt.in); got != tt.want {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
