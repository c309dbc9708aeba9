package event

import (
	"testing"
	"time"
)

func hms(h, m, s int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		cell     string
		wantOK   bool
		wantCode int
		wantTime time.Duration
	}{
		{"simple start", "1-08:15:30", true, 1, hms(8, 15, 30)},
		{"multi digit code", "12-23:59:59", true, 12, hms(23, 59, 59)},
		{"midnight", "6-00:00:00", true, 6, 0},
		{"hours beyond a day", "2-25:00:00", true, 2, hms(25, 0, 0)},
		{"trailing text ignored", "3-09:00:00 parked", true, 3, hms(9, 0, 0)},
		{"empty", "", false, 0, 0},
		{"date cell", "15/03/2024", false, 0, 0},
		{"single digit hour", "1-8:15:30", false, 0, 0},
		{"missing seconds", "1-08:15", false, 0, 0},
		{"leading space", " 1-08:15:30", false, 0, 0},
		{"no code", "-08:15:30", false, 0, 0},
		{"negative code", "-1-08:15:30", false, 0, 0},
		{"code overflow", "99999999999999999999-08:00:00", false, 0, 0},
		{"unrelated text", "motorista", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.cell)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.cell, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Code != tt.wantCode {
				t.Errorf("Parse(%q) code = %d, want %d", tt.cell, got.Code, tt.wantCode)
			}
			if got.Time != tt.wantTime {
				t.Errorf("Parse(%q) time = %v, want %v", tt.cell, got.Time, tt.wantTime)
			}
		})
	}
}

type label string

func (l label) String() string { return string(l) }

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "1-08:00:00", "1-08:00:00"},
		{"bytes", []byte("2-09:00:00"), "2-09:00:00"},
		{"int", 42, "42"},
		{"int64", int64(7), "7"},
		{"float", 3.5, "3.5"},
		{"whole float", float64(45000), "45000"},
		{"stringer", label("3-10:00:00"), "3-10:00:00"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractSkipsNonMatchingCells(t *testing.T) {
	cells := []any{"1-08:00:00", nil, "garbage", 17, "2-09:00:00", ""}

	got := Extract(cells)
	if len(got) != 2 {
		t.Fatalf("Extract() returned %d events, want 2: %v", len(got), got)
	}
	if got[0].Position != 0 || got[1].Position != 4 {
		t.Errorf("positions = %d,%d, want 0,4", got[0].Position, got[1].Position)
	}
}

func TestOrderIsChronological(t *testing.T) {
	events := Extract([]any{"2-09:00:00", "1-08:00:00", "3-08:30:00"})
	ordered := Order(events)

	want := []int{1, 3, 2}
	for i, ev := range ordered {
		if ev.Code != want[i] {
			t.Errorf("ordered[%d].Code = %d, want %d", i, ev.Code, want[i])
		}
	}

	// Order must not touch its input.
	if events[0].Code != 2 {
		t.Errorf("Order() mutated input: first code = %d", events[0].Code)
	}
}

func TestOrderKeepsInputOrderForTies(t *testing.T) {
	events := Extract([]any{"4-08:00:00", "1-08:00:00", "4-08:00:00", "2-07:00:00"})
	ordered := Order(events)

	if len(ordered) != 4 {
		t.Fatalf("Order() dropped events: %v", ordered)
	}
	wantPositions := []int{3, 0, 1, 2}
	for i, ev := range ordered {
		if ev.Position != wantPositions[i] {
			t.Errorf("ordered[%d].Position = %d, want %d", i, ev.Position, wantPositions[i])
		}
	}
}

func TestEventString(t *testing.T) {
	ev, ok := Parse("7-05:04:03")
	if !ok {
		t.Fatal("Parse failed")
	}
	if got := ev.String(); got != "7-05:04:03" {
		t.Errorf("String() = %q, want %q", got, "7-05:04:03")
	}
}
