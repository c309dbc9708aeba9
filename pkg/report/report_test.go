package report

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/codeGROOVE-dev/horas/pkg/interval"
)

func hms(h, m, s int) time.Duration {
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second
}

func sample() []horas.RecordResult {
	return []horas.RecordResult{
		{
			Date:  time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Index: 0,
			Categories: []horas.CategoryResult{
				{
					Category: "driving",
					Label:    "Driving Hours",
					Pairs: []interval.Pair{
						{Start: hms(8, 0, 0), Stop: hms(9, 0, 0)},
						{Start: hms(13, 0, 0), Stop: hms(17, 30, 0)},
					},
					Total:   hms(5, 30, 0),
					HasData: true,
				},
				{Category: "resting", Label: "Rest Hours"},
			},
		},
		{
			RawDate: "sem data",
			Index:   1,
			Categories: []horas.CategoryResult{
				{Category: "driving", Label: "Driving Hours"},
				{Category: "resting", Label: "Rest Hours"},
			},
		},
		{
			Date:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Index: 2,
			Categories: []horas.CategoryResult{
				{
					Category: "driving",
					Label:    "Driving Hours",
					Pairs:    []interval.Pair{{Start: hms(8, 0, 0), Stop: hms(9, 0, 0)}},
					Total:    hms(1, 0, 0),
					HasData:  true,
				},
				{
					Category: "resting",
					Label:    "Rest Hours",
					Pairs:    []interval.Pair{{Start: hms(12, 0, 0), Stop: hms(13, 0, 0)}},
					Total:    hms(1, 0, 0),
					HasData:  true,
				},
			},
		},
	}
}

func TestSortByDate(t *testing.T) {
	sorted := SortByDate(sample())
	want := []int{2, 0, 1}
	for i, r := range sorted {
		if r.Index != want[i] {
			t.Errorf("sorted[%d].Index = %d, want %d", i, r.Index, want[i])
		}
	}
}

func TestHeader(t *testing.T) {
	got := strings.Join(Header(2), ",")
	want := "Date,Start_1,Stop_1,Start_2,Stop_2,Total Hours"
	if got != want {
		t.Errorf("Header(2) = %q, want %q", got, want)
	}
	if got := strings.Join(Header(0), ","); got != "Date,Total Hours" {
		t.Errorf("Header(0) = %q", got)
	}
}

func TestTables(t *testing.T) {
	tables := Tables(sample())
	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}

	driving := tables[0]
	if driving.Label != "Driving Hours" || driving.Pairs != 2 {
		t.Errorf("driving table = %q with %d pairs, want Driving Hours with 2", driving.Label, driving.Pairs)
	}
	want := [][]string{
		{"01/03/2024", "08:00:00", "09:00:00", "", "", "1:00:00"},
		{"02/03/2024", "08:00:00", "09:00:00", "13:00:00", "17:30:00", "5:30:00"},
		{"sem data", "", "", "", "", ""},
	}
	if len(driving.Rows) != len(want) {
		t.Fatalf("driving rows = %d, want %d", len(driving.Rows), len(want))
	}
	for i := range want {
		if got := strings.Join(driving.Rows[i], "|"); got != strings.Join(want[i], "|") {
			t.Errorf("row %d = %q, want %q", i, got, strings.Join(want[i], "|"))
		}
		if len(driving.Rows[i]) != len(driving.Header) {
			t.Errorf("row %d has %d cells, header has %d", i, len(driving.Rows[i]), len(driving.Header))
		}
	}

	resting := tables[1]
	if resting.Pairs != 1 || len(resting.Header) != 4 {
		t.Errorf("resting table pairs = %d header = %v", resting.Pairs, resting.Header)
	}
}

func TestSpans(t *testing.T) {
	r := sample()[0]
	c, _ := r.Category("driving")
	if got, want := Spans(&c), "08:00:00-09:00:00, 13:00:00-17:30:00"; got != want {
		t.Errorf("Spans() = %q, want %q", got, want)
	}
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	if err := Terminal(&buf, sample(), Options{NoColor: true}); err != nil {
		t.Fatalf("Terminal() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Driving Hours",
		"02/03/2024",
		"08:00:00 → 09:00:00 13:00:00 → 17:30:00",
		"(5:30:00)",
		"2 records, total 6:30:00, 1 without data",
		"Rest Hours",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Terminal() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "sem data") {
		t.Errorf("empty record shown without ShowEmpty:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("NoColor output contains escape codes:\n%q", out)
	}
}

func TestTerminalShowEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Terminal(&buf, sample(), Options{NoColor: true, ShowEmpty: true}); err != nil {
		t.Fatalf("Terminal() error = %v", err)
	}
	if !strings.Contains(buf.String(), "sem data") {
		t.Errorf("ShowEmpty output missing empty record:\n%s", buf.String())
	}
}

func TestTerminalNoIntervals(t *testing.T) {
	results := []horas.RecordResult{{
		RawDate:    "x",
		Categories: []horas.CategoryResult{{Category: "waiting", Label: "Waiting Hours"}},
	}}
	var buf bytes.Buffer
	if err := Terminal(&buf, results, Options{NoColor: true}); err != nil {
		t.Fatalf("Terminal() error = %v", err)
	}
	if !strings.Contains(buf.String(), "no intervals found") {
		t.Errorf("output = %q, want no intervals notice", buf.String())
	}
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := HTML(&buf, sample(), Options{Title: "March <draft>"}); err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"<h1>March &lt;draft&gt;</h1>",
		"<h2>Driving Hours</h2>",
		"<th>Start_2</th>",
		"<td>17:30:00</td>",
		"<th>Total Hours</th>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("HTML() output missing %q", want)
		}
	}
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := Markdown(&buf, sample(), Options{}); err != nil {
		t.Fatalf("Markdown() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Interval Report",
		"Driving Hours",
		"08:00:00-09:00:00, 13:00:00-17:30:00",
		"total 5:30:00",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Markdown() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<li>") || strings.Contains(out, "<h2>") {
		t.Errorf("Markdown() left html behind:\n%s", out)
	}
}

func TestPDF(t *testing.T) {
	var buf bytes.Buffer
	if err := PDF(&buf, sample(), Options{}); err != nil {
		t.Fatalf("PDF() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF")) {
		t.Errorf("PDF() output does not start with %%PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"terminal", FormatText},
		{"HTML", FormatHTML},
		{"markdown", FormatMarkdown},
		{"pdf", FormatPDF},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseFormat("docx"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("ParseFormat(docx) error = %v, want ErrUnknownFormat", err)
	}
}

func TestFormatForPath(t *testing.T) {
	if f, ok := FormatForPath("out/report.PDF"); !ok || f != FormatPDF {
		t.Errorf("FormatForPath(report.PDF) = %q, %v", f, ok)
	}
	if _, ok := FormatForPath("out.xlsx"); ok {
		t.Error("FormatForPath(out.xlsx) should not be a report format")
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := &WriterSink{W: &buf, Format: FormatHTML}
	if err := sink.Write(context.Background(), sample()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(buf.String(), "<table>") {
		t.Error("WriterSink did not render html")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sink.Write(ctx, sample()); !errors.Is(err, context.Canceled) {
		t.Errorf("Write(cancelled) error = %v, want context.Canceled", err)
	}
}
