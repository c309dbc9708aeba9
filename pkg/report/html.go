package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/codeGROOVE-dev/horas/pkg/horas"
)

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: center; }
th { background: #f0f0f0; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Tables}}
<h2>{{.Label}}</h2>
<table>
<thead><tr>{{range .Header}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>
{{end}}</tbody>
</table>
{{end}}
</body>
</html>
`))

// Markdown goes through the HTML converter, which has no table support in its
// default plugins, so the listing uses headings and bullet lists instead.
var listTemplate = template.Must(template.New("list").Parse(`<h1>{{.Title}}</h1>
{{range .Sections}}
<h2>{{.Label}}</h2>
{{if .Items}}<ul>
{{range .Items}}<li><strong>{{.Date}}</strong>: {{.Spans}} (total {{.Total}})</li>
{{end}}</ul>{{else}}<p><em>No intervals found.</em></p>{{end}}
{{end}}
`))

type listItem struct {
	Date  string
	Spans string
	Total string
}

type listSection struct {
	Label string
	Items []listItem
}

// HTML writes a standalone page with one table per category.
func HTML(w io.Writer, results []horas.RecordResult, opts Options) error {
	data := struct {
		Title  string
		Tables []Table
	}{opts.title(), Tables(results)}

	if err := pageTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering html: %w", err)
	}
	return nil
}

// Markdown writes a markdown listing of every record that has intervals.
func Markdown(w io.Writer, results []horas.RecordResult, opts Options) error {
	var buf bytes.Buffer
	if err := listTemplate.Execute(&buf, struct {
		Title    string
		Sections []listSection
	}{opts.title(), sections(results)}); err != nil {
		return fmt.Errorf("rendering markdown source: %w", err)
	}

	markdown, err := md.ConvertString(buf.String())
	if err != nil {
		return fmt.Errorf("converting html to markdown: %w", err)
	}
	if _, err := io.WriteString(w, markdown+"\n"); err != nil {
		return fmt.Errorf("writing markdown: %w", err)
	}
	return nil
}

func sections(results []horas.RecordResult) []listSection {
	sorted := SortByDate(results)
	var out []listSection
	for _, table := range Tables(results) {
		section := listSection{Label: table.Label}
		for i := range sorted {
			c, ok := sorted[i].Category(table.Category)
			if !ok || !c.HasData {
				continue
			}
			section.Items = append(section.Items, listItem{
				Date:  FormatDate(&sorted[i]),
				Spans: Spans(&c),
				Total: FormatTotal(&c),
			})
		}
		out = append(out, section)
	}
	return out
}
