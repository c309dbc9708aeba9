package report

import (
	"fmt"
	"io"

	"github.com/codeGROOVE-dev/horas/pkg/horas"
	"github.com/johnfercher/maroto/pkg/color"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

// PDF writes an A4 report with a Date / Intervals / Total table per category.
// The padded Start_N/Stop_N layout is too wide for a page, so each row joins
// its intervals into one column.
func PDF(w io.Writer, results []horas.RecordResult, opts Options) error {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetPageMargins(20, 10, 20)

	m.RegisterHeader(func() {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(opts.title(), props.Text{
					Top:   3,
					Style: consts.Bold,
					Align: consts.Center,
					Size:  16,
				})
			})
		})
	})

	headers := []string{DateColumn, "Intervals", TotalColumn}
	grid := []uint{3, 6, 3}
	sorted := SortByDate(results)

	for _, table := range Tables(results) {
		m.Row(10, func() {
			m.Col(12, func() {
				m.Text(table.Label, props.Text{
					Top:   5,
					Style: consts.Bold,
					Size:  14,
				})
			})
		})

		var rows [][]string
		for i := range sorted {
			c, ok := sorted[i].Category(table.Category)
			if !ok || !c.HasData {
				continue
			}
			rows = append(rows, []string{FormatDate(&sorted[i]), Spans(&c), FormatTotal(&c)})
		}

		if len(rows) == 0 {
			m.Row(8, func() {
				m.Col(12, func() {
					m.Text("No intervals found.", props.Text{Size: 10, Style: consts.Italic})
				})
			})
			continue
		}

		m.TableList(headers, rows, props.TableList{
			HeaderProp: props.TableListContent{
				Size:      10,
				GridSizes: grid,
			},
			ContentProp: props.TableListContent{
				Size:      9,
				GridSizes: grid,
			},
			Align:                consts.Center,
			AlternatedBackground: &color.Color{Red: 240, Green: 240, Blue: 240},
			HeaderContentSpace:   1,
			Line:                 false,
		})
		m.Row(5, func() {})
	}

	buf, err := m.Output()
	if err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}
