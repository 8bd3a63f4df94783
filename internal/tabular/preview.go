package tabular

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"meddatachat/internal/models"
)

// DefaultPreviewRows bounds previews when the caller passes no positive limit.
const DefaultPreviewRows = 10

// Preview renders the header and the first maxRows rows of t as a
// right-aligned, borderless text grid without an index column. The output is
// a pure function of (t, maxRows).
func Preview(t *models.Table, maxRows int) string {
	if t == nil || len(t.Columns) == 0 {
		return ""
	}
	if maxRows <= 0 {
		maxRows = DefaultPreviewRows
	}

	tw := table.NewWriter()
	tw.SetStyle(previewStyle())

	header := make(table.Row, len(t.Columns))
	configs := make([]table.ColumnConfig, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignRight,
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, r := range t.Head(maxRows) {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = v.String()
		}
		tw.AppendRow(row)
	}
	return tw.Render()
}

func previewStyle() table.Style {
	style := table.StyleDefault
	style.Name = "Preview"
	style.Options = table.OptionsNoBordersAndSeparators
	style.Format.Header = text.FormatDefault
	style.Box.PaddingLeft = " "
	style.Box.PaddingRight = ""
	return style
}
