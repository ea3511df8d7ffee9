package export

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// newTableWriter creates a borderless, tab-padded table
func newTableWriter(w io.Writer, headers []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("\t")
	tw.SetNoWhiteSpace(true)
	return tw
}

// chartRows flattens chart series into series/point/value rows
func chartRows(c *charts.Chart) [][]string {
	var rows [][]string
	for _, s := range c.Series {
		switch data := s.Data.(type) {
		case []charts.Point:
			for _, p := range data {
				rows = append(rows, []string{s.Name, formatMillis(p[0]), fmt.Sprintf("%g", p[1])})
			}
		case []models.NamedCount:
			for _, n := range data {
				rows = append(rows, []string{s.Name, n.Name, fmt.Sprintf("%g", n.Value)})
			}
		case []models.SunburstNode:
			for _, n := range data {
				if n.Value == nil {
					continue
				}
				rows = append(rows, []string{c.Title.Text, n.Name, fmt.Sprintf("%d", *n.Value)})
			}
		}
	}
	return rows
}

// formatMillis renders a unix millisecond x value as a date
func formatMillis(ms float64) string {
	return time.UnixMilli(int64(ms)).UTC().Format("2006-01-02")
}
