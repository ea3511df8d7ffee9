package export

import (
	"encoding/json"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
)

// Format represents the output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Extension is the file extension for the format
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatYAML:
		return ".yaml"
	}
	return ".txt"
}

// PageView is the machine-readable form of a page
type PageView struct {
	Kind        renderer.PageKind        `json:"kind" yaml:"kind"`
	Title       string                   `json:"title" yaml:"title"`
	PatternID   string                   `json:"pattern_id,omitempty" yaml:"pattern_id,omitempty"`
	GeneratedAt string                   `json:"generated_at" yaml:"generated_at"`
	Notices     []renderer.Notice        `json:"notices" yaml:"notices"`
	Stats       *analytics.BreakageStats `json:"stats,omitempty" yaml:"stats,omitempty"`
	Tables      []TableView              `json:"tables" yaml:"tables"`
	Charts      []ChartView              `json:"charts" yaml:"charts"`
}

// TableView holds a table's raw API records
type TableView struct {
	ID     string `json:"id" yaml:"id"`
	Title  string `json:"title" yaml:"title"`
	Source string `json:"source" yaml:"source"`
	Rows   []any  `json:"rows" yaml:"rows"`
}

// ChartView holds a chart's series
type ChartView struct {
	ID     string       `json:"id" yaml:"id"`
	Title  string       `json:"title" yaml:"title"`
	Series []SeriesView `json:"series" yaml:"series"`
}

// SeriesView is one chart series
type SeriesView struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	Data any    `json:"data" yaml:"data"`
}

// NewPageView converts a page for JSON or YAML output
func NewPageView(page *renderer.Page) PageView {
	v := PageView{
		Kind:        page.Kind,
		Title:       page.Title,
		PatternID:   page.PatternID,
		GeneratedAt: page.GeneratedAt,
		Notices:     page.Notices,
		Stats:       page.Stats,
		Tables:      make([]TableView, 0, len(page.Tables)),
		Charts:      make([]ChartView, 0, len(page.Charts)),
	}
	if v.Notices == nil {
		v.Notices = []renderer.Notice{}
	}
	for _, t := range page.Tables {
		rows := t.Rows
		if rows == nil {
			rows = []any{}
		}
		v.Tables = append(v.Tables, TableView{ID: t.ID, Title: t.Title, Source: t.Source.URL(), Rows: rows})
	}
	for _, c := range page.Charts {
		cv := ChartView{ID: c.ID, Title: c.Title.Text}
		for _, s := range c.Series {
			cv.Series = append(cv.Series, SeriesView{Name: s.Name, Data: s.Data})
		}
		v.Charts = append(v.Charts, cv)
	}
	return v
}

// Exporter writes pages in one output format
type Exporter struct {
	format Format
}

// NewExporter creates a new exporter
func NewExporter(format Format) *Exporter {
	return &Exporter{format: format}
}

// Export writes the page to w
func (e *Exporter) Export(w io.Writer, page *renderer.Page) error {
	switch e.format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(NewPageView(page))
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(NewPageView(page))
	default:
		return writeTables(w, page)
	}
}

// ExportFile writes the page into outputDir, named after the page
func (e *Exporter) ExportFile(page *renderer.Page, outputDir string) (string, error) {
	name := strings.TrimSuffix(page.Kind.FileName(page.PatternID), ".html") + e.format.Extension()
	path := filepath.Join(outputDir, name)

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := e.Export(f, page); err != nil {
		return "", fmt.Errorf("failed to export %s: %w", page.Kind, err)
	}
	return path, nil
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PlainText strips markup from a rendered cell
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagPattern.ReplaceAllString(s, "")))
}

// iconOnly reports columns that hold nothing but a clickable icon
func iconOnly(c table.Column) bool {
	switch c.Action {
	case table.ActionDelete, table.ActionDetails, table.ActionTimeline:
		return true
	}
	return false
}

// TableText renders a table's visible columns as plain text. Leaf titles
// are prefixed with their group title
func TableText(t *table.Table) ([]string, [][]string) {
	var headers []string
	var keep []bool

	addLeaf := func(group string, c table.Column) {
		skip := iconOnly(c)
		keep = append(keep, !skip)
		if skip {
			return
		}
		title := c.Title
		if group != "" {
			title = group + " " + c.Title
		}
		headers = append(headers, title)
	}
	for _, c := range t.Columns {
		if len(c.Children) == 0 {
			addLeaf("", c)
			continue
		}
		for _, child := range c.Children {
			addLeaf(c.Title, child)
		}
	}

	var rows [][]string
	for _, rc := range t.Cells() {
		row := make([]string, 0, len(headers))
		for i, cell := range rc.Cells {
			if i < len(keep) && keep[i] {
				row = append(row, PlainText(string(cell.HTML)))
			}
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func writeTables(w io.Writer, page *renderer.Page) error {
	fmt.Fprintf(w, "%s (generated %s)\n", page.Title, page.GeneratedAt)
	for _, n := range page.Notices {
		if n.Panel != "" {
			fmt.Fprintf(w, "! [%s] %s: %s\n", n.Level, n.Panel, n.Message)
		} else {
			fmt.Fprintf(w, "! [%s] %s\n", n.Level, n.Message)
		}
	}

	if s := page.Stats; s != nil {
		fmt.Fprintf(w, "\n%d annotated, %d open, %d resolved, %d downstream commits broken, %d downstream builds failed\n",
			s.Total, s.Open, s.Resolved, s.DownstreamCommits, s.FailedDownstreamBuilds)
	}

	for _, t := range page.Tables {
		fmt.Fprintf(w, "\n== %s ==\n", t.Title)
		headers, rows := TableText(t)
		if len(rows) == 0 {
			fmt.Fprintln(w, t.Placeholder)
			continue
		}
		tw := newTableWriter(w, headers)
		tw.AppendBulk(rows)
		tw.Render()
	}

	for _, c := range page.Charts {
		fmt.Fprintf(w, "\n== %s ==\n", c.Title.Text)
		points := chartRows(c)
		if len(points) == 0 {
			fmt.Fprintln(w, table.Placeholder)
			continue
		}
		tw := newTableWriter(w, []string{"Series", "Point", "Value"})
		tw.AppendBulk(points)
		tw.Render()
	}
	return nil
}

