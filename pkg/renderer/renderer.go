package renderer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
	"github.com/your-org/ci-breakage-dashboard/pkg/themes"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageKind names a dashboard page
type PageKind string

const (
	PageIndex          PageKind = "index"
	PageCodeBreakages  PageKind = "code-breakages"
	PagePatternDetails PageKind = "pattern-details"
)

// FileName is the page's file name in a static snapshot
func (k PageKind) FileName(patternID string) string {
	if k == PagePatternDetails && patternID != "" {
		return fmt.Sprintf("pattern-details-%s.html", patternID)
	}
	return string(k) + ".html"
}

// Notice levels
const (
	NoticeError   = "error"
	NoticeWarning = "warning"
	NoticeInfo    = "info"
)

// Notice is a visible, non-blocking message shown above the page
type Notice struct {
	Level   string `json:"level" yaml:"level"`
	Panel   string `json:"panel,omitempty" yaml:"panel,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// SortState records which table column the page is ordered by
type SortState struct {
	Table string `json:"table"`
	Key   string `json:"key"`
	Desc  bool   `json:"desc,omitempty"`
}

// Page is everything one dashboard page renders
type Page struct {
	Kind        PageKind                  `json:"kind"`
	Title       string                    `json:"title"`
	Theme       themes.Theme              `json:"-"`
	Notices     []Notice                  `json:"notices"`
	Stats       *analytics.BreakageStats  `json:"stats,omitempty"`
	Charts      []*charts.Chart           `json:"charts"`
	Tables      []*table.Table            `json:"tables"`
	ModeGroups  []analytics.SelectorGroup `json:"mode_groups,omitempty"`
	PatternID   string                    `json:"pattern_id,omitempty"`
	GeneratedAt string                    `json:"generated_at"`
	Sort        *SortState                `json:"sort,omitempty"`

	// Live pages are served and carry edit forms; snapshots are read-only
	Live     bool   `json:"-"`
	EditBase string `json:"-"`
}

// Table finds a table on the page by id
func (p *Page) Table(id string) (*table.Table, bool) {
	for _, t := range p.Tables {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

// Chart finds a chart on the page by container id
func (p *Page) Chart(id string) (*charts.Chart, bool) {
	for _, c := range p.Charts {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// AddNotice appends a notice
func (p *Page) AddNotice(n Notice) {
	p.Notices = append(p.Notices, n)
}

// WithTable pairs a table with its page for the table template
func (p *Page) WithTable(t *table.Table) TableView {
	return TableView{Table: t, Page: p}
}

// TableView is a table plus the page state its cells need
type TableView struct {
	*table.Table
	Page *Page
}

// Live reports whether edit forms and sort links are rendered
func (v TableView) Live() bool {
	return v.Page.Live
}

// Sortable reports whether key names a sortable column
func (v TableView) Sortable(key string) bool {
	if !v.Page.Live {
		return false
	}
	col, ok := v.Column(key)
	return ok && col.Sorter != table.SorterNone && col.Value != nil
}

// SortURL toggles between ascending and descending on repeated clicks
func (v TableView) SortURL(key string) string {
	q := url.Values{}
	q.Set("table", v.ID)
	q.Set("sort", key)
	if s := v.Page.Sort; s != nil && s.Table == v.ID && s.Key == key && !s.Desc {
		q.Set("desc", "1")
	}
	if v.Page.PatternID != "" {
		q.Set("pattern_id", v.Page.PatternID)
	}
	return "?" + q.Encode()
}

// EditURL is the form action for a mutation on one row
func (v TableView) EditURL(causeID int64, kind string) string {
	return fmt.Sprintf("%s/%d/%s", v.Page.EditBase, causeID, kind)
}

// HeadCell is one column header as the table template sees it
type HeadCell struct {
	View  TableView
	Key   string
	Title string
}

// Head builds a header cell for the column addressed by key
func (v TableView) Head(key, title string) HeadCell {
	return HeadCell{View: v, Key: key, Title: title}
}

// SortKey is how a column is addressed in sort links
func SortKey(c table.Column) string {
	if c.Field != "" {
		return c.Field
	}
	return c.Title
}

var funcMap = template.FuncMap{
	"sortKey":      SortKey,
	"deletePrompt": table.ConfirmDeletePrompt,
	"selected": func(raw string, value int64) bool {
		return raw != "" && raw == strconv.FormatInt(value, 10)
	},
	"noticeClass": func(level string) string {
		switch level {
		case NoticeError, NoticeWarning, NoticeInfo:
			return "notice-" + level
		}
		return "notice-info"
	},
}

// Renderer handles HTML template rendering
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded page templates
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("pages").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render writes the page as HTML
func (r *Renderer) Render(w io.Writer, page *Page) error {
	name := string(page.Kind)
	if r.templates.Lookup(name) == nil {
		return fmt.Errorf("unknown page %q", page.Kind)
	}
	for _, c := range page.Charts {
		c.ApplyTheme(page.Theme.Chart)
	}

	// render to a buffer so a template error never leaves half a page behind
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, page); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// RenderToFile renders the page into outputPath
func (r *Renderer) RenderToFile(page *Page, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := r.Render(f, page); err != nil {
		return err
	}
	logger.Debugf("Wrote %s", outputPath)
	return nil
}
