package table

import (
	"context"
	"fmt"
	"html/template"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Sorter names how a column compares values
type Sorter string

const (
	SorterNone     Sorter = ""
	SorterString   Sorter = "string"
	SorterNumber   Sorter = "number"
	SorterBoolean  Sorter = "boolean"
	SorterDatetime Sorter = "datetime"
)

// Editor names an in-place cell editor
type Editor string

const (
	EditorNone   Editor = ""
	EditorSelect Editor = "select"
	EditorInput  Editor = "input"
)

// Action names a clickable cell behavior
type Action string

const (
	ActionNone     Action = ""
	ActionDelete   Action = "delete"
	ActionDetails  Action = "details"
	ActionTimeline Action = "timeline"
	ActionDisplay  Action = "display"
)

// DefaultHeight is the fixed height of most tables
const DefaultHeight = "300px"

// Placeholder is shown when a table has no rows
const Placeholder = "No Data Set"

// CellFunc renders one row's cell as safe HTML
type CellFunc func(row any) template.HTML

// TextFunc extracts plain text from a row
type TextFunc func(row any) string

// ValueFunc extracts the comparable value of a cell
type ValueFunc func(row any) any

// Column describes one column, or a group of columns when Children is set
type Column struct {
	Title     string   `json:"title"`
	Field     string   `json:"field,omitempty"`
	Width     int      `json:"width,omitempty"`
	WidthGrow int      `json:"width_grow,omitempty"`
	Align     string   `json:"align,omitempty"`
	Sorter    Sorter   `json:"sorter,omitempty"`
	Editor    Editor   `json:"editor,omitempty"`
	Action    Action   `json:"action,omitempty"`
	Children  []Column `json:"columns,omitempty"`

	Format  CellFunc  `json:"-"`
	Tooltip TextFunc  `json:"-"`
	Raw     TextFunc  `json:"-"`
	Value   ValueFunc `json:"-"`
}

// Source is the GET endpoint a table is populated from
type Source struct {
	Path  string     `json:"path"`
	Query url.Values `json:"query,omitempty"`
}

// URL renders the source as a path with its query string
func (s Source) URL() string {
	if len(s.Query) == 0 {
		return s.Path
	}
	return s.Path + "?" + s.Query.Encode()
}

// Fetcher performs a GET against the analytics API and decodes the JSON body
type Fetcher interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
}

// Table is a column schema bound to a data source
type Table struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Height      string   `json:"height,omitempty"`
	Placeholder string   `json:"placeholder"`
	Columns     []Column `json:"columns"`
	Source      Source   `json:"source"`
	Rows        []any    `json:"rows"`

	rowID func(row any) int64
	load  func(ctx context.Context, f Fetcher, src Source) ([]any, error)
}

// Load replaces the rows with a fresh fetch of the table's source
func (t *Table) Load(ctx context.Context, f Fetcher) error {
	if t.load == nil {
		return fmt.Errorf("table %s has no loader", t.ID)
	}
	rows, err := t.load(ctx, f, t.Source)
	if err != nil {
		return fmt.Errorf("load %s: %w", t.ID, err)
	}
	t.Rows = rows
	return nil
}

// SetRows installs already-fetched rows. Rows of the wrong type render empty
func (t *Table) SetRows(rows []any) {
	t.Rows = rows
}

// Leaves flattens column groups into the columns that hold cells
func (t *Table) Leaves() []Column {
	var out []Column
	var walk func(cols []Column)
	walk = func(cols []Column) {
		for _, c := range cols {
			if len(c.Children) > 0 {
				walk(c.Children)
				continue
			}
			out = append(out, c)
		}
	}
	walk(t.Columns)
	return out
}

// HeaderCell is one cell of the group header row
type HeaderCell struct {
	Title string
	Span  int
	Group bool
}

// HasGroups reports whether the table needs a second header row
func (t *Table) HasGroups() bool {
	for _, c := range t.Columns {
		if len(c.Children) > 0 {
			return true
		}
	}
	return false
}

// GroupHeader returns the top header row. Ungrouped columns appear here
// with Group unset and span both header rows
func (t *Table) GroupHeader() []HeaderCell {
	out := make([]HeaderCell, 0, len(t.Columns))
	for _, c := range t.Columns {
		if len(c.Children) == 0 {
			out = append(out, HeaderCell{Title: c.Title, Span: 1})
			continue
		}
		out = append(out, HeaderCell{Title: c.Title, Span: len(c.Children), Group: true})
	}
	return out
}

// SubHeader returns the second header row: the members of each group
func (t *Table) SubHeader() []Column {
	var out []Column
	for _, c := range t.Columns {
		out = append(out, c.Children...)
	}
	return out
}

// Cell is one rendered cell
type Cell struct {
	HTML    template.HTML `json:"html"`
	Tooltip string        `json:"tooltip,omitempty"`
	Raw     string        `json:"raw,omitempty"`
	Editor  Editor        `json:"editor,omitempty"`
	Action  Action        `json:"action,omitempty"`
	Field   string        `json:"field,omitempty"`
	Align   string        `json:"align,omitempty"`
}

// RowCells is one rendered row. ID is the row's cause id when the table
// supports edits, otherwise zero
type RowCells struct {
	ID    int64  `json:"id,omitempty"`
	Cells []Cell `json:"cells"`
}

// Cells renders every row through the leaf column formatters
func (t *Table) Cells() []RowCells {
	leaves := t.Leaves()
	out := make([]RowCells, 0, len(t.Rows))
	for _, row := range t.Rows {
		rc := RowCells{Cells: make([]Cell, 0, len(leaves))}
		if t.rowID != nil {
			rc.ID = t.rowID(row)
		}
		for _, col := range leaves {
			cell := Cell{Editor: col.Editor, Action: col.Action, Field: col.Field, Align: col.Align}
			if col.Format != nil {
				cell.HTML = col.Format(row)
			}
			if col.Tooltip != nil {
				cell.Tooltip = col.Tooltip(row)
			}
			if col.Raw != nil {
				cell.Raw = col.Raw(row)
			}
			rc.Cells = append(rc.Cells, cell)
		}
		out = append(out, rc)
	}
	return out
}

// Column finds a leaf column by field path, then by title
func (t *Table) Column(key string) (Column, bool) {
	leaves := t.Leaves()
	for _, c := range leaves {
		if c.Field != "" && c.Field == key {
			return c, true
		}
	}
	for _, c := range leaves {
		if strings.EqualFold(c.Title, key) {
			return c, true
		}
	}
	return Column{}, false
}

// SortBy orders rows by the given column. Columns without a sorter refuse
func (t *Table) SortBy(key string, desc bool) error {
	col, ok := t.Column(key)
	if !ok {
		return fmt.Errorf("table %s: unknown column %q", t.ID, key)
	}
	if col.Sorter == SorterNone || col.Value == nil {
		return fmt.Errorf("table %s: column %q is not sortable", t.ID, key)
	}

	sort.SliceStable(t.Rows, func(i, j int) bool {
		c := compare(col.Sorter, col.Value(t.Rows[i]), col.Value(t.Rows[j]))
		if desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func compare(sorter Sorter, a, b any) int {
	switch sorter {
	case SorterNumber:
		return cmpFloat(toFloat(a), toFloat(b))
	case SorterBoolean:
		return cmpFloat(boolFloat(a), boolFloat(b))
	case SorterDatetime:
		ta, _ := a.(time.Time)
		tb, _ := b.(time.Time)
		return ta.Compare(tb)
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

func boolFloat(v any) float64 {
	if b, ok := v.(bool); ok && b {
		return 1
	}
	return 0
}

// loader decodes a JSON array of T and boxes each element as *T
func loader[T any]() func(ctx context.Context, f Fetcher, src Source) ([]any, error) {
	return func(ctx context.Context, f Fetcher, src Source) ([]any, error) {
		var rows []T
		if err := f.GetJSON(ctx, src.Path, src.Query, &rows); err != nil {
			return nil, err
		}
		return Box(rows), nil
	}
}

// Box converts typed rows into table rows
func Box[T any](rows []T) []any {
	out := make([]any, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

func cellOf[T any](fn func(*T) template.HTML) CellFunc {
	return func(row any) template.HTML {
		r, ok := row.(*T)
		if !ok || r == nil {
			return ""
		}
		return fn(r)
	}
}

func textOf[T any](fn func(*T) string) TextFunc {
	return func(row any) string {
		r, ok := row.(*T)
		if !ok || r == nil {
			return ""
		}
		return fn(r)
	}
}

func valueOf[T any](fn func(*T) any) ValueFunc {
	return func(row any) any {
		r, ok := row.(*T)
		if !ok || r == nil {
			return nil
		}
		return fn(r)
	}
}

// plain renders a text extractor as escaped HTML
func plain[T any](fn func(*T) string) CellFunc {
	return cellOf(func(r *T) template.HTML {
		return template.HTML(template.HTMLEscapeString(fn(r)))
	})
}
