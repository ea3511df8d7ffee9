package renderer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/format"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
	"github.com/your-org/ci-breakage-dashboard/pkg/themes"
)

const breakageFixture = `[{
  "start": {"db_id": 42, "record": {"author": "alice", "created": "2019-11-21T10:00:00Z", "payload": {
    "breakage_mode": {"payload": 1},
    "description": "<script>alert(1)</script>",
    "affected_jobs": ["linux_build"],
    "breakage_commit": {"db_id": 100, "record": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}
  }}},
  "end": null,
  "impact_stats": {"downstream_broken_commit_count": 3, "failed_downstream_build_count": 11},
  "spanned_commit_count": 2,
  "commit_timespan_seconds": 18000
}]`

func codeBreakagesPage(t *testing.T, live bool) *Page {
	t.Helper()

	var rows []models.BreakageRecord
	if err := json.Unmarshal([]byte(breakageFixture), &rows); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	lookup := analytics.NewModeLookup([]models.FailureMode{
		{ID: 1, Label: "flaky", Revertible: true},
		{ID: 2, Label: "infra"},
	})
	f := format.NewFormatter("https://github.com/pytorch/pytorch/commit/", time.UTC)

	annotated := table.AnnotatedBreakages(lookup, f)
	annotated.SetRows(table.Box(rows))

	theme, _ := themes.Lookup(themes.DefaultTheme)

	return &Page{
		Kind:        PageCodeBreakages,
		Title:       "Code breakages",
		Theme:       theme,
		Tables:      []*table.Table{annotated, table.AuthorStats()},
		Charts:      []*charts.Chart{charts.FailureModesPie([]models.NamedCount{{Name: "flaky", Value: 1}})},
		ModeGroups:  analytics.SelectorGroups(lookup),
		GeneratedAt: "now",
		Live:        live,
		EditBase:    "/breakages",
	}
}

func render(t *testing.T, page *Page) string {
	t.Helper()
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, page); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	return buf.String()
}

func TestRenderLivePage(t *testing.T) {
	page := codeBreakagesPage(t, true)
	page.AddNotice(Notice{Level: NoticeError, Panel: "Detected breakages", Message: "upstream unavailable"})
	out := render(t, page)

	wants := []string{
		`<optgroup label="revertible">`,
		`<optgroup label="nonrevertible">`,
		`<option value="1" selected>flaky</option>`,
		`action="/breakages/42/mode"`,
		`action="/breakages/42/description"`,
		`action="/breakages/42/delete"`,
		`data-prompt="Really delete cause #42?"`,
		`<th colspan="3">Action</th>`,
		`<b>Detected breakages:</b> upstream unavailable`,
		`Highcharts.chart("container-failure-modes"`,
		`No Data Set`,
	}
	for _, want := range wants {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestRenderEscapesUserText(t *testing.T) {
	for _, live := range []bool{true, false} {
		out := render(t, codeBreakagesPage(t, live))
		if strings.Contains(out, "<script>alert(1)</script>") {
			t.Errorf("live=%v: description rendered unescaped", live)
		}
		if !strings.Contains(out, "&lt;script&gt;alert(1)&lt;/script&gt;") {
			t.Errorf("live=%v: escaped description missing", live)
		}
	}
}

func TestRenderSnapshotIsReadOnly(t *testing.T) {
	out := render(t, codeBreakagesPage(t, false))
	if strings.Contains(out, "<form") {
		t.Error("snapshot should not contain edit forms")
	}
	if !strings.Contains(out, ">flaky<") {
		t.Error("snapshot should show the mode label as text")
	}
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Render(&bytes.Buffer{}, &Page{Kind: "nope"}); err == nil {
		t.Error("expected error for unknown page")
	}
}

func TestRenderToFile(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatal(err)
	}
	page := &Page{Kind: PagePatternDetails, Title: "Pattern details", PatternID: "7"}
	path := filepath.Join(t.TempDir(), "out", page.Kind.FileName(page.PatternID))

	if err := r.RenderToFile(page, path); err != nil {
		t.Fatalf("RenderToFile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "pattern-details-7.html" {
		t.Errorf("file name = %s", filepath.Base(path))
	}
	if !strings.Contains(string(data), `id="error-display"`) {
		t.Error("pattern details page should carry the error display block")
	}
}

func TestPageKindFileName(t *testing.T) {
	tests := []struct {
		kind      PageKind
		patternID string
		expected  string
	}{
		{PageIndex, "", "index.html"},
		{PageCodeBreakages, "", "code-breakages.html"},
		{PagePatternDetails, "", "pattern-details.html"},
		{PagePatternDetails, "12", "pattern-details-12.html"},
	}
	for _, tt := range tests {
		if got := tt.kind.FileName(tt.patternID); got != tt.expected {
			t.Errorf("%s.FileName(%q) = %q, want %q", tt.kind, tt.patternID, got, tt.expected)
		}
	}
}
