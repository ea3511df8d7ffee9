package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/charts"
	"github.com/your-org/ci-breakage-dashboard/pkg/format"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
)

func testPage() *renderer.Page {
	authors := table.AuthorStats()
	authors.SetRows(table.Box([]models.AuthorStats{{Author: "Bob", DistinctBreakageCount: 2}}))

	return &renderer.Page{
		Kind:        renderer.PageCodeBreakages,
		Title:       "Code breakages",
		GeneratedAt: "2019-11-21 12:00:00 UTC",
		Notices:     []renderer.Notice{{Level: renderer.NoticeError, Panel: "Detected breakages", Message: "Timed out"}},
		Tables:      []*table.Table{authors, table.LeftoverBreakages()},
		Charts:      []*charts.Chart{charts.FailureModesPie([]models.NamedCount{{Name: "flaky", Value: 3}})},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatTable},
		{in: "TABLE", want: FormatTable},
		{in: "json", want: FormatJSON},
		{in: "yml", want: FormatYAML},
		{in: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportTable(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter(FormatTable).Export(&buf, testPage()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"== Breakages by author ==",
		"AUTHOR",
		"Bob",
		"! [error] Detected breakages: Timed out",
		"== Unannotated detected breakages ==\nNo Data Set",
		"flaky",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := NewExporter(FormatJSON).Export(&buf, testPage()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var decoded struct {
		Kind   string `json:"kind"`
		Tables []struct {
			ID   string           `json:"id"`
			Rows []map[string]any `json:"rows"`
		} `json:"tables"`
		Charts []struct {
			Series []struct {
				Data []map[string]any `json:"data"`
			} `json:"series"`
		} `json:"charts"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Kind != "code-breakages" || len(decoded.Tables) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
	if got := decoded.Tables[0].Rows[0]["breakage_commit_author"]; got != "Bob" {
		t.Errorf("author = %v", got)
	}
	if decoded.Tables[1].Rows == nil {
		t.Error("empty tables should encode an empty list")
	}
	if got := decoded.Charts[0].Series[0].Data[0]["name"]; got != "flaky" {
		t.Errorf("pie slice = %v", got)
	}
}

func TestExportYAMLFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "saved")
	path, err := NewExporter(FormatYAML).ExportFile(testPage(), dir)
	if err != nil {
		t.Fatalf("ExportFile() error = %v", err)
	}
	if filepath.Base(path) != "code-breakages.yaml" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "breakage_commit_author: Bob") {
		t.Errorf("yaml output:\n%s", data)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`<a href="https://x">abc1234</a> <b>First:</b> fix`, "abc1234 First: fix"},
		{"&lt;script&gt;", "<script>"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableTextSkipsIcons(t *testing.T) {
	lookup := analytics.NewModeLookup([]models.FailureMode{{ID: 1, Label: "flaky"}})
	tbl := table.AnnotatedBreakages(lookup, format.NewFormatter("", nil))

	headers, rows := TableText(tbl)
	if len(rows) != 0 {
		t.Errorf("rows = %v", rows)
	}
	if headers[0] != "Mode" || headers[1] != "Notes" || headers[2] != "Downstream Impact Commits" {
		t.Errorf("headers = %v", headers)
	}
	for _, h := range headers {
		if strings.HasPrefix(h, "Action") {
			t.Errorf("icon column %q should be skipped", h)
		}
	}
}
