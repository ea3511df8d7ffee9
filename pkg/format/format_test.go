package format

import (
	"strings"
	"testing"
	"time"

	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

func fixedFormatter() *Formatter {
	now := time.Date(2019, 11, 21, 12, 0, 0, 0, time.UTC)
	return &Formatter{
		CommitURLPrefix: "https://github.com/pytorch/pytorch/commit/",
		Location:        time.UTC,
		Now:             func() time.Time { return now },
	}
}

func TestHumanizeDuration(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "a few seconds"},
		{44, "a few seconds"},
		{45, "a minute"},
		{89, "a minute"},
		{90, "2 minutes"},
		{44 * 60, "44 minutes"},
		{45 * 60, "an hour"},
		{5 * 3600, "5 hours"},
		{21 * 3600, "21 hours"},
		{22 * 3600, "a day"},
		{3 * 86400, "3 days"},
		{25 * 86400, "25 days"},
		{26 * 86400, "a month"},
		{95 * 86400, "3 months"},
		{320 * 86400, "a year"},
		{2 * 365 * 86400, "2 years"},
		{-5 * 3600, "5 hours"},
	}

	for _, tt := range tests {
		got := HumanizeDuration(tt.seconds)
		if got != tt.expected {
			t.Errorf("HumanizeDuration(%v) = %q, want %q", tt.seconds, got, tt.expected)
		}
		if again := HumanizeDuration(tt.seconds); again != got {
			t.Errorf("HumanizeDuration(%v) not stable: %q then %q", tt.seconds, got, again)
		}
	}
}

func TestFromNow(t *testing.T) {
	f := fixedFormatter()

	tests := []struct {
		raw      string
		expected string
	}{
		{"2019-11-21T07:00:00Z", "5 hours ago"},
		{"2019-11-21T12:00:00Z", "a few seconds ago"},
		{"2019-11-23T12:00:00Z", "in 2 days"},
		{"2019-11-21 11:58:00", "2 minutes ago"},
		{"not a time", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := f.FromNow(tt.raw); got != tt.expected {
			t.Errorf("FromNow(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

func TestTimeOfDayAgo(t *testing.T) {
	f := fixedFormatter()

	if got := f.TimeOfDayAgo("2019-11-21T07:05:00Z"); got != "7:05 am (5 hours ago)" {
		t.Errorf("TimeOfDayAgo() = %q", got)
	}
	if got := f.TimeOfDayAgo("garbage"); got != "" {
		t.Errorf("TimeOfDayAgo(invalid) = %q, want empty", got)
	}
}

func TestAnnotatedBy(t *testing.T) {
	f := fixedFormatter()

	if got := f.AnnotatedBy("2019-11-20T12:00:00Z", "alice"); got != "a day ago by alice" {
		t.Errorf("AnnotatedBy() = %q", got)
	}
	if got := f.AnnotatedBy("", "alice"); got != "" {
		t.Errorf("AnnotatedBy(missing) = %q, want empty", got)
	}
}

func TestCommitLink(t *testing.T) {
	f := fixedFormatter()
	sha := "0123456789abcdef0123456789abcdef01234567"

	got := string(f.CommitLink(sha))
	want := `<a href="https://github.com/pytorch/pytorch/commit/` + sha + `">0123456</a>`
	if got != want {
		t.Errorf("CommitLink() = %q, want %q", got, want)
	}
	if f.CommitLink("") != "" {
		t.Error("CommitLink(empty) should render empty")
	}
}

func TestCommitCell(t *testing.T) {
	f := fixedFormatter()
	meta := &models.CommitMetadata{
		Payload: "Fix <script> handling\n\nLonger body",
		Author:  "Bob Smith <bob@example.com>",
	}

	got := string(f.CommitCell("abcdef0123", meta))
	if !strings.Contains(got, "<b>Bob:</b> Fix &lt;script&gt; handling") {
		t.Errorf("CommitCell() = %q", got)
	}
	if strings.Contains(got, "Longer body") {
		t.Errorf("CommitCell() should only show the subject, got %q", got)
	}
	if f.CommitCell("abcdef0123", nil) != "" {
		t.Error("CommitCell without metadata should render empty")
	}
	if f.CommitCell("", meta) != "" {
		t.Error("CommitCell without sha should render empty")
	}
}

func TestJobNames(t *testing.T) {
	jobs := []string{"linux_build", "win_test"}
	if got := JobNames(jobs); got != "linux_build, win_test" {
		t.Errorf("JobNames() = %q", got)
	}
	if got := JobTooltip(jobs); got != "linux_build\nwin_test" {
		t.Errorf("JobTooltip() = %q", got)
	}
	if JobNames(nil) != "" || JobTooltip(nil) != "" {
		t.Error("nil job list should render empty")
	}
}

func TestHighlightSpan(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		start, end int
		expected   string
	}{
		{
			name:     "middle",
			line:     "error: a < b",
			start:    7,
			end:      12,
			expected: `error: <span class="match" style="background-color: pink;">a &lt; b</span>`,
		},
		{
			name:     "out of range",
			line:     "abc",
			start:    -3,
			end:      99,
			expected: `<span class="match" style="background-color: pink;">abc</span>`,
		},
		{
			name:     "inverted",
			line:     "abc",
			start:    2,
			end:      1,
			expected: `ab<span class="match" style="background-color: pink;"></span>c`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(HighlightSpan(tt.line, tt.start, tt.end)); got != tt.expected {
				t.Errorf("HighlightSpan() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEscaping(t *testing.T) {
	if got := string(Code(`<img src=x onerror="alert(1)">`)); strings.Contains(got, "<img") {
		t.Errorf("Code() did not escape: %q", got)
	}
	if got := string(Link(Text("<b>"), `/x?a="b"`)); got != `<a href="/x?a=&#34;b&#34;">&lt;b&gt;</a>` {
		t.Errorf("Link() = %q", got)
	}
	if TickCross(false) != "" {
		t.Error("TickCross(false) should render nothing")
	}
}
