package format

import (
	"html/template"
	"net/url"
	"strings"
	"time"

	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// ShortSHALength is the number of hex digits shown for a commit
const ShortSHALength = 7

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Formatter turns raw API values into display strings. The zero value is
// usable: it renders times in the local zone relative to the wall clock
type Formatter struct {
	CommitURLPrefix string
	BuildURLPrefix  string
	AppBaseURL      string
	StaticLinks     bool
	Location        *time.Location
	Now             func() time.Time
}

// NewFormatter creates a formatter linking commits under commitURLPrefix
func NewFormatter(commitURLPrefix string, loc *time.Location) *Formatter {
	return &Formatter{
		CommitURLPrefix: commitURLPrefix,
		Location:        loc,
		Now:             time.Now,
	}
}

func (f *Formatter) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

func (f *Formatter) location() *time.Location {
	if f.Location == nil {
		return time.Local
	}
	return f.Location
}

// ParseTimestamp accepts the ISO-like timestamps the analytics API emits
// Timestamps without a zone are read in the formatter's location
func (f *Formatter) ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, f.location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FromNow renders a timestamp relative to now: "5 hours ago" or "in 2 days"
func (f *Formatter) FromNow(raw string) string {
	t, ok := f.ParseTimestamp(raw)
	if !ok {
		return ""
	}
	diff := t.Sub(f.now()).Seconds()
	phrase := HumanizeDuration(diff)
	if diff > 0 {
		return "in " + phrase
	}
	return phrase + " ago"
}

// TimeOfDayAgo renders "3:04 pm (5 hours ago)"
func (f *Formatter) TimeOfDayAgo(raw string) string {
	t, ok := f.ParseTimestamp(raw)
	if !ok {
		return ""
	}
	return t.In(f.location()).Format("3:04 pm") + " (" + f.FromNow(raw) + ")"
}

// AnnotatedBy renders "<ago> by <author>"
func (f *Formatter) AnnotatedBy(raw, author string) string {
	ago := f.FromNow(raw)
	if ago == "" {
		return ""
	}
	return ago + " by " + author
}

// CommitLink links a commit SHA to the configured commit browser
func (f *Formatter) CommitLink(sha string) template.HTML {
	sha = strings.TrimSpace(sha)
	if sha == "" {
		return ""
	}
	label := sha
	if len(label) > ShortSHALength {
		label = label[:ShortSHALength]
	}
	href := f.CommitURLPrefix + url.PathEscape(sha)
	return Link(template.HTML(template.HTMLEscapeString(label)), href)
}

// CommitCell renders "<link> <b>Firstname:</b> subject" for a commit and its
// authorship metadata. Either one missing renders empty
func (f *Formatter) CommitCell(sha string, meta *models.CommitMetadata) template.HTML {
	if sha == "" || meta == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(string(f.CommitLink(sha)))
	b.WriteString(" <b>")
	b.WriteString(template.HTMLEscapeString(FirstName(meta.Author)))
	b.WriteString(":</b> ")
	b.WriteString(template.HTMLEscapeString(CommitSubject(meta.Payload)))
	return template.HTML(b.String())
}

// FirstName returns the first space-separated word of an author string
func FirstName(author string) string {
	fields := strings.Fields(author)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// CommitSubject returns the first line of a commit message
func CommitSubject(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return strings.TrimSpace(message)
}

// JobNames joins job names for a table cell
func JobNames(jobs []string) string {
	return strings.Join(jobs, ", ")
}

// JobTooltip joins job names one per line
func JobTooltip(jobs []string) string {
	return strings.Join(jobs, "\n")
}

// HighlightSpan wraps line[start:end] in a highlight span. Offsets count
// characters and are clamped to the line
func HighlightSpan(line string, start, end int) template.HTML {
	runes := []rune(line)
	start = clamp(start, 0, len(runes))
	end = clamp(end, start, len(runes))

	var b strings.Builder
	b.WriteString(template.HTMLEscapeString(string(runes[:start])))
	b.WriteString(`<span class="match" style="background-color: pink;">`)
	b.WriteString(template.HTMLEscapeString(string(runes[start:end])))
	b.WriteString(`</span>`)
	b.WriteString(template.HTMLEscapeString(string(runes[end:])))
	return template.HTML(b.String())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Code renders s in a code element
func Code(s string) template.HTML {
	return template.HTML("<code>" + template.HTMLEscapeString(s) + "</code>")
}

// Link wraps an already safe label in an anchor
func Link(label template.HTML, href string) template.HTML {
	return template.HTML(`<a href="` + template.HTMLEscapeString(href) + `">` + string(label) + `</a>`)
}

// TickCross renders a check mark for true and nothing for false
func TickCross(v bool) template.HTML {
	if v {
		return `<span class="tick">&#10004;</span>`
	}
	return ""
}

// Text escapes plain text for use where HTML is expected
func Text(s string) template.HTML {
	return template.HTML(template.HTMLEscapeString(s))
}
