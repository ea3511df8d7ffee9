package format

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"
)

// Icons used by action columns, relative to the page
const (
	TrashIcon = "images/trash-icon.svg"
	ViewIcon  = "images/view-icon.svg"
)

// Icon renders a small image
func Icon(src, alt string) template.HTML {
	return template.HTML(`<img src="` + template.HTMLEscapeString(src) + `" alt="` + template.HTMLEscapeString(alt) + `" style="width: 16px;"/>`)
}

func (f *Formatter) appURL(path string, query url.Values) string {
	u := strings.TrimRight(f.AppBaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// BreakageDetailsURL points at the analytics app page for one breakage cause
func (f *Formatter) BreakageDetailsURL(causeID int64) string {
	return f.appURL("/breakage-details.html", url.Values{"cause": []string{strconv.FormatInt(causeID, 10)}})
}

// MasterTimelineURL points at the master timeline. The commit range is only
// added when both ends are known
func (f *Formatter) MasterTimelineURL(minCommitIndex, maxCommitIndex *int64) string {
	if minCommitIndex == nil || maxCommitIndex == nil {
		return f.appURL("/master-timeline.html", nil)
	}
	return f.appURL("/master-timeline.html", nil) +
		"?min_commit_index=" + strconv.FormatInt(*minCommitIndex, 10) +
		"&max_commit_index=" + strconv.FormatInt(*maxCommitIndex, 10)
}

// PatternDetailsURL points at the dashboard's own pattern details page
// Static snapshots use one file per pattern
func (f *Formatter) PatternDetailsURL(patternID int64) string {
	id := strconv.FormatInt(patternID, 10)
	if f.StaticLinks {
		return "pattern-details-" + id + ".html"
	}
	return "/pattern-details.html?pattern_id=" + id
}

// BuildLink links a CI build number to the configured build page prefix
func (f *Formatter) BuildLink(buildNumber int64) template.HTML {
	n := strconv.FormatInt(buildNumber, 10)
	return Link(Text(n), f.BuildURLPrefix+n)
}
