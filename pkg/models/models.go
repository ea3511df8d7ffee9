package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FailureMode is a categorical classification of why a breakage occurred
type FailureMode struct {
	ID         int64  `json:"id" yaml:"id"`
	Label      string `json:"label" yaml:"label"`
	Revertible bool   `json:"revertible" yaml:"revertible"`
}

// FailureModeRecord is the envelope returned by /api/list-failure-modes
type FailureModeRecord struct {
	DBID   int64 `json:"db_id"`
	Record struct {
		Label      string `json:"label"`
		Revertible bool   `json:"revertible"`
	} `json:"record"`
}

// Mode flattens the envelope
func (r FailureModeRecord) Mode() FailureMode {
	return FailureMode{ID: r.DBID, Label: r.Record.Label, Revertible: r.Record.Revertible}
}

// CommitRef points at a master commit by index and SHA1
type CommitRef struct {
	DBID   int64  `json:"db_id" yaml:"db_id"`
	Record string `json:"record" yaml:"record"`
}

// CommitMetadata carries authorship of a commit. Payload is the full commit message
type CommitMetadata struct {
	Payload string `json:"payload" yaml:"payload"`
	Author  string `json:"author" yaml:"author"`
	Created string `json:"created" yaml:"created"`
}

// ModeRef is the failure-mode annotation attached to a breakage start
type ModeRef struct {
	Payload int64 `json:"payload" yaml:"payload"`
}

// EventPayload is the union of start and end annotation payloads. Start events
// fill BreakageCommit, BreakageMode, Description and AffectedJobs; end events
// fill ResolutionCommit
type EventPayload struct {
	BreakageMode     *ModeRef        `json:"breakage_mode,omitempty" yaml:"breakage_mode,omitempty"`
	Description      string          `json:"description,omitempty" yaml:"description,omitempty"`
	AffectedJobs     []string        `json:"affected_jobs,omitempty" yaml:"affected_jobs,omitempty"`
	BreakageCommit   *CommitRef      `json:"breakage_commit,omitempty" yaml:"breakage_commit,omitempty"`
	ResolutionCommit *CommitRef      `json:"resolution_commit,omitempty" yaml:"resolution_commit,omitempty"`
	Metadata         *CommitMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// EventRecord is an annotation made by a user at a point in time
type EventRecord struct {
	Author  string       `json:"author" yaml:"author"`
	Created string       `json:"created" yaml:"created"`
	Payload EventPayload `json:"payload" yaml:"payload"`
}

// Event wraps an annotation with its database id
type Event struct {
	DBID   int64       `json:"db_id" yaml:"db_id"`
	Record EventRecord `json:"record" yaml:"record"`
}

// ImpactStats counts downstream damage caused by a breakage
type ImpactStats struct {
	DownstreamBrokenCommitCount int `json:"downstream_broken_commit_count" yaml:"downstream_broken_commit_count"`
	FailedDownstreamBuildCount  int `json:"failed_downstream_build_count" yaml:"failed_downstream_build_count"`
}

// BreakageRecord is one annotated breakage. End is nil until the breakage is resolved
type BreakageRecord struct {
	Start                 Event       `json:"start" yaml:"start"`
	End                   *Event      `json:"end" yaml:"end"`
	ImpactStats           ImpactStats `json:"impact_stats" yaml:"impact_stats"`
	SpannedCommitCount    int         `json:"spanned_commit_count" yaml:"spanned_commit_count"`
	CommitTimespanSeconds float64     `json:"commit_timespan_seconds" yaml:"commit_timespan_seconds"`
}

// CauseID is the stable row identifier used by every mutation
func (b *BreakageRecord) CauseID() int64 {
	return b.Start.DBID
}

// ModeID returns the annotated failure mode, if any
func (b *BreakageRecord) ModeID() (int64, bool) {
	if b.Start.Record.Payload.BreakageMode == nil {
		return 0, false
	}
	return b.Start.Record.Payload.BreakageMode.Payload, true
}

// Resolved reports whether the breakage has an end annotation
func (b *BreakageRecord) Resolved() bool {
	return b.End != nil
}

// AffectedJobCount is zero when the job list is missing
func (b *BreakageRecord) AffectedJobCount() int {
	return len(b.Start.Record.Payload.AffectedJobs)
}

// AuthorStats aggregates annotated breakages per commit author
type AuthorStats struct {
	Author                              string  `json:"breakage_commit_author" yaml:"breakage_commit_author"`
	DistinctBreakageCount               int     `json:"distinct_breakage_count" yaml:"distinct_breakage_count"`
	CumulativeBreakageDurationSeconds   float64 `json:"cumulative_breakage_duration_seconds" yaml:"cumulative_breakage_duration_seconds"`
	CumulativeDownstreamAffectedCommits int     `json:"cumulative_downstream_affected_commits" yaml:"cumulative_downstream_affected_commits"`
	CumulativeSpannedMasterCommits      int     `json:"cumulative_spanned_master_commits" yaml:"cumulative_spanned_master_commits"`
}

// DetectedBreakage is a run of failing jobs found automatically on master
type DetectedBreakage struct {
	JobCount        int    `json:"job_count" yaml:"job_count"`
	ModalRunLength  int    `json:"modal_run_length" yaml:"modal_run_length"`
	JobsDelimited   string `json:"jobs_delimited" yaml:"jobs_delimited"`
	FirstCommit     string `json:"first_commit" yaml:"first_commit"`
	ModalLastCommit string `json:"modal_last_commit" yaml:"modal_last_commit"`
}

// LeftoverBreakage is a detected breakage not yet covered by an annotation
type LeftoverBreakage struct {
	JobCount int `json:"job_count" yaml:"job_count"`
}

// WeeklyImpact is one point of the downstream impact time series
type WeeklyImpact struct {
	Week   string      `json:"week" yaml:"week"`
	Impact ImpactStats `json:"impact" yaml:"impact"`
}

// Summary holds the failure triage funnel counts
type Summary struct {
	FailedBuilds      int `json:"failed_builds" yaml:"failed_builds"`
	VisitedBuilds     int `json:"visited_builds" yaml:"visited_builds"`
	ExplainedFailures int `json:"explained_failures" yaml:"explained_failures"`
	TimedOutSteps     int `json:"timed_out_steps" yaml:"timed_out_steps"`
	StepsWithAMatch   int `json:"steps_with_a_match" yaml:"steps_with_a_match"`
}

// Validate checks the funnel ordering. Callers use it only to raise a notice;
// inconsistent summaries are still rendered
func (s Summary) Validate() error {
	switch {
	case s.TimedOutSteps < 0 || s.StepsWithAMatch < 0:
		return fmt.Errorf("negative step counts")
	case s.FailedBuilds < s.VisitedBuilds:
		return fmt.Errorf("visited builds (%d) exceed failed builds (%d)", s.VisitedBuilds, s.FailedBuilds)
	case s.VisitedBuilds < s.ExplainedFailures:
		return fmt.Errorf("explained failures (%d) exceed visited builds (%d)", s.ExplainedFailures, s.VisitedBuilds)
	case s.ExplainedFailures < s.TimedOutSteps:
		return fmt.Errorf("timed out steps (%d) exceed explained failures (%d)", s.TimedOutSteps, s.ExplainedFailures)
	case s.ExplainedFailures < s.StepsWithAMatch:
		return fmt.Errorf("steps with a match (%d) exceed explained failures (%d)", s.StepsWithAMatch, s.ExplainedFailures)
	}
	return nil
}

// Tags accepts either a delimited string or a list from the API
type Tags []string

// UnmarshalJSON implements json.Unmarshaler
func (t *Tags) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tags: expected string or list: %w", err)
	}
	var out []string
	for _, part := range strings.Split(s, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*t = out
	return nil
}

// String joins the tags for display and sorting
func (t Tags) String() string {
	return strings.Join(t, ", ")
}

// PatternRecord is a log-matching pattern with usage statistics
type PatternRecord struct {
	ID          int64  `json:"id" yaml:"id"`
	Tags        Tags   `json:"tags" yaml:"tags"`
	IsRegex     bool   `json:"is_regex" yaml:"is_regex"`
	Pattern     string `json:"pattern" yaml:"pattern"`
	Description string `json:"description" yaml:"description"`
	Frequency   int    `json:"frequency" yaml:"frequency"`
	Last        string `json:"last" yaml:"last"`
}

// PatternMatch is one log line matched by a pattern. SpanStart and SpanEnd
// index into LineText
type PatternMatch struct {
	BuildNumber int64  `json:"build_number" yaml:"build_number"`
	BuildStep   string `json:"build_step" yaml:"build_step"`
	LineNumber  int    `json:"line_number" yaml:"line_number"`
	LineCount   int    `json:"line_count" yaml:"line_count"`
	LineText    string `json:"line_text" yaml:"line_text"`
	SpanStart   int    `json:"span_start" yaml:"span_start"`
	SpanEnd     int    `json:"span_end" yaml:"span_end"`
}

// NamedCount is a pie slice. The API sends either [name, count] pairs or
// {name, y} objects
type NamedCount struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"y" yaml:"y"`
}

// UnmarshalJSON implements json.Unmarshaler
func (n *NamedCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("pie row: expected [name, value], got %d elements", len(pair))
		}
		if err := json.Unmarshal(pair[0], &n.Name); err != nil {
			var num json.Number
			if err := json.Unmarshal(pair[0], &num); err != nil {
				return fmt.Errorf("pie row name: %w", err)
			}
			n.Name = num.String()
		}
		if err := json.Unmarshal(pair[1], &n.Value); err != nil {
			return fmt.Errorf("pie row value: %w", err)
		}
		return nil
	}

	var obj struct {
		Name  string   `json:"name"`
		Y     *float64 `json:"y"`
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("pie row: %w", err)
	}
	n.Name = obj.Name
	switch {
	case obj.Y != nil:
		n.Value = *obj.Y
	case obj.Value != nil:
		n.Value = *obj.Value
	}
	return nil
}

// PieRows is the {rows: [...]} envelope used by pie chart endpoints
type PieRows struct {
	Rows []NamedCount `json:"rows"`
}

// SunburstNode is one node of the funnel hierarchy. Parent links by id; the
// root has an empty parent and no value
type SunburstNode struct {
	ID     string `json:"id" yaml:"id"`
	Parent string `json:"parent" yaml:"parent"`
	Name   string `json:"name" yaml:"name"`
	Value  *int   `json:"value,omitempty" yaml:"value,omitempty"`
}

// ValueOrZero dereferences Value
func (n SunburstNode) ValueOrZero() int {
	if n.Value == nil {
		return 0
	}
	return *n.Value
}

// ParseID parses a decimal id taken from a query string or form
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
