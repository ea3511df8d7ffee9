package table

import (
	"html/template"
	"net/url"
	"strconv"

	"github.com/your-org/ci-breakage-dashboard/pkg/analytics"
	"github.com/your-org/ci-breakage-dashboard/pkg/client"
	"github.com/your-org/ci-breakage-dashboard/pkg/format"
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Table ids, also used as DOM ids
const (
	IDAnnotated      = "annotated-breakages-table"
	IDAuthorStats    = "annotated-breakage-author-stats-table"
	IDDetected       = "detected-breakages-table"
	IDLeftover       = "detected-leftovers-table"
	IDPatterns       = "patterns-table"
	IDPatternMatches = "pattern-matches-table"
)

// PatternListHeight is used only when all patterns are listed
const PatternListHeight = "400px"

type breakage = models.BreakageRecord

// AnnotatedBreakages declares the editable table of annotated breakages
// Mode labels come from lookup; its grouped options feed the mode editor
func AnnotatedBreakages(lookup *analytics.ModeLookup, f *format.Formatter) *Table {
	t := &Table{
		ID:          IDAnnotated,
		Title:       "Annotated breakages",
		Height:      DefaultHeight,
		Placeholder: Placeholder,
		Source:      Source{Path: client.PathAnnotated},
		rowID:       func(row any) int64 { return causeID(row) },
		load:        loader[breakage](),
	}

	t.Columns = []Column{
		{Title: "Action", Children: []Column{
			{
				Title: "X", Width: 40, Align: "center", Action: ActionDelete,
				Format: cellOf(func(*breakage) template.HTML { return format.Icon(format.TrashIcon, "delete") }),
			},
			{
				Title: "?", Width: 40, Align: "center", Action: ActionDetails,
				Format: cellOf(func(r *breakage) template.HTML {
					return format.Link(format.Icon(format.ViewIcon, "details"), f.BreakageDetailsURL(r.CauseID()))
				}),
			},
			{
				Title: "#", Width: 40, Align: "center", Action: ActionTimeline,
				Format: cellOf(func(r *breakage) template.HTML {
					return format.Link(format.Icon(format.ViewIcon, "timeline"), timelineURL(f, r))
				}),
			},
		}},
		{
			Title: "Mode", Width: 150, Field: "start.record.payload.breakage_mode.payload",
			Editor: EditorSelect, Sorter: SorterString,
			Format: plain(func(r *breakage) string { return modeLabel(lookup, r) }),
			Raw: textOf(func(r *breakage) string {
				if id, ok := r.ModeID(); ok {
					return strconv.FormatInt(id, 10)
				}
				return ""
			}),
			Value: valueOf(func(r *breakage) any { return modeLabel(lookup, r) }),
		},
		{
			Title: "Notes", Width: 150, Field: "start.record.payload.description",
			Editor: EditorInput, Sorter: SorterString,
			Format: plain(func(r *breakage) string { return r.Start.Record.Payload.Description }),
			Raw:    textOf(func(r *breakage) string { return r.Start.Record.Payload.Description }),
			Value:  valueOf(func(r *breakage) any { return r.Start.Record.Payload.Description }),
		},
		{Title: "Downstream Impact", Children: []Column{
			{
				Title: "Commits", Width: 75, Field: "impact_stats.downstream_broken_commit_count", Sorter: SorterNumber,
				Format: plain(func(r *breakage) string { return strconv.Itoa(r.ImpactStats.DownstreamBrokenCommitCount) }),
				Value:  valueOf(func(r *breakage) any { return r.ImpactStats.DownstreamBrokenCommitCount }),
			},
			{
				Title: "Builds", Width: 75, Field: "impact_stats.failed_downstream_build_count", Sorter: SorterNumber,
				Format: plain(func(r *breakage) string { return strconv.Itoa(r.ImpactStats.FailedDownstreamBuildCount) }),
				Value:  valueOf(func(r *breakage) any { return r.ImpactStats.FailedDownstreamBuildCount }),
			},
		}},
		{Title: "Span", Children: []Column{
			{
				Title: "Commit count", Width: 100, Field: "spanned_commit_count", Sorter: SorterNumber,
				Format: plain(func(r *breakage) string { return strconv.Itoa(r.SpannedCommitCount) }),
				Value:  valueOf(func(r *breakage) any { return r.SpannedCommitCount }),
			},
			{
				Title: "Duration", Width: 100, Field: "commit_timespan_seconds", Sorter: SorterNumber,
				Format: plain(func(r *breakage) string { return format.HumanizeDuration(r.CommitTimespanSeconds) }),
				Value:  valueOf(func(r *breakage) any { return r.CommitTimespanSeconds }),
			},
		}},
		{Title: "Start", Children: []Column{
			{
				Title: "commit", Width: 300, Field: "start.record.payload.breakage_commit.record",
				Format: cellOf(func(r *breakage) template.HTML {
					p := r.Start.Record.Payload
					if p.BreakageCommit == nil {
						return ""
					}
					return f.CommitCell(p.BreakageCommit.Record, p.Metadata)
				}),
			},
			{
				Title: "when", Width: 100, Field: "start.record.payload.metadata.created", Sorter: SorterDatetime,
				Format: plain(func(r *breakage) string { return f.TimeOfDayAgo(commitCreated(&r.Start)) }),
				Value:  valueOf(func(r *breakage) any { return timeValue(f, commitCreated(&r.Start)) }),
			},
			{
				Title: "annotated", Width: 250, Field: "start.record.created", Sorter: SorterDatetime,
				Format: plain(func(r *breakage) string { return f.AnnotatedBy(r.Start.Record.Created, r.Start.Record.Author) }),
				Value:  valueOf(func(r *breakage) any { return timeValue(f, r.Start.Record.Created) }),
			},
		}},
		{Title: "End", Children: []Column{
			{
				Title: "commit", Width: 300, Field: "end.record.payload.resolution_commit.record",
				Format: cellOf(func(r *breakage) template.HTML {
					if r.End == nil || r.End.Record.Payload.ResolutionCommit == nil {
						return ""
					}
					p := r.End.Record.Payload
					return f.CommitCell(p.ResolutionCommit.Record, p.Metadata)
				}),
			},
			{
				Title: "reported", Width: 250,
				Format: plain(func(r *breakage) string {
					if r.End == nil {
						return ""
					}
					return f.AnnotatedBy(r.End.Record.Created, r.End.Record.Author)
				}),
			},
		}},
		{Title: "Affected jobs", Children: []Column{
			{
				Title: "Count", Width: 75, Sorter: SorterNumber,
				Format: plain(func(r *breakage) string { return strconv.Itoa(r.AffectedJobCount()) }),
				Value:  valueOf(func(r *breakage) any { return r.AffectedJobCount() }),
			},
			{
				Title: "Names", Field: "start.record.payload.affected_jobs",
				Format:  plain(func(r *breakage) string { return format.JobNames(r.Start.Record.Payload.AffectedJobs) }),
				Tooltip: textOf(func(r *breakage) string { return format.JobTooltip(r.Start.Record.Payload.AffectedJobs) }),
			},
		}},
	}

	return t
}

// AuthorStats declares the per-author breakage totals table
func AuthorStats() *Table {
	type row = models.AuthorStats
	return &Table{
		ID:          IDAuthorStats,
		Title:       "Breakages by author",
		Height:      DefaultHeight,
		Placeholder: Placeholder,
		Source:      Source{Path: client.PathAuthorStats},
		load:        loader[row](),
		Columns: []Column{
			{
				Title: "Author", Field: "breakage_commit_author", Sorter: SorterString,
				Format: plain(func(r *row) string { return r.Author }),
				Value:  valueOf(func(r *row) any { return r.Author }),
			},
			{
				Title: "Breakage count", Field: "distinct_breakage_count", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.DistinctBreakageCount) }),
				Value:  valueOf(func(r *row) any { return r.DistinctBreakageCount }),
			},
			{
				Title: "Breakage time", Field: "cumulative_breakage_duration_seconds", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return format.HumanizeDuration(r.CumulativeBreakageDurationSeconds) }),
				Value:  valueOf(func(r *row) any { return r.CumulativeBreakageDurationSeconds }),
			},
			{
				Title: "Downstream commits affected", Field: "cumulative_downstream_affected_commits", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.CumulativeDownstreamAffectedCommits) }),
				Value:  valueOf(func(r *row) any { return r.CumulativeDownstreamAffectedCommits }),
			},
			{
				Title: "Master commits spanned", Field: "cumulative_spanned_master_commits", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.CumulativeSpannedMasterCommits) }),
				Value:  valueOf(func(r *row) any { return r.CumulativeSpannedMasterCommits }),
			},
		},
	}
}

// DetectedBreakages declares the table of automatically detected breakages
func DetectedBreakages(f *format.Formatter) *Table {
	type row = models.DetectedBreakage
	return &Table{
		ID:          IDDetected,
		Title:       "Detected breakages",
		Height:      DefaultHeight,
		Placeholder: Placeholder,
		Source:      Source{Path: client.PathDetected},
		load:        loader[row](),
		Columns: []Column{
			{
				Title: "Job count", Width: 75, Field: "job_count", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.JobCount) }),
				Value:  valueOf(func(r *row) any { return r.JobCount }),
			},
			{
				Title: "Length", Field: "modal_run_length", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.ModalRunLength) }),
				Value:  valueOf(func(r *row) any { return r.ModalRunLength }),
			},
			{
				Title: "Jobs", Field: "jobs_delimited", Sorter: SorterString,
				Format: plain(func(r *row) string { return r.JobsDelimited }),
				Value:  valueOf(func(r *row) any { return r.JobsDelimited }),
			},
			{
				Title: "First commit", Field: "first_commit",
				Format: cellOf(func(r *row) template.HTML { return f.CommitLink(r.FirstCommit) }),
			},
			{
				Title: "Last commit", Field: "modal_last_commit",
				Format: cellOf(func(r *row) template.HTML { return f.CommitLink(r.ModalLastCommit) }),
			},
		},
	}
}

// LeftoverBreakages declares the reduced view of detected breakages that
// have no annotation yet
func LeftoverBreakages() *Table {
	type row = models.LeftoverBreakage
	return &Table{
		ID:          IDLeftover,
		Title:       "Unannotated detected breakages",
		Height:      DefaultHeight,
		Placeholder: Placeholder,
		Source:      Source{Path: client.PathLeftover},
		load:        loader[row](),
		Columns: []Column{
			{
				Title: "Job count", Width: 75, Field: "job_count", Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.JobCount) }),
				Value:  valueOf(func(r *row) any { return r.JobCount }),
			},
		},
	}
}

// Patterns declares the log pattern table. A nil patternID lists every
// pattern in a taller table; otherwise only that pattern is fetched
func Patterns(patternID *string, f *format.Formatter) *Table {
	type row = models.PatternRecord

	id := ""
	height := PatternListHeight
	if patternID != nil {
		id = *patternID
		height = ""
	}
	path, query := client.PatternsSource(id)

	return &Table{
		ID:          IDPatterns,
		Title:       "Patterns",
		Height:      height,
		Placeholder: Placeholder,
		Source:      Source{Path: path, Query: query},
		load:        loader[row](),
		Columns: []Column{
			{
				Title: "Tags", Field: "tags", Sorter: SorterString,
				Format: plain(func(r *row) string { return r.Tags.String() }),
				Value:  valueOf(func(r *row) any { return r.Tags.String() }),
			},
			{
				Title: "Regex", Field: "is_regex", Align: "center", Width: 75, Sorter: SorterBoolean,
				Format: cellOf(func(r *row) template.HTML { return format.TickCross(r.IsRegex) }),
				Value:  valueOf(func(r *row) any { return r.IsRegex }),
			},
			{
				Title: "Pattern", Field: "pattern", WidthGrow: 3, Sorter: SorterString,
				Format: cellOf(func(r *row) template.HTML { return format.Code(r.Pattern) }),
				Value:  valueOf(func(r *row) any { return r.Pattern }),
			},
			{
				Title: "Description", Field: "description", WidthGrow: 2, Sorter: SorterString,
				Format: cellOf(func(r *row) template.HTML {
					return format.Link(format.Text(r.Description), f.PatternDetailsURL(r.ID))
				}),
				Value: valueOf(func(r *row) any { return r.Description }),
			},
			{
				Title: "Frequency", Field: "frequency", Align: "center", Width: 75, Sorter: SorterNumber,
				Format: plain(func(r *row) string { return strconv.Itoa(r.Frequency) }),
				Value:  valueOf(func(r *row) any { return r.Frequency }),
			},
			{
				Title: "Last Occurrence", Field: "last", Align: "center", Sorter: SorterDatetime,
				Format: plain(func(r *row) string { return r.Last }),
				Value:  valueOf(func(r *row) any { return timeValue(f, r.Last) }),
			},
		},
	}
}

// PatternMatches declares the table of log lines matched by one pattern
func PatternMatches(patternID string, f *format.Formatter) *Table {
	type row = models.PatternMatch
	return &Table{
		ID:          IDPatternMatches,
		Title:       "Pattern matches",
		Height:      DefaultHeight,
		Placeholder: Placeholder,
		Source:      Source{Path: client.PathPatternMatches, Query: url.Values{"pattern_id": []string{patternID}}},
		load:        loader[row](),
		Columns: []Column{
			{
				Title: "Build number", Field: "build_number", Width: 75, Sorter: SorterNumber,
				Format: cellOf(func(r *row) template.HTML { return f.BuildLink(r.BuildNumber) }),
				Value:  valueOf(func(r *row) any { return r.BuildNumber }),
			},
			{
				Title: "Build step", Field: "build_step", WidthGrow: 2, Sorter: SorterString,
				Format: plain(func(r *row) string { return r.BuildStep }),
				Value:  valueOf(func(r *row) any { return r.BuildStep }),
			},
			{
				Title: "Line number", Field: "line_number", Width: 100,
				Format: plain(func(r *row) string {
					return strconv.Itoa(r.LineNumber) + " / " + strconv.Itoa(r.LineCount)
				}),
			},
			{
				Title: "Line text", Field: "line_text", WidthGrow: 8, Sorter: SorterString, Action: ActionDisplay,
				Format: cellOf(func(r *row) template.HTML { return format.HighlightSpan(r.LineText, r.SpanStart, r.SpanEnd) }),
				Value:  valueOf(func(r *row) any { return r.LineText }),
			},
		},
	}
}

func causeID(row any) int64 {
	if r, ok := row.(*breakage); ok && r != nil {
		return r.CauseID()
	}
	return 0
}

func modeLabel(lookup *analytics.ModeLookup, r *breakage) string {
	id, ok := r.ModeID()
	if !ok {
		return analytics.UnknownModeLabel
	}
	return lookup.Label(id)
}

func commitCreated(e *models.Event) string {
	if e.Record.Payload.Metadata == nil {
		return ""
	}
	return e.Record.Payload.Metadata.Created
}

func timelineURL(f *format.Formatter, r *breakage) string {
	start := r.Start.Record.Payload.BreakageCommit
	if start == nil {
		return f.MasterTimelineURL(nil, nil)
	}
	if r.End == nil || r.End.Record.Payload.ResolutionCommit == nil {
		return f.MasterTimelineURL(nil, nil)
	}
	lo, hi := start.DBID, r.End.Record.Payload.ResolutionCommit.DBID
	return f.MasterTimelineURL(&lo, &hi)
}

// timeValue parses a timestamp for sorting; invalid values sort first
func timeValue(f *format.Formatter, raw string) any {
	t, _ := f.ParseTimestamp(raw)
	return t
}
