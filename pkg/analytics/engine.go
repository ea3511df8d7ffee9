package analytics

import (
	"sort"

	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Engine derives dashboard aggregates from annotated breakages
type Engine struct {
	modes *ModeLookup
}

// NewEngine creates an engine labelling modes through the given lookup
func NewEngine(modes *ModeLookup) *Engine {
	return &Engine{modes: modes}
}

// BreakageStats summarizes a set of annotated breakages
type BreakageStats struct {
	Total                  int            `json:"total" yaml:"total"`
	Resolved               int            `json:"resolved" yaml:"resolved"`
	Open                   int            `json:"open" yaml:"open"`
	DownstreamCommits      int            `json:"downstream_commits" yaml:"downstream_commits"`
	FailedDownstreamBuilds int            `json:"failed_downstream_builds" yaml:"failed_downstream_builds"`
	ModeDistribution       map[string]int `json:"mode_distribution" yaml:"mode_distribution"`
	Longest                []LongBreakage `json:"longest" yaml:"longest"`
}

// LongBreakage is one entry of the longest-breakages ranking
type LongBreakage struct {
	CauseID          int64   `json:"cause_id" yaml:"cause_id"`
	Mode             string  `json:"mode" yaml:"mode"`
	TimespanSeconds  float64 `json:"timespan_seconds" yaml:"timespan_seconds"`
	SpannedCommits   int     `json:"spanned_commits" yaml:"spanned_commits"`
	AffectedJobCount int     `json:"affected_job_count" yaml:"affected_job_count"`
}

// Analyze computes totals, the mode distribution and the n longest breakages
func (e *Engine) Analyze(rows []models.BreakageRecord, n int) *BreakageStats {
	stats := &BreakageStats{
		Total:            len(rows),
		ModeDistribution: e.modeDistribution(rows),
		Longest:          e.longest(rows, n),
	}

	for i := range rows {
		row := &rows[i]
		if row.Resolved() {
			stats.Resolved++
		} else {
			stats.Open++
		}
		stats.DownstreamCommits += row.ImpactStats.DownstreamBrokenCommitCount
		stats.FailedDownstreamBuilds += row.ImpactStats.FailedDownstreamBuildCount
	}

	return stats
}

// modeDistribution counts breakages per mode label
func (e *Engine) modeDistribution(rows []models.BreakageRecord) map[string]int {
	distribution := make(map[string]int)
	for i := range rows {
		id, ok := rows[i].ModeID()
		if !ok {
			distribution[UnknownModeLabel]++
			continue
		}
		distribution[e.modes.Label(id)]++
	}
	return distribution
}

// longest returns the n breakages spanning the most wall-clock time
func (e *Engine) longest(rows []models.BreakageRecord, n int) []LongBreakage {
	out := make([]LongBreakage, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		mode := UnknownModeLabel
		if id, ok := row.ModeID(); ok {
			mode = e.modes.Label(id)
		}
		out = append(out, LongBreakage{
			CauseID:          row.CauseID(),
			Mode:             mode,
			TimespanSeconds:  row.CommitTimespanSeconds,
			SpannedCommits:   row.SpannedCommitCount,
			AffectedJobCount: row.AffectedJobCount(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TimespanSeconds > out[j].TimespanSeconds
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
