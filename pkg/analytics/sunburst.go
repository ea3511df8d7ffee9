package analytics

import (
	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Sunburst node ids encode "level.index"
const (
	NodeFailures         = "0.0"
	NodeUnvisited        = "1.1"
	NodeVisited          = "1.2"
	NodeCauseAvailable   = "2.1"
	NodeCauseUnavailable = "2.2"
	NodeTimeouts         = "3.1"
	NodeLogsAvailable    = "3.2"
	NodeMatchFound       = "4.1"
)

// SunburstNodes turns the triage funnel counts into the fixed 8-node tree
// drawn by the "Failure causes" chart. Remainder buckets are parent minus
// sibling, so inconsistent input produces negative values; use
// Summary.Validate to detect that
func SunburstNodes(s models.Summary) []models.SunburstNode {
	return []models.SunburstNode{
		{ID: NodeFailures, Parent: "", Name: "Failures"},
		{ID: NodeUnvisited, Parent: NodeFailures, Name: "Unvisited", Value: intPtr(s.FailedBuilds - s.VisitedBuilds)},
		{ID: NodeVisited, Parent: NodeFailures, Name: "Visited", Value: intPtr(s.VisitedBuilds)},
		{ID: NodeCauseAvailable, Parent: NodeVisited, Name: "Cause available", Value: intPtr(s.ExplainedFailures)},
		{ID: NodeCauseUnavailable, Parent: NodeVisited, Name: "Cause unavailable", Value: intPtr(s.VisitedBuilds - s.ExplainedFailures)},
		{ID: NodeTimeouts, Parent: NodeCauseAvailable, Name: "Timeouts", Value: intPtr(s.TimedOutSteps)},
		{ID: NodeLogsAvailable, Parent: NodeCauseAvailable, Name: "Logs available", Value: intPtr(s.ExplainedFailures - s.TimedOutSteps)},
		{ID: NodeMatchFound, Parent: NodeLogsAvailable, Name: "Match found", Value: intPtr(s.StepsWithAMatch)},
	}
}

// ChildSums adds up the values of each node's direct children, keyed by parent id
func ChildSums(nodes []models.SunburstNode) map[string]int {
	sums := make(map[string]int)
	for _, n := range nodes {
		if n.Parent == "" {
			continue
		}
		sums[n.Parent] += n.ValueOrZero()
	}
	return sums
}

func intPtr(v int) *int {
	return &v
}
