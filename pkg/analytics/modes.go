package analytics

import (
	"sort"

	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// Selector group labels
const (
	GroupRevertible    = "revertible"
	GroupNonrevertible = "nonrevertible"
)

// UnknownModeLabel is shown for mode ids missing from the lookup
const UnknownModeLabel = "?"

// ModeLookup maps failure mode ids to their definitions. It is built once per
// page load from /api/list-failure-modes and passed to whatever needs labels
type ModeLookup struct {
	modes map[int64]models.FailureMode
}

// NewModeLookup indexes modes by id. Later duplicates win
func NewModeLookup(modes []models.FailureMode) *ModeLookup {
	l := &ModeLookup{modes: make(map[int64]models.FailureMode, len(modes))}
	for _, m := range modes {
		l.modes[m.ID] = m
	}
	return l
}

// Label returns the mode's label, or "?" when the id is unknown
func (l *ModeLookup) Label(id int64) string {
	if l == nil {
		return UnknownModeLabel
	}
	m, ok := l.modes[id]
	if !ok || m.Label == "" {
		return UnknownModeLabel
	}
	return m.Label
}

// Len reports the number of known modes
func (l *ModeLookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.modes)
}

// Modes returns every mode sorted by id
func (l *ModeLookup) Modes() []models.FailureMode {
	if l == nil {
		return nil
	}
	out := make([]models.FailureMode, 0, len(l.modes))
	for _, m := range l.modes {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SelectorOption is one choice in the mode editor
type SelectorOption struct {
	Label string `json:"label" yaml:"label"`
	Value int64  `json:"value" yaml:"value"`
}

// SelectorGroup is an optgroup of the mode editor
type SelectorGroup struct {
	Label   string           `json:"label" yaml:"label"`
	Options []SelectorOption `json:"options" yaml:"options"`
}

// SelectorGroups splits modes by revertibility: "revertible" first, then
// "nonrevertible". Empty groups are left out; options are ordered by id
// Every mode lands in exactly one group
func SelectorGroups(l *ModeLookup) []SelectorGroup {
	var revertible, nonrevertible []SelectorOption
	for _, m := range l.Modes() {
		opt := SelectorOption{Label: m.Label, Value: m.ID}
		if m.Revertible {
			revertible = append(revertible, opt)
		} else {
			nonrevertible = append(nonrevertible, opt)
		}
	}

	groups := make([]SelectorGroup, 0, 2)
	if len(revertible) > 0 {
		groups = append(groups, SelectorGroup{Label: GroupRevertible, Options: revertible})
	}
	if len(nonrevertible) > 0 {
		groups = append(groups, SelectorGroup{Label: GroupNonrevertible, Options: nonrevertible})
	}
	return groups
}
