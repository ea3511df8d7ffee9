package generator

import (
	"sync"

	"github.com/your-org/ci-breakage-dashboard/pkg/metrics"
)

// PanelState is where a panel is in its load cycle
type PanelState string

const (
	StateIdle    PanelState = "idle"
	StateLoading PanelState = "loading"
	StateReady   PanelState = "ready"
	StateError   PanelState = "error"
)

// Panel tracks the load status of one part of a view. Every load takes a
// new generation; a load that finishes after a newer one started is stale
// and its outcome is not recorded
type Panel struct {
	ID    string
	Title string

	mu         sync.Mutex
	generation uint64
	state      PanelState
	err        error
}

func newPanel(id, title string) *Panel {
	return &Panel{ID: id, Title: title, state: StateIdle}
}

// Begin starts a load and returns its generation
func (p *Panel) Begin() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.state = StateLoading
	p.err = nil
	metrics.ObservePanel(p.ID, string(StateLoading))
	return p.generation
}

// Finish records the outcome of the load started at gen. It returns false,
// leaving the panel untouched, when a newer load has begun since
func (p *Panel) Finish(gen uint64, err error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.generation {
		metrics.ObserveStale()
		return false
	}
	if err != nil {
		p.state = StateError
		p.err = err
	} else {
		p.state = StateReady
	}
	metrics.ObservePanel(p.ID, string(p.state))
	return true
}

// State returns the current state and the error of the last failed load
func (p *Panel) State() (PanelState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.err
}

// PanelStatus is a snapshot of a panel for status output
type PanelStatus struct {
	ID         string     `json:"id" yaml:"id"`
	Title      string     `json:"title" yaml:"title"`
	State      PanelState `json:"state" yaml:"state"`
	Generation uint64     `json:"generation" yaml:"generation"`
	Error      string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Status snapshots the panel
func (p *Panel) Status() PanelStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PanelStatus{ID: p.ID, Title: p.Title, State: p.state, Generation: p.generation}
	if p.err != nil {
		s.Error = p.err.Error()
	}
	return s
}
