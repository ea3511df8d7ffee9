package generator

import (
	"errors"
	"testing"
)

func TestPanelDiscardsStaleResponses(t *testing.T) {
	p := newPanel("detected-breakages-table", "Detected breakages")

	first := p.Begin()
	second := p.Begin()

	if p.Finish(first, nil) {
		t.Error("older generation should be discarded")
	}
	if state, _ := p.State(); state != StateLoading {
		t.Errorf("stale finish changed state to %s", state)
	}

	if !p.Finish(second, errors.New("boom")) {
		t.Error("current generation should be accepted")
	}
	state, err := p.State()
	if state != StateError || err == nil {
		t.Errorf("state = %s, err = %v", state, err)
	}

	third := p.Begin()
	if !p.Finish(third, nil) {
		t.Error("new generation should be accepted")
	}
	status := p.Status()
	if status.State != StateReady || status.Generation != 3 || status.Error != "" {
		t.Errorf("status = %+v", status)
	}
}
