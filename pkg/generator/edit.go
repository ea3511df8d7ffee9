package generator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/your-org/ci-breakage-dashboard/pkg/logger"
	"github.com/your-org/ci-breakage-dashboard/pkg/metrics"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
	"github.com/your-org/ci-breakage-dashboard/pkg/table"
)

// EditKind names a change to an annotated breakage
type EditKind string

const (
	EditModeChange  EditKind = "mode"
	EditDescription EditKind = "description"
	EditDelete      EditKind = "delete"
)

// Edit is one user change to an annotated breakage
type Edit struct {
	Kind        EditKind
	CauseID     int64
	Mode        int64
	Description string
	Confirmed   bool
}

// Submit sends the change upstream and waits for the outcome
func (g *Generator) Submit(ctx context.Context, e Edit) error {
	err := g.dispatch(ctx, e)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		logger.WithFields(logrus.Fields{
			"edit":     e.Kind,
			"cause_id": e.CauseID,
		}).Warnf("Edit failed: %v", err)
	}
	metrics.ObserveMutation(string(e.Kind), outcome)
	return err
}

// ApplyEdit submits the change and returns the code breakages page
// re-fetched afterwards. A failed change shows up as the first notice on
// that page; nothing is changed locally
func (g *Generator) ApplyEdit(ctx context.Context, e Edit) *renderer.Page {
	err := g.Submit(ctx, e)
	page := g.CodeBreakages(ctx)
	if err != nil {
		page.Notices = append([]Notice{EditNotice(err)}, page.Notices...)
	}
	return page
}

func (g *Generator) dispatch(ctx context.Context, e Edit) error {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	rows, err := g.client.AnnotatedBreakages(ctx)
	if err != nil {
		return err
	}
	row, ok := table.FindBreakage(rows, e.CauseID)
	if !ok {
		return fmt.Errorf("cause #%d is not an annotated breakage", e.CauseID)
	}

	switch e.Kind {
	case EditModeChange:
		edit := table.EditMode(row, e.Mode)
		return g.client.UpdateMode(ctx, edit.CauseID, edit.Mode)
	case EditDescription:
		edit := table.EditDescription(row, e.Description)
		return g.client.UpdateDescription(ctx, edit.CauseID, edit.Description)
	case EditDelete:
		req, err := table.DeleteRow(row, e.Confirmed)
		if err != nil {
			return err
		}
		return g.client.DeleteBreakage(ctx, req.CauseID)
	}
	return fmt.Errorf("unknown edit %q", e.Kind)
}
