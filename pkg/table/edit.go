package table

import (
	"errors"
	"fmt"

	"github.com/your-org/ci-breakage-dashboard/pkg/models"
)

// ErrNotConfirmed is returned when a delete arrives without confirmation
var ErrNotConfirmed = errors.New("delete requires confirmation")

// ModeEdit is the body of /api/code-breakage-mode-update
type ModeEdit struct {
	CauseID int64 `json:"cause_id"`
	Mode    int64 `json:"mode"`
}

// DescriptionEdit is the body of /api/code-breakage-description-update
type DescriptionEdit struct {
	CauseID     int64  `json:"cause_id"`
	Description string `json:"description"`
}

// DeleteRequest is the body of /api/code-breakage-delete
type DeleteRequest struct {
	CauseID int64 `json:"cause_id"`
}

// EditMode builds a mode change for the edited row
func EditMode(row *models.BreakageRecord, mode int64) ModeEdit {
	return ModeEdit{CauseID: row.CauseID(), Mode: mode}
}

// EditDescription builds a notes change for the edited row
func EditDescription(row *models.BreakageRecord, description string) DescriptionEdit {
	return DescriptionEdit{CauseID: row.CauseID(), Description: description}
}

// DeleteRow builds a delete for the row once the user has confirmed it
func DeleteRow(row *models.BreakageRecord, confirmed bool) (DeleteRequest, error) {
	if !confirmed {
		return DeleteRequest{}, fmt.Errorf("cause #%d: %w", row.CauseID(), ErrNotConfirmed)
	}
	return DeleteRequest{CauseID: row.CauseID()}, nil
}

// ConfirmDeletePrompt is the question shown before a delete
func ConfirmDeletePrompt(causeID int64) string {
	return fmt.Sprintf("Really delete cause #%d?", causeID)
}

// FindBreakage returns the annotated row with the given cause id
func FindBreakage(rows []models.BreakageRecord, causeID int64) (*models.BreakageRecord, bool) {
	for i := range rows {
		if rows[i].CauseID() == causeID {
			return &rows[i], true
		}
	}
	return nil, false
}
