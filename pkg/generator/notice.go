package generator

import (
	"errors"
	"fmt"

	"github.com/your-org/ci-breakage-dashboard/pkg/client"
	"github.com/your-org/ci-breakage-dashboard/pkg/renderer"
)

// Notice is shown above a page when a panel or an edit fails
type Notice = renderer.Notice

// PanelEdits names the panel edit notices are attached to
const PanelEdits = "Annotated breakages"

// NoticeFor turns a load error into a user-facing notice
func NoticeFor(panel string, err error) Notice {
	return Notice{Level: renderer.NoticeError, Panel: panel, Message: describe(err)}
}

// EditNotice turns a failed edit into a notice. Whatever went wrong, it says
// the change was not saved
func EditNotice(err error) Notice {
	msg := describe(err)
	if !errors.Is(err, client.ErrMutationFailed) {
		msg = "The change was not saved: " + msg
	}
	return Notice{Level: renderer.NoticeError, Panel: PanelEdits, Message: msg}
}

func describe(err error) string {
	var apiErr *client.Error
	hasStatus := errors.As(err, &apiErr) && apiErr.StatusCode != 0

	switch {
	case errors.Is(err, client.ErrTimeout):
		return "Timed out waiting for the analytics API."
	case errors.Is(err, client.ErrNetwork):
		return "Could not reach the analytics API."
	case errors.Is(err, client.ErrMalformed):
		return "The analytics API returned data in an unexpected shape."
	case errors.Is(err, client.ErrMutationFailed):
		if hasStatus {
			return fmt.Sprintf("The change was not saved (status %d); showing the current server state.", apiErr.StatusCode)
		}
		return "The change was not saved; showing the current server state."
	case errors.Is(err, client.ErrUpstreamStatus):
		if hasStatus {
			return fmt.Sprintf("The analytics API answered with status %d.", apiErr.StatusCode)
		}
		return "The analytics API reported an error."
	}
	return err.Error()
}
