// Package notify pushes approval prompts to an external channel. Slack is the
// only implementation; when no notifier is configured the pipeline runs
// silently.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"

	"github.com/MajordomoAI/majordomo/internal/store"
)

// SlackAPI is the slice of the slack client the notifier uses.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts pending-approval prompts to one channel. Delivery is
// best-effort with a bounded retry; a run never fails because Slack is down.
type SlackNotifier struct {
	api       SlackAPI
	channelID string
}

func NewSlackNotifier(token, channelID string) *SlackNotifier {
	return &SlackNotifier{
		api:       slack.New(token),
		channelID: channelID,
	}
}

// ApprovalPrepared posts the action preview with its id so the user can
// approve or cancel from the CLI.
func (n *SlackNotifier) ApprovalPrepared(ctx context.Context, action *store.ApprovalAction, preview string) {
	text := fmt.Sprintf("Approval needed: %s\n%s\n\nApprove with `majordomo approvals approve %s`\nCancel with `majordomo approvals cancel %s`",
		action.ActionType, preview, action.ActionID, action.ActionID)

	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 200 * time.Millisecond)
		}
		_, _, err = n.api.PostMessageContext(ctx, n.channelID, slack.MsgOptionText(text, false))
		if err == nil {
			return
		}
	}
	slog.Warn("Approval notification failed", "action", action.ActionID, "error", err)
}
