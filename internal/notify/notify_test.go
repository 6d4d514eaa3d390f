package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/slack-go/slack"

	"github.com/MajordomoAI/majordomo/internal/store"
)

type fakeSlack struct {
	calls    int
	failures int
	channels []string
}

func (f *fakeSlack) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	f.calls++
	f.channels = append(f.channels, channelID)
	if f.calls <= f.failures {
		return "", "", fmt.Errorf("slack unavailable")
	}
	return channelID, "123.456", nil
}

func testAction() *store.ApprovalAction {
	return &store.ApprovalAction{ActionID: "act_abc", ActionType: "email.send", Status: store.ActionStatusPrepared}
}

func TestApprovalPreparedPostsToChannel(t *testing.T) {
	api := &fakeSlack{}
	n := &SlackNotifier{api: api, channelID: "C123"}

	n.ApprovalPrepared(context.Background(), testAction(), "Send email to [a***@b.co]")
	if api.calls != 1 {
		t.Fatalf("calls = %d", api.calls)
	}
	if api.channels[0] != "C123" {
		t.Fatalf("channel = %s", api.channels[0])
	}
}

func TestApprovalPreparedRetriesThenGivesUp(t *testing.T) {
	api := &fakeSlack{failures: 2}
	n := &SlackNotifier{api: api, channelID: "C123"}
	n.ApprovalPrepared(context.Background(), testAction(), "preview")
	if api.calls != 3 {
		t.Fatalf("calls = %d, want retry to success on third", api.calls)
	}

	// Permanent failure stops after three attempts without panicking.
	api = &fakeSlack{failures: 10}
	n = &SlackNotifier{api: api, channelID: "C123"}
	n.ApprovalPrepared(context.Background(), testAction(), "preview")
	if api.calls != 3 {
		t.Fatalf("calls = %d, want exactly 3 attempts", api.calls)
	}
}
