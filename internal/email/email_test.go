package email

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/MajordomoAI/majordomo/internal/tools"
)

func newTestService(t *testing.T) *LocalService {
	t.Helper()
	svc, err := NewLocalService(t.TempDir())
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}
	return svc
}

func TestGenerateDraftWritesFile(t *testing.T) {
	svc := newTestService(t)

	d, err := svc.GenerateDraft(t.Context(), tools.EmailDraftArgs{
		To:    []string{"bob@example.com"},
		Topic: "the quarterly report",
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(d.ID, "draft_") {
		t.Fatalf("id = %q", d.ID)
	}
	if d.Subject != "the quarterly report" {
		t.Fatalf("subject = %q", d.Subject)
	}
	if !strings.Contains(d.Body, "the quarterly report") {
		t.Fatalf("body = %q", d.Body)
	}

	data, err := os.ReadFile(d.Path)
	if err != nil {
		t.Fatalf("read draft file: %v", err)
	}
	var onDisk Draft
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("decode draft file: %v", err)
	}
	if onDisk.Kind != "draft" || onDisk.To[0] != "bob@example.com" {
		t.Fatalf("on disk = %+v", onDisk)
	}
}

func TestGenerateDraftRequiresRecipient(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.GenerateDraft(t.Context(), tools.EmailDraftArgs{Topic: "x"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestMaterializeApprovedSend(t *testing.T) {
	svc := newTestService(t)

	d, err := svc.MaterializeApprovedSend(t.Context(), "act_123", tools.EmailSendArgs{
		To:      []string{"a@b.co"},
		Subject: "s",
		Body:    "b",
	})
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}
	if d.Kind != "approved_send" || d.ActionID != "act_123" {
		t.Fatalf("draft = %+v", d)
	}
	if !strings.HasPrefix(d.ID, "send_") {
		t.Fatalf("id = %q", d.ID)
	}

	// Incomplete payloads never materialize.
	if _, err := svc.MaterializeApprovedSend(t.Context(), "act_456", tools.EmailSendArgs{To: []string{"a@b.co"}}); err == nil {
		t.Fatal("expected error for incomplete payload")
	}
}
