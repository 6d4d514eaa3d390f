package trace

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/MajordomoAI/majordomo/internal/store"
)

func TestRedactMasksEmails(t *testing.T) {
	got := Redact("sending to alice@example.com and b@x.co")
	if strings.Contains(got, "alice@example.com") {
		t.Fatalf("address leaked: %q", got)
	}
	if !strings.Contains(got, "a***@example.com") {
		t.Fatalf("unexpected masking: %q", got)
	}
	if !strings.Contains(got, "***@x.co") {
		t.Fatalf("short local part not masked: %q", got)
	}
}

func TestRedactCapsLength(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := Redact(long)
	if len(got) > detailCapChars+4 {
		t.Fatalf("detail not capped: %d chars", len(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing truncation marker: %q", got[len(got)-8:])
	}
}

func TestRedactCapKeepsValidUTF8(t *testing.T) {
	got := Redact(strings.Repeat("日", detailCapChars))
	if !utf8.ValidString(got) {
		t.Fatalf("cap split a rune: %q", got[len(got)-8:])
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing truncation marker: %q", got[len(got)-8:])
	}
}

func TestRecorderPersistsRedactedEvents(t *testing.T) {
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	run, err := st.CreateRun(&store.OrchestrationRun{Mode: "quick"})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	rec := NewRecorder(st, nil)
	rec.Record(context.Background(), run.RunID, store.StageReader, "ok", "intent=email_send to alice@example.com")
	rec.Record(context.Background(), run.RunID, store.StageThinker, "ok", "calls=1")

	events, err := st.ListTraces(run.RunID)
	if err != nil {
		t.Fatalf("list traces: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d", len(events))
	}
	if strings.Contains(events[0].Detail, "alice@example.com") {
		t.Fatalf("unredacted detail persisted: %q", events[0].Detail)
	}
	if events[1].Stage != store.StageThinker {
		t.Fatalf("order wrong: %+v", events)
	}
}
