package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MajordomoAI/majordomo/internal/approval"
	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/MajordomoAI/majordomo/internal/email"
	"github.com/MajordomoAI/majordomo/internal/store"
	"github.com/MajordomoAI/majordomo/internal/tools"
)

type testRig struct {
	store    *store.Store
	ledger   *approval.Ledger
	calendar *calendar.LocalService
	email    *email.LocalService
	engine   *Engine
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cal := calendar.NewLocalService(time.UTC)
	mail, err := email.NewLocalService(filepath.Join(dir, "outbox"))
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}

	ledger := approval.NewLedger(st)
	executor := NewExecutor(st, ledger, cal, mail, nil)
	engine := NewEngine(st, NewPlanner(nil), executor, NewResponder(nil), nil)

	return &testRig{store: st, ledger: ledger, calendar: cal, email: mail, engine: engine}
}

func userRequest(mode, text string) Request {
	return Request{
		Mode:     mode,
		Messages: []Message{{Role: "user", Content: text}},
	}
}

func TestFullSendRequestRequiresApproval(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(), userRequest(ModeQuick,
		"Send email to alice@example.com subject: Launch update body: Please review."), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if resp.Decision.Status != DecisionRequiresApproval {
		t.Fatalf("decision = %s, want %s", resp.Decision.Status, DecisionRequiresApproval)
	}
	if len(resp.ToolResults) != 1 {
		t.Fatalf("tool results = %d, want 1", len(resp.ToolResults))
	}
	tr := resp.ToolResults[0]
	if tr.Tool != string(tools.EmailSend) {
		t.Fatalf("tool = %s, want %s", tr.Tool, tools.EmailSend)
	}
	if tr.ActionID == "" {
		t.Fatal("expected a prepared approval action")
	}

	a, err := rig.ledger.Get(tr.ActionID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if a.Status != store.ActionStatusPrepared {
		t.Fatalf("action status = %s, want prepared", a.Status)
	}
	for _, want := range []string{"alice@example.com", "Launch update", "Please review."} {
		if !strings.Contains(a.Payload, want) {
			t.Fatalf("payload %q missing %q", a.Payload, want)
		}
	}

	var hasApprove, hasCancel bool
	for _, qa := range resp.QuickActions {
		if qa.Command == "approve:"+tr.ActionID {
			hasApprove = true
		}
		if qa.Command == "cancel:"+tr.ActionID {
			hasCancel = true
		}
	}
	if !hasApprove || !hasCancel {
		t.Fatalf("quick actions missing approve/cancel: %+v", resp.QuickActions)
	}
}

func TestIncompleteSendNeedsClarification(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(),
		userRequest(ModeQuick, "Send email to finance@example.com"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if resp.Decision.Status != DecisionNeedsClarification {
		t.Fatalf("decision = %s, want %s", resp.Decision.Status, DecisionNeedsClarification)
	}
	got := strings.Join(resp.Decision.RequiredFields, ",")
	if got != "subject,body" {
		t.Fatalf("required fields = %q, want subject,body", got)
	}
	// The send is still side-effecting even while incomplete.
	if !resp.Decision.RequiresApproval {
		t.Fatal("clarification on a side-effecting call must keep requiresApproval set")
	}
	if len(resp.ToolResults) != 0 {
		t.Fatalf("no tools should run, got %d results", len(resp.ToolResults))
	}
	actions, err := rig.store.ListApprovalActions("", 10)
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("no approval action should exist, got %d", len(actions))
	}
}

func TestDeleteIsBlocked(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(),
		userRequest(ModeQuick, "Delete the planning meeting event"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Decision.Status != DecisionBlocked {
		t.Fatalf("decision = %s, want blocked", resp.Decision.Status)
	}
	if len(resp.Decision.RequiredFields) != 1 || resp.Decision.RequiredFields[0] != "confirmDeleteTarget" {
		t.Fatalf("required fields = %v, want [confirmDeleteTarget]", resp.Decision.RequiredFields)
	}
}

func TestCalendarQueryProceeds(t *testing.T) {
	rig := newTestRig(t)
	today := time.Now().UTC().Format("2006-01-02")
	rig.calendar.Seed(calendar.Event{
		Title: "Standup",
		Start: mustParse(t, today+" 09:00"),
		End:   mustParse(t, today+" 09:15"),
	})

	resp, err := rig.engine.Run(context.Background(),
		userRequest(ModeQuick, "What's on my calendar today?"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Decision.Status != DecisionProceed {
		t.Fatalf("decision = %s, want proceed", resp.Decision.Status)
	}
	if !strings.Contains(resp.MessageText, "Standup") {
		t.Fatalf("message %q should mention the event", resp.MessageText)
	}
}

func TestDraftGeneratesArtifactAndApprovalAction(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(), userRequest(ModeQuick,
		"Draft an email about the quarterly report to bob@example.com"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Decision.Status != DecisionProceed {
		t.Fatalf("decision = %s, want proceed", resp.Decision.Status)
	}
	if len(resp.ToolResults) != 1 {
		t.Fatalf("tool results = %d, want 1", len(resp.ToolResults))
	}
	tr := resp.ToolResults[0]
	if tr.DraftID == "" {
		t.Fatal("expected a draft id")
	}
	if tr.ActionID == "" {
		t.Fatal("draft should prepare a send approval action")
	}
	a, err := rig.ledger.Get(tr.ActionID)
	if err != nil {
		t.Fatalf("get action: %v", err)
	}
	if a.ActionType != string(tools.EmailSend) {
		t.Fatalf("action type = %s, want %s", a.ActionType, tools.EmailSend)
	}
}

func TestDraftWithoutRecipientNeedsClarification(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(),
		userRequest(ModeQuick, "Draft an email about the offsite"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.Decision.Status != DecisionNeedsClarification {
		t.Fatalf("decision = %s, want needs_clarification", resp.Decision.Status)
	}
	if len(resp.Decision.RequiredFields) != 1 || resp.Decision.RequiredFields[0] != "to" {
		t.Fatalf("required fields = %v, want [to]", resp.Decision.RequiredFields)
	}
}

func TestRunRecordAndTraceArtifacts(t *testing.T) {
	rig := newTestRig(t)
	rec := &memTracer{}
	rig.engine.tracer = rec

	resp, err := rig.engine.Run(context.Background(),
		userRequest(ModeQuick, "What's on my calendar today?"), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("response missing run id")
	}

	run, err := rig.store.GetRun(resp.RunID)
	if err != nil || run == nil {
		t.Fatalf("get run: %v %v", run, err)
	}
	if run.Status != store.RunStatusExecuted {
		t.Fatalf("run status = %s, want executed", run.Status)
	}

	stages := make(map[string]bool)
	for _, ev := range rec.events {
		stages[ev.stage] = true
	}
	for _, want := range []string{store.StageReader, store.StageThinker, store.StageJudge, store.StageToolExecutor, store.StageResponder} {
		if !stages[want] {
			t.Fatalf("missing trace for stage %s: %v", want, rec.events)
		}
	}

	decisions, err := rig.store.ListJudgeDecisions(resp.RunID)
	if err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("decisions = %d, want pre and post", len(decisions))
	}
	if decisions[0].Stage != store.DecisionStagePreTool || decisions[1].Stage != store.DecisionStagePostTool {
		t.Fatalf("decision stages = %s,%s", decisions[0].Stage, decisions[1].Stage)
	}

	logs, err := rig.store.ListToolExecutions(resp.RunID)
	if err != nil {
		t.Fatalf("list tool logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Status != "executed" {
		t.Fatalf("tool logs = %+v", logs)
	}
}

func TestToolLogSnapshotsAreRedacted(t *testing.T) {
	rig := newTestRig(t)

	resp, err := rig.engine.Run(context.Background(), userRequest(ModeQuick,
		"Send email to alice@example.com subject: Launch update body: Please review."), "tester")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	logs, err := rig.store.ListToolExecutions(resp.RunID)
	if err != nil {
		t.Fatalf("list tool logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("tool logs = %d, want 1", len(logs))
	}
	l := logs[0]
	if l.Status != "executed" || l.FinishedAt == nil {
		t.Fatalf("log = %+v, want finished executed row", l)
	}
	if strings.Contains(l.ArgsSnapshot, "alice@example.com") {
		t.Fatalf("args snapshot leaks the recipient: %q", l.ArgsSnapshot)
	}
	if !strings.Contains(l.ArgsSnapshot, "a***@example.com") {
		t.Fatalf("args snapshot missing masked recipient: %q", l.ArgsSnapshot)
	}
}

func TestEmptyRequestRejected(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.engine.Run(context.Background(), Request{Mode: ModeQuick}, "tester"); err != ErrEmptyRequest {
		t.Fatalf("err = %v, want ErrEmptyRequest", err)
	}
	if _, err := rig.engine.Run(context.Background(), userRequest("turbo", "hi"), "tester"); err == nil {
		t.Fatal("unknown mode should be rejected")
	}
}

type memTracer struct {
	events []struct{ stage, status string }
}

func (m *memTracer) Record(_ context.Context, _, stage, status, _ string) {
	m.events = append(m.events, struct{ stage, status string }{stage, status})
}

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}
