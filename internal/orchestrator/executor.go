package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MajordomoAI/majordomo/internal/approval"
	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/MajordomoAI/majordomo/internal/email"
	"github.com/MajordomoAI/majordomo/internal/store"
	"github.com/MajordomoAI/majordomo/internal/tools"
	"github.com/MajordomoAI/majordomo/internal/trace"
)

// Executor runs a judged plan. Read-only calls execute directly;
// side-effecting calls either execute (reversible drafts) or become prepared
// approval actions, never both paths for the same call.
type Executor struct {
	store    *store.Store
	ledger   *approval.Ledger
	calendar calendar.Service
	email    email.Service
	notifier Notifier
}

// Notifier is told about freshly prepared approval actions. Optional.
type Notifier interface {
	ApprovalPrepared(ctx context.Context, action *store.ApprovalAction, preview string)
}

func NewExecutor(st *store.Store, ledger *approval.Ledger, cal calendar.Service, mail email.Service, notifier Notifier) *Executor {
	return &Executor{store: st, ledger: ledger, calendar: cal, email: mail, notifier: notifier}
}

// Execute dispatches every call in the plan and returns results in plan
// order. Under requires_approval the read-only calls still run so the
// response can show context next to the approval card.
func (e *Executor) Execute(ctx context.Context, runID, requestedBy string, plan ExecutionPlan, decision JudgeDecision) []ToolResult {
	results := make([]ToolResult, len(plan.ToolCalls))

	// One prepared log row per call, in plan order, before anything runs. A
	// crash mid-execution still leaves the prepared record behind.
	logIDs := make([]int64, len(plan.ToolCalls))
	for i, call := range plan.ToolCalls {
		logIDs[i] = e.startLog(runID, call)
	}

	// Read-only calls have no ordering dependencies; run them together.
	var wg sync.WaitGroup
	for i, call := range plan.ToolCalls {
		if call.Tool.SideEffect() {
			continue
		}
		wg.Add(1)
		go func(i int, call tools.Call) {
			defer wg.Done()
			results[i] = e.runReadOnly(ctx, call)
			e.finishLog(runID, logIDs[i], call, results[i])
		}(i, call)
	}
	wg.Wait()

	for i, call := range plan.ToolCalls {
		if !call.Tool.SideEffect() {
			continue
		}
		if decision.RequiresApproval && call.Tool != tools.EmailDraftGenerate {
			results[i] = e.prepareApproval(ctx, runID, requestedBy, call)
		} else {
			results[i] = e.runSideEffect(ctx, runID, requestedBy, call)
		}
		e.finishLog(runID, logIDs[i], call, results[i])
	}
	return results
}

func (e *Executor) runReadOnly(ctx context.Context, call tools.Call) ToolResult {
	res := ToolResult{Tool: string(call.Tool)}
	args := call.Calendar

	switch call.Tool {
	case tools.CalendarSummary:
		summary, err := e.calendar.Summary(ctx, args.Mode, args.AnchorDate)
		if err != nil {
			return failResult(call, err)
		}
		res.OK = true
		res.Summary = summary.Text
		res.Payload = summary
	case tools.CalendarEvents:
		events, err := e.calendar.ListEvents(ctx, args.Mode, args.AnchorDate)
		if err != nil {
			return failResult(call, err)
		}
		res.OK = true
		res.Summary = fmt.Sprintf("%d event(s)", len(events))
		res.Payload = events
	default:
		return failResult(call, fmt.Errorf("tool_not_implemented"))
	}
	return res
}

func (e *Executor) runSideEffect(ctx context.Context, runID, requestedBy string, call tools.Call) ToolResult {
	switch call.Tool {
	case tools.EmailDraftGenerate:
		return e.runDraft(ctx, runID, requestedBy, call)
	default:
		// Side-effecting calls that reach here slipped past the approval
		// verdict; refuse rather than execute.
		return failResult(call, fmt.Errorf("tool_not_implemented"))
	}
}

// runDraft generates the reversible local draft and prepares an email.send
// approval action carrying the draft's content, so the user can approve the
// send in one step.
func (e *Executor) runDraft(ctx context.Context, runID, requestedBy string, call tools.Call) ToolResult {
	res := ToolResult{Tool: string(call.Tool), SideEffect: true}

	draft, err := e.email.GenerateDraft(ctx, *call.Draft)
	if err != nil {
		return failResult(call, err)
	}
	res.OK = true
	res.DraftID = draft.ID
	res.Summary = fmt.Sprintf("Draft %s to %v: %s", draft.ID, draft.To, draft.Subject)
	res.Preview = draft.Body
	res.Payload = draft

	sendCall := tools.NewEmailSend(tools.EmailSendArgs{To: draft.To, Subject: draft.Subject, Body: draft.Body})
	prep := e.prepareApproval(ctx, runID, requestedBy, sendCall)
	if prep.OK {
		res.ActionID = prep.ActionID
	} else {
		slog.Warn("Draft approval prep failed", "run", runID, "error", prep.Error)
	}
	return res
}

// prepareApproval creates a prepared approval action whose payload is the
// exact argument snapshot the gate will re-validate at execution time.
func (e *Executor) prepareApproval(ctx context.Context, runID, requestedBy string, call tools.Call) ToolResult {
	res := ToolResult{Tool: string(call.Tool), SideEffect: true}

	payload, err := json.Marshal(call.Args())
	if err != nil {
		return failResult(call, err)
	}

	targetType, targetRef := approvalTarget(call)
	action, err := e.ledger.Prepare(&store.ApprovalAction{
		RunID:       runID,
		ActionType:  string(call.Tool),
		TargetType:  targetType,
		TargetRef:   targetRef,
		Payload:     string(payload),
		RequestedBy: requestedBy,
	})
	if err != nil {
		return failResult(call, err)
	}

	res.OK = true
	res.ActionID = action.ActionID
	res.Preview = approvalPreview(call)
	res.Summary = fmt.Sprintf("Prepared %s for approval (%s)", call.Tool, action.ActionID)

	if e.notifier != nil {
		e.notifier.ApprovalPrepared(ctx, action, res.Preview)
	}
	return res
}

// startLog writes the prepared log row with a redacted argument snapshot.
// Returns 0 when the write failed; the finish entry is then skipped.
func (e *Executor) startLog(runID string, call tools.Call) int64 {
	argsJSON, _ := json.Marshal(call.Args())
	logID, err := e.store.StartToolExecution(runID, string(call.Tool), trace.Redact(string(argsJSON)))
	if err != nil {
		slog.Warn("Tool log write failed", "run", runID, "tool", call.Tool, "error", err)
		return 0
	}
	return logID
}

func (e *Executor) finishLog(runID string, logID int64, call tools.Call, res ToolResult) {
	if logID == 0 {
		return
	}
	status := "executed"
	snapshot := res.Summary
	if !res.OK {
		status = "failed"
		snapshot = res.Error
	}
	if err := e.store.FinishToolExecution(logID, status, trace.Redact(snapshot)); err != nil {
		slog.Warn("Tool log finish failed", "run", runID, "tool", call.Tool, "error", err)
	}
}

func failResult(call tools.Call, err error) ToolResult {
	return ToolResult{
		Tool:       string(call.Tool),
		Error:      err.Error(),
		SideEffect: call.Tool.SideEffect(),
	}
}

func approvalTarget(call tools.Call) (targetType, targetRef string) {
	switch call.Tool {
	case tools.EmailSend:
		return "email", ""
	case tools.CalendarEventCreate:
		return "calendar_event", ""
	case tools.DeleteResource:
		return call.Delete.TargetType, call.Delete.TargetRef
	default:
		return "unknown", ""
	}
}

// approvalPreview renders the human-readable payload summary shown on the
// approval card and in notifications.
func approvalPreview(call tools.Call) string {
	switch call.Tool {
	case tools.EmailSend:
		a := call.Send
		return fmt.Sprintf("Send email to %v\nSubject: %s\n\n%s", a.To, a.Subject, a.Body)
	case tools.CalendarEventCreate:
		a := call.Event
		return fmt.Sprintf("Create event %q on %s %s-%s", a.Title, a.Date, a.StartTime, a.EndTime)
	case tools.DeleteResource:
		a := call.Delete
		return fmt.Sprintf("Delete %s %s", a.TargetType, a.TargetRef)
	default:
		return string(call.Tool)
	}
}
