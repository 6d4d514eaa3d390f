package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/MajordomoAI/majordomo/internal/email"
	"github.com/MajordomoAI/majordomo/internal/store"
	"github.com/MajordomoAI/majordomo/internal/tools"
)

// StalenessWindow is how long an approval stays executable before it must be
// reaffirmed by a human.
const StalenessWindow = 7 * 24 * time.Hour

// ErrStaleApproval is returned when an approved action has aged past the
// staleness window. The action stays approved; reaffirm it and retry.
var ErrStaleApproval = errors.New("approval_stale_reapproval_required")

// PolicyBlockedError carries the issue codes that blocked execution. The
// action stays approved so the caller can fix upstream data and retry.
type PolicyBlockedError struct {
	Issues []string
}

func (e *PolicyBlockedError) Error() string {
	return "execution_policy_blocked:" + strings.Join(e.Issues, ",")
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clockRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)
)

// ExecutionResult is what an approved action produced when it ran.
type ExecutionResult struct {
	Action *store.ApprovalAction `json:"action"`
	Draft  *email.Draft          `json:"draft,omitempty"`
	Event  *calendar.Event       `json:"event,omitempty"`
}

// Gate re-validates an approved action's payload immediately before it is
// allowed to transition to executed.
type Gate struct {
	ledger   *Ledger
	calendar calendar.Service
	email    email.Service
	window   time.Duration
	now      func() time.Time
}

// NewGate creates an execution gate with the default staleness window.
func NewGate(ledger *Ledger, cal calendar.Service, mail email.Service) *Gate {
	return &Gate{
		ledger:   ledger,
		calendar: cal,
		email:    mail,
		window:   StalenessWindow,
		now:      time.Now,
	}
}

// SetStalenessWindow overrides the default window. Non-positive values are
// ignored.
func (g *Gate) SetStalenessWindow(d time.Duration) {
	if d > 0 {
		g.window = d
	}
}

// Execute runs the safety checks, performs the side-effecting operation, and
// transitions the action to executed. On any check failure the action's
// status is left unchanged.
func (g *Gate) Execute(ctx context.Context, actionID, approver string) (*ExecutionResult, error) {
	a, err := g.ledger.Get(actionID)
	if err != nil {
		return nil, err
	}
	if store.TerminalActionStatus(a.Status) {
		return nil, ErrActionTerminal
	}
	if a.Status != store.ActionStatusApproved {
		return nil, &InvalidTransitionError{From: a.Status, To: store.ActionStatusExecuted}
	}

	if g.now().Sub(a.UpdatedAt) > g.window {
		g.auditBlocked(a, approver, ErrStaleApproval.Error())
		return nil, ErrStaleApproval
	}

	if issues := validatePayload(a.ActionType, a.Payload); len(issues) > 0 {
		blocked := &PolicyBlockedError{Issues: issues}
		g.auditBlocked(a, approver, blocked.Error())
		return nil, blocked
	}

	result := &ExecutionResult{}
	switch a.ActionType {
	case string(tools.EmailSend):
		var args tools.EmailSendArgs
		if err := json.Unmarshal([]byte(a.Payload), &args); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		draft, err := g.email.MaterializeApprovedSend(ctx, a.ActionID, args)
		if err != nil {
			return nil, g.fail(a, approver, err)
		}
		result.Draft = draft
	case string(tools.CalendarEventCreate):
		var args tools.EventCreateArgs
		if err := json.Unmarshal([]byte(a.Payload), &args); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		ev, err := g.calendar.CreateEventFromApprovedAction(ctx, args)
		if err != nil {
			return nil, g.fail(a, approver, err)
		}
		result.Event = ev
	default:
		blocked := &PolicyBlockedError{Issues: []string{"unsupported_action_type"}}
		g.auditBlocked(a, approver, blocked.Error())
		return nil, blocked
	}

	updated, err := g.ledger.Transition(a.ActionID, store.ActionStatusExecuted, approver, "")
	if err != nil {
		return nil, err
	}
	result.Action = updated
	return result, nil
}

// fail records an execution failure as a terminal failed transition and
// returns the original error.
func (g *Gate) fail(a *store.ApprovalAction, approver string, cause error) error {
	if _, terr := g.ledger.Transition(a.ActionID, store.ActionStatusFailed, approver, cause.Error()); terr != nil {
		slog.Warn("Failed-transition write failed", "action", a.ActionID, "error", terr)
	}
	return cause
}

func (g *Gate) auditBlocked(a *store.ApprovalAction, actor, note string) {
	if err := g.ledger.store.LogApprovalTransition(a.ActionID, a.Status, a.Status, actor, note); err != nil {
		slog.Warn("Blocked audit write failed", "action", a.ActionID, "error", err)
	}
	slog.Warn("Approval execution blocked", "action", a.ActionID, "reason", note)
}

// validatePayload returns the issue codes for an incomplete or malformed
// payload. Empty means the payload may execute.
func validatePayload(actionType, payload string) []string {
	var issues []string
	switch actionType {
	case string(tools.EmailSend):
		var args tools.EmailSendArgs
		if err := json.Unmarshal([]byte(payload), &args); err != nil {
			return []string{"malformed_payload"}
		}
		if len(tools.NormalizeRecipients(args.To)) == 0 {
			issues = append(issues, "missing_recipient")
		}
		if strings.TrimSpace(args.Subject) == "" {
			issues = append(issues, "missing_subject")
		}
		if strings.TrimSpace(args.Body) == "" {
			issues = append(issues, "missing_body")
		}
	case string(tools.CalendarEventCreate):
		var args tools.EventCreateArgs
		if err := json.Unmarshal([]byte(payload), &args); err != nil {
			return []string{"malformed_payload"}
		}
		if strings.TrimSpace(args.Title) == "" {
			issues = append(issues, "missing_title")
		}
		if !dateRe.MatchString(args.Date) {
			issues = append(issues, "invalid_date")
		}
		if !clockRe.MatchString(args.StartTime) {
			issues = append(issues, "invalid_start_time")
		}
		if !clockRe.MatchString(args.EndTime) {
			issues = append(issues, "invalid_end_time")
		} else if clockRe.MatchString(args.StartTime) && !clockAfter(args.EndTime, args.StartTime) {
			issues = append(issues, "end_before_start")
		}
	}
	return issues
}

// clockAfter reports whether a is strictly later in the day than b.
func clockAfter(a, b string) bool {
	ah, am, err1 := parseClockMinutes(a)
	bh, bm, err2 := parseClockMinutes(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return ah*60+am > bh*60+bm
}

func parseClockMinutes(clock string) (hour, minute int, err error) {
	_, err = fmt.Sscanf(clock, "%d:%d", &hour, &minute)
	return hour, minute, err
}
