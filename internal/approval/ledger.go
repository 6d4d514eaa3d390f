// Package approval owns the lifecycle of side-effecting action requests: the
// ledger state machine and the execution safety gate in front of it.
package approval

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MajordomoAI/majordomo/internal/store"
)

// Stable error codes surfaced to callers. The API layer maps these directly
// to response bodies, so the strings must not change.
var (
	ErrActionNotFound = errors.New("action_not_found")
	ErrActionTerminal = errors.New("action_terminal")
	ErrNotApproved    = errors.New("action_not_approved")
)

// InvalidTransitionError reports a transition edge outside the allowed set.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid_transition:%s->%s", e.From, e.To)
}

// allowedEdges is the full transition table. Anything absent is rejected.
var allowedEdges = map[string]map[string]bool{
	store.ActionStatusPrepared: {
		store.ActionStatusApproved:  true,
		store.ActionStatusCancelled: true,
		store.ActionStatusFailed:    true,
	},
	store.ActionStatusApproved: {
		store.ActionStatusExecuted:  true,
		store.ActionStatusFailed:    true,
		store.ActionStatusCancelled: true,
	},
}

// Ledger applies state-machine transitions to persisted approval actions.
// Each mutation is a single guarded row write; the stored status is the only
// synchronization needed because terminal rows never accept another edge.
type Ledger struct {
	store *store.Store
}

// NewLedger creates a ledger over the given store.
func NewLedger(s *store.Store) *Ledger {
	return &Ledger{store: s}
}

// Prepare creates a new action in 'prepared' status. The payload is the
// immutable source of truth for later execution.
func (l *Ledger) Prepare(a *store.ApprovalAction) (*store.ApprovalAction, error) {
	created, err := l.store.CreateApprovalAction(a)
	if err != nil {
		return nil, err
	}
	if err := l.store.LogApprovalTransition(created.ActionID, "", store.ActionStatusPrepared, created.RequestedBy, "prepared"); err != nil {
		slog.Warn("Approval audit write failed", "action", created.ActionID, "error", err)
	}
	return created, nil
}

// Get returns an action or ErrActionNotFound.
func (l *Ledger) Get(actionID string) (*store.ApprovalAction, error) {
	a, err := l.store.GetApprovalAction(actionID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrActionNotFound
	}
	return a, nil
}

// Transition moves an action to the target status. Approver identity and
// error text are optional. Every accepted transition is audit-logged with its
// {from, to} edge.
func (l *Ledger) Transition(actionID, target, approver, errorText string) (*store.ApprovalAction, error) {
	a, err := l.Get(actionID)
	if err != nil {
		return nil, err
	}
	if store.TerminalActionStatus(a.Status) {
		return nil, ErrActionTerminal
	}
	if !allowedEdges[a.Status][target] {
		return nil, &InvalidTransitionError{From: a.Status, To: target}
	}

	ok, err := l.store.TransitionApproval(actionID, a.Status, target, approver, errorText)
	if err != nil {
		return nil, err
	}
	if !ok {
		// A concurrent transition applied first; re-read and report against
		// the status that actually won.
		current, gerr := l.Get(actionID)
		if gerr != nil {
			return nil, gerr
		}
		if store.TerminalActionStatus(current.Status) {
			return nil, ErrActionTerminal
		}
		return nil, &InvalidTransitionError{From: current.Status, To: target}
	}

	if err := l.store.LogApprovalTransition(actionID, a.Status, target, approver, errorText); err != nil {
		slog.Warn("Approval audit write failed", "action", actionID, "error", err)
	}
	slog.Info("Approval transition", "action", actionID, "from", a.Status, "to", target)
	return l.Get(actionID)
}

// Reaffirm re-stamps an approved action without changing its status, clearing
// staleness so a previously blocked execution can retry. Only valid from
// 'approved'.
func (l *Ledger) Reaffirm(actionID, approver string) (*store.ApprovalAction, error) {
	a, err := l.Get(actionID)
	if err != nil {
		return nil, err
	}
	if store.TerminalActionStatus(a.Status) {
		return nil, ErrActionTerminal
	}
	if a.Status != store.ActionStatusApproved {
		return nil, ErrNotApproved
	}
	if err := l.store.TouchApproval(actionID, approver); err != nil {
		return nil, err
	}
	if err := l.store.LogApprovalTransition(actionID, a.Status, a.Status, approver, "reaffirmed"); err != nil {
		slog.Warn("Approval audit write failed", "action", actionID, "error", err)
	}
	return l.Get(actionID)
}
