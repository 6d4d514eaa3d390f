// Package store provides SQLite persistence for orchestration runs, pipeline
// artifacts, agent traces, and the approval ledger.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for databases created before these columns existed.
	_, _ = db.Exec(`ALTER TABLE orchestration_runs ADD COLUMN model TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE execution_plans ADD COLUMN source TEXT NOT NULL DEFAULT 'heuristic'`)
	_, _ = db.Exec(`ALTER TABLE approval_actions ADD COLUMN run_id TEXT DEFAULT ''`)
	return &Store{db: db}, nil
}

// DB exposes the raw handle for maintenance commands and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// NewID returns a prefixed unique identifier, e.g. "run_2f0a...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// --- Orchestration runs ---

// CreateRun inserts a new run in 'prepared' status and returns the stored row.
func (s *Store) CreateRun(run *OrchestrationRun) (*OrchestrationRun, error) {
	if run.RunID == "" {
		run.RunID = NewID("run")
	}
	if run.Status == "" {
		run.Status = RunStatusPrepared
	}
	_, err := s.db.Exec(`INSERT INTO orchestration_runs
		(run_id, conversation_id, channel, mode, model, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.RunID, run.ConversationID, run.Channel, run.Mode, run.Model, run.Status)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	return s.GetRun(run.RunID)
}

// ErrRunNotFound is returned by GetRun for an unknown run_id.
var ErrRunNotFound = errors.New("run_not_found")

// GetRun returns a run by run_id.
func (s *Store) GetRun(runID string) (*OrchestrationRun, error) {
	var r OrchestrationRun
	err := s.db.QueryRow(`SELECT id, run_id, COALESCE(conversation_id,''), COALESCE(channel,''),
		mode, COALESCE(model,''), status, COALESCE(error_text,''), created_at, updated_at
		FROM orchestration_runs WHERE run_id = ?`, runID).Scan(
		&r.ID, &r.RunID, &r.ConversationID, &r.Channel,
		&r.Mode, &r.Model, &r.Status, &r.ErrorText, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &r, nil
}

// FinishRun sets the terminal run status. It is written once per run.
func (s *Store) FinishRun(runID, status, errorText string) error {
	_, err := s.db.Exec(`UPDATE orchestration_runs
		SET status = ?, error_text = ?, updated_at = datetime('now')
		WHERE run_id = ?`, status, errorText, runID)
	return err
}

// --- Pipeline artifacts ---

// SaveContextPack persists the serialized context pack for a run.
func (s *Store) SaveContextPack(runID, packJSON string) error {
	_, err := s.db.Exec(`INSERT INTO context_packs (run_id, pack) VALUES (?, ?)`, runID, packJSON)
	return err
}

// SaveExecutionPlan persists the serialized plan with its planning source.
func (s *Store) SaveExecutionPlan(runID, source, planJSON string) error {
	_, err := s.db.Exec(`INSERT INTO execution_plans (run_id, source, plan) VALUES (?, ?, ?)`, runID, source, planJSON)
	return err
}

// SaveJudgeDecision appends one judge verdict tagged by stage. Decisions are
// never updated in place.
func (s *Store) SaveJudgeDecision(runID, stage, decision, detailJSON string) error {
	_, err := s.db.Exec(`INSERT INTO judge_decisions (run_id, stage, decision, detail) VALUES (?, ?, ?, ?)`,
		runID, stage, decision, detailJSON)
	return err
}

// ListJudgeDecisions returns a run's decisions in insertion order.
func (s *Store) ListJudgeDecisions(runID string) ([]JudgeDecisionRecord, error) {
	rows, err := s.db.Query(`SELECT id, run_id, stage, decision, COALESCE(detail,''), created_at
		FROM judge_decisions WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JudgeDecisionRecord
	for rows.Next() {
		var d JudgeDecisionRecord
		if err := rows.Scan(&d.ID, &d.RunID, &d.Stage, &d.Decision, &d.Detail, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// --- Agent traces ---

// AppendTrace writes one trace event. Rows are write-once and ordered by
// insertion id for replay.
func (s *Store) AppendTrace(ev *TraceEvent) error {
	_, err := s.db.Exec(`INSERT INTO agent_traces (run_id, stage, status, detail) VALUES (?, ?, ?, ?)`,
		ev.RunID, ev.Stage, ev.Status, ev.Detail)
	return err
}

// ListTraces returns a run's trace events in insertion order.
func (s *Store) ListTraces(runID string) ([]TraceEvent, error) {
	rows, err := s.db.Query(`SELECT id, run_id, stage, status, COALESCE(detail,''), created_at
		FROM agent_traces WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TraceEvent
	for rows.Next() {
		var ev TraceEvent
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Stage, &ev.Status, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// --- Tool execution logs ---

// StartToolExecution writes the 'prepared' log entry before invocation and
// returns the row id so the finish entry can complete it.
func (s *Store) StartToolExecution(runID, tool, argsSnapshot string) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO tool_execution_logs (run_id, tool, status, args_snapshot)
		VALUES (?, ?, 'prepared', ?)`, runID, tool, argsSnapshot)
	if err != nil {
		return 0, fmt.Errorf("start tool execution: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// FinishToolExecution records the outcome and finish timestamp for a log row.
func (s *Store) FinishToolExecution(logID int64, status, resultSnapshot string) error {
	_, err := s.db.Exec(`UPDATE tool_execution_logs
		SET status = ?, result_snapshot = ?, finished_at = datetime('now')
		WHERE id = ?`, status, resultSnapshot, logID)
	return err
}

// ListToolExecutions returns a run's tool log rows in insertion order.
func (s *Store) ListToolExecutions(runID string) ([]ToolExecutionLog, error) {
	rows, err := s.db.Query(`SELECT id, run_id, tool, status,
		COALESCE(args_snapshot,''), COALESCE(result_snapshot,''), started_at, finished_at
		FROM tool_execution_logs WHERE run_id = ? ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ToolExecutionLog
	for rows.Next() {
		var l ToolExecutionLog
		var finished sql.NullTime
		if err := rows.Scan(&l.ID, &l.RunID, &l.Tool, &l.Status,
			&l.ArgsSnapshot, &l.ResultSnapshot, &l.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			l.FinishedAt = &finished.Time
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// --- Approval ledger rows ---

// CreateApprovalAction inserts a new action in 'prepared' status.
func (s *Store) CreateApprovalAction(a *ApprovalAction) (*ApprovalAction, error) {
	if a.ActionID == "" {
		a.ActionID = NewID("act")
	}
	if a.Status == "" {
		a.Status = ActionStatusPrepared
	}
	if a.Payload == "" {
		a.Payload = "{}"
	}
	_, err := s.db.Exec(`INSERT INTO approval_actions
		(action_id, run_id, action_type, target_type, target_ref, payload, status, requested_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActionID, a.RunID, a.ActionType, a.TargetType, a.TargetRef, a.Payload, a.Status, a.RequestedBy)
	if err != nil {
		return nil, fmt.Errorf("create approval action: %w", err)
	}
	return s.GetApprovalAction(a.ActionID)
}

// GetApprovalAction returns an action by action_id, or (nil, nil) when the id
// is unknown so the ledger can map that to its own error code.
func (s *Store) GetApprovalAction(actionID string) (*ApprovalAction, error) {
	var a ApprovalAction
	err := s.db.QueryRow(`SELECT id, action_id, COALESCE(run_id,''), action_type, target_type,
		COALESCE(target_ref,''), payload, status, COALESCE(requested_by,''),
		COALESCE(approved_by,''), COALESCE(error_text,''), created_at, updated_at
		FROM approval_actions WHERE action_id = ?`, actionID).Scan(
		&a.ID, &a.ActionID, &a.RunID, &a.ActionType, &a.TargetType,
		&a.TargetRef, &a.Payload, &a.Status, &a.RequestedBy,
		&a.ApprovedBy, &a.ErrorText, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get approval action: %w", err)
	}
	return &a, nil
}

// TransitionApproval moves an action from one status to another in a single
// guarded write. Returns false if the row no longer holds fromStatus, which
// means a concurrent transition won.
func (s *Store) TransitionApproval(actionID, fromStatus, toStatus, approvedBy, errorText string) (bool, error) {
	res, err := s.db.Exec(`UPDATE approval_actions
		SET status = ?, approved_by = CASE WHEN ? != '' THEN ? ELSE approved_by END,
			error_text = ?, updated_at = datetime('now')
		WHERE action_id = ? AND status = ?`,
		toStatus, approvedBy, approvedBy, errorText, actionID, fromStatus)
	if err != nil {
		return false, fmt.Errorf("transition approval: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// TouchApproval re-stamps updated_at (and optionally the approver) without
// changing status. Used by the reaffirm operation.
func (s *Store) TouchApproval(actionID, approvedBy string) error {
	_, err := s.db.Exec(`UPDATE approval_actions
		SET approved_by = CASE WHEN ? != '' THEN ? ELSE approved_by END,
			updated_at = datetime('now')
		WHERE action_id = ?`, approvedBy, approvedBy, actionID)
	return err
}

// ListApprovalActions returns actions filtered by optional status, newest first.
func (s *Store) ListApprovalActions(status string, limit int) ([]ApprovalAction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, action_id, COALESCE(run_id,''), action_type, target_type,
		COALESCE(target_ref,''), payload, status, COALESCE(requested_by,''),
		COALESCE(approved_by,''), COALESCE(error_text,''), created_at, updated_at
		FROM approval_actions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApprovalAction
	for rows.Next() {
		var a ApprovalAction
		if err := rows.Scan(&a.ID, &a.ActionID, &a.RunID, &a.ActionType, &a.TargetType,
			&a.TargetRef, &a.Payload, &a.Status, &a.RequestedBy,
			&a.ApprovedBy, &a.ErrorText, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListStaleApprovals returns approved actions whose updated_at is older than
// the cutoff, for staleness scans.
func (s *Store) ListStaleApprovals(cutoff time.Time) ([]ApprovalAction, error) {
	rows, err := s.db.Query(`SELECT id, action_id, COALESCE(run_id,''), action_type, target_type,
		COALESCE(target_ref,''), payload, status, COALESCE(requested_by,''),
		COALESCE(approved_by,''), COALESCE(error_text,''), created_at, updated_at
		FROM approval_actions WHERE status = ? AND updated_at < ?
		ORDER BY updated_at ASC`, ActionStatusApproved, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApprovalAction
	for rows.Next() {
		var a ApprovalAction
		if err := rows.Scan(&a.ID, &a.ActionID, &a.RunID, &a.ActionType, &a.TargetType,
			&a.TargetRef, &a.Payload, &a.Status, &a.RequestedBy,
			&a.ApprovedBy, &a.ErrorText, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LogApprovalTransition writes one {from, to} audit row for a transition.
func (s *Store) LogApprovalTransition(actionID, from, to, actor, note string) error {
	_, err := s.db.Exec(`INSERT INTO approval_transitions (action_id, from_status, to_status, actor, note)
		VALUES (?, ?, ?, ?, ?)`, actionID, from, to, actor, note)
	return err
}

// ListApprovalTransitions returns an action's audit rows in insertion order.
func (s *Store) ListApprovalTransitions(actionID string) ([]ApprovalTransition, error) {
	rows, err := s.db.Query(`SELECT id, action_id, from_status, to_status,
		COALESCE(actor,''), COALESCE(note,''), created_at
		FROM approval_transitions WHERE action_id = ? ORDER BY id ASC`, actionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ApprovalTransition
	for rows.Next() {
		var t ApprovalTransition
		if err := rows.Scan(&t.ID, &t.ActionID, &t.FromStatus, &t.ToStatus, &t.Actor, &t.Note, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
