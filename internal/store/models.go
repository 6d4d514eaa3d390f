package store

import (
	"time"
)

// OrchestrationRun tracks one pipeline execution.
type OrchestrationRun struct {
	ID             int64     `json:"id"`
	RunID          string    `json:"run_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Channel        string    `json:"channel,omitempty"`
	Mode           string    `json:"mode"`
	Model          string    `json:"model,omitempty"`
	Status         string    `json:"status"`
	ErrorText      string    `json:"error_text,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Run status values. A run is created 'prepared' and moves to exactly one
// terminal status.
const (
	RunStatusPrepared = "prepared"
	RunStatusExecuted = "executed"
	RunStatusFailed   = "failed"
)

// ApprovalAction is a persisted, state-machine-governed request to perform a
// side-effecting operation. Terminal rows are permanent records.
type ApprovalAction struct {
	ID          int64     `json:"id"`
	ActionID    string    `json:"action_id"`
	RunID       string    `json:"run_id,omitempty"`
	ActionType  string    `json:"action_type"`
	TargetType  string    `json:"target_type"`
	TargetRef   string    `json:"target_ref,omitempty"`
	Payload     string    `json:"payload"` // JSON, immutable after creation
	Status      string    `json:"status"`
	RequestedBy string    `json:"requested_by,omitempty"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	ErrorText   string    `json:"error_text,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Approval action statuses.
const (
	ActionStatusPrepared  = "prepared"
	ActionStatusApproved  = "approved"
	ActionStatusExecuted  = "executed"
	ActionStatusFailed    = "failed"
	ActionStatusCancelled = "cancelled"
)

// TerminalActionStatus reports whether no further transition is accepted.
func TerminalActionStatus(status string) bool {
	switch status {
	case ActionStatusExecuted, ActionStatusFailed, ActionStatusCancelled:
		return true
	}
	return false
}

// ApprovalTransition is one audit row for a ledger transition.
type ApprovalTransition struct {
	ID         int64     `json:"id"`
	ActionID   string    `json:"action_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TraceEvent is one append-only row in the per-run agent trace.
type TraceEvent struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"` // redacted JSON blob
	CreatedAt time.Time `json:"created_at"`
}

// Trace stages.
const (
	StageReader       = "reader"
	StageThinker      = "thinker"
	StageJudge        = "judge"
	StageToolExecutor = "tool_executor"
	StageResponder    = "responder"
	StageRun          = "run"
)

// ToolExecutionLog records one tool invocation with prepared/finished snapshots.
type ToolExecutionLog struct {
	ID             int64      `json:"id"`
	RunID          string     `json:"run_id"`
	Tool           string     `json:"tool"`
	Status         string     `json:"status"` // prepared, executed, failed
	ArgsSnapshot   string     `json:"args_snapshot,omitempty"`
	ResultSnapshot string     `json:"result_snapshot,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// JudgeDecisionRecord persists one judge verdict. Two are written per run,
// tagged by stage; records are never mutated.
type JudgeDecisionRecord struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"` // pre_tool or post_tool
	Decision  string    `json:"decision"`
	Detail    string    `json:"detail"` // full decision JSON
	CreatedAt time.Time `json:"created_at"`
}

// Judge decision stages.
const (
	DecisionStagePreTool  = "pre_tool"
	DecisionStagePostTool = "post_tool"
)
