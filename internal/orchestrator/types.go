// Package orchestrator implements the five-stage agent pipeline: context
// building, planning, policy judging, tool execution, and response
// composition. One OrchestrationRun is recorded per invocation.
package orchestrator

import (
	"github.com/MajordomoAI/majordomo/internal/tools"
)

// Modes select how much work the planner does.
const (
	ModeQuick = "quick"
	ModeDeep  = "deep"
)

// Intents recognized by the context builder, in classification priority order.
const (
	IntentCalendarQuery  = "calendar_query"
	IntentEmailDraft     = "email_draft"
	IntentEmailSend      = "email_send"
	IntentCalendarCreate = "calendar_create"
	IntentDelete         = "delete_resource"
	IntentGeneralChat    = "general_chat"
)

// Risk levels for an execution plan.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Judge decision statuses.
const (
	DecisionProceed            = "proceed"
	DecisionNeedsClarification = "needs_clarification"
	DecisionRequiresApproval   = "requires_approval"
	DecisionBlocked            = "blocked"
)

// Message is one chat message in the conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the orchestration entry-point input.
type Request struct {
	ConversationID string            `json:"conversationId,omitempty"`
	Mode           string            `json:"mode"`
	Model          string            `json:"model,omitempty"`
	Messages       []Message         `json:"messages"`
	Tools          []string          `json:"tools,omitempty"`
	Channel        string            `json:"channel,omitempty"`
	Attachments    []string          `json:"attachments,omitempty"`
	UserPrefs      map[string]string `json:"userPrefs,omitempty"`
}

// Constraints captured into the context pack.
type Constraints struct {
	Mode      string `json:"mode"`
	Channel   string `json:"channel,omitempty"`
	LocalOnly bool   `json:"localOnly"`
}

// ContextPack is the reader's output: a structured reduction of the
// conversation. Immutable once built; one per run.
type ContextPack struct {
	Intent            string      `json:"intent"`
	LatestUserMessage string      `json:"latestUserMessage"`
	Summary           string      `json:"summary"`
	ToolHints         []string    `json:"toolHints,omitempty"`
	AttachmentHints   []string    `json:"attachmentHints,omitempty"`
	Constraints       Constraints `json:"constraints"`
}

// ExecutionPlan is the thinker's output. Immutable once built.
type ExecutionPlan struct {
	Intent    string       `json:"intent"`
	Steps     []string     `json:"steps"`
	ToolCalls []tools.Call `json:"toolCalls"`
	Artifacts []string     `json:"artifacts,omitempty"`
	RiskLevel string       `json:"riskLevel"`
	Source    string       `json:"source"` // heuristic or llm
}

// JudgeDecision is the policy engine's verdict on a plan. Two are produced
// per run (pre-tool and post-tool) and persisted as separate records.
type JudgeDecision struct {
	Status           string   `json:"status"`
	RequiredFields   []string `json:"requiredFields,omitempty"`
	PolicyNotes      []string `json:"policyNotes,omitempty"`
	RequiresApproval bool     `json:"requiresApproval"`
}

// ToolResult is the per-call execution outcome.
type ToolResult struct {
	Tool       string `json:"tool"`
	OK         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	Summary    string `json:"summary,omitempty"` // user-displayable text
	ActionID   string `json:"actionId,omitempty"`
	DraftID    string `json:"draftId,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	Payload    any    `json:"payload,omitempty"`
	Preview    string `json:"preview,omitempty"`
	SideEffect bool   `json:"sideEffect"`
}

// Card is a UI affordance derived from the decision and tool results.
// Presentation only, no side effects.
type Card struct {
	Kind     string `json:"kind"` // clarification, approval, calendar, draft, blocked
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	ActionID string `json:"actionId,omitempty"`
}

// QuickAction is a one-tap follow-up surfaced next to the response.
type QuickAction struct {
	Label   string `json:"label"`
	Command string `json:"command"`
}

// Response is the orchestration entry-point output.
type Response struct {
	RunID        string        `json:"runId"`
	MessageText  string        `json:"messageText"`
	Cards        []Card        `json:"cards,omitempty"`
	QuickActions []QuickAction `json:"quickActions,omitempty"`
	Decision     JudgeDecision `json:"decision"`
	ToolResults  []ToolResult  `json:"toolResults,omitempty"`
}
