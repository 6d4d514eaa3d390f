package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MajordomoAI/majordomo/internal/provider"
	"github.com/MajordomoAI/majordomo/internal/tools"
)

// ChatModel is the slice of the provider surface the planner needs.
type ChatModel interface {
	Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error)
	DefaultModel() string
}

// Planner turns a context pack into an execution plan. Quick mode always
// plans heuristically. Deep mode attempts an LLM plan first and falls back
// to the heuristic plan when the model is unavailable or returns something
// unusable; the fallback is recorded in the plan's Source, never surfaced
// as an error.
type Planner struct {
	model ChatModel
}

// NewPlanner accepts a nil model, in which case deep mode behaves like
// quick mode.
func NewPlanner(model ChatModel) *Planner {
	return &Planner{model: model}
}

// planAttempt is one planning strategy's outcome.
type planAttempt struct {
	source string
	plan   *ExecutionPlan
	err    error
}

// Plan produces exactly one plan per run.
func (p *Planner) Plan(ctx context.Context, pack ContextPack) ExecutionPlan {
	attempts := []func(context.Context, ContextPack) planAttempt{}
	if pack.Constraints.Mode == ModeDeep && p.model != nil {
		attempts = append(attempts, p.llmAttempt)
	}
	attempts = append(attempts, p.heuristicAttempt)

	for _, attempt := range attempts {
		a := attempt(ctx, pack)
		if a.err != nil {
			slog.Debug("Plan attempt failed, falling back", "source", a.source, "error", a.err)
			continue
		}
		return *a.plan
	}
	// Unreachable: the heuristic attempt never errors.
	plan := heuristicPlan(pack)
	return plan
}

func (p *Planner) heuristicAttempt(_ context.Context, pack ContextPack) planAttempt {
	plan := heuristicPlan(pack)
	return planAttempt{source: "heuristic", plan: &plan}
}

// heuristicPlan maps the classified intent to tool calls using the
// deterministic extraction rules. Missing fields are left empty for the
// judge to flag; the planner never invents data.
func heuristicPlan(pack ContextPack) ExecutionPlan {
	text := pack.LatestUserMessage
	plan := ExecutionPlan{
		Intent: pack.Intent,
		Source: "heuristic",
	}

	switch pack.Intent {
	case IntentCalendarQuery:
		mode := "today"
		lower := strings.ToLower(text)
		if strings.Contains(lower, "tomorrow") {
			mode = "tomorrow"
		} else if strings.Contains(lower, "week") {
			mode = "week"
		}
		call := tools.NewCalendarSummary(tools.CalendarQueryArgs{Mode: mode, AnchorDate: extractDate(text)})
		plan.Steps = []string{"summarize calendar " + mode}
		plan.ToolCalls = []tools.Call{call}
		plan.RiskLevel = RiskLow

	case IntentEmailDraft:
		call := tools.NewEmailDraft(tools.EmailDraftArgs{
			To:      extractEmails(text),
			Subject: extractSubject(text),
			Topic:   draftTopic(text),
		})
		plan.Steps = []string{"generate email draft"}
		plan.ToolCalls = []tools.Call{call}
		plan.Artifacts = []string{"email_draft"}
		plan.RiskLevel = RiskMedium

	case IntentEmailSend:
		subject := extractSubject(text)
		call := tools.NewEmailSend(tools.EmailSendArgs{
			To:      extractEmails(text),
			Subject: subject,
			Body:    extractBody(text, subject),
		})
		plan.Steps = []string{"prepare email send for approval"}
		plan.ToolCalls = []tools.Call{call}
		plan.RiskLevel = RiskHigh

	case IntentCalendarCreate:
		start, end := extractTimes(text)
		call := tools.NewEventCreate(tools.EventCreateArgs{
			Title:     extractEventTitle(text),
			Date:      extractDate(text),
			StartTime: start,
			EndTime:   end,
		})
		plan.Steps = []string{"prepare calendar event for approval"}
		plan.ToolCalls = []tools.Call{call}
		plan.RiskLevel = RiskHigh

	case IntentDelete:
		targetType, targetRef := extractDeleteTarget(text)
		call := tools.NewDelete(tools.DeleteArgs{TargetType: targetType, TargetRef: targetRef})
		plan.Steps = []string{"request confirmation for deletion"}
		plan.ToolCalls = []tools.Call{call}
		plan.RiskLevel = RiskHigh

	default:
		plan.Steps = []string{"respond conversationally"}
		plan.RiskLevel = RiskLow
		if pack.Constraints.Mode == ModeDeep {
			plan.RiskLevel = RiskMedium
		}
	}
	return plan
}

// llmPlanSchema is the JSON shape the deep-mode prompt asks for.
type llmPlanSchema struct {
	Intent string   `json:"intent"`
	Steps  []string `json:"steps"`
	Calls  []struct {
		Tool string          `json:"tool"`
		Args json.RawMessage `json:"args"`
	} `json:"calls"`
}

const planPrompt = `You are a planning module for a local personal assistant.
Given the user request below, output ONLY a JSON object:
{"intent": "...", "steps": ["..."], "calls": [{"tool": "...", "args": {...}}]}
Allowed tools: calendar.summary {mode, anchorDate}, calendar.events {mode, anchorDate},
email.draft.generate {to, subject, topic}, email.send {to, subject, body},
calendar.event.create {title, date, startTime, endTime}, delete.resource {targetType, targetRef}.
Only include fields present in the request. Do not invent recipients, dates, or times.`

func (p *Planner) llmAttempt(ctx context.Context, pack ContextPack) planAttempt {
	a := planAttempt{source: "llm"}

	resp, err := p.model.Chat(ctx, &provider.ChatRequest{
		Model: p.model.DefaultModel(),
		Messages: []provider.Message{
			{Role: "system", Content: planPrompt},
			{Role: "user", Content: pack.Summary + "\n\nLatest request: " + pack.LatestUserMessage},
		},
		Temperature: 0.1,
		MaxTokens:   800,
	})
	if err != nil {
		a.err = err
		return a
	}

	var schema llmPlanSchema
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &schema); err != nil {
		a.err = fmt.Errorf("parse plan json: %w", err)
		return a
	}

	plan, err := planFromSchema(pack, schema)
	if err != nil {
		a.err = err
		return a
	}
	a.plan = plan
	return a
}

// planFromSchema routes the model's proposed calls through the same tagged
// constructors the heuristic path uses, so every call is schema-conformant
// regardless of planning source.
func planFromSchema(pack ContextPack, schema llmPlanSchema) (*ExecutionPlan, error) {
	if len(schema.Calls) == 0 && schema.Intent != IntentGeneralChat {
		return nil, fmt.Errorf("plan has no calls")
	}

	plan := &ExecutionPlan{
		Intent: schema.Intent,
		Steps:  schema.Steps,
		Source: "llm",
	}
	if plan.Intent == "" {
		plan.Intent = pack.Intent
	}

	risk := RiskLow
	for _, raw := range schema.Calls {
		call, err := decodeCall(raw.Tool, raw.Args)
		if err != nil {
			return nil, err
		}
		if err := call.Validate(); err != nil {
			return nil, err
		}
		plan.ToolCalls = append(plan.ToolCalls, call)
		risk = maxRisk(risk, callRisk(call.Tool))
	}
	plan.RiskLevel = risk
	if len(plan.Steps) == 0 {
		plan.Steps = []string{"execute planned tools"}
	}
	return plan, nil
}

func decodeCall(tool string, args json.RawMessage) (tools.Call, error) {
	name := tools.Name(tool)
	switch name {
	case tools.CalendarSummary, tools.CalendarEvents:
		var a tools.CalendarQueryArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.Call{}, fmt.Errorf("decode %s args: %w", tool, err)
		}
		if name == tools.CalendarEvents {
			return tools.NewCalendarEvents(a), nil
		}
		return tools.NewCalendarSummary(a), nil
	case tools.EmailDraftGenerate:
		var a tools.EmailDraftArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.Call{}, fmt.Errorf("decode %s args: %w", tool, err)
		}
		return tools.NewEmailDraft(a), nil
	case tools.EmailSend:
		var a tools.EmailSendArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.Call{}, fmt.Errorf("decode %s args: %w", tool, err)
		}
		return tools.NewEmailSend(a), nil
	case tools.CalendarEventCreate:
		var a tools.EventCreateArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.Call{}, fmt.Errorf("decode %s args: %w", tool, err)
		}
		return tools.NewEventCreate(a), nil
	case tools.DeleteResource:
		var a tools.DeleteArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.Call{}, fmt.Errorf("decode %s args: %w", tool, err)
		}
		return tools.NewDelete(a), nil
	default:
		return tools.Call{}, fmt.Errorf("unknown tool %q", tool)
	}
}

func callRisk(name tools.Name) string {
	switch name {
	case tools.CalendarSummary, tools.CalendarEvents:
		return RiskLow
	case tools.EmailDraftGenerate:
		return RiskMedium
	default:
		return RiskHigh
	}
}

var riskOrder = map[string]int{RiskLow: 0, RiskMedium: 1, RiskHigh: 2}

func maxRisk(a, b string) string {
	if riskOrder[b] > riskOrder[a] {
		return b
	}
	return a
}

// draftTopic strips the drafting verb phrase to leave the topic the draft
// body should reference.
func draftTopic(text string) string {
	lower := strings.ToLower(text)
	for _, marker := range []string{"about", "regarding", "re:"} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			topic := strings.TrimSpace(text[idx+len(marker):])
			if cut := strings.Index(strings.ToLower(topic), " to "); cut > 0 {
				topic = strings.TrimSpace(topic[:cut])
			}
			return strings.Trim(topic, `".`)
		}
	}
	return ""
}

// extractJSON pulls the outermost object out of a model reply that may wrap
// it in prose or a code fence.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
