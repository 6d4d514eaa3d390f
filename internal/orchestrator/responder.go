package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MajordomoAI/majordomo/internal/provider"
)

// Responder composes the final message from the verdict and tool results.
// Presentation only; nothing here mutates state.
type Responder struct {
	model ChatModel
}

func NewResponder(model ChatModel) *Responder {
	return &Responder{model: model}
}

func (r *Responder) Compose(ctx context.Context, pack ContextPack, plan ExecutionPlan, decision JudgeDecision, results []ToolResult) Response {
	resp := Response{Decision: decision, ToolResults: results}

	switch decision.Status {
	case DecisionNeedsClarification:
		fields := strings.Join(decision.RequiredFields, ", ")
		resp.MessageText = fmt.Sprintf("I need a bit more before I can do that. Please provide: %s.", fields)
		resp.Cards = append(resp.Cards, Card{
			Kind:  "clarification",
			Title: "Missing details",
			Body:  fields,
		})

	case DecisionBlocked:
		resp.MessageText = "I can't do that without explicit confirmation."
		body := strings.Join(decision.PolicyNotes, "; ")
		resp.Cards = append(resp.Cards, Card{Kind: "blocked", Title: "Action blocked", Body: body})

	case DecisionRequiresApproval:
		resp.MessageText = "This needs your approval before anything happens."
		for _, tr := range results {
			if tr.ActionID == "" {
				continue
			}
			resp.Cards = append(resp.Cards, Card{
				Kind:     "approval",
				Title:    "Approve " + tr.Tool + "?",
				Body:     tr.Preview,
				ActionID: tr.ActionID,
			})
			resp.QuickActions = append(resp.QuickActions,
				QuickAction{Label: "Approve", Command: "approve:" + tr.ActionID},
				QuickAction{Label: "Cancel", Command: "cancel:" + tr.ActionID},
			)
		}
		// Read-only context lines first, so the card sits under what it
		// relates to.
		if lines := resultLines(results); lines != "" {
			resp.MessageText = lines + "\n\n" + resp.MessageText
		}

	default: // proceed
		if lines := resultLines(results); lines != "" {
			resp.MessageText = lines
			for _, tr := range results {
				if tr.DraftID != "" {
					card := Card{Kind: "draft", Title: "Draft " + tr.DraftID, Body: tr.Preview, ActionID: tr.ActionID}
					resp.Cards = append(resp.Cards, card)
					if tr.ActionID != "" {
						resp.QuickActions = append(resp.QuickActions,
							QuickAction{Label: "Approve send", Command: "approve:" + tr.ActionID},
							QuickAction{Label: "Discard", Command: "cancel:" + tr.ActionID},
						)
					}
				}
			}
		} else {
			resp.MessageText = r.chat(ctx, pack)
		}
	}
	return resp
}

// resultLines joins the user-displayable summaries of successful calls.
func resultLines(results []ToolResult) string {
	var lines []string
	for _, tr := range results {
		if tr.OK && tr.Summary != "" {
			lines = append(lines, tr.Summary)
		}
	}
	return strings.Join(lines, "\n")
}

// chat answers general conversation through the model when one is wired,
// with a canned local reply otherwise.
func (r *Responder) chat(ctx context.Context, pack ContextPack) string {
	if r.model == nil {
		return "I'm here. Ask me about your calendar or email, or just chat."
	}
	resp, err := r.model.Chat(ctx, &provider.ChatRequest{
		Model: r.model.DefaultModel(),
		Messages: []provider.Message{
			{Role: "system", Content: "You are a concise local personal assistant."},
			{Role: "user", Content: pack.Summary + "\n\nLatest: " + pack.LatestUserMessage},
		},
		MaxTokens: 600,
	})
	if err != nil {
		slog.Debug("Chat fallthrough failed", "error", err)
		return "I'm here. Ask me about your calendar or email, or just chat."
	}
	return resp.Content
}
