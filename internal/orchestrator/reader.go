package orchestrator

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Summary bounds: the last summaryMessages messages are kept, each truncated
// to perMessageChars, and the joined summary is capped at summaryCapChars.
const (
	summaryMessages = 6
	perMessageChars = 240
	summaryCapChars = 1200
)

// intentRule pairs an intent with its trigger keywords. Rules are evaluated
// in order against the lower-cased latest user message; first match wins, no
// scoring.
type intentRule struct {
	intent   string
	keywords []string
}

var intentRules = []intentRule{
	{IntentCalendarQuery, []string{
		"what's on", "whats on", "my calendar", "my schedule", "agenda",
		"free time", "availability", "conflicts", "meetings today", "meetings tomorrow",
		"summarize my day", "day summary",
	}},
	{IntentEmailDraft, []string{"draft", "compose", "write an email", "write a reply"}},
	{IntentEmailSend, []string{"send email", "send an email", "send a mail", "send mail", "email to", "mail to"}},
	{IntentCalendarCreate, []string{
		"create event", "create an event", "create meeting", "create a meeting",
		"schedule event", "schedule an event", "schedule meeting", "schedule a meeting",
		"add event", "book a meeting", "set up a meeting",
	}},
	{IntentDelete, []string{"delete", "cancel", "remove"}},
}

// BuildContext reduces a conversation into a ContextPack. It is a pure
// function of its input: identical requests produce identical packs and no
// side effects happen here.
func BuildContext(req Request) ContextPack {
	latest := latestUserMessage(req.Messages)

	pack := ContextPack{
		Intent:            classifyIntent(latest),
		LatestUserMessage: latest,
		Summary:           summarize(req.Messages),
		ToolHints:         append([]string(nil), req.Tools...),
		AttachmentHints:   append([]string(nil), req.Attachments...),
		Constraints: Constraints{
			Mode:      req.Mode,
			Channel:   req.Channel,
			LocalOnly: req.UserPrefs["locality"] == "local_only",
		},
	}
	return pack
}

func latestUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// classifyIntent checks the rules in priority order. Anything unmatched is
// general chat.
func classifyIntent(text string) string {
	lower := strings.ToLower(text)
	for _, rule := range intentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.intent
			}
		}
	}
	return IntentGeneralChat
}

// summarize joins the tail of the conversation, truncating each message and
// capping the whole summary.
func summarize(messages []Message) string {
	start := 0
	if len(messages) > summaryMessages {
		start = len(messages) - summaryMessages
	}
	var parts []string
	for _, msg := range messages[start:] {
		parts = append(parts, fmt.Sprintf("%s: %s", msg.Role, truncate(msg.Content, perMessageChars)))
	}
	return truncate(strings.Join(parts, "\n"), summaryCapChars)
}

// truncate cuts on a rune boundary so multi-byte text stays valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
