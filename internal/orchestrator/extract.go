package orchestrator

import (
	"regexp"
	"strings"

	"github.com/MajordomoAI/majordomo/internal/tools"
)

var (
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	subjectRe = regexp.MustCompile(`(?is)subject:\s*(.*?)(?:\s*body:|\n|$)`)
	bodyRe    = regexp.MustCompile(`(?is)body:\s*(.+)$`)
	dateRe    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	clockRe   = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)

	createVerbRe  = regexp.MustCompile(`(?i)(?:create|schedule|add|book|set up)\s+(?:an?\s+)?(?:event|meeting)\s*(?:called|titled|named|:)?\s*`)
	titleAnchorRe = regexp.MustCompile(`(?i)\s+(?:on\s+\d{4}-\d{2}-\d{2}|at\s+\d{1,2}:\d{2}).*$`)
)

// extractEmails returns every email-like substring, de-duplicated and
// case-folded, in document order.
func extractEmails(text string) []string {
	return tools.NormalizeRecipients(emailRe.FindAllString(text, -1))
}

// extractSubject captures the text between a "subject:" marker and the next
// "body:" marker, newline, or end of input.
func extractSubject(text string) string {
	m := subjectRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// extractBody captures a "body:"-prefixed block running to the end of the
// input. If the subject leaked into the block it is stripped.
func extractBody(text, subject string) string {
	m := bodyRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	body := strings.TrimSpace(m[1])
	if subject != "" && strings.HasPrefix(body, subject) {
		body = strings.TrimSpace(strings.TrimPrefix(body, subject))
	}
	return body
}

// extractDate returns the first YYYY-MM-DD match.
func extractDate(text string) string {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

// extractTimes returns the first two HH:MM matches in document order as
// start and end.
func extractTimes(text string) (start, end string) {
	matches := clockRe.FindAllString(text, 2)
	if len(matches) > 0 {
		start = matches[0]
	}
	if len(matches) > 1 {
		end = matches[1]
	}
	return start, end
}

// extractEventTitle takes the text after a create/schedule verb, or the whole
// message, and cuts it at a trailing "on <date>" / "at <time>" anchor.
func extractEventTitle(text string) string {
	candidate := text
	if loc := createVerbRe.FindStringIndex(text); loc != nil {
		candidate = text[loc[1]:]
	}
	candidate = titleAnchorRe.ReplaceAllString(candidate, "")
	candidate = strings.Trim(strings.TrimSpace(candidate), `"'.`)
	return candidate
}

// extractDeleteTarget guesses what kind of resource a delete/cancel request
// refers to and a best-effort reference string.
func extractDeleteTarget(text string) (targetType, targetRef string) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "event") || strings.Contains(lower, "meeting"):
		targetType = "calendar_event"
	case strings.Contains(lower, "email") || strings.Contains(lower, "draft"):
		targetType = "email_draft"
	default:
		targetType = "unknown"
	}
	if m := regexp.MustCompile(`(?i)\b((?:evt|draft|act)_[a-z0-9\-]+)\b`).FindStringSubmatch(text); m != nil {
		targetRef = m[1]
	}
	return targetType, targetRef
}
