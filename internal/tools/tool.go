// Package tools defines the fixed tool catalog and the typed tool-call union.
package tools

import (
	"fmt"
	"sort"
	"strings"
)

// Name identifies a tool in the catalog.
type Name string

// Catalog of supported tools.
const (
	CalendarSummary     Name = "calendar.summary"
	CalendarEvents      Name = "calendar.events"
	EmailDraftGenerate  Name = "email.draft.generate"
	EmailSend           Name = "email.send"
	CalendarEventCreate Name = "calendar.event.create"
	DeleteResource      Name = "delete.resource"
)

// sideEffects maps each tool to its fixed side-effect flag. The flag is a
// property of the tool kind, never of an individual call.
var sideEffects = map[Name]bool{
	CalendarSummary:     false,
	CalendarEvents:      false,
	EmailDraftGenerate:  true,
	EmailSend:           true,
	CalendarEventCreate: true,
	DeleteResource:      true,
}

// Known reports whether the name is in the catalog.
func Known(n Name) bool {
	_, ok := sideEffects[n]
	return ok
}

// SideEffect reports whether executing the tool changes state outside the
// local system of record. Unknown tools are treated as side-effecting.
func (n Name) SideEffect() bool {
	se, ok := sideEffects[n]
	if !ok {
		return true
	}
	return se
}

// All returns the catalog names in stable order.
func All() []Name {
	names := make([]Name, 0, len(sideEffects))
	for n := range sideEffects {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// CalendarQueryArgs are the arguments for calendar.summary and calendar.events.
type CalendarQueryArgs struct {
	Mode       string `json:"mode"`
	AnchorDate string `json:"anchorDate,omitempty"` // YYYY-MM-DD, empty = today
}

// EmailDraftArgs are the arguments for email.draft.generate.
type EmailDraftArgs struct {
	To      []string `json:"to"`
	Subject string   `json:"subject,omitempty"`
	Topic   string   `json:"topic,omitempty"`
}

// EmailSendArgs are the arguments for email.send.
type EmailSendArgs struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// EventCreateArgs are the arguments for calendar.event.create.
type EventCreateArgs struct {
	Title     string `json:"title"`
	Date      string `json:"date"`      // YYYY-MM-DD
	StartTime string `json:"startTime"` // H:MM or HH:MM, 24h
	EndTime   string `json:"endTime"`
}

// DeleteArgs are the arguments for delete.resource.
type DeleteArgs struct {
	TargetType string `json:"targetType"`
	TargetRef  string `json:"targetRef"`
}

// Call is a planned tool invocation. Exactly one args field is non-nil and it
// matches Tool; the only way to build one is through the constructors below,
// so downstream stages never see an ill-shaped call.
type Call struct {
	Tool     Name               `json:"tool"`
	Calendar *CalendarQueryArgs `json:"calendar,omitempty"`
	Draft    *EmailDraftArgs    `json:"draft,omitempty"`
	Send     *EmailSendArgs     `json:"send,omitempty"`
	Event    *EventCreateArgs   `json:"event,omitempty"`
	Delete   *DeleteArgs        `json:"delete,omitempty"`
}

// SideEffect reports the call's fixed side-effect flag.
func (c Call) SideEffect() bool { return c.Tool.SideEffect() }

// NewCalendarSummary builds a calendar.summary call.
func NewCalendarSummary(a CalendarQueryArgs) Call {
	return Call{Tool: CalendarSummary, Calendar: &a}
}

// NewCalendarEvents builds a calendar.events call.
func NewCalendarEvents(a CalendarQueryArgs) Call {
	return Call{Tool: CalendarEvents, Calendar: &a}
}

// NewEmailDraft builds an email.draft.generate call. Recipients are
// normalized; completeness is judged later, not here.
func NewEmailDraft(a EmailDraftArgs) Call {
	a.To = NormalizeRecipients(a.To)
	a.Subject = strings.TrimSpace(a.Subject)
	a.Topic = strings.TrimSpace(a.Topic)
	return Call{Tool: EmailDraftGenerate, Draft: &a}
}

// NewEmailSend builds an email.send call.
func NewEmailSend(a EmailSendArgs) Call {
	a.To = NormalizeRecipients(a.To)
	a.Subject = strings.TrimSpace(a.Subject)
	a.Body = strings.TrimSpace(a.Body)
	return Call{Tool: EmailSend, Send: &a}
}

// NewEventCreate builds a calendar.event.create call.
func NewEventCreate(a EventCreateArgs) Call {
	a.Title = strings.TrimSpace(a.Title)
	a.Date = strings.TrimSpace(a.Date)
	a.StartTime = strings.TrimSpace(a.StartTime)
	a.EndTime = strings.TrimSpace(a.EndTime)
	return Call{Tool: CalendarEventCreate, Event: &a}
}

// NewDelete builds a delete.resource call.
func NewDelete(a DeleteArgs) Call {
	a.TargetType = strings.TrimSpace(a.TargetType)
	a.TargetRef = strings.TrimSpace(a.TargetRef)
	return Call{Tool: DeleteResource, Delete: &a}
}

// Args returns the active variant as an any for payload serialization. The
// returned value is the immutable source of truth for later execution.
func (c Call) Args() any {
	switch {
	case c.Calendar != nil:
		return c.Calendar
	case c.Draft != nil:
		return c.Draft
	case c.Send != nil:
		return c.Send
	case c.Event != nil:
		return c.Event
	case c.Delete != nil:
		return c.Delete
	}
	return nil
}

// Validate checks that the call carries exactly the variant its tool name
// requires.
func (c Call) Validate() error {
	want := map[Name]bool{
		CalendarSummary:     c.Calendar != nil,
		CalendarEvents:      c.Calendar != nil,
		EmailDraftGenerate:  c.Draft != nil,
		EmailSend:           c.Send != nil,
		CalendarEventCreate: c.Event != nil,
		DeleteResource:      c.Delete != nil,
	}
	ok, known := want[c.Tool]
	if !known {
		return fmt.Errorf("unknown tool: %s", c.Tool)
	}
	if !ok {
		return fmt.Errorf("tool %s: missing arguments", c.Tool)
	}
	if count := c.variantCount(); count != 1 {
		return fmt.Errorf("tool %s: %d argument variants set, want 1", c.Tool, count)
	}
	return nil
}

func (c Call) variantCount() int {
	count := 0
	for _, set := range []bool{c.Calendar != nil, c.Draft != nil, c.Send != nil, c.Event != nil, c.Delete != nil} {
		if set {
			count++
		}
	}
	return count
}

// NormalizeRecipients lower-cases, trims, and de-duplicates a recipient list
// preserving first-seen order.
func NormalizeRecipients(to []string) []string {
	seen := make(map[string]bool, len(to))
	out := make([]string, 0, len(to))
	for _, addr := range to {
		a := strings.ToLower(strings.TrimSpace(addr))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
