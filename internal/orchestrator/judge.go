package orchestrator

import (
	"strings"

	"github.com/MajordomoAI/majordomo/internal/tools"
)

// fieldSet is an insertion-ordered set of field names. The judge reports
// missing fields in rule order without duplicates, whichever call produced
// them.
type fieldSet struct {
	order []string
	seen  map[string]struct{}
}

func newFieldSet() *fieldSet {
	return &fieldSet{seen: make(map[string]struct{})}
}

func (s *fieldSet) Add(fields ...string) {
	for _, f := range fields {
		if _, ok := s.seen[f]; ok {
			continue
		}
		s.seen[f] = struct{}{}
		s.order = append(s.order, f)
	}
}

func (s *fieldSet) Empty() bool { return len(s.order) == 0 }

func (s *fieldSet) List() []string { return append([]string(nil), s.order...) }

// Judge evaluates plans before tool execution and outcomes after.
type Judge struct{}

// JudgePlan is the pre-tool gate. Verdict precedence: blocked beats
// needs_clarification beats requires_approval beats proceed.
func (Judge) JudgePlan(pack ContextPack, plan ExecutionPlan) JudgeDecision {
	missing := newFieldSet()
	confirm := newFieldSet()
	var notes []string
	blocked := false
	needsApproval := false

	for _, call := range plan.ToolCalls {
		switch call.Tool {
		case tools.EmailSend:
			args := call.Send
			if len(tools.NormalizeRecipients(args.To)) == 0 {
				missing.Add("to")
			}
			if strings.TrimSpace(args.Subject) == "" {
				missing.Add("subject")
			}
			if strings.TrimSpace(args.Body) == "" {
				missing.Add("body")
			}
			needsApproval = true
		case tools.CalendarEventCreate:
			args := call.Event
			if strings.TrimSpace(args.Title) == "" {
				missing.Add("title")
			}
			if args.Date == "" {
				missing.Add("date")
			}
			if args.StartTime == "" {
				missing.Add("startTime")
			}
			if args.EndTime == "" {
				missing.Add("endTime")
			}
			needsApproval = true
		case tools.EmailDraftGenerate:
			if len(tools.NormalizeRecipients(call.Draft.To)) == 0 {
				missing.Add("to")
			}
		case tools.DeleteResource:
			blocked = true
			confirm.Add("confirmDeleteTarget")
			notes = append(notes, "destructive action requires explicit confirmation")
		}
	}

	switch {
	case blocked:
		return JudgeDecision{Status: DecisionBlocked, RequiredFields: confirm.List(), PolicyNotes: notes}
	case !missing.Empty():
		return JudgeDecision{Status: DecisionNeedsClarification, RequiredFields: missing.List(), RequiresApproval: needsApproval}
	case needsApproval:
		return JudgeDecision{Status: DecisionRequiresApproval, RequiresApproval: true}
	default:
		return JudgeDecision{Status: DecisionProceed}
	}
}

// JudgeOutcome is the post-tool gate. A proceed verdict flips to blocked
// only when a tool execution actually failed; approval-prep results carry
// no failure.
func (Judge) JudgeOutcome(pre JudgeDecision, results []ToolResult) JudgeDecision {
	post := pre
	if pre.Status != DecisionProceed {
		return post
	}
	var notes []string
	for _, r := range results {
		if !r.OK {
			notes = append(notes, r.Tool+":"+r.Error)
		}
	}
	if len(notes) > 0 {
		post.Status = DecisionBlocked
		post.PolicyNotes = notes
	}
	return post
}
