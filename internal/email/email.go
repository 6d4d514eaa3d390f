// Package email provides the email collaborator: local draft generation and
// materialization of approved sends. Drafts live as JSON files in a local
// outbox; nothing leaves the machine from here.
package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MajordomoAI/majordomo/internal/tools"
)

// Draft is a locally materialized email.
type Draft struct {
	ID        string    `json:"id"`
	To        []string  `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"` // draft or approved_send
	ActionID  string    `json:"action_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Path      string    `json:"path,omitempty"`
}

// Service is the collaborator contract consumed by the orchestration core.
type Service interface {
	GenerateDraft(ctx context.Context, args tools.EmailDraftArgs) (*Draft, error)
	MaterializeApprovedSend(ctx context.Context, actionID string, args tools.EmailSendArgs) (*Draft, error)
}

// LocalService writes drafts into a directory on disk.
type LocalService struct {
	dir string
	now func() time.Time
}

// NewLocalService creates the outbox directory if needed.
func NewLocalService(dir string) (*LocalService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox dir: %w", err)
	}
	return &LocalService{dir: dir, now: time.Now}, nil
}

// GenerateDraft composes a reversible local draft. Draft creation is the one
// side-effecting tool allowed to run without approval because deleting the
// file undoes it completely.
func (s *LocalService) GenerateDraft(ctx context.Context, args tools.EmailDraftArgs) (*Draft, error) {
	if len(args.To) == 0 {
		return nil, fmt.Errorf("draft requires at least one recipient")
	}
	subject := args.Subject
	if subject == "" && args.Topic != "" {
		subject = args.Topic
	}
	body := composeBody(args.Topic, subject)

	d := &Draft{
		ID:        "draft_" + uuid.NewString()[:8],
		To:        args.To,
		Subject:   subject,
		Body:      body,
		Kind:      "draft",
		CreatedAt: s.now(),
	}
	if err := s.write(d); err != nil {
		return nil, err
	}
	return d, nil
}

// MaterializeApprovedSend writes the outgoing message for an approved
// email.send action. The payload args are the immutable source of truth; the
// send itself is handed off to the provider adapter outside this package.
func (s *LocalService) MaterializeApprovedSend(ctx context.Context, actionID string, args tools.EmailSendArgs) (*Draft, error) {
	if len(args.To) == 0 || args.Subject == "" || args.Body == "" {
		return nil, fmt.Errorf("approved send payload incomplete")
	}
	d := &Draft{
		ID:        "send_" + uuid.NewString()[:8],
		To:        args.To,
		Subject:   args.Subject,
		Body:      args.Body,
		Kind:      "approved_send",
		ActionID:  actionID,
		CreatedAt: s.now(),
	}
	if err := s.write(d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *LocalService) write(d *Draft) error {
	d.Path = filepath.Join(s.dir, d.ID+".json")
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	if err := os.WriteFile(d.Path, data, 0o644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	return nil
}

func composeBody(topic, subject string) string {
	var sb strings.Builder
	sb.WriteString("Hi,\n\n")
	if topic != "" {
		sb.WriteString(fmt.Sprintf("Following up on %s.\n\n", topic))
	} else if subject != "" {
		sb.WriteString(fmt.Sprintf("Following up on %s.\n\n", strings.ToLower(subject[:1])+subject[1:]))
	} else {
		sb.WriteString("Following up on our conversation.\n\n")
	}
	sb.WriteString("Best regards")
	return sb.String()
}
