// Package gateway exposes the orchestration pipeline and the approval
// lifecycle over local HTTP. The server binds to the configured host and is
// meant for the local network only.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/MajordomoAI/majordomo/internal/approval"
	"github.com/MajordomoAI/majordomo/internal/oauth"
	"github.com/MajordomoAI/majordomo/internal/orchestrator"
	"github.com/MajordomoAI/majordomo/internal/store"
)

// Server routes API requests to the engine, ledger, and gate.
type Server struct {
	engine    *orchestrator.Engine
	ledger    *approval.Ledger
	gate      *approval.Gate
	store     *store.Store
	sessions  *oauth.SessionStore
	authToken string
}

func NewServer(engine *orchestrator.Engine, ledger *approval.Ledger, gate *approval.Gate, st *store.Store, authToken string) *Server {
	return &Server{
		engine:    engine,
		ledger:    ledger,
		gate:      gate,
		store:     st,
		sessions:  oauth.NewSessionStore(oauth.DefaultSessionTTL),
		authToken: authToken,
	}
}

// Close releases background resources (the session sweep loop).
func (s *Server) Close() {
	s.sessions.Close()
}

// Handler builds the route table. Everything except /api/v1/status requires
// the bearer token when one is configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": "majordomo"})
	})

	mux.HandleFunc("POST /api/v1/orchestrations", s.auth(s.handleOrchestrate))
	mux.HandleFunc("GET /api/v1/runs/{id}/traces", s.auth(s.handleRunTraces))
	mux.HandleFunc("GET /api/v1/approvals", s.auth(s.handleListApprovals))
	mux.HandleFunc("GET /api/v1/approvals/{id}", s.auth(s.handleGetApproval))
	mux.HandleFunc("GET /api/v1/approvals/{id}/audit", s.auth(s.handleApprovalAudit))
	mux.HandleFunc("POST /api/v1/approvals/{id}/approve", s.auth(s.handleApprove))
	mux.HandleFunc("POST /api/v1/approvals/{id}/cancel", s.auth(s.handleCancel))
	mux.HandleFunc("POST /api/v1/approvals/{id}/reaffirm", s.auth(s.handleReaffirm))
	mux.HandleFunc("POST /api/v1/approvals/{id}/execute", s.auth(s.handleExecute))
	mux.HandleFunc("POST /api/v1/accounts/{provider}/link", s.auth(s.handleAccountLink))
	mux.HandleFunc("POST /api/v1/accounts/link/{state}", s.auth(s.handleAccountLinkComplete))

	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if token != s.authToken {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.engine.Run(r.Context(), req, actor(r))
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("Orchestration failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRunTraces(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	run, err := s.store.GetRun(runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run_not_found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	traces, err := s.store.ListTraces(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	decisions, err := s.store.ListJudgeDecisions(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run":       run,
		"traces":    traces,
		"decisions": decisions,
	})
}

func (s *Server) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	actions, err := s.store.ListApprovalActions(r.URL.Query().Get("status"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
}

func (s *Server) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Get(r.PathValue("id"))
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleApprovalAudit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.Get(r.PathValue("id")); err != nil {
		writeApprovalError(w, err)
		return
	}
	rows, err := s.store.ListApprovalTransitions(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": rows})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Transition(r.PathValue("id"), store.ActionStatusApproved, actor(r), "")
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Transition(r.PathValue("id"), store.ActionStatusCancelled, actor(r), "")
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleReaffirm(w http.ResponseWriter, r *http.Request) {
	a, err := s.ledger.Reaffirm(r.PathValue("id"), actor(r))
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	res, err := s.gate.Execute(r.Context(), r.PathValue("id"), actor(r))
	if err != nil {
		writeApprovalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleAccountLink starts an account-link authorization flow and returns the
// single-use state token the provider callback must present.
func (s *Server) handleAccountLink(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Begin(r.PathValue("provider"), actor(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":    sess.State,
		"provider": sess.Provider,
		"ttl":      oauth.DefaultSessionTTL.String(),
	})
}

// handleAccountLinkComplete consumes the state token. Unknown, expired, and
// already-used tokens all look the same to the caller.
func (s *Server) handleAccountLinkComplete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Take(r.PathValue("state"))
	if errors.Is(err, oauth.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": sess.Provider,
		"userRef":  sess.UserRef,
		"linked":   true,
	})
}

// actor identifies who performed the request for audit purposes.
func actor(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Actor")); v != "" {
		return v
	}
	return "api"
}

// writeApprovalError maps the stable approval error codes onto HTTP statuses.
// The error string is the machine-readable code; clients match on it.
func writeApprovalError(w http.ResponseWriter, err error) {
	var ite *approval.InvalidTransitionError
	var pbe *approval.PolicyBlockedError
	switch {
	case errors.Is(err, approval.ErrActionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, approval.ErrActionTerminal),
		errors.Is(err, approval.ErrNotApproved),
		errors.As(err, &ite):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, approval.ErrStaleApproval):
		writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.As(err, &pbe):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// ListenAndServe runs the server until the listener fails.
func (s *Server) ListenAndServe(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	slog.Info("API server listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}
