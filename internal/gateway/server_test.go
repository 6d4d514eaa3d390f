package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MajordomoAI/majordomo/internal/approval"
	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/MajordomoAI/majordomo/internal/email"
	"github.com/MajordomoAI/majordomo/internal/orchestrator"
	"github.com/MajordomoAI/majordomo/internal/store"
)

func newTestServer(t *testing.T, token string) (*Server, *store.Store) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.New(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cal := calendar.NewLocalService(time.UTC)
	mail, err := email.NewLocalService(filepath.Join(dir, "outbox"))
	if err != nil {
		t.Fatalf("open outbox: %v", err)
	}

	ledger := approval.NewLedger(st)
	gate := approval.NewGate(ledger, cal, mail)
	executor := orchestrator.NewExecutor(st, ledger, cal, mail, nil)
	engine := orchestrator.NewEngine(st, orchestrator.NewPlanner(nil), executor, orchestrator.NewResponder(nil), nil)

	srv := NewServer(engine, ledger, gate, st, token)
	t.Cleanup(srv.Close)
	return srv, st
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthTokenGuardsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	h := srv.Handler()

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/approvals", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/approvals", "wrong", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/approvals", "secret", ""); rec.Code != http.StatusOK {
		t.Fatalf("good token: %d body=%s", rec.Code, rec.Body.String())
	}
	// Status stays open for health checks.
	if rec := doJSON(t, h, http.MethodGet, "/api/v1/status", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestOrchestrationAndApprovalFlow(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	body := `{"mode":"quick","messages":[{"role":"user","content":"Send email to alice@example.com subject: Launch update body: Please review."}]}`
	rec := doJSON(t, h, http.MethodPost, "/api/v1/orchestrations", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("orchestrate: %d body=%s", rec.Code, rec.Body.String())
	}
	var resp orchestrator.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Decision.Status != orchestrator.DecisionRequiresApproval {
		t.Fatalf("decision = %s", resp.Decision.Status)
	}
	actionID := resp.ToolResults[0].ActionID
	if actionID == "" {
		t.Fatal("no action id")
	}

	// Executing before approval is a conflict with the stable code.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+actionID+"/execute", "", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("premature execute: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_transition:prepared-\\u003eexecuted") &&
		!strings.Contains(rec.Body.String(), "invalid_transition:prepared->executed") {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+actionID+"/approve", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/approvals/"+actionID+"/execute", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("execute: %d body=%s", rec.Code, rec.Body.String())
	}
	var result approval.ExecutionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Action.Status != store.ActionStatusExecuted || result.Draft == nil {
		t.Fatalf("result = %+v", result)
	}

	// Audit trail shows the full edge history.
	rec = doJSON(t, h, http.MethodGet, "/api/v1/approvals/"+actionID+"/audit", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d", rec.Code)
	}
	var audit struct {
		Transitions []store.ApprovalTransition `json:"transitions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &audit); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	if len(audit.Transitions) != 3 {
		t.Fatalf("transitions = %d: %+v", len(audit.Transitions), audit.Transitions)
	}
}

func TestUnknownActionReturns404(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	rec := doJSON(t, h, http.MethodPost, "/api/v1/approvals/act_missing/approve", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "action_not_found") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestRunTraceEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	body := `{"mode":"quick","messages":[{"role":"user","content":"What's on my calendar today?"}]}`
	rec := doJSON(t, h, http.MethodPost, "/api/v1/orchestrations", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("orchestrate: %d", rec.Code)
	}
	var resp orchestrator.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/v1/runs/"+resp.RunID+"/traces", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("traces: %d body=%s", rec.Code, rec.Body.String())
	}
	var out struct {
		Run       *store.OrchestrationRun     `json:"run"`
		Decisions []store.JudgeDecisionRecord `json:"decisions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Run == nil || out.Run.Status != store.RunStatusExecuted {
		t.Fatalf("run = %+v", out.Run)
	}
	if len(out.Decisions) != 2 {
		t.Fatalf("decisions = %d", len(out.Decisions))
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/v1/runs/run_missing/traces", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing run: %d", rec.Code)
	}
}

func TestAccountLinkFlow(t *testing.T) {
	srv, _ := newTestServer(t, "secret")
	h := srv.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/accounts/google/link", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("link without token: %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodPost, "/api/v1/accounts/google/link", "secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("link: %d body=%s", rec.Code, rec.Body.String())
	}
	var begun struct {
		State    string `json:"state"`
		Provider string `json:"provider"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &begun); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if begun.State == "" || begun.Provider != "google" {
		t.Fatalf("begun = %+v", begun)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/v1/accounts/link/"+begun.State, "secret", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"linked":true`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	// State tokens are single-use.
	rec = doJSON(t, h, http.MethodPost, "/api/v1/accounts/link/"+begun.State, "secret", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("replayed state: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "oauth_session_not_found") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestBadOrchestrationRequests(t *testing.T) {
	srv, _ := newTestServer(t, "")
	h := srv.Handler()

	if rec := doJSON(t, h, http.MethodPost, "/api/v1/orchestrations", "", "{not json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/v1/orchestrations", "", `{"mode":"quick","messages":[]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty messages: %d", rec.Code)
	}
}
