package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MajordomoAI/majordomo/internal/store"
)

// Tracer records per-stage trace events for a run.
type Tracer interface {
	Record(ctx context.Context, runID, stage, status, detail string)
}

// Engine wires the five pipeline stages around one persistent run record.
type Engine struct {
	store     *store.Store
	planner   *Planner
	judge     Judge
	executor  *Executor
	responder *Responder
	tracer    Tracer
}

func NewEngine(st *store.Store, planner *Planner, executor *Executor, responder *Responder, tracer Tracer) *Engine {
	return &Engine{
		store:     st,
		planner:   planner,
		executor:  executor,
		responder: responder,
		tracer:    tracer,
	}
}

// ErrEmptyRequest is returned when a request has no user message to act on.
var ErrEmptyRequest = errors.New("request has no user message")

// Run executes the full pipeline for one request. A run record is created
// first and finished as executed or failed; trace events mark each stage.
func (e *Engine) Run(ctx context.Context, req Request, requestedBy string) (*Response, error) {
	if req.Mode == "" {
		req.Mode = ModeQuick
	}
	if req.Mode != ModeQuick && req.Mode != ModeDeep {
		return nil, fmt.Errorf("unknown mode %q", req.Mode)
	}
	if latestUserMessage(req.Messages) == "" {
		return nil, ErrEmptyRequest
	}

	run, err := e.store.CreateRun(&store.OrchestrationRun{
		ConversationID: req.ConversationID,
		Channel:        req.Channel,
		Mode:           req.Mode,
		Model:          req.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	resp, err := e.runStages(ctx, run.RunID, req, requestedBy)
	if err != nil {
		if ferr := e.store.FinishRun(run.RunID, store.RunStatusFailed, err.Error()); ferr != nil {
			slog.Warn("Run finish write failed", "run", run.RunID, "error", ferr)
		}
		e.trace(ctx, run.RunID, store.StageRun, "failed", err.Error())
		return nil, err
	}

	if err := e.store.FinishRun(run.RunID, store.RunStatusExecuted, ""); err != nil {
		slog.Warn("Run finish write failed", "run", run.RunID, "error", err)
	}
	resp.RunID = run.RunID
	return resp, nil
}

func (e *Engine) runStages(ctx context.Context, runID string, req Request, requestedBy string) (*Response, error) {
	pack := BuildContext(req)
	e.persistJSON(runID, "context_pack", pack, e.store.SaveContextPack)
	e.trace(ctx, runID, store.StageReader, "ok", "intent="+pack.Intent)

	plan := e.planner.Plan(ctx, pack)
	planJSON, _ := json.Marshal(plan)
	if err := e.store.SaveExecutionPlan(runID, plan.Source, string(planJSON)); err != nil {
		slog.Warn("Plan persist failed", "run", runID, "error", err)
	}
	e.trace(ctx, runID, store.StageThinker, "ok",
		fmt.Sprintf("source=%s calls=%d risk=%s", plan.Source, len(plan.ToolCalls), plan.RiskLevel))

	pre := e.judge.JudgePlan(pack, plan)
	e.saveDecision(runID, store.DecisionStagePreTool, pre)
	e.trace(ctx, runID, store.StageJudge, pre.Status, "pre-tool")

	var results []ToolResult
	if pre.Status == DecisionProceed || pre.Status == DecisionRequiresApproval {
		results = e.executor.Execute(ctx, runID, requestedBy, plan, pre)
		e.trace(ctx, runID, store.StageToolExecutor, "ok", fmt.Sprintf("results=%d", len(results)))
	}

	post := e.judge.JudgeOutcome(pre, results)
	e.saveDecision(runID, store.DecisionStagePostTool, post)
	e.trace(ctx, runID, store.StageJudge, post.Status, "post-tool")

	resp := e.responder.Compose(ctx, pack, plan, post, results)
	e.trace(ctx, runID, store.StageResponder, "ok", fmt.Sprintf("cards=%d", len(resp.Cards)))
	return &resp, nil
}

func (e *Engine) saveDecision(runID, stage string, d JudgeDecision) {
	detail, _ := json.Marshal(d)
	if err := e.store.SaveJudgeDecision(runID, stage, d.Status, string(detail)); err != nil {
		slog.Warn("Decision persist failed", "run", runID, "stage", stage, "error", err)
	}
}

func (e *Engine) persistJSON(runID, what string, v any, save func(string, string) error) {
	data, err := json.Marshal(v)
	if err == nil {
		err = save(runID, string(data))
	}
	if err != nil {
		slog.Warn("Artifact persist failed", "run", runID, "artifact", what, "error", err)
	}
}

func (e *Engine) trace(ctx context.Context, runID, stage, status, detail string) {
	if e.tracer == nil {
		return
	}
	e.tracer.Record(ctx, runID, stage, status, detail)
}
