package cli

import (
	"fmt"
	"time"

	"github.com/MajordomoAI/majordomo/internal/approval"
	"github.com/MajordomoAI/majordomo/internal/calendar"
	"github.com/MajordomoAI/majordomo/internal/config"
	"github.com/MajordomoAI/majordomo/internal/email"
	"github.com/MajordomoAI/majordomo/internal/notify"
	"github.com/MajordomoAI/majordomo/internal/orchestrator"
	"github.com/MajordomoAI/majordomo/internal/provider"
	"github.com/MajordomoAI/majordomo/internal/store"
	"github.com/MajordomoAI/majordomo/internal/trace"
)

// runtime bundles the wired components shared by the serve, ask, and
// approvals commands.
type runtime struct {
	cfg      *config.Config
	store    *store.Store
	calendar calendar.Service
	ledger   *approval.Ledger
	gate     *approval.Gate
	engine   *orchestrator.Engine
	recorder *trace.Recorder
	mirror   *trace.KafkaMirror
}

// buildRuntime loads config and wires the full pipeline. Components without
// configuration (model, Slack, Kafka) are left nil and the pipeline degrades
// to its local-only behavior.
func buildRuntime() (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureDir(cfg.Paths.Home); err != nil {
		return nil, fmt.Errorf("ensure home dir: %w", err)
	}

	st, err := store.New(cfg.Paths.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	loc := time.Local
	if cfg.Calendar.Timezone != "" && cfg.Calendar.Timezone != "Local" {
		if parsed, err := time.LoadLocation(cfg.Calendar.Timezone); err == nil {
			loc = parsed
		}
	}
	cal := calendar.NewLocalService(loc)

	mail, err := email.NewLocalService(cfg.Paths.OutboxDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open outbox: %w", err)
	}

	ledger := approval.NewLedger(st)
	gate := approval.NewGate(ledger, cal, mail)
	gate.SetStalenessWindow(cfg.Approval.StalenessWindow)

	var model orchestrator.ChatModel
	if cfg.Providers.OpenAI.APIKey != "" {
		model = provider.NewOpenAIProvider(
			provider.StaticToken(cfg.Providers.OpenAI.APIKey),
			cfg.Providers.OpenAI.APIBase,
			cfg.Model.Name,
		)
	}

	var notifier orchestrator.Notifier
	if cfg.Notify.Enabled && cfg.Notify.SlackToken != "" && cfg.Notify.SlackChannel != "" {
		notifier = notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel)
	}

	var mirror *trace.KafkaMirror
	if cfg.Trace.MirrorEnabled && cfg.Trace.KafkaBrokers != "" {
		mirror = trace.NewKafkaMirror(cfg.Trace.KafkaBrokers, cfg.Trace.Topic)
	}
	recorder := trace.NewRecorder(st, mirror)

	executor := orchestrator.NewExecutor(st, ledger, cal, mail, notifier)
	engine := orchestrator.NewEngine(st, orchestrator.NewPlanner(model), executor, orchestrator.NewResponder(model), recorder)

	return &runtime{
		cfg:      cfg,
		store:    st,
		calendar: cal,
		ledger:   ledger,
		gate:     gate,
		engine:   engine,
		recorder: recorder,
		mirror:   mirror,
	}, nil
}

func (rt *runtime) close() {
	if rt.mirror != nil {
		rt.mirror.Close()
	}
	rt.store.Close()
}
