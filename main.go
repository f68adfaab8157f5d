package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/agent-orchestrator/agent/activity"
	"github.com/tanpawarit/agent-orchestrator/agent/agents/orchestrator"
	"github.com/tanpawarit/agent-orchestrator/agent/agents/specialist"
	"github.com/tanpawarit/agent-orchestrator/agent/classifier"
	contractx "github.com/tanpawarit/agent-orchestrator/agent/contract"
	llmx "github.com/tanpawarit/agent-orchestrator/agent/llm"
	"github.com/tanpawarit/agent-orchestrator/agent/retry"
	airtablex "github.com/tanpawarit/agent-orchestrator/pkg/airtable"
	configx "github.com/tanpawarit/agent-orchestrator/pkg/config"
	_ "github.com/tanpawarit/agent-orchestrator/pkg/logger/autoload"
	"github.com/tanpawarit/agent-orchestrator/pkg/memstore"
	openrouterx "github.com/tanpawarit/agent-orchestrator/pkg/openrouter"
	"github.com/tanpawarit/agent-orchestrator/pkg/pgstore"
	"github.com/tanpawarit/agent-orchestrator/pkg/sqlitestore"
	tracerx "github.com/tanpawarit/agent-orchestrator/pkg/tracer"
)

type AppConfig struct {
	StoreBackend    string `envconfig:"STORE_BACKEND" default:"airtable"`
	LLMClient       string `envconfig:"LLM_CLIENT" default:"sdk"`
	MilestonesTable string `envconfig:"MILESTONES_TABLE" default:"Milestones"`
}

func main() {
	agentName := flag.String("agent", "", "agent key or name for a one-shot run")
	prompt := flag.String("prompt", "", "prompt for a one-shot run")

	appCfg := configx.MustNew[AppConfig]("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	traceCfg := configx.MustNew[tracerx.Config]("TRACE")
	shutdown, err := tracerx.Setup(ctx, *traceCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("tracer setup failed")
	}
	defer shutdown(context.Background())

	store, closeStore, err := openStore(ctx, appCfg.StoreBackend)
	if err != nil {
		log.Fatal().Err(err).Str("backend", appCfg.StoreBackend).Msg("record store setup failed")
	}
	defer closeStore()

	recorder, err := activity.NewRecorder(store, *configx.MustNew[activity.Config](""))
	if err != nil {
		log.Fatal().Err(err).Msg("activity recorder setup failed")
	}

	executor, err := retry.New(*configx.MustNew[retry.Config](""), retry.WithFailureRecorder(recorder))
	if err != nil {
		log.Fatal().Err(err).Msg("retry executor setup failed")
	}

	cls, err := classifier.New(classifier.DefaultTable(), classifier.WithPromptLogger(recorder))
	if err != nil {
		log.Fatal().Err(err).Msg("classifier setup failed")
	}

	milestones, err := specialist.NewMilestones(store, appCfg.MilestonesTable)
	if err != nil {
		log.Fatal().Err(err).Msg("milestone updater setup failed")
	}

	deps := specialist.Deps{Milestones: milestones, Prompts: recorder}
	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if err := wireCompleters(ctx, appCfg.LLMClient, *llmCfg, &deps); err != nil {
		log.Fatal().Err(err).Msg("completion client setup failed")
	}

	orch, err := orchestrator.New(specialist.DefaultAgents(deps), executor, recorder, cls)
	if err != nil {
		log.Fatal().Err(err).Msg("orchestrator setup failed")
	}

	if oneShotRequested(*agentName, *prompt) {
		outcome, err := orch.RunOnce(ctx, *agentName, *prompt)
		if err != nil {
			log.Error().Err(err).Msg("one-shot run failed")
			os.Exit(1)
		}
		fmt.Println(outcome.Response)
		return
	}

	if err := orch.RunInteractive(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error().Err(err).Msg("interactive loop stopped")
	}
}

// oneShotRequested reports whether both -agent and -prompt were given. Anything
// less starts the interactive loop.
func oneShotRequested(agentName, prompt string) bool {
	return strings.TrimSpace(agentName) != "" && strings.TrimSpace(prompt) != ""
}

func openStore(ctx context.Context, backend string) (contractx.RecordStore, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "airtable":
		cfg := configx.MustNew[airtablex.Config]("AIRTABLE")
		client, err := airtablex.NewClient(*cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	case "postgres":
		cfg := configx.MustNew[pgstore.Config]("POSTGRES")
		s, err := pgstore.Open(ctx, *cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "sqlite":
		cfg := configx.MustNew[sqlitestore.Config]("SQLITE")
		s, err := sqlitestore.Open(*cfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		log.Warn().Msg("memory record store selected; activity is lost on exit")
		return memstore.New(), noop, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store backend %q", contractx.ErrConfiguration, backend)
	}
}

func wireCompleters(ctx context.Context, client string, cfg llmx.Config, deps *specialist.Deps) error {
	client = strings.ToLower(strings.TrimSpace(client))
	if client == "none" {
		return nil
	}
	if !cfg.Enabled() {
		log.Warn().Msg("OPENROUTER_API_KEY not set; ideas and summary agents reply without a model")
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	build := func(agentKey string) (contractx.Completer, error) {
		orCfg := cfg.OpenRouterFor(agentKey)
		switch client {
		case "sdk":
			return openrouterx.NewSDKCompleter(orCfg)
		case "eino":
			m, err := orCfg.New(ctx)
			if err != nil {
				return nil, err
			}
			return openrouterx.NewChatCompleter(m)
		default:
			return nil, fmt.Errorf("%w: unknown llm client %q", contractx.ErrConfiguration, client)
		}
	}

	ideas, err := build(llmx.IdeasAgentKey)
	if err != nil {
		return err
	}
	summary, err := build(llmx.SummaryAgentKey)
	if err != nil {
		return err
	}
	deps.IdeasCompleter = ideas
	deps.SummaryCompleter = summary
	return nil
}
