package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/classify"
	"github.com/sells-group/research-agent/internal/fetch"
	"github.com/sells-group/research-agent/internal/hosts"
	"github.com/sells-group/research-agent/internal/judge"
	"github.com/sells-group/research-agent/internal/memory"
	"github.com/sells-group/research-agent/internal/policy"
	"github.com/sells-group/research-agent/internal/rank"
	"github.com/sells-group/research-agent/internal/research"
	"github.com/sells-group/research-agent/internal/search"
	"github.com/sells-group/research-agent/internal/session"
	anthropicpkg "github.com/sells-group/research-agent/pkg/anthropic"
	"github.com/sells-group/research-agent/pkg/jina"
	"github.com/sells-group/research-agent/pkg/perplexity"
)

// agentEnv holds the initialized memory, sessions, and orchestrator
// shared by the research/batch/serve commands.
type agentEnv struct {
	Memory       *memory.Memory
	Sessions     *session.Registry
	Orchestrator *research.Orchestrator

	ledger memory.Ledger
}

// Close releases resources held by the agent environment.
func (e *agentEnv) Close() {
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			zap.L().Error("close ledger failed", zap.Error(err))
		}
	}
}

// initLedger builds and migrates the reliability ledger for the
// configured driver. Callers own Close.
func initLedger(ctx context.Context) (memory.Ledger, error) {
	var ledger memory.Ledger
	switch cfg.Memory.Driver {
	case "file":
		ledger = memory.NewFileLedger(cfg.Memory.Path)
	case "sqlite":
		l, err := memory.NewSQLite(cfg.Memory.Path)
		if err != nil {
			return nil, err
		}
		ledger = l
	case "postgres":
		l, err := memory.NewPostgres(ctx, cfg.Memory.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ledger = l
	default:
		return nil, eris.Errorf("unknown memory driver %q", cfg.Memory.Driver)
	}

	if err := ledger.Migrate(ctx); err != nil {
		_ = ledger.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return ledger, nil
}

// initMemory opens the reliability store. Callers own closing the ledger.
func initMemory(ctx context.Context) (*memory.Memory, memory.Ledger, error) {
	ledger, err := initLedger(ctx)
	if err != nil {
		return nil, nil, err
	}
	return memory.Open(ctx, ledger), ledger, nil
}

// initAgent validates config for the mode, opens the ledger, wires the
// API clients, and builds the orchestrator. Callers should defer
// env.Close().
func initAgent(ctx context.Context, mode string) (*agentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	mem, ledger, err := initMemory(ctx)
	if err != nil {
		return nil, err
	}

	classifier, err := classify.New()
	if err != nil {
		_ = ledger.Close()
		return nil, err
	}

	jinaOpts := []jina.Option{jina.WithBaseURL(cfg.Jina.BaseURL)}
	if cfg.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)

	var searcher search.Searcher
	switch cfg.Search.Provider {
	case "perplexity":
		perplexityClient := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		searcher = search.NewPerplexity(perplexityClient)
	default:
		searcher = search.NewJina(jinaClient, cfg.Search.MaxAttempts,
			time.Duration(cfg.Search.RetryBaseMS)*time.Millisecond)
	}

	tracker := hosts.Open(cfg.Hosts.Path)
	chain := fetch.NewChain(fetch.NewJinaProvider(jinaClient))
	fetcher := fetch.New(chain, tracker, cfg.Fetch.QPS)

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	j := judge.New(anthropicClient, cfg.Anthropic.Model, judge.WithMaxTokens(cfg.Anthropic.MaxTokens))

	sessions := session.NewRegistry()

	orch := research.New(research.Deps{
		Classifier: classifier,
		Memory:     mem,
		Ranker:     rank.New(mem),
		Sessions:   sessions,
		Policy:     policy.New(),
		Searcher:   searcher,
		Fetcher:    fetcher,
		Assessor:   j,
		Extractor:  j,
		Complexity: j,
		Accuracy:   j,
		Hosts:      tracker,
	})

	zap.L().Info("agent initialized",
		zap.String("memory_driver", cfg.Memory.Driver),
		zap.String("search_provider", cfg.Search.Provider),
		zap.String("model", cfg.Anthropic.Model),
	)

	return &agentEnv{
		Memory:       mem,
		Sessions:     sessions,
		Orchestrator: orch,
		ledger:       ledger,
	}, nil
}
