package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/alexzhang/converse/db"
	"github.com/alexzhang/converse/internal/config"
	"github.com/alexzhang/converse/internal/database"
	"github.com/alexzhang/converse/internal/engine"
	"github.com/alexzhang/converse/internal/i18n"
	"github.com/alexzhang/converse/internal/knowledge"
	"github.com/alexzhang/converse/internal/model"
	"github.com/alexzhang/converse/internal/observability"
	"github.com/alexzhang/converse/internal/ratelimit"
	"github.com/alexzhang/converse/internal/session"
)

// Setup initializes the application. On error everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	i18n.Init(cfg.Language)

	// Tracing must be registered before Genkit creates its first span.
	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Tracing.Environment,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	a.Genkit = g

	a.Sessions = session.New(session.Config{
		MaxHistory:    cfg.Session.MaxHistory,
		TTL:           cfg.Session.TTL,
		SweepInterval: cfg.Session.SweepInterval,
		MaxSessions:   cfg.Session.MaxSessions,
	}, logger)

	a.Limiter = ratelimit.New(ratelimit.DefaultIdleTTL, ratelimit.DefaultMaxKeys, logger)

	if cfg.Postgres.DSN != "" {
		idx, err := setupKnowledge(ctx, a, g, cfg)
		if err != nil {
			return nil, err
		}
		a.Knowledge = idx
	} else {
		logger.Info("no vector store configured, knowledge subsystem disabled")
	}

	gen := model.NewGenerator(g, cfg.AI.ModelName, logger)

	// The index satisfies engine.Augmenter, but a nil *Index must be
	// passed as a nil interface.
	var augmenter engine.Augmenter
	if a.Knowledge != nil {
		augmenter = a.Knowledge
	}
	a.Engine = engine.New(a.Sessions, gen, gen, augmenter, logger)

	return a, nil
}

// setupKnowledge migrates the schema, opens the pool, and builds the
// knowledge index, restoring entry metadata from whatever segments the
// vector store already holds.
func setupKnowledge(ctx context.Context, a *App, g *genkit.Genkit, cfg *config.Config) (*knowledge.Index, error) {
	if err := db.Migrate(cfg.Postgres.DSN, a.Logger); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to vector store: %w", err)
	}
	a.Pool = pool

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.AI.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.AI.EmbedderModel)
	}

	store := knowledge.NewStore(knowledge.NewPGQuerier(pool), embedder, cfg.AI.EmbedderModel, a.Logger)
	idx := knowledge.NewIndex(store, knowledge.Config{
		SegmentSize: cfg.RAG.SegmentSize,
		Overlap:     cfg.RAG.Overlap,
		TopK:        cfg.RAG.TopK,
		MinScore:    cfg.RAG.MinScore,
	}, a.Logger)

	// Metadata is process-local; recover it from the persisted
	// segments. Failure here starts the index empty, not the app dead.
	if err := idx.Bootstrap(ctx); err != nil {
		a.Logger.Warn("failed to restore knowledge entries", "error", err)
	}
	return idx, nil
}
