// Package app assembles the application: configuration, logging,
// tracing, the model provider, the optional vector store, and the
// conversation engine.
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alexzhang/converse/internal/config"
	"github.com/alexzhang/converse/internal/engine"
	"github.com/alexzhang/converse/internal/knowledge"
	"github.com/alexzhang/converse/internal/ratelimit"
	"github.com/alexzhang/converse/internal/session"
)

// App holds the initialized components. Call Close to release them.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Genkit    *genkit.Genkit
	Pool      *pgxpool.Pool // nil without a configured vector store
	Sessions  *session.Store
	Limiter   *ratelimit.Limiter
	Engine    *engine.Engine
	Knowledge *knowledge.Index // nil without a configured vector store

	otelShutdown func(context.Context) error
}

// Close releases resources in reverse initialization order. Safe to
// call after a partial Setup failure.
func (a *App) Close() error {
	var firstErr error

	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("shutting down tracer provider", "error", err)
		}
	}
	return firstErr
}
