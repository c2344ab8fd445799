// Package model adapts Genkit text generation to the conversation
// engine's completion interfaces.
package model

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/alexzhang/converse/internal/session"
)

// Generator produces completions with a Genkit model. It implements
// engine.Completer and engine.StreamCompleter.
type Generator struct {
	g         *genkit.Genkit
	modelName string
	logger    *slog.Logger
}

// NewGenerator creates a Generator for the named model, e.g.
// "googleai/gemini-2.0-flash".
func NewGenerator(g *genkit.Genkit, modelName string, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		g:         g,
		modelName: modelName,
		logger:    logger,
	}
}

// Complete generates a reply to the conversation in one shot.
func (gen *Generator) Complete(ctx context.Context, messages []session.Message) (string, error) {
	opts := gen.buildOptions(messages)

	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	return resp.Text(), nil
}

// CompleteStream generates a reply, invoking onChunk for each text
// fragment as it arrives, and returns the full reply text. An error
// from onChunk aborts generation.
func (gen *Generator) CompleteStream(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
	opts := gen.buildOptions(messages)
	opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
		if onChunk == nil {
			return nil
		}
		return onChunk(ctx, chunk.Text())
	}))

	resp, err := genkit.Generate(ctx, gen.g, opts...)
	if err != nil {
		return "", fmt.Errorf("streaming generation failed: %w", err)
	}
	return resp.Text(), nil
}

// buildOptions maps conversation history onto Genkit generate options.
// A leading system message becomes the system prompt; the rest map to
// user and model turns.
func (gen *Generator) buildOptions(messages []session.Message) []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithModelName(gen.modelName)}

	aiMessages := make([]*ai.Message, 0, len(messages))
	for i, msg := range messages {
		if i == 0 && msg.Role == session.RoleSystem {
			opts = append(opts, ai.WithSystem(msg.Content))
			continue
		}

		role := ai.RoleUser
		if msg.Role == session.RoleAssistant {
			role = ai.RoleModel
		}
		aiMessages = append(aiMessages, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(msg.Content)},
		})
	}

	if len(aiMessages) > 0 {
		opts = append(opts, ai.WithMessages(aiMessages...))
	}
	return opts
}
