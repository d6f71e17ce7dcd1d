// Package tracer generates English reasoning traces for coding problems.
package tracer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valpere/tracetran/internal/generation"
)

const DefaultModel = "qwen3:8b"

// Generator asks a model for its step-by-step reasoning about a problem,
// without a solution. The "/think" prefix switches qwen3 into thinking mode,
// so the returned trace normally starts with a <think> block.
type Generator struct {
	client generation.Client
	model  string
	logger *zap.Logger
}

func New(client generation.Client, model string, logger *zap.Logger) *Generator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{client: client, model: model, logger: logger}
}

// Generate makes exactly one call to the generation service.
func (g *Generator) Generate(ctx context.Context, content string) (string, error) {
	start := time.Now()
	out, err := g.client.Generate(ctx, g.model, buildPrompt(content))
	if err != nil {
		g.logger.Error("trace generation failed",
			zap.String("model", g.model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", fmt.Errorf("generate trace: %w", err)
	}

	trace := strings.TrimSpace(out)
	if trace == "" {
		return "", fmt.Errorf("generate trace: %w: empty trace", generation.ErrInvalidResponse)
	}

	g.logger.Info("trace generated",
		zap.String("model", g.model),
		zap.Int("chars", len([]rune(trace))),
		zap.Duration("elapsed", time.Since(start)),
	)
	return trace, nil
}

func buildPrompt(content string) string {
	return "/think Given the following coding problem, provide only the reasoning trace - " +
		"your step-by-step thought process to understand and approach the problem. " +
		"Do NOT provide the actual solution or code.\n\n" +
		"Problem:\n" + strings.TrimSpace(content) + "\n\n" +
		"Please provide your reasoning trace - the logical steps you would take to understand and approach this problem:"
}
