/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/tracetran/internal/config"
	"github.com/valpere/tracetran/internal/generation"
	"github.com/valpere/tracetran/internal/orchestrator"
	"github.com/valpere/tracetran/internal/store"
	"github.com/valpere/tracetran/internal/translator"
	"github.com/valpere/tracetran/internal/validator"
)

// addGenerationFlags registers the flags shared by commands that call the
// generation service.
func addGenerationFlags(cmd *cobra.Command) {
	cmd.Flags().String("backend", "", "Generation backend: ollama or openai")
	cmd.Flags().String("base-url", "", "Generation service base URL")
	cmd.Flags().Int("rpm", 0, "Maximum generation requests per minute (0 = unlimited)")
}

// addTranslationFlags registers the flags that shape the translation engine.
func addTranslationFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "Translation model name")
	cmd.Flags().StringP("target", "t", "", "Target language code (BCP 47)")
	cmd.Flags().Int("max-retries", 0, "Total attempts per record including the first")
	cmd.Flags().Int("retry-delay", 0, "Seconds to wait between attempts")
	cmd.Flags().Bool("protect-code", false, "Keep code spans out of the translation prompt")
	cmd.Flags().Int("chunk-chars", 0, "Split traces longer than this many characters (0 = off)")
	cmd.Flags().Bool("validate-lang", false, "Reject translations detected as another language")
}

// buildClient constructs the generation client with the configured
// throttle and circuit breaker.
func buildClient(c config.GenerationConfig) (generation.Client, error) {
	var base generation.Client
	switch c.Backend {
	case config.BackendOllama:
		base = generation.NewOllamaClient(c.BaseURL, c.RequestTimeout)
	case config.BackendOpenAI:
		base = generation.NewOpenAIClient(c.APIKey, c.BaseURL, c.RequestTimeout)
	default:
		return nil, fmt.Errorf("unknown generation backend: %s", c.Backend)
	}

	opts := generation.Options{RequestsPerMinute: c.RequestsPerMinute}
	if c.Breaker.Enabled {
		opts.Breaker = &generation.BreakerConfig{
			Failures: uint32(c.Breaker.Failures),
			Cooldown: c.Breaker.Cooldown,
		}
	}
	return generation.Wrap(base, opts), nil
}

func buildEngine(client generation.Client, c config.TranslationConfig) (*translator.Engine, error) {
	var opts []translator.Option
	if c.ValidateLanguage {
		logger.Info("loading language detector")
		opts = append(opts, translator.WithValidator(validator.New()))
	}
	return translator.New(client, translator.Config{
		Model:          c.ModelName,
		MaxRetries:     c.MaxRetries,
		RetryDelay:     c.RetryDelay(),
		TargetLanguage: c.TargetLanguage,
		ProtectCode:    c.ProtectCode,
		ChunkChars:     c.ChunkChars,
		Logger:         logger,
	}, opts...)
}

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	db, err := store.New(cfg.Database.Path, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, db)
}

func printRunStats(stats *orchestrator.RunStats) {
	if stats == nil {
		return
	}
	fmt.Printf("Run %s (%s)\n", stats.RunID, stats.Mode)
	if stats.Mode == "inline" {
		fmt.Printf("Records created: %d\n", stats.Created)
		fmt.Printf("Generation failures: %d\n", stats.GenerationFailed)
	}
	fmt.Printf("Processed: %d\n", stats.Processed)
	fmt.Printf("Succeeded: %d\n", stats.Succeeded)
	fmt.Printf("Failed: %d\n", stats.Failed)
	fmt.Printf("Elapsed: %s\n", stats.Elapsed.Round(time.Millisecond))
	if stats.Succeeded > 0 {
		fmt.Printf("Average per success: %s\n", stats.AveragePerSuccess().Round(time.Millisecond))
	}
}

func printSummary(ctx context.Context, db *store.Store) error {
	sum, err := db.StatusSummary(ctx)
	if err != nil {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Total", "Completed", "Pending", "Inconsistent"})
	tw.AppendRow(table.Row{sum.Total, sum.Completed, sum.Pending, sum.Inconsistent})
	tw.Render()
	if sum.Inconsistent > 0 {
		logger.Warn("records with mismatched status and translation", zap.Int("count", sum.Inconsistent))
	}
	return nil
}
