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

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/tracetran/internal/ingest"
	"github.com/valpere/tracetran/internal/orchestrator"
	"github.com/valpere/tracetran/internal/store"
	"github.com/valpere/tracetran/internal/tracer"
)

var (
	inputFile       string
	problemLimit    int
	skipTranslation bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate and translate reasoning traces for a problem file",
	Long: `Read coding problems from a JSON Lines file ({"title": ..., "content": ...}
per line), generate a reasoning trace for each one, store it and translate it
before moving to the next problem.

After the inline pass, every record still pending (including ones left by
earlier runs) is retried once more in a backfill pass.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		problems, err := ingest.ReadFile(inputFile, problemLimit)
		if err != nil {
			return err
		}
		if len(problems) == 0 {
			return fmt.Errorf("no problems found in %s", inputFile)
		}
		logger.Info("problems loaded", zap.String("file", inputFile), zap.Int("count", len(problems)))

		client, err := buildClient(cfg.Generation)
		if err != nil {
			return err
		}
		translate := cfg.Translation.Enabled && !skipTranslation

		var tr orchestrator.Translator
		if translate {
			engine, err := buildEngine(client, cfg.Translation)
			if err != nil {
				return err
			}
			logger.Info("translation enabled",
				zap.String("model", cfg.Translation.ModelName),
				zap.String("language", engine.LanguageName()),
			)
			tr = engine
		}
		gen := tracer.New(client, cfg.Trace.ModelName, logger)

		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			orch := orchestrator.New(db, tr, gen, orchestrator.Config{
				SkipTranslation: !translate,
				Logger:          logger,
			})

			stats, err := orch.RunInline(ctx, problems)
			printRunStats(stats)
			if err != nil {
				return err
			}

			if translate {
				stats, err = orch.Backfill(ctx)
				printRunStats(stats)
				if err != nil {
					return err
				}
			}
			return printSummary(ctx, db)
		})
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "JSON Lines file with problems (required)")
	generateCmd.Flags().IntVarP(&problemLimit, "limit", "n", 0, "Process at most this many problems (0 = all)")
	generateCmd.Flags().BoolVar(&skipTranslation, "skip-translation", false, "Only generate and store traces")
	generateCmd.Flags().String("trace-model", "", "Model used to generate reasoning traces")
	addGenerationFlags(generateCmd)
	addTranslationFlags(generateCmd)

	generateCmd.MarkFlagRequired("input")
}
