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

	"github.com/valpere/tracetran/internal/orchestrator"
	"github.com/valpere/tracetran/internal/store"
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate every pending record",
	Long: `Scan the database for records without a translation and translate them
one at a time in id order.

A record whose translation fails stays pending and is picked up by the next
run. Interrupting the command (Ctrl+C) leaves the current record pending.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Translation.Enabled {
			return fmt.Errorf("translation is disabled (translation.enabled=false)")
		}
		client, err := buildClient(cfg.Generation)
		if err != nil {
			return err
		}
		engine, err := buildEngine(client, cfg.Translation)
		if err != nil {
			return err
		}
		logger.Info("backfill configured",
			zap.String("model", cfg.Translation.ModelName),
			zap.String("language", engine.LanguageName()),
			zap.Int("max_retries", cfg.Translation.MaxRetries),
		)

		return withStore(cmd.Context(), func(ctx context.Context, db *store.Store) error {
			orch := orchestrator.New(db, engine, nil, orchestrator.Config{Logger: logger})
			stats, err := orch.Backfill(ctx)
			printRunStats(stats)
			if err != nil {
				return err
			}
			return printSummary(ctx, db)
		})
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	addGenerationFlags(translateCmd)
	addTranslationFlags(translateCmd)
}
