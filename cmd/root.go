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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/valpere/tracetran/internal/config"
	"github.com/valpere/tracetran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string

	cfg        config.Config
	logger     = zap.NewNop()
	logCleanup = func() {}
)

// flagKeys maps command-line flags to configuration keys. A flag is bound
// only on commands that define it.
var flagKeys = map[string]string{
	"db":            "database.path",
	"log-level":     "logging.level",
	"log-dir":       "logging.dir",
	"log-format":    "logging.format",
	"backend":       "generation.backend",
	"base-url":      "generation.base_url",
	"rpm":           "generation.requests_per_minute",
	"trace-model":   "trace.model_name",
	"model":         "translation.model_name",
	"target":        "translation.target_language",
	"max-retries":   "translation.max_retries",
	"retry-delay":   "translation.retry_delay_seconds",
	"protect-code":  "translation.protect_code",
	"chunk-chars":   "translation.chunk_chars",
	"validate-lang": "translation.validate_language",
}

var rootCmd = &cobra.Command{
	Use:   "tracetran",
	Short: "Reasoning trace generator and translator",
	Long: `A CLI application that generates reasoning traces for coding problems with
a local LLM, stores them in SQLite and translates them into a target language.

Records that fail to translate stay pending and are retried by the next run.

Use "tracetran generate --help" to process a problem file and
"tracetran translate --help" to backfill pending translations.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logCleanup()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.Error("command failed", zap.Error(err))
		logCleanup()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is ./.tracetran.yaml or $HOME/.tracetran.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default leetcode_traces.db)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().String("log-dir", "", "Directory for per-run log files (default logs)")
	rootCmd.PersistentFlags().String("log-format", "", "Console log format: console or json")
}

// initConfig loads configuration for cmd and builds the shared logger.
func initConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	l, cleanup, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Dir:    cfg.Logging.Dir,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	logger, logCleanup = l, cleanup
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", zap.String("file", used))
	}
	return nil
}

// bindFlags binds only flags the user set, so unset flags never mask
// environment or file values with their zero defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.Visit(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}
