// Package config loads tracetran settings from a YAML file, TRACETRAN_*
// environment variables and command-line flags via viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

const EnvPrefix = "TRACETRAN"

type Config struct {
	Generation  GenerationConfig  `mapstructure:"generation"`
	Trace       TraceConfig       `mapstructure:"trace"`
	Translation TranslationConfig `mapstructure:"translation"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type GenerationConfig struct {
	Backend           string        `mapstructure:"backend"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Breaker           BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Failures int           `mapstructure:"failures"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type TraceConfig struct {
	ModelName string `mapstructure:"model_name"`
}

type TranslationConfig struct {
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds"`
	TargetLanguage    string `mapstructure:"target_language"`
	Enabled           bool   `mapstructure:"enabled"`
	ProtectCode       bool   `mapstructure:"protect_code"`
	ChunkChars        int    `mapstructure:"chunk_chars"`
	ValidateLanguage  bool   `mapstructure:"validate_language"`
}

func (t TranslationConfig) RetryDelay() time.Duration {
	return time.Duration(t.RetryDelaySeconds) * time.Second
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
)

// SetDefaults registers every key so that environment variables are picked up
// by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("generation.backend", BackendOllama)
	v.SetDefault("generation.base_url", "http://localhost:11434")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.request_timeout", 5*time.Minute)
	v.SetDefault("generation.requests_per_minute", 0)
	v.SetDefault("generation.breaker.enabled", false)
	v.SetDefault("generation.breaker.failures", 5)
	v.SetDefault("generation.breaker.cooldown", 30*time.Second)

	v.SetDefault("trace.model_name", "qwen3:8b")

	v.SetDefault("translation.model_name", "qwen3:8b")
	v.SetDefault("translation.max_retries", 3)
	v.SetDefault("translation.retry_delay_seconds", 2)
	v.SetDefault("translation.target_language", "hi")
	v.SetDefault("translation.enabled", true)
	v.SetDefault("translation.protect_code", false)
	v.SetDefault("translation.chunk_chars", 0)
	v.SetDefault("translation.validate_language", false)

	v.SetDefault("database.path", "leetcode_traces.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "logs")
	v.SetDefault("logging.format", "console")
}

// NewViper returns a viper instance with defaults and environment binding.
// cfgFile, when set, must exist; otherwise .tracetran.yaml is looked up in the
// working directory and then in the home directory, and may be absent.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".tracetran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Generation.Backend {
	case BackendOllama, BackendOpenAI:
	default:
		errs = append(errs, fmt.Errorf("generation.backend must be %q or %q, got %q", BackendOllama, BackendOpenAI, c.Generation.Backend))
	}
	if c.Generation.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("generation.request_timeout must be positive"))
	}
	if c.Generation.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("generation.requests_per_minute must not be negative"))
	}
	if c.Generation.Breaker.Enabled && c.Generation.Breaker.Failures <= 0 {
		errs = append(errs, fmt.Errorf("generation.breaker.failures must be positive"))
	}

	if strings.TrimSpace(c.Trace.ModelName) == "" {
		errs = append(errs, fmt.Errorf("trace.model_name is required"))
	}

	if strings.TrimSpace(c.Translation.ModelName) == "" {
		errs = append(errs, fmt.Errorf("translation.model_name is required"))
	}
	if c.Translation.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("translation.max_retries must be greater than 0, got %d", c.Translation.MaxRetries))
	}
	if c.Translation.RetryDelaySeconds < 0 {
		errs = append(errs, fmt.Errorf("translation.retry_delay_seconds must not be negative, got %d", c.Translation.RetryDelaySeconds))
	}
	if _, err := language.Parse(c.Translation.TargetLanguage); err != nil {
		errs = append(errs, fmt.Errorf("translation.target_language %q: %w", c.Translation.TargetLanguage, err))
	}
	if c.Translation.ChunkChars < 0 {
		errs = append(errs, fmt.Errorf("translation.chunk_chars must not be negative"))
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
