// Package translator turns English reasoning traces into the target language
// by prompting a generation service, retrying with a fixed delay until the
// service returns output that passes validation.
package translator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/valpere/tracetran/internal/chunker"
	"github.com/valpere/tracetran/internal/generation"
	"github.com/valpere/tracetran/internal/placeholder"
	"github.com/valpere/tracetran/internal/postprocess"
)

const (
	DefaultModel          = "qwen3:8b"
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 2 * time.Second
	DefaultTargetLanguage = "hi"
)

// Config controls a single Engine. Use DefaultConfig for the documented defaults.
type Config struct {
	Model          string
	MaxRetries     int
	RetryDelay     time.Duration
	TargetLanguage string // BCP 47 tag, e.g. "hi"

	// ProtectCode swaps code spans for [PHn] markers before translation.
	ProtectCode bool
	// ChunkChars splits traces longer than this many runes; 0 disables chunking.
	ChunkChars int

	Logger *zap.Logger
}

func DefaultConfig() Config {
	return Config{
		Model:          DefaultModel,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
		TargetLanguage: DefaultTargetLanguage,
	}
}

// LanguageValidator reports whether text is written in lang (ISO 639-1).
type LanguageValidator interface {
	IsValid(text, lang string) (bool, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Engine)

// WithValidator rejects responses that are not in the target language.
func WithValidator(v LanguageValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithSleep replaces the delay between attempts.
func WithSleep(fn SleepFunc) Option {
	return func(e *Engine) { e.sleep = fn }
}

// Engine translates reasoning traces. It is safe for concurrent use when its
// client and validator are.
type Engine struct {
	client    generation.Client
	cfg       Config
	langCode  string
	langName  string
	validator LanguageValidator
	sleep     SleepFunc
	logger    *zap.Logger
}

func New(client generation.Client, cfg Config, opts ...Option) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("translator: client is nil")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("translator: model name is empty")
	}
	if cfg.MaxRetries <= 0 {
		return nil, fmt.Errorf("translator: max retries must be positive, got %d", cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("translator: retry delay must not be negative, got %s", cfg.RetryDelay)
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = DefaultTargetLanguage
	}
	tag, err := language.Parse(cfg.TargetLanguage)
	if err != nil {
		return nil, fmt.Errorf("translator: invalid target language %q: %w", cfg.TargetLanguage, err)
	}
	base, _ := tag.Base()

	e := &Engine{
		client:   client,
		cfg:      cfg,
		langCode: base.String(),
		langName: display.English.Tags().Name(tag),
		sleep:    sleepContext,
		logger:   cfg.Logger,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// LanguageName is the English name of the target language, e.g. "Hindi".
func (e *Engine) LanguageName() string {
	return e.langName
}

// Translate returns the translation of text. label identifies the trace in
// logs. Any returned error is a *Failure; transient service errors never
// escape as anything else.
func (e *Engine) Translate(ctx context.Context, text, label string) (Translation, error) {
	start := time.Now()
	log := e.logger.With(zap.String("label", label))

	text = strings.TrimSpace(text)
	if text == "" {
		return Translation{}, &Failure{
			Kind:   FailureExhaustedRetries,
			Detail: "nothing to translate",
		}
	}

	chunks := chunker.Chunk(text, e.cfg.ChunkChars)
	if len(chunks) > 1 {
		log.Info("trace split into chunks", zap.Int("chunks", len(chunks)), zap.Int("chars", len([]rune(text))))
	}

	out := make([]string, 0, len(chunks))
	attempts := 0
	for i, chunk := range chunks {
		translated, n, err := e.translateChunk(ctx, chunk, log.With(zap.Int("chunk", i+1)))
		attempts += n
		if err != nil {
			err.Attempts = attempts
			if len(chunks) > 1 {
				err.Detail = fmt.Sprintf("chunk %d/%d: %s", i+1, len(chunks), err.Detail)
			}
			log.Warn("translation failed",
				zap.String("kind", err.Kind.String()),
				zap.Int("attempts", attempts),
				zap.Error(err.Err),
			)
			return Translation{}, err
		}
		out = append(out, translated)
	}

	result := Translation{
		Text:     chunker.Join(out),
		Attempts: attempts,
		Chunks:   len(chunks),
		Elapsed:  time.Since(start),
	}
	log.Info("translation completed",
		zap.Int("attempts", attempts),
		zap.Int("input_chars", len([]rune(text))),
		zap.Int("output_chars", len([]rune(result.Text))),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// translateChunk runs the retry loop for one piece of text and reports how
// many calls it made to the client.
func (e *Engine) translateChunk(ctx context.Context, text string, log *zap.Logger) (string, int, *Failure) {
	protected := placeholder.Protected{Text: text}
	if e.cfg.ProtectCode {
		protected = placeholder.Protect(text)
	}
	prompt := e.buildPrompt(protected.Text, len(protected.Markers) > 0)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempts++
		log.Debug("translation attempt",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxRetries),
			zap.String("model", e.cfg.Model),
		)

		raw, err := e.client.Generate(ctx, e.cfg.Model, prompt)
		if err == nil {
			var accepted string
			accepted, err = e.accept(raw, prompt, protected)
			if err == nil {
				return accepted, attempts, nil
			}
		}
		lastErr = err
		log.Warn("translation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.cfg.MaxRetries),
			zap.Error(err),
		)

		if attempt < e.cfg.MaxRetries {
			if err := e.sleep(ctx, e.cfg.RetryDelay); err != nil {
				lastErr = err
				break
			}
		}
	}
	return "", attempts, classify(lastErr, attempts)
}

// accept validates one raw response and returns the text to keep. Output
// equal to the input text or to the whole prompt is an echo, not a translation.
func (e *Engine) accept(raw, prompt string, protected placeholder.Protected) (string, error) {
	input := strings.TrimSpace(protected.Text)
	if strings.TrimSpace(raw) == input {
		return "", fmt.Errorf("%w: output is identical to input", generation.ErrInvalidResponse)
	}
	out := postprocess.CleanTrace(raw, protected.Text)
	if out == "" {
		return "", fmt.Errorf("%w: empty translation", generation.ErrInvalidResponse)
	}
	// Cleaning may strip quotes or a "Translation:" prefix that belong to the
	// input itself, so the cleaned input is compared as well.
	if out == input || out == postprocess.CleanTrace(input, input) || out == strings.TrimSpace(prompt) {
		return "", fmt.Errorf("%w: output is identical to input", generation.ErrInvalidResponse)
	}
	if missing := protected.Missing(out); len(missing) > 0 {
		return "", fmt.Errorf("%w: %d code marker(s) lost", generation.ErrInvalidResponse, len(missing))
	}
	if e.validator != nil {
		if ok, err := e.validator.IsValid(out, e.langCode); !ok {
			return "", fmt.Errorf("%w: %v", generation.ErrInvalidResponse, err)
		}
	}
	return protected.Restore(out), nil
}

func (e *Engine) buildPrompt(text string, hasMarkers bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following is a reasoning trace for a coding problem. Translate it accurately from English to %s "+
		"while maintaining the technical terminology and logical flow. Do not use difficult %s words. "+
		"Use simple %s and keep English words wherever technical terms are used.",
		e.langName, e.langName, e.langName)
	if hasMarkers {
		b.WriteString(" ")
		b.WriteString(placeholder.InstructionHint())
	}
	fmt.Fprintf(&b, " Provide only the %s translation without any additional text or explanations.\n\n", e.langName)
	fmt.Fprintf(&b, "English text:\n%s\n\n%s translation:", text, e.langName)
	return b.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
