// Package orchestrator drives the trace pipeline: it creates records for new
// problems, translates pending records one at a time and writes successful
// translations back to the store.
//
// A failed record never stops a run. It stays pending and is picked up by the
// next backfill.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/tracetran/internal"
	"github.com/valpere/tracetran/internal/store"
	"github.com/valpere/tracetran/internal/translator"
)

type Store interface {
	Create(ctx context.Context, rec store.Record) (int64, error)
	FetchUntranslated(ctx context.Context) ([]store.Record, error)
	ApplyTranslation(ctx context.Context, id int64, text string) error
}

type Translator interface {
	Translate(ctx context.Context, text, label string) (translator.Translation, error)
}

type TraceGenerator interface {
	Generate(ctx context.Context, content string) (string, error)
}

type Config struct {
	// SkipTranslation makes inline runs only generate and store traces.
	SkipTranslation bool
	Logger          *zap.Logger
}

type Orchestrator struct {
	store      Store
	translator Translator
	tracer     TraceGenerator
	config     Config
	logger     *zap.Logger
}

// New builds an Orchestrator. tracer may be nil when only Backfill is used.
func New(st Store, tr Translator, tracer TraceGenerator, config Config) *Orchestrator {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		store:      st,
		translator: tr,
		tracer:     tracer,
		config:     config,
		logger:     logger,
	}
}

// RunInline generates a trace for each problem, stores it and translates it
// before moving to the next problem.
func (o *Orchestrator) RunInline(ctx context.Context, problems []internal.Problem) (*RunStats, error) {
	if o.tracer == nil {
		return nil, errors.New("orchestrator: inline mode needs a trace generator")
	}
	stats, log := o.startRun("inline")

	log.Info("inline run started", zap.Int("problems", len(problems)))
	for i, p := range problems {
		if err := ctx.Err(); err != nil {
			return stats.interrupted(log, err)
		}
		plog := log.With(zap.Int("problem", i+1), zap.String("title", p.Title))

		trace, err := o.tracer.Generate(ctx, p.Content)
		if err != nil {
			if ctx.Err() != nil {
				return stats.interrupted(log, ctx.Err())
			}
			stats.Processed++
			stats.Failed++
			stats.GenerationFailed++
			stats.add(Outcome{Title: p.Title, Result: ResultGenerationFailed, Err: err})
			plog.Warn("trace generation failed, problem skipped", zap.Error(err))
			continue
		}

		id, err := o.store.Create(ctx, store.Record{Title: p.Title, Content: p.Content, PrimaryTrace: trace})
		if err != nil {
			stats.Processed++
			stats.Failed++
			stats.add(Outcome{Title: p.Title, Result: ResultStorageFailed, Err: err})
			plog.Error("failed to store record", zap.Error(err))
			continue
		}
		stats.Created++
		plog.Info("record created", zap.Int64("id", id))

		if o.config.SkipTranslation || o.translator == nil {
			stats.Processed++
			stats.add(Outcome{RecordID: id, Title: p.Title, Result: ResultCreated})
			continue
		}
		if err := o.process(ctx, stats, plog, id, p.Title, trace); err != nil {
			return stats.interrupted(log, err)
		}
	}

	stats.finish()
	log.Info("inline run finished", stats.fields()...)
	return stats, nil
}

// Backfill translates every untranslated record in id order. Only a failure
// to list records ends the run early with an error.
func (o *Orchestrator) Backfill(ctx context.Context) (*RunStats, error) {
	if o.translator == nil {
		return nil, errors.New("orchestrator: backfill needs a translator")
	}
	stats, log := o.startRun("backfill")

	records, err := o.store.FetchUntranslated(ctx)
	if err != nil {
		stats.finish()
		log.Error("failed to fetch untranslated records", zap.Error(err))
		return stats, err
	}
	log.Info("backfill started", zap.Int("pending", len(records)))

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return stats.interrupted(log, err)
		}
		rlog := log.With(zap.Int("record", i+1), zap.Int("of", len(records)), zap.Int64("id", r.ID), zap.String("title", r.Title))
		if err := o.process(ctx, stats, rlog, r.ID, r.Title, r.PrimaryTrace); err != nil {
			return stats.interrupted(log, err)
		}
	}

	stats.finish()
	log.Info("backfill finished", stats.fields()...)
	return stats, nil
}

// process translates one record and applies the result. It returns an error
// only when ctx is done; the record is then left untouched and uncounted.
func (o *Orchestrator) process(ctx context.Context, stats *RunStats, log *zap.Logger, id int64, title, trace string) error {
	start := time.Now()

	tr, err := o.translator.Translate(ctx, trace, title)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		stats.Processed++
		stats.Failed++
		out := Outcome{RecordID: id, Title: title, Result: ResultTranslationFailed, Err: err, Elapsed: time.Since(start)}
		if f, ok := translator.AsFailure(err); ok {
			out.Attempts = f.Attempts
			log.Warn("translation failed, record left pending",
				zap.String("kind", f.Kind.String()),
				zap.Int("attempts", f.Attempts),
				zap.String("detail", f.Detail),
			)
		} else {
			log.Warn("translation failed, record left pending", zap.Error(err))
		}
		stats.add(out)
		return nil
	}

	if err := o.store.ApplyTranslation(ctx, id, tr.Text); err != nil {
		stats.Processed++
		stats.Failed++
		stats.add(Outcome{RecordID: id, Title: title, Result: ResultStorageFailed, Attempts: tr.Attempts, Err: err, Elapsed: time.Since(start)})
		if errors.Is(err, store.ErrNotFound) {
			log.Error("record vanished before translation was applied", zap.Error(err))
		} else {
			log.Error("failed to apply translation", zap.Error(err))
		}
		return nil
	}

	elapsed := time.Since(start)
	stats.Processed++
	stats.Succeeded++
	stats.add(Outcome{RecordID: id, Title: title, Result: ResultTranslated, Attempts: tr.Attempts, Elapsed: elapsed})
	log.Info("record translated", zap.Int("attempts", tr.Attempts), zap.Duration("elapsed", elapsed))
	return nil
}

func (o *Orchestrator) startRun(mode string) (*RunStats, *zap.Logger) {
	stats := &RunStats{RunID: uuid.NewString(), Mode: mode, started: time.Now()}
	return stats, o.logger.With(zap.String("run_id", stats.RunID), zap.String("mode", mode))
}
