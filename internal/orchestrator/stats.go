package orchestrator

import (
	"time"

	"go.uber.org/zap"
)

// Result is what happened to one problem or record during a run.
type Result string

const (
	ResultTranslated        Result = "translated"
	ResultCreated           Result = "created"
	ResultTranslationFailed Result = "translation_failed"
	ResultGenerationFailed  Result = "generation_failed"
	ResultStorageFailed     Result = "storage_failed"
)

// Outcome records the fate of one item. RecordID is zero when no record was
// created.
type Outcome struct {
	RecordID int64
	Title    string
	Result   Result
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// RunStats aggregates one run. Failed includes GenerationFailed.
type RunStats struct {
	RunID            string
	Mode             string
	Processed        int
	Succeeded        int
	Failed           int
	Created          int
	GenerationFailed int
	Elapsed          time.Duration
	Outcomes         []Outcome

	started time.Time
}

// AveragePerSuccess is the run's elapsed time divided by the number of
// successful translations, or zero when nothing succeeded.
func (s *RunStats) AveragePerSuccess() time.Duration {
	if s.Succeeded == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Succeeded)
}

func (s *RunStats) add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
}

func (s *RunStats) finish() {
	if !s.started.IsZero() {
		s.Elapsed = time.Since(s.started)
	}
}

func (s *RunStats) interrupted(log *zap.Logger, err error) (*RunStats, error) {
	s.finish()
	log.Warn("run interrupted, remaining records stay pending", append(s.fields(), zap.Error(err))...)
	return s, err
}

func (s *RunStats) fields() []zap.Field {
	return []zap.Field{
		zap.Int("processed", s.Processed),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("created", s.Created),
		zap.Int("generation_failed", s.GenerationFailed),
		zap.Duration("elapsed", s.Elapsed),
		zap.Duration("avg_per_success", s.AveragePerSuccess()),
	}
}
