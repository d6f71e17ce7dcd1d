package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/tracetran/internal"
	"github.com/valpere/tracetran/internal/generation"
	"github.com/valpere/tracetran/internal/store"
	"github.com/valpere/tracetran/internal/translator"
)

// memStore is an in-memory Store.
type memStore struct {
	records    []store.Record
	applyCalls atomic.Int32
	fetchErr   error
	createErr  error
	applyErr   error
}

func (m *memStore) Create(ctx context.Context, rec store.Record) (int64, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	rec.ID = int64(len(m.records) + 1)
	rec.Status = store.StatusPending
	m.records = append(m.records, rec)
	return rec.ID, nil
}

func (m *memStore) FetchUntranslated(ctx context.Context) ([]store.Record, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []store.Record
	for _, r := range m.records {
		if r.Status == store.StatusPending || !r.TranslatedTrace.Valid {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ApplyTranslation(ctx context.Context, id int64, text string) error {
	m.applyCalls.Add(1)
	if m.applyErr != nil {
		return m.applyErr
	}
	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Status = store.StatusCompleted
			m.records[i].TranslatedTrace.String = text
			m.records[i].TranslatedTrace.Valid = true
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", store.ErrNotFound, id)
}

// fakeTranslator fails for traces listed in failFor and prefixes the rest.
type fakeTranslator struct {
	failFor map[string]bool
	calls   atomic.Int32
	onCall  func()
}

func (f *fakeTranslator) Translate(ctx context.Context, text, label string) (translator.Translation, error) {
	f.calls.Add(1)
	if f.onCall != nil {
		f.onCall()
	}
	if f.failFor[text] {
		return translator.Translation{}, &translator.Failure{
			Kind:     translator.FailureExhaustedRetries,
			Detail:   "output is identical to input",
			Attempts: 3,
		}
	}
	return translator.Translation{Text: "अनुवाद: " + label, Attempts: 1}, nil
}

type fakeTracer struct {
	failFor map[string]bool
}

func (f *fakeTracer) Generate(ctx context.Context, content string) (string, error) {
	if f.failFor[content] {
		return "", fmt.Errorf("%w: connection refused", generation.ErrServiceUnavailable)
	}
	return "trace for " + content, nil
}

func pendingRecords(titles ...string) *memStore {
	m := &memStore{}
	for _, t := range titles {
		_, _ = m.Create(context.Background(), store.Record{Title: t, Content: t, PrimaryTrace: "trace " + t})
	}
	return m
}

func TestBackfill_AllSucceed(t *testing.T) {
	st := pendingRecords("a", "b", "c")
	tr := &fakeTranslator{}

	stats, err := New(st, tr, nil, Config{}).Backfill(context.Background())

	require.NoError(t, err)
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, "backfill", stats.Mode)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 3, stats.Succeeded)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, int32(3), st.applyCalls.Load())
	for _, r := range st.records {
		assert.Equal(t, store.StatusCompleted, r.Status)
	}
	assert.Equal(t, []Result{ResultTranslated, ResultTranslated, ResultTranslated}, results(stats))
}

func TestBackfill_FailureIsNonFatal(t *testing.T) {
	st := pendingRecords("a", "b", "c")
	tr := &fakeTranslator{failFor: map[string]bool{"trace b": true}}

	stats, err := New(st, tr, nil, Config{}).Backfill(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, int32(2), st.applyCalls.Load(), "failed translations are never applied")
	assert.Equal(t, store.StatusPending, st.records[1].Status)

	failed := stats.Outcomes[1]
	assert.Equal(t, ResultTranslationFailed, failed.Result)
	assert.Equal(t, int64(2), failed.RecordID)
	assert.Equal(t, 3, failed.Attempts)
}

func TestBackfill_FetchErrorIsFatal(t *testing.T) {
	st := &memStore{fetchErr: &store.StorageError{Op: "fetch untranslated", Err: errors.New("disk I/O error")}}
	tr := &fakeTranslator{}

	stats, err := New(st, tr, nil, Config{}).Backfill(context.Background())

	assert.ErrorIs(t, err, store.ErrStorage)
	require.NotNil(t, stats)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, tr.calls.Load())
}

func TestBackfill_ApplyErrorIsNonFatal(t *testing.T) {
	st := pendingRecords("a", "b")
	st.applyErr = &store.StorageError{Op: "apply translation", Err: errors.New("database is locked")}

	stats, err := New(st, &fakeTranslator{}, nil, Config{}).Backfill(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, []Result{ResultStorageFailed, ResultStorageFailed}, results(stats))
}

func TestBackfill_Cancelled(t *testing.T) {
	st := pendingRecords("a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTranslator{}
	tr.onCall = func() {
		if tr.calls.Load() == 1 {
			cancel()
		}
	}

	stats, err := New(st, tr, nil, Config{}).Backfill(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.Succeeded, "the in-flight record finished before the loop noticed")
	assert.Equal(t, int32(1), tr.calls.Load())
	assert.Equal(t, store.StatusPending, st.records[1].Status)
}

func TestBackfill_NothingPending(t *testing.T) {
	stats, err := New(&memStore{}, &fakeTranslator{}, nil, Config{}).Backfill(context.Background())

	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
	assert.Zero(t, stats.AveragePerSuccess())
}

func TestRunInline(t *testing.T) {
	st := &memStore{}
	tr := &fakeTranslator{failFor: map[string]bool{"trace for c2": true}}
	tracer := &fakeTracer{failFor: map[string]bool{"c3": true}}
	problems := []internal.Problem{
		{Title: "one", Content: "c1"},
		{Title: "two", Content: "c2"},
		{Title: "three", Content: "c3"},
	}

	stats, err := New(st, tr, tracer, Config{}).RunInline(context.Background(), problems)

	require.NoError(t, err)
	assert.Equal(t, "inline", stats.Mode)
	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 1, stats.GenerationFailed)
	assert.Equal(t, []Result{ResultTranslated, ResultTranslationFailed, ResultGenerationFailed}, results(stats))

	require.Len(t, st.records, 2)
	assert.Equal(t, store.StatusCompleted, st.records[0].Status)
	assert.Equal(t, "अनुवाद: one", st.records[0].TranslatedTrace.String)
	assert.Equal(t, store.StatusPending, st.records[1].Status)
}

func TestRunInline_SkipTranslation(t *testing.T) {
	st := &memStore{}
	tr := &fakeTranslator{}
	problems := []internal.Problem{{Title: "one", Content: "c1"}}

	stats, err := New(st, tr, &fakeTracer{}, Config{SkipTranslation: true}).RunInline(context.Background(), problems)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Zero(t, tr.calls.Load())
	assert.Equal(t, []Result{ResultCreated}, results(stats))
}

func TestRunInline_CreateError(t *testing.T) {
	st := &memStore{createErr: &store.StorageError{Op: "create", Err: errors.New("title is required")}}
	tr := &fakeTranslator{}

	stats, err := New(st, tr, &fakeTracer{}, Config{}).RunInline(context.Background(), []internal.Problem{{Title: "x", Content: "c"}})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, stats.Created)
	assert.Zero(t, tr.calls.Load())
}

func TestRunInline_NeedsTracer(t *testing.T) {
	_, err := New(&memStore{}, &fakeTranslator{}, nil, Config{}).RunInline(context.Background(), nil)

	assert.Error(t, err)
}

func TestRunStats_AveragePerSuccess(t *testing.T) {
	s := &RunStats{Succeeded: 4, Elapsed: 8 * time.Second}

	assert.Equal(t, 2*time.Second, s.AveragePerSuccess())
}

// The scenarios below run against a real SQLite store and translation engine.

func newPipeline(t *testing.T, client generation.Client) (*Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "traces.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine, err := translator.New(client, translator.DefaultConfig(),
		translator.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }))
	require.NoError(t, err)

	return New(st, engine, &fakeTracer{}, Config{}), st
}

func TestPipeline_TwoSumTranslated(t *testing.T) {
	var calls atomic.Int32
	client := generation.ClientFunc(func(ctx context.Context, model, prompt string) (string, error) {
		calls.Add(1)
		return "दो संख्याओं का योग", nil
	})
	o, st := newPipeline(t, client)

	stats, err := o.RunInline(context.Background(), []internal.Problem{{Title: "Two Sum", Content: "..."}})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, int32(1), calls.Load())

	rec, err := st.Get(context.Background(), stats.Outcomes[0].RecordID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
	assert.Equal(t, "दो संख्याओं का योग", rec.TranslatedTrace.String)
	assert.True(t, rec.TranslatedAt.Valid)
}

func TestPipeline_AllAttemptsFail(t *testing.T) {
	var calls atomic.Int32
	client := generation.ClientFunc(func(ctx context.Context, model, prompt string) (string, error) {
		calls.Add(1)
		return "", fmt.Errorf("%w: connection refused", generation.ErrServiceUnavailable)
	})
	o, st := newPipeline(t, client)

	stats, err := o.RunInline(context.Background(), []internal.Problem{{Title: "Two Sum", Content: "..."}})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, int32(3), calls.Load())

	rec, err := st.Get(context.Background(), stats.Outcomes[0].RecordID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, rec.Status)
	assert.False(t, rec.TranslatedTrace.Valid)

	sum, err := st.StatusSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.Summary{Total: 1, Pending: 1}, sum)
}

func TestPipeline_ThirdAttemptSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := generation.ClientFunc(func(ctx context.Context, model, prompt string) (string, error) {
		if calls.Add(1) < 3 {
			return "", fmt.Errorf("%w: status 503", generation.ErrServiceUnavailable)
		}
		return "दो संख्याओं का योग", nil
	})
	o, st := newPipeline(t, client)

	stats, err := o.RunInline(context.Background(), []internal.Problem{{Title: "Two Sum", Content: "..."}})

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Succeeded)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 3, stats.Outcomes[0].Attempts)

	rec, err := st.Get(context.Background(), stats.Outcomes[0].RecordID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, rec.Status)
}

func TestPipeline_BackfillResumesPending(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	client := generation.ClientFunc(func(ctx context.Context, model, prompt string) (string, error) {
		if failing.Load() {
			return "", fmt.Errorf("%w: connection refused", generation.ErrServiceUnavailable)
		}
		return "अनुवाद", nil
	})
	o, st := newPipeline(t, client)
	ctx := context.Background()

	_, err := o.RunInline(ctx, []internal.Problem{{Title: "a", Content: "1"}, {Title: "b", Content: "2"}})
	require.NoError(t, err)

	failing.Store(false)
	stats, err := o.Backfill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Succeeded)

	again, err := o.Backfill(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Processed, "completed records are not picked up again")

	sum, err := st.StatusSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, store.Summary{Total: 2, Completed: 2}, sum)
}

func results(stats *RunStats) []Result {
	out := make([]Result, 0, len(stats.Outcomes))
	for _, o := range stats.Outcomes {
		out = append(out, o.Result)
	}
	return out
}
