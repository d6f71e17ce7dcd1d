// Package store persists reasoning-trace records and their translation state
// in SQLite.
//
// The table layout matches databases written by the earlier Python pipeline
// (table leetcode_reasoning), so an existing leetcode_traces.db can be resumed.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Status is the translation state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Record is one problem with its primary trace and translation state.
type Record struct {
	ID              int64
	Title           string
	Content         string
	PrimaryTrace    string
	TranslatedTrace sql.NullString
	Status          Status
	CreatedAt       time.Time
	TranslatedAt    sql.NullTime
}

// Summary holds aggregate counts over all records.
type Summary struct {
	Total     int
	Completed int
	// Pending counts the records FetchUntranslated would return.
	Pending int
	// Inconsistent counts records whose status disagrees with whether a
	// translation is stored.
	Inconsistent int
}

var (
	ErrNotFound = errors.New("record not found")
	ErrStorage  = errors.New("storage error")
)

// StorageError reports a failed persistence operation. It matches ErrStorage
// with errors.Is and unwraps to the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for created_at and translated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is a single-writer record store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

const busyTimeoutMs = 5000

func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "migrate", Err: err}
	}
	s.logger.Debug("store opened", zap.String("path", dbPath))
	return s, nil
}

func dsn(dbPath string) string {
	if dbPath == ":memory:" || strings.HasPrefix(dbPath, "file:") {
		return dbPath
	}
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_time_format=sqlite", dbPath, busyTimeoutMs)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS leetcode_reasoning (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL CHECK (length(trim(title)) > 0),
		content TEXT NOT NULL CHECK (length(trim(content)) > 0),
		trace_en_with_think TEXT NOT NULL CHECK (length(trim(trace_en_with_think)) > 0),
		trace_hi_with_think TEXT,
		translation_status TEXT NOT NULL DEFAULT 'pending' CHECK (translation_status IN ('pending', 'completed')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		translated_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reasoning_status ON leetcode_reasoning(translation_status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a pending record and returns its id. ID, Status,
// TranslatedTrace and timestamps on rec are ignored.
func (s *Store) Create(ctx context.Context, rec Record) (int64, error) {
	for _, f := range []struct{ name, value string }{
		{"title", rec.Title},
		{"content", rec.Content},
		{"primary trace", rec.PrimaryTrace},
	} {
		if strings.TrimSpace(f.value) == "" {
			return 0, &StorageError{Op: "create", Err: fmt.Errorf("%s is required", f.name)}
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leetcode_reasoning (title, content, trace_en_with_think, translation_status, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Title, rec.Content, rec.PrimaryTrace, StatusPending, s.now())
	if err != nil {
		return 0, &StorageError{Op: "create", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, &StorageError{Op: "create", Err: err}
	}

	s.logger.Debug("record created", zap.Int64("id", id), zap.String("title", rec.Title))
	return id, nil
}

// FetchUntranslated returns every record that is pending or has no stored
// translation, in id order. Each call reads current state.
func (s *Store) FetchUntranslated(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+`
		WHERE translation_status = 'pending' OR trace_hi_with_think IS NULL
		ORDER BY id ASC`)
	if err != nil {
		return nil, &StorageError{Op: "fetch untranslated", Err: err}
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, &StorageError{Op: "fetch untranslated", Err: err}
	}

	for _, r := range records {
		if inconsistent(r) {
			s.logger.Warn("record status disagrees with stored translation",
				zap.Int64("id", r.ID),
				zap.String("status", string(r.Status)),
				zap.Bool("has_translation", r.TranslatedTrace.Valid),
			)
		}
	}
	return records, nil
}

// ApplyTranslation stores text as the translation of record id and marks it
// completed. Reapplying overwrites translated_at.
func (s *Store) ApplyTranslation(ctx context.Context, id int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return &StorageError{Op: "apply translation", Err: fmt.Errorf("translation for record %d is empty", id)}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leetcode_reasoning SET trace_hi_with_think = ?, translation_status = ?, translated_at = ? WHERE id = ?`,
		text, StatusCompleted, s.now(), id)
	if err != nil {
		return &StorageError{Op: "apply translation", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StorageError{Op: "apply translation", Err: err}
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	s.logger.Debug("translation applied", zap.Int64("id", id), zap.Int("chars", len([]rune(text))))
	return nil
}

func (s *Store) Get(ctx context.Context, id int64) (Record, error) {
	rows, err := s.db.QueryContext(ctx, selectRecord+` WHERE id = ?`, id)
	if err != nil {
		return Record{}, &StorageError{Op: "get", Err: err}
	}
	records, err := scanRecords(rows)
	if err != nil {
		return Record{}, &StorageError{Op: "get", Err: err}
	}
	if len(records) == 0 {
		return Record{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return records[0], nil
}

// List returns the newest limit records in ascending id order. limit <= 0
// returns all records.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRecord+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	slices.Reverse(records)
	return records, nil
}

// StatusSummary counts records on demand.
func (s *Store) StatusSummary(ctx context.Context) (Summary, error) {
	var sum Summary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN translation_status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN translation_status = 'pending' OR trace_hi_with_think IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE
				WHEN translation_status = 'completed' AND (trace_hi_with_think IS NULL OR trace_hi_with_think = '') THEN 1
				WHEN translation_status <> 'completed' AND trace_hi_with_think IS NOT NULL AND trace_hi_with_think <> '' THEN 1
				ELSE 0 END), 0)
		FROM leetcode_reasoning`).Scan(
		&sum.Total,
		&sum.Completed,
		&sum.Pending,
		&sum.Inconsistent,
	)
	if err != nil {
		return Summary{}, &StorageError{Op: "status summary", Err: err}
	}
	return sum, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const selectRecord = `
	SELECT id, title, content, trace_en_with_think, trace_hi_with_think, translation_status, created_at, translated_at
	FROM leetcode_reasoning`

func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var status string
		if err := rows.Scan(&r.ID, &r.Title, &r.Content, &r.PrimaryTrace, &r.TranslatedTrace, &status, &r.CreatedAt, &r.TranslatedAt); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

// inconsistent reports whether the two clauses of the untranslated filter
// disagree for r.
func inconsistent(r Record) bool {
	hasTranslation := r.TranslatedTrace.Valid && r.TranslatedTrace.String != ""
	return (r.Status == StatusCompleted) != hasTranslation
}
