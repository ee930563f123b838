package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrGoalFrozen        = errors.New("goal is frozen once the experiment has launched")
)

const (
	DefaultParticipantLimit = 100
	MaxParticipantLimit     = 500
)

type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS experiments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    variants TEXT NOT NULL,
    goal_type TEXT NOT NULL,
    goal_description TEXT NOT NULL DEFAULT '',
    baseline REAL NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'draft',
    recommended_sample_size INTEGER NOT NULL DEFAULT 0,
    recommended_running_time REAL NOT NULL DEFAULT 0,
    start_date INTEGER,
    end_date INTEGER,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE INDEX IF NOT EXISTS idx_experiments_state ON experiments(state);

CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_name TEXT NOT NULL,
    variant INTEGER NOT NULL,
    event_type TEXT NOT NULL,
    visitor_id TEXT NOT NULL,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_name) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_events_experiment ON events(experiment_name);
CREATE INDEX IF NOT EXISTS idx_events_experiment_event ON events(experiment_name, event_type);
CREATE UNIQUE INDEX IF NOT EXISTS idx_events_dedup ON events(experiment_name, visitor_id, event_type)
    WHERE event_type != 'count';

CREATE TABLE IF NOT EXISTS annotations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    experiment_name TEXT NOT NULL,
    content TEXT NOT NULL,
    date_marker INTEGER NOT NULL,
    deleted INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (unixepoch()),
    updated_at INTEGER NOT NULL DEFAULT (unixepoch()),
    FOREIGN KEY (experiment_name) REFERENCES experiments(name)
);

CREATE INDEX IF NOT EXISTS idx_annotations_experiment ON annotations(experiment_name, date_marker);
`

const experimentColumns = `id, name, variants, goal_type, goal_description, baseline, state,
	recommended_sample_size, recommended_running_time, start_date, end_date, created_at, updated_at`

func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Apply schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateExperiment inserts a draft experiment. The recommended sample size
// and running time on exp are stored as given; callers compute them once.
func (s *SQLiteStore) CreateExperiment(ctx context.Context, exp *Experiment) (*Experiment, error) {
	variantsJSON, err := json.Marshal(exp.Variants)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variants: %w", err)
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO experiments (name, variants, goal_type, goal_description, baseline, state,
		     recommended_sample_size, recommended_running_time, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 'draft', ?, ?, ?, ?)`,
		exp.Name, string(variantsJSON), string(exp.GoalType), exp.GoalDescription, exp.Baseline,
		exp.RecommendedSampleSize, exp.RecommendedRunningTime, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to insert experiment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	created := *exp
	created.ID = id
	created.State = StateDraft
	created.StartDate = nil
	created.EndDate = nil
	created.CreatedAt = time.Unix(now, 0)
	created.UpdatedAt = time.Unix(now, 0)
	return &created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*Experiment, error) {
	var exp Experiment
	var variantsJSON, goalType, state string
	var startDate, endDate sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&exp.ID, &exp.Name, &variantsJSON, &goalType, &exp.GoalDescription, &exp.Baseline, &state,
		&exp.RecommendedSampleSize, &exp.RecommendedRunningTime, &startDate, &endDate, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(variantsJSON), &exp.Variants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variants: %w", err)
	}

	exp.GoalType = GoalType(goalType)
	exp.State = ExperimentState(state)
	exp.StartDate = nullableTime(startDate)
	exp.EndDate = nullableTime(endDate)
	exp.CreatedAt = time.Unix(createdAt, 0)
	exp.UpdatedAt = time.Unix(updatedAt, 0)

	return &exp, nil
}

func (s *SQLiteStore) GetExperiment(ctx context.Context, name string) (*Experiment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+experimentColumns+` FROM experiments WHERE name = ?`, name)

	exp, err := scanExperiment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get experiment: %w", err)
	}
	return exp, nil
}

func (s *SQLiteStore) ListExperiments(ctx context.Context) ([]*Experiment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+experimentColumns+` FROM experiments ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list experiments: %w", err)
	}
	defer rows.Close()

	var experiments []*Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan experiment: %w", err)
		}
		experiments = append(experiments, exp)
	}

	return experiments, rows.Err()
}

// Launch moves a draft experiment to running and stamps its start date.
func (s *SQLiteStore) Launch(ctx context.Context, name string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET state = 'running', start_date = ?, updated_at = ?
		 WHERE name = ? AND state = 'draft'`,
		at.Unix(), time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to launch experiment: %w", err)
	}
	return s.checkTransition(ctx, result, name, ErrInvalidTransition)
}

// End moves a running experiment to complete and stamps its end date.
func (s *SQLiteStore) End(ctx context.Context, name string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET state = 'complete', end_date = ?, updated_at = ?
		 WHERE name = ? AND state = 'running'`,
		at.Unix(), time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to end experiment: %w", err)
	}
	return s.checkTransition(ctx, result, name, ErrInvalidTransition)
}

// Resize replaces the recommended goal of a draft experiment. Once launched
// the goal is frozen and ErrGoalFrozen is returned.
func (s *SQLiteStore) Resize(ctx context.Context, name string, baseline float64, sampleSize int, runningTime float64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE experiments SET baseline = ?, recommended_sample_size = ?, recommended_running_time = ?, updated_at = ?
		 WHERE name = ? AND state = 'draft'`,
		baseline, sampleSize, runningTime, time.Now().Unix(), name,
	)
	if err != nil {
		return fmt.Errorf("failed to resize experiment: %w", err)
	}
	return s.checkTransition(ctx, result, name, ErrGoalFrozen)
}

// checkTransition tells a missing experiment apart from one whose state
// did not match the guarded update.
func (s *SQLiteStore) checkTransition(ctx context.Context, result sql.Result, name string, stateErr error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	exists, err := s.exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return stateErr
}

func (s *SQLiteStore) exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM experiments WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check experiment: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteExperiment(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE experiment_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE experiment_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete annotations: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM experiments WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete experiment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, name string, variant int, eventType string, visitorID string) error {
	now := time.Now().Unix()

	// Exposures and conversions are deduplicated per visitor by the partial unique index
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (experiment_name, variant, event_type, visitor_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		name, variant, eventType, visitorID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	return nil
}

func (s *SQLiteStore) GetVariantStats(ctx context.Context, name string) ([]VariantStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			variant,
			COUNT(DISTINCT CASE WHEN event_type = 'exposure' THEN visitor_id END) as exposures,
			COUNT(DISTINCT CASE WHEN event_type = 'conversion' THEN visitor_id END) as conversions,
			SUM(CASE WHEN event_type = 'count' THEN 1 ELSE 0 END) as count
		FROM events
		WHERE experiment_name = ?
		GROUP BY variant
		ORDER BY variant
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get variant stats: %w", err)
	}
	defer rows.Close()

	var stats []VariantStats
	for rows.Next() {
		var vs VariantStats
		if err := rows.Scan(&vs.Variant, &vs.Exposures, &vs.Conversions, &vs.Count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats = append(stats, vs)
	}

	return stats, rows.Err()
}

func (s *SQLiteStore) GetEvents(ctx context.Context, name string) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, experiment_name, variant, event_type, visitor_id, created_at
		 FROM events WHERE experiment_name = ? ORDER BY created_at DESC, id DESC`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var e Event
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.ExperimentName, &e.Variant, &e.EventType, &e.VisitorID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// ListParticipants returns one page of exposed visitors, oldest first.
// Search is a case-insensitive substring match on the visitor id.
func (s *SQLiteStore) ListParticipants(ctx context.Context, name string, q ParticipantQuery) (*ParticipantPage, error) {
	exists, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultParticipantLimit
	}
	if limit > MaxParticipantLimit {
		limit = MaxParticipantLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT
			visitor_id,
			variant,
			MAX(CASE WHEN event_type = 'conversion' THEN 1 ELSE 0 END) as converted,
			SUM(CASE WHEN event_type = 'count' THEN 1 ELSE 0 END) as count,
			MIN(created_at) as first_seen
		FROM events
		WHERE experiment_name = ?`
	args := []any{name}

	if q.Variant != nil {
		query += ` AND variant = ?`
		args = append(args, *q.Variant)
	}
	if q.Search != "" {
		query += ` AND LOWER(visitor_id) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}

	query += `
		GROUP BY visitor_id, variant
		HAVING SUM(CASE WHEN event_type = 'exposure' THEN 1 ELSE 0 END) > 0`
	if q.Converted != nil {
		query += ` AND converted = ?`
		args = append(args, boolToInt(*q.Converted))
	}

	// Fetch one extra row to learn whether another page exists
	query += ` ORDER BY first_seen, visitor_id LIMIT ? OFFSET ?`
	args = append(args, limit+1, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	page := &ParticipantPage{}
	for rows.Next() {
		var p Participant
		var converted int
		var firstSeen int64
		if err := rows.Scan(&p.VisitorID, &p.Variant, &converted, &p.Count, &firstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		p.Converted = converted == 1
		p.FirstSeen = time.Unix(firstSeen, 0)
		page.Participants = append(page.Participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	if len(page.Participants) > limit {
		page.Participants = page.Participants[:limit]
		page.HasMore = true
		page.NextOffset = offset + limit
	}

	return page, nil
}

const annotationColumns = `id, experiment_name, content, date_marker, deleted, created_at, updated_at`

func scanAnnotation(row rowScanner) (*Annotation, error) {
	var a Annotation
	var deleted int
	var dateMarker, createdAt, updatedAt int64
	if err := row.Scan(&a.ID, &a.ExperimentName, &a.Content, &dateMarker, &deleted, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.DateMarker = time.Unix(dateMarker, 0)
	a.Deleted = deleted == 1
	a.CreatedAt = time.Unix(createdAt, 0)
	a.UpdatedAt = time.Unix(updatedAt, 0)
	return &a, nil
}

func (s *SQLiteStore) CreateAnnotation(ctx context.Context, name, content string, dateMarker time.Time) (*Annotation, error) {
	exists, err := s.exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}

	now := time.Now().Unix()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO annotations (experiment_name, content, date_marker, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		name, content, dateMarker.Unix(), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert annotation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	return &Annotation{
		ID:             id,
		ExperimentName: name,
		Content:        content,
		DateMarker:     time.Unix(dateMarker.Unix(), 0),
		CreatedAt:      time.Unix(now, 0),
		UpdatedAt:      time.Unix(now, 0),
	}, nil
}

// GetAnnotation returns an annotation by id, deleted or not.
func (s *SQLiteStore) GetAnnotation(ctx context.Context, id int64) (*Annotation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+annotationColumns+` FROM annotations WHERE id = ?`, id)

	a, err := scanAnnotation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}
	return a, nil
}

// ListAnnotations returns live annotations newest date marker first.
// Search is a case-insensitive substring match on the content; After and
// Before bound the date marker inclusively.
func (s *SQLiteStore) ListAnnotations(ctx context.Context, name string, q AnnotationQuery) ([]*Annotation, error) {
	query := `SELECT ` + annotationColumns + ` FROM annotations WHERE experiment_name = ? AND deleted = 0`
	args := []any{name}

	if q.Search != "" {
		query += ` AND LOWER(content) LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}
	if q.After != nil {
		query += ` AND date_marker >= ?`
		args = append(args, q.After.Unix())
	}
	if q.Before != nil {
		query += ` AND date_marker <= ?`
		args = append(args, q.Before.Unix())
	}
	query += ` ORDER BY date_marker DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	defer rows.Close()

	var annotations []*Annotation
	for rows.Next() {
		a, err := scanAnnotation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		annotations = append(annotations, a)
	}

	return annotations, rows.Err()
}

// UpdateAnnotation changes the content and/or date marker of a live
// annotation. Nil fields are left as they are.
func (s *SQLiteStore) UpdateAnnotation(ctx context.Context, id int64, u AnnotationUpdate) (*Annotation, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().Unix()}
	if u.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *u.Content)
	}
	if u.DateMarker != nil {
		sets = append(sets, "date_marker = ?")
		args = append(args, u.DateMarker.Unix())
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx,
		`UPDATE annotations SET `+strings.Join(sets, ", ")+` WHERE id = ? AND deleted = 0`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update annotation: %w", err)
	}
	if err := requireRow(result); err != nil {
		return nil, err
	}
	return s.GetAnnotation(ctx, id)
}

// DeleteAnnotation hides an annotation. Rows are never removed, so a deleted
// annotation can be brought back with RestoreAnnotation.
func (s *SQLiteStore) DeleteAnnotation(ctx context.Context, id int64) error {
	return s.setAnnotationDeleted(ctx, id, true)
}

func (s *SQLiteStore) RestoreAnnotation(ctx context.Context, id int64) error {
	return s.setAnnotationDeleted(ctx, id, false)
}

func (s *SQLiteStore) setAnnotationDeleted(ctx context.Context, id int64, deleted bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE annotations SET deleted = ?, updated_at = ? WHERE id = ?`,
		boolToInt(deleted), time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update annotation: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DB returns the underlying database connection for health checks
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
