package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/uas/internal/errors"
)

// Default and maximum number of entries returned by Recent.
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 500
)

// Entry is one finished session.
type Entry struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	Graceful        bool      `json:"graceful"`
	Answers         int       `json:"answers"`
	InvalidInputs   int       `json:"invalid_inputs"`
	GraftedPosition *int      `json:"grafted_position,omitempty"`
	LoadedSnapshot  string    `json:"loaded_snapshot"`
	SavedSnapshot   string    `json:"saved_snapshot"`
}

// Journal records sessions in a SQLite database.
type Journal struct {
	db *sql.DB
}

// Open initializes the journal in baseDir.
func Open(baseDir string) (*Journal, error) {
	db, err := Init(baseDir)
	if err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	var grafted sql.NullInt64
	if e.GraftedPosition != nil {
		grafted = sql.NullInt64{Int64: int64(*e.GraftedPosition), Valid: true}
	}

	query := `
		INSERT INTO sessions (
			id, started_at, ended_at, graceful, answers, invalid_inputs,
			grafted_position, loaded_snapshot, saved_snapshot
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := j.db.ExecContext(ctx, query,
		e.ID, e.StartedAt.UnixMilli(), e.EndedAt.UnixMilli(), boolToInt(e.Graceful),
		e.Answers, e.InvalidInputs, grafted, e.LoadedSnapshot, e.SavedSnapshot,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Recent returns up to limit entries, most recently ended first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	query := `
		SELECT id, started_at, ended_at, graceful, answers, invalid_inputs,
		       grafted_position, loaded_snapshot, saved_snapshot
		FROM sessions
		ORDER BY ended_at DESC, id DESC
		LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			e              Entry
			started, ended int64
			graceful       int
			grafted        sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &started, &ended, &graceful, &e.Answers, &e.InvalidInputs,
			&grafted, &e.LoadedSnapshot, &e.SavedSnapshot); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.EndedAt = time.UnixMilli(ended)
		e.Graceful = graceful != 0
		if grafted.Valid {
			pos := int(grafted.Int64)
			e.GraftedPosition = &pos
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
