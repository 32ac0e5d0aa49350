// Package ledger records enhance runs and their per-recording outcomes in a
// local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/openvpi/MakeDiffSinger/internal/refine"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    started_at  TEXT NOT NULL,
    finished_at TEXT,
    wav_dir     TEXT NOT NULL,
    src_dir     TEXT NOT NULL,
    dst_dir     TEXT NOT NULL,
    params_json TEXT NOT NULL,
    total       INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS recordings (
    run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    name             TEXT NOT NULL,
    extended         INTEGER NOT NULL,
    extended_seconds REAL NOT NULL,
    breaths          INTEGER NOT NULL,
    spaces           INTEGER NOT NULL,
    merged           INTEGER NOT NULL,
    error            TEXT,
    duration_ms      INTEGER NOT NULL,
    PRIMARY KEY (run_id, name)
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a handle on the ledger database.
type Store struct {
	db   *sqlx.DB
	path string
	now  func() time.Time
}

// Open opens or creates the ledger at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps pragmas and writes on the same handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunInfo describes a run when it starts.
type RunInfo struct {
	WavDir string
	SrcDir string
	DstDir string
	Params refine.Params
}

// Run is a recorded run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress or was killed
	WavDir     string
	SrcDir     string
	DstDir     string
	Params     refine.Params
	Total      int
	Failed     int
}

// Entry is the outcome of one recording within a run.
type Entry struct {
	Name     string
	Stats    refine.Stats
	Err      string // empty on success
	Duration time.Duration
}

type runRow struct {
	ID         string         `db:"id"`
	StartedAt  string         `db:"started_at"`
	FinishedAt sql.NullString `db:"finished_at"`
	WavDir     string         `db:"wav_dir"`
	SrcDir     string         `db:"src_dir"`
	DstDir     string         `db:"dst_dir"`
	ParamsJSON string         `db:"params_json"`
	Total      int            `db:"total"`
	Failed     int            `db:"failed"`
}

type entryRow struct {
	RunID           string         `db:"run_id"`
	Name            string         `db:"name"`
	Extended        int            `db:"extended"`
	ExtendedSeconds float64        `db:"extended_seconds"`
	Breaths         int            `db:"breaths"`
	Spaces          int            `db:"spaces"`
	Merged          int            `db:"merged"`
	Error           sql.NullString `db:"error"`
	DurationMS      int64          `db:"duration_ms"`
}

// StartRun records a new run and returns its ID.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (string, error) {
	params, err := json.Marshal(info.Params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	row := runRow{
		ID:         uuid.NewString(),
		StartedAt:  s.now().UTC().Format(timeLayout),
		WavDir:     info.WavDir,
		SrcDir:     info.SrcDir,
		DstDir:     info.DstDir,
		ParamsJSON: string(params),
	}
	_, err = s.db.NamedExecContext(ctx,
		`INSERT INTO runs (id, started_at, wav_dir, src_dir, dst_dir, params_json)
         VALUES (:id, :started_at, :wav_dir, :src_dir, :dst_dir, :params_json)`, row)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return row.ID, nil
}

// Record stores the entries of a run and closes it with its totals, in one
// transaction.
func (s *Store) Record(ctx context.Context, runID string, entries []Entry) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var n int
		if err := tx.GetContext(ctx, &n, `SELECT COUNT(1) FROM runs WHERE id = ?`, runID); err != nil {
			return fmt.Errorf("look up run: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		failed := 0
		for _, e := range entries {
			row := entryRow{
				RunID:           runID,
				Name:            e.Name,
				Extended:        e.Stats.Extended,
				ExtendedSeconds: e.Stats.ExtendedSeconds,
				Breaths:         e.Stats.Breaths,
				Spaces:          e.Stats.Spaces,
				Merged:          e.Stats.Merged,
				Error:           sql.NullString{String: e.Err, Valid: e.Err != ""},
				DurationMS:      e.Duration.Milliseconds(),
			}
			if row.Error.Valid {
				failed++
			}
			if _, err := tx.NamedExecContext(ctx,
				`INSERT OR REPLACE INTO recordings
                 (run_id, name, extended, extended_seconds, breaths, spaces, merged, error, duration_ms)
                 VALUES (:run_id, :name, :extended, :extended_seconds, :breaths, :spaces, :merged, :error, :duration_ms)`,
				row); err != nil {
				return fmt.Errorf("insert recording %s: %w", e.Name, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE runs SET finished_at = ?, total = ?, failed = ? WHERE id = ?`,
			s.now().UTC().Format(timeLayout), len(entries), failed, runID); err != nil {
			return fmt.Errorf("finish run: %w", err)
		}
		return nil
	})
}

// Runs returns the most recent runs first. A limit of 0 or less returns
// all runs.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT * FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		run, err := r.run()
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Entries returns the recordings of a run in name order.
func (s *Store) Entries(ctx context.Context, runID string) ([]Entry, error) {
	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM recordings WHERE run_id = ? ORDER BY name`, runID); err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Name: r.Name,
			Stats: refine.Stats{
				Extended:        r.Extended,
				ExtendedSeconds: r.ExtendedSeconds,
				Breaths:         r.Breaths,
				Spaces:          r.Spaces,
				Merged:          r.Merged,
			},
			Err:      r.Error.String,
			Duration: time.Duration(r.DurationMS) * time.Millisecond,
		}
	}
	return entries, nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r runRow) run() (Run, error) {
	run := Run{
		ID:     r.ID,
		WavDir: r.WavDir,
		SrcDir: r.SrcDir,
		DstDir: r.DstDir,
		Total:  r.Total,
		Failed: r.Failed,
	}
	var err error
	if run.StartedAt, err = time.Parse(timeLayout, r.StartedAt); err != nil {
		return Run{}, fmt.Errorf("run %s: parse started_at: %w", r.ID, err)
	}
	if r.FinishedAt.Valid {
		if run.FinishedAt, err = time.Parse(timeLayout, r.FinishedAt.String); err != nil {
			return Run{}, fmt.Errorf("run %s: parse finished_at: %w", r.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(r.ParamsJSON), &run.Params); err != nil {
		return Run{}, fmt.Errorf("run %s: decode params: %w", r.ID, err)
	}
	return run, nil
}
