package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	preset       TEXT NOT NULL,
	keyword      TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	target       TEXT NOT NULL,
	lead_limit   INTEGER NOT NULL DEFAULT 0,
	state        TEXT NOT NULL DEFAULT 'running',
	accepted     INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS page_cache (
	url_hash   TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	data       BLOB NOT NULL,
	fetched_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target);
CREATE INDEX IF NOT EXISTS idx_page_cache_expires_at ON page_cache(expires_at);
`

// Migrate creates the ledger tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun records a new run in the running state. ID and CreatedAt are
// assigned here.
func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()
	run.State = model.RunStateRunning
	run.CompletedAt = nil

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, preset, keyword, location, target, lead_limit, state, accepted, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Preset, run.Keyword, run.Location, run.Target, run.Limit,
		string(run.State), run.Accepted, run.CreatedAt, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

// UpdateProgress stores the accepted count of a running run.
func (s *SQLiteStore) UpdateProgress(ctx context.Context, runID string, accepted int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET accepted = ?, updated_at = ? WHERE id = ?`,
		accepted, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update progress %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// CompleteRun marks a run complete.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, accepted int) error {
	return s.finish(ctx, runID, model.RunStateComplete, accepted, "")
}

// FailRun marks a run failed with a reason.
func (s *SQLiteStore) FailRun(ctx context.Context, runID string, accepted int, reason string) error {
	return s.finish(ctx, runID, model.RunStateFailed, accepted, reason)
}

func (s *SQLiteStore) finish(ctx context.Context, runID string, state model.RunState, accepted int, reason string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, accepted = ?, error = ?, updated_at = ?, completed_at = ? WHERE id = ?`,
		string(state), accepted, reason, now, now, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, preset, keyword, location, target, lead_limit, state, accepted, error, created_at, completed_at`

// GetRun returns one run. A run that does not exist yields ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

// ListRuns returns runs newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	if filter.Target != "" {
		query += ` AND target = ?`
		args = append(args, filter.Target)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Stats summarizes the ledger.
func (s *SQLiteStore) Stats(ctx context.Context) (*model.RunStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state = 'complete' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = 'running' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(accepted), 0)
		FROM runs`)

	var st model.RunStats
	if err := row.Scan(&st.Total, &st.Complete, &st.Failed, &st.Running, &st.Leads); err != nil {
		return nil, eris.Wrap(err, "sqlite: run stats")
	}
	return &st, nil
}

// GetCachedPage returns cached page data for url, or nil when absent or
// expired.
func (s *SQLiteStore) GetCachedPage(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM page_cache WHERE url_hash = ? AND expires_at > ?`,
		hashURL(url), time.Now().UTC(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached page")
	}
	return data, nil
}

// SetCachedPage stores page data for url, replacing any earlier entry.
func (s *SQLiteStore) SetCachedPage(ctx context.Context, url string, data []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO page_cache (url_hash, url, data, fetched_at, expires_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(url_hash) DO UPDATE SET data = excluded.data, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`,
		hashURL(url), url, data, now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached page")
}

// DeleteExpiredPages removes expired cache entries and returns how many.
func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM page_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired pages")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var (
		r         model.Run
		state     string
		completed sql.NullTime
	)
	err := row.Scan(&r.ID, &r.Preset, &r.Keyword, &r.Location, &r.Target, &r.Limit,
		&state, &r.Accepted, &r.Error, &r.CreatedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.State = model.RunState(state)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
