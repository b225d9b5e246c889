package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal records completed import runs in a local SQLite database so
// repeated invocations can skip sessions that were already loaded.
type Journal struct {
	db *sql.DB
}

// ImportRun is one recorded import run for a (session, resource) pair.
type ImportRun struct {
	ID         int64
	SessionKey int
	Resource   string
	Fetched    int
	Inserted   int
	Errors     int
	FinishedAt time.Time
}

// OpenJournal opens or creates the journal database at the given path.
// An empty path uses an in-memory database.
func OpenJournal(path string) (*Journal, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS import_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_key INTEGER NOT NULL,
		resource TEXT NOT NULL,
		fetched INTEGER NOT NULL,
		inserted INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_import_runs_session ON import_runs(session_key, resource);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends a finished import run. A zero FinishedAt is replaced with
// the current time.
func (j *Journal) Record(run ImportRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(`
		INSERT INTO import_runs (session_key, resource, fetched, inserted, errors, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.SessionKey, run.Resource, run.Fetched, run.Inserted, run.Errors, run.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record import run: %w", err)
	}
	return nil
}

// HasSuccessfulRun reports whether a clean run (rows inserted, no errors)
// exists for the given session and resource.
func (j *Journal) HasSuccessfulRun(sessionKey int, resource string) (bool, error) {
	var count int
	err := j.db.QueryRow(`
		SELECT COUNT(*) FROM import_runs
		WHERE session_key = ? AND resource = ? AND errors = 0 AND inserted > 0
	`, sessionKey, resource).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query import runs: %w", err)
	}
	return count > 0, nil
}

// List retrieves all recorded runs, most recent first.
func (j *Journal) List() ([]ImportRun, error) {
	rows, err := j.db.Query(`
		SELECT id, session_key, resource, fetched, inserted, errors, finished_at
		FROM import_runs
		ORDER BY finished_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []ImportRun
	for rows.Next() {
		var r ImportRun
		var finished string
		if err := rows.Scan(&r.ID, &r.SessionKey, &r.Resource, &r.Fetched, &r.Inserted, &r.Errors, &finished); err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
