package builder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/binmodlabs/py2binmod/internal/config"
)

// Ledger records build history in <project>/.py2binmod/builds.db. Every
// invocation gets a row, cache hits included, so `py2binmod builds` can
// answer what was built, when, and from which inputs.
type Ledger struct {
	db *sql.DB
}

// BuildRecord is one ledger row.
type BuildRecord struct {
	ID        string
	Project   string
	Profile   string
	CacheKey  string
	Artifact  string
	Cached    bool
	Duration  time.Duration
	CreatedAt time.Time
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS builds (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	profile     TEXT NOT NULL,
	cache_key   TEXT NOT NULL,
	artifact    TEXT NOT NULL,
	cached      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS builds_created_at ON builds(created_at);
`

// OpenLedger opens (creating if needed) the build ledger for a project.
func OpenLedger(projectDir string) (*Ledger, error) {
	dir := filepath.Join(projectDir, config.WorkDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "builds.db"))
	if err != nil {
		return nil, fmt.Errorf("opening build ledger: %w", err)
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing build ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record inserts one build row.
func (l *Ledger) Record(rec BuildRecord) error {
	_, err := l.db.Exec(
		`INSERT INTO builds (id, project, profile, cache_key, artifact, cached, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Project, rec.Profile, rec.CacheKey, rec.Artifact,
		boolToInt(rec.Cached), rec.Duration.Milliseconds(), rec.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest rows, most recent first.
func (l *Ledger) Recent(limit int) ([]BuildRecord, error) {
	rows, err := l.db.Query(
		`SELECT id, project, profile, cache_key, artifact, cached, duration_ms, created_at
		 FROM builds ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying build ledger: %w", err)
	}
	defer rows.Close()

	var out []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var cached int
		var durationMS int64
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Project, &rec.Profile, &rec.CacheKey,
			&rec.Artifact, &cached, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning build row: %w", err)
		}
		rec.Cached = cached != 0
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
