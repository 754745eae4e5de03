package casestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// decided_at is stored as Unix nanoseconds so ordering is numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cases (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    score       REAL NOT NULL,
    confidence  REAL NOT NULL,
    record      TEXT NOT NULL,
    plan        TEXT,
    decided_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS cases_status_decided_at_idx ON cases (status, decided_at DESC);
`

var sqliteDialect = dialect{
	name:   "sqlite",
	schema: sqliteSchema,
	insert: `
		INSERT INTO cases (id, status, score, confidence, record, decided_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6)
		ON CONFLICT (id) DO NOTHING
	`,
	get: `SELECT record, plan FROM cases WHERE id = ?1`,
	list: `
		SELECT record, plan FROM cases
		WHERE (?1 = '' OR status = ?1)
		ORDER BY decided_at DESC, id
		LIMIT ?2
	`,
	savePlan: `UPDATE cases SET plan = ?2 WHERE id = ?1`,
	timeArg:  func(t time.Time) any { return t.UnixNano() },
}

// OpenSQLite opens (and migrates) a file-backed store. It is meant for the
// command-line tool, where no database server is available.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLStore{db: db, dialect: sqliteDialect}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
