package casestore

import (
	"database/sql"
	"time"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS cases (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    score       DOUBLE PRECISION NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL,
    record      JSONB NOT NULL,
    plan        JSONB,
    decided_at  TIMESTAMPTZ NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS cases_status_decided_at_idx ON cases (status, decided_at DESC);
`

var postgresDialect = dialect{
	name:   "postgres",
	schema: postgresSchema,
	insert: `
		INSERT INTO cases (id, status, score, confidence, record, decided_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`,
	get: `SELECT record, plan FROM cases WHERE id = $1`,
	list: `
		SELECT record, plan FROM cases
		WHERE ($1::text = '' OR status = $1)
		ORDER BY decided_at DESC, id
		LIMIT $2
	`,
	savePlan: `UPDATE cases SET plan = $2 WHERE id = $1`,
	timeArg:  func(t time.Time) any { return t.UTC() },
}

// NewPostgres returns a store backed by PostgreSQL. The caller opens db
// with the lib/pq driver and owns its lifecycle.
func NewPostgres(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, dialect: postgresDialect}
}
