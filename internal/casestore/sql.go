package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"casework/internal/enablement"
	"casework/pkg/platform/sentinel"
)

// dialect holds the statements that differ between PostgreSQL and SQLite.
type dialect struct {
	name     string
	schema   string
	insert   string
	get      string
	list     string
	savePlan string
	timeArg  func(time.Time) any
}

// SQLStore persists records in a relational database. The full record is
// kept as JSON; status, score and decision time are columns for listing.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Migrate creates the cases table if it does not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate %s case store: %w", s.dialect.name, err)
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) Save(ctx context.Context, record Record) error {
	record.Plan = nil
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal case record: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.dialect.insert,
		record.CaseID,
		string(record.Status()),
		record.Decision.Score,
		record.Decision.Confidence,
		string(payload),
		s.dialect.timeArg(record.DecidedAt()),
	)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	if n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, caseID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.get, caseID)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, sentinel.ErrNotFound
		}
		return Record{}, fmt.Errorf("get case %s: %w", caseID, err)
	}
	return r, nil
}

func (s *SQLStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.list, string(filter.Status), filter.limit())
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list cases: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	return out, nil
}

func (s *SQLStore) SavePlan(ctx context.Context, plan enablement.Plan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal enablement plan: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.dialect.savePlan, plan.CaseID, string(payload))
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var raw, plan []byte
	if err := row.Scan(&raw, &plan); err != nil {
		return Record{}, err
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("unmarshal case record: %w", err)
	}
	if len(plan) > 0 {
		var p enablement.Plan
		if err := json.Unmarshal(plan, &p); err != nil {
			return Record{}, fmt.Errorf("unmarshal enablement plan: %w", err)
		}
		r.Plan = &p
	}
	return r, nil
}
