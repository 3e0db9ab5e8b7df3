package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kallisto-osint/osinter/internal/agent"
)

// ErrNotFound marks a lookup for an unknown investigation.
var ErrNotFound = errors.New("investigation not found")

// Store is the Postgres audit log. Investigations are written once, after
// they reach a terminal status, and never updated.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens the audit store and bootstraps its schema.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS investigations (
    id           TEXT PRIMARY KEY,
    subject      TEXT NOT NULL,
    question     TEXT NOT NULL,
    location     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    rounds       JSONB NOT NULL DEFAULT '[]',
    report       JSONB,
    timed_out    BOOLEAN NOT NULL DEFAULT FALSE,
    exhausted    BOOLEAN NOT NULL DEFAULT FALSE,
    failure      TEXT NOT NULL DEFAULT '',
    started_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS investigations_subject_idx ON investigations (subject);
`)
	return err
}

// SaveInvestigation persists a terminal investigation and, when present,
// its report.
func (s *Store) SaveInvestigation(ctx context.Context, inv *agent.Investigation, report *agent.Report) error {
	if !inv.Status.Terminal() {
		return fmt.Errorf("refusing to persist non-terminal investigation %s (%s)", inv.ID, inv.Status)
	}
	rounds, err := json.Marshal(inv.Rounds)
	if err != nil {
		return fmt.Errorf("marshal rounds: %w", err)
	}
	var reportJSON []byte
	if report != nil {
		if reportJSON, err = json.Marshal(report); err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
	}
	var completed sql.NullTime
	if !inv.CompletedAt.IsZero() {
		completed = sql.NullTime{Time: inv.CompletedAt, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO investigations (id, subject, question, location, status, rounds, report, timed_out, exhausted, failure, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		inv.ID, inv.Subject, inv.Question, inv.Location, string(inv.Status),
		rounds, reportJSON, inv.TimedOut, inv.ProviderExhausted, inv.FailureReason,
		inv.StartedAt, completed)
	return err
}

// GetInvestigation loads one persisted investigation and its report.
func (s *Store) GetInvestigation(ctx context.Context, id string) (*agent.Investigation, *agent.Report, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, subject, question, location, status, rounds, report, timed_out, exhausted, failure, started_at, completed_at
FROM investigations WHERE id = $1`, id)

	var inv agent.Investigation
	var status string
	var rounds []byte
	var reportJSON []byte
	var completed sql.NullTime
	err := row.Scan(&inv.ID, &inv.Subject, &inv.Question, &inv.Location, &status,
		&rounds, &reportJSON, &inv.TimedOut, &inv.ProviderExhausted, &inv.FailureReason,
		&inv.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	inv.Status = agent.Status(status)
	if completed.Valid {
		inv.CompletedAt = completed.Time
	}
	if err := json.Unmarshal(rounds, &inv.Rounds); err != nil {
		return nil, nil, fmt.Errorf("unmarshal rounds: %w", err)
	}
	var report *agent.Report
	if len(reportJSON) > 0 {
		report = &agent.Report{}
		if err := json.Unmarshal(reportJSON, report); err != nil {
			return nil, nil, fmt.Errorf("unmarshal report: %w", err)
		}
	}
	return &inv, report, nil
}

// InvestigationSummary is one audit listing row.
type InvestigationSummary struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ListInvestigations returns the most recent investigations, newest first.
func (s *Store) ListInvestigations(ctx context.Context, limit int) ([]InvestigationSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, subject, status, started_at FROM investigations
ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvestigationSummary
	for rows.Next() {
		var r InvestigationSummary
		if err := rows.Scan(&r.ID, &r.Subject, &r.Status, &r.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close releases the underlying pool.
func (s *Store) Close() error { return s.DB.Close() }
