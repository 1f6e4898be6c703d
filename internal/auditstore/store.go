// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package auditstore provides the Postgres-backed audit trail for pipeline
// invocations. The UNIQUE constraint on fingerprint is the authoritative
// at-most-once guard: a second insert for the same fingerprint fails with
// ErrDuplicate regardless of how the deliveries interleave.
package auditstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anaislegal/intake/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

// ErrDuplicate signals that an audit entry for the fingerprint already exists.
var ErrDuplicate = errors.New("audit entry already exists for fingerprint")

// UnavailableError wraps a store failure that must not be mistaken for
// "not a duplicate". Data integrity wins over availability: callers surface
// it as an invocation failure rather than reprocessing.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("audit store unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Store provides audit trail operations backed by Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates an audit store backed by the given Postgres pool.
// It ensures the audit tables exist on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}
	slog.Info("audit store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			id            BIGSERIAL PRIMARY KEY,
			fingerprint   TEXT NOT NULL UNIQUE,
			sender        TEXT DEFAULT '',
			subject       TEXT DEFAULT '',
			message_id    TEXT DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'received',
			error_detail  TEXT DEFAULT '',
			tasks_created INT NOT NULL DEFAULT 0,
			received_at   TIMESTAMPTZ NOT NULL,
			completed_at  TIMESTAMPTZ,
			created_at    TIMESTAMPTZ DEFAULT NOW(),
			updated_at    TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_entries(status);
		CREATE INDEX IF NOT EXISTS idx_audit_received ON audit_entries(received_at);

		CREATE TABLE IF NOT EXISTS task_events (
			id          BIGSERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			task_id     TEXT NOT NULL,
			task_title  TEXT DEFAULT '',
			event_type  TEXT NOT NULL,
			created_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_task_events_fp ON task_events(fingerprint);
	`)
	return err
}

// Begin inserts the audit entry for a new pipeline invocation with status
// "received". A fingerprint collision returns ErrDuplicate; any other
// failure returns an UnavailableError.
func (s *Store) Begin(ctx context.Context, entry *models.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_entries (fingerprint, sender, subject, message_id, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.Fingerprint, entry.Sender, entry.Subject, entry.MessageID, models.AuditReceived, entry.ReceivedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return &UnavailableError{Op: "begin", Err: err}
	}
	return nil
}

// Lookup returns the prior audit entry for a fingerprint, or nil when the
// fingerprint has never been processed.
func (s *Store) Lookup(ctx context.Context, fp string) (*models.AuditEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, fingerprint, sender, subject, message_id, status,
		       error_detail, tasks_created, received_at, completed_at
		FROM audit_entries
		WHERE fingerprint = $1
	`, fp)

	var e models.AuditEntry
	err := row.Scan(&e.ID, &e.Fingerprint, &e.Sender, &e.Subject, &e.MessageID,
		&e.Status, &e.ErrorDetail, &e.TasksCreated, &e.ReceivedAt, &e.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, &UnavailableError{Op: "lookup", Err: err}
	}
	return &e, nil
}

// Finish updates the invocation's entry with its terminal status. Callers
// treat a Finish failure as a loss of traceability, not of correctness.
func (s *Store) Finish(ctx context.Context, fp string, status models.AuditStatus, errDetail string, tasksCreated int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_entries
		SET status = $2, error_detail = $3, tasks_created = $4,
		    completed_at = NOW(), updated_at = NOW()
		WHERE fingerprint = $1
	`, fp, status, errDetail, tasksCreated)
	if err != nil {
		return &UnavailableError{Op: "finish", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish: no audit entry for fingerprint %s", fp)
	}
	return nil
}

// RecordTaskEvent appends a per-task audit event. Best-effort from the
// caller's perspective.
func (s *Store) RecordTaskEvent(ctx context.Context, fp, taskID, title, eventType string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO task_events (fingerprint, task_id, task_title, event_type, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, fp, taskID, title, eventType, time.Now().UTC())
	if err != nil {
		return &UnavailableError{Op: "task event", Err: err}
	}
	return nil
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
