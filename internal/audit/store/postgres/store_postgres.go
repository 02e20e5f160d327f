package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"cmdgate/internal/audit"
	id "cmdgate/pkg/domain"
)

// Store persists audit events in PostgreSQL. Pure I/O; event construction
// belongs to the emitting service.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Schema is the bootstrap DDL for the audit_logs table.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id UUID PRIMARY KEY,
	actor_id UUID,
	action TEXT NOT NULL,
	details JSONB,
	request_id TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC);
`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, details, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(event.ID), uuid.UUID(event.ActorID), event.Action, details, event.RequestID, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) ListRecent(ctx context.Context, offset, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, action, details, request_id, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			actorID  uuid.NullUUID
			details  []byte
			reqID    sql.NullString
		)
		if err := rows.Scan(&eventID, &actorID, &event.Action, &details, &reqID, &event.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = id.AuditID(eventID)
		if actorID.Valid {
			event.ActorID = id.ActorID(actorID.UUID)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		event.RequestID = reqID.String
		events = append(events, event)
	}
	return events, rows.Err()
}
