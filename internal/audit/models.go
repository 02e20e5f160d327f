// Package audit defines the audit event model and its persistence contract.
// Events are emitted from domain logic and fanned out to the structured log,
// the store backing the admin listing, and optionally a Kafka topic.
package audit

import (
	"context"
	"time"

	id "cmdgate/pkg/domain"
)

// Event captures one security-relevant action. Keep it transport-agnostic so
// stores and sinks can fan out.
type Event struct {
	ID        id.AuditID     `json:"id"`
	ActorID   id.ActorID     `json:"actor_id"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Audit actions emitted by the admission module.
const (
	EventCommandAccepted  = "command_accepted"
	EventCommandRejected  = "command_rejected"
	EventCommandPending   = "command_pending_approval"
	EventCommandResolved  = "command_resolved"
	EventMatcherTimeout   = "rule_match_timeout"
	EventActorCreated     = "actor_created"
	EventActorUpdated     = "actor_updated"
	EventRuleCreated      = "rule_created"
	EventRuleUpdated      = "rule_updated"
	EventRuleDeleted      = "rule_deleted"
)

// Store persists audit events for the admin listing endpoint.
type Store interface {
	// Append persists one event.
	Append(ctx context.Context, event Event) error

	// ListRecent returns events newest first, paginated.
	ListRecent(ctx context.Context, offset, limit int) ([]Event, error)
}
