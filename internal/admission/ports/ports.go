// Package ports defines shared interfaces for the admission module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"
	"log/slog"

	"cmdgate/internal/admission/models"
	"cmdgate/internal/audit"
	id "cmdgate/pkg/domain"
	"cmdgate/pkg/requestcontext"
)

// RuleStore provides ordered rule-set snapshots and rule CRUD.
type RuleStore interface {
	// ListOrdered returns a consistent snapshot of all rules sorted by
	// (priority asc, created_at asc, id asc). In-flight matches must never
	// observe a half-updated rule list.
	ListOrdered(ctx context.Context) ([]*models.Rule, error)

	// Get returns a rule by ID, or nil when absent.
	Get(ctx context.Context, ruleID id.RuleID) (*models.Rule, error)

	// Create persists a new rule.
	Create(ctx context.Context, rule *models.Rule) error

	// Update replaces a rule's mutable fields.
	Update(ctx context.Context, rule *models.Rule) error

	// Delete removes a rule. Deleting an absent rule is a not_found error.
	Delete(ctx context.Context, ruleID id.RuleID) error
}

// CreditStore owns actor balances. No other component may write credits.
type CreditStore interface {
	// TryDebit atomically checks and decrements the actor's balance.
	// Linearizable per actor: concurrent debits against one actor serialize;
	// debits against different actors proceed independently. On insufficient
	// balance it mutates nothing and returns CodeInsufficientCredits.
	TryDebit(ctx context.Context, actorID id.ActorID, amount int) (newBalance int, err error)

	// Credit atomically increments the actor's balance. Used to return a
	// debit when a losing concurrent resolution finds its record already
	// terminal.
	Credit(ctx context.Context, actorID id.ActorID, amount int) (newBalance int, err error)

	// Balance returns the actor's current balance.
	Balance(ctx context.Context, actorID id.ActorID) (int, error)
}

// ActorStore manages actor identities. Embeds CreditStore so a single
// implementation backs both identity lookup and balance mutation.
type ActorStore interface {
	CreditStore

	// Create persists a new actor.
	Create(ctx context.Context, actor *models.Actor) error

	// Get returns an actor by ID, or nil when absent.
	Get(ctx context.Context, actorID id.ActorID) (*models.Actor, error)

	// GetByAPIKeyDigest resolves an actor from an API key digest, or nil.
	GetByAPIKeyDigest(ctx context.Context, digest string) (*models.Actor, error)

	// List returns all actors.
	List(ctx context.Context) ([]*models.Actor, error)

	// SetCredits overwrites an actor's balance (admin operation).
	SetCredits(ctx context.Context, actorID id.ActorID, credits int) error
}

// CommandStore persists command records.
type CommandStore interface {
	// Create persists a new command record.
	Create(ctx context.Context, rec *models.CommandRecord) error

	// Get returns a record by ID, or nil when absent.
	Get(ctx context.Context, commandID id.CommandID) (*models.CommandRecord, error)

	// ListByActor returns an actor's records, newest first.
	ListByActor(ctx context.Context, actorID id.ActorID, offset, limit int) ([]*models.CommandRecord, error)

	// ListPending returns all PENDING records, oldest first.
	ListPending(ctx context.Context) ([]*models.CommandRecord, error)

	// Resolve transitions a PENDING record to a terminal decision, recording
	// cost, result, and execution time. Resolving a non-pending record is a
	// conflict error.
	Resolve(ctx context.Context, commandID id.CommandID, rec *models.CommandRecord) error
}

// Executor runs an admitted command and returns its opaque result. Invoked
// only after the debit is committed.
type Executor interface {
	Run(ctx context.Context, commandText string) (*models.ExecutionResult, error)
}

// Notifier delivers decision notifications. Implementations own transport
// state; the engine only calls the port.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// AuditPublisher emits audit events for security-relevant operations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LogAudit is a shared helper for audit logging across admission services.
// It logs to the structured logger and forwards the event to the publisher
// when one is configured.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher AuditPublisher, event audit.Event, attrs ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		event.RequestID = requestID
	}

	args := append(attrs, "event", event.Action, "log_type", "audit")
	if logger != nil {
		logger.InfoContext(ctx, event.Action, args...)
	}

	if publisher == nil {
		return
	}
	if err := publisher.Emit(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to emit audit event", "event", event.Action, "error", err)
	}
}
