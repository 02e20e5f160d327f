// Package models holds the admission module's domain records. Stores persist
// them; the service owns all transitions.
package models

import (
	"sort"
	"time"

	id "cmdgate/pkg/domain"
)

// Rule maps a command pattern to an action. Lower priority values are
// evaluated first; ties break on CreatedAt, then ID, so precedence is
// deterministic and reproducible for audit.
type Rule struct {
	ID          id.RuleID
	Priority    int
	Pattern     string
	Action      id.RuleAction
	Description string
	CreatedAt   time.Time
}

// SortRules orders rules by (priority asc, created_at asc, id asc) in place.
// Both stores and the matcher rely on this single definition of precedence.
func SortRules(rules []*Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority < rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID.String() < rules[j].ID.String()
	})
}

// Actor is an identity that submits commands and holds a credit balance.
// Invariant: Credits never goes negative; only the credit store mutates it.
type Actor struct {
	ID           id.ActorID
	Name         string
	APIKeyDigest string
	Role         id.ActorRole
	Credits      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ExecutionResult is the opaque payload returned by the execution
// collaborator. The engine records it without interpreting it.
type ExecutionResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// CommandRecord is the immutable artifact of one admission decision. A
// PENDING record may later transition to ACCEPTED or REJECTED through
// approval resolution; no other field changes after creation.
type CommandRecord struct {
	ID            id.CommandID
	ActorID       id.ActorID
	CommandText   string
	MatchedRuleID *id.RuleID
	Decision      id.Outcome
	Cost          int
	Result        *ExecutionResult
	ExecutedAt    *time.Time
	CreatedAt     time.Time
}

// Decision is the pipeline's return value for one submission.
type Decision struct {
	Outcome       id.Outcome
	Reason        id.ReasonCode
	CommandID     id.CommandID
	MatchedRuleID *id.RuleID
	Result        *ExecutionResult
	BalanceAfter  *int
}

// NotificationTarget selects who receives a notification.
type NotificationTarget struct {
	ActorID   id.ActorID
	AllAdmins bool
}

// Notification is an actor- or admin-facing message emitted alongside a
// decision. Delivery is a collaborator concern.
type Notification struct {
	Target  NotificationTarget
	Type    string
	Payload map[string]any
}
