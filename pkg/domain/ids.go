// Package domain defines typed identifiers and closed enums shared across
// modules. Typed IDs prevent cross-type assignment at compile time; parse
// functions enforce validity at trust boundaries.
package domain

import (
	"github.com/google/uuid"

	dErrors "cmdgate/pkg/domain-errors"
)

// Typed identifiers. Distinct types so an ActorID can never be passed where a
// RuleID is expected.
type (
	ActorID   uuid.UUID
	RuleID    uuid.UUID
	CommandID uuid.UUID
	AuditID   uuid.UUID
)

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be nil")
	}
	return u, nil
}

// ParseActorID constructs an ActorID from external input.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	return ActorID(u), err
}

// ParseRuleID constructs a RuleID from external input.
func ParseRuleID(s string) (RuleID, error) {
	u, err := parseUUID(s, "rule id")
	return RuleID(u), err
}

// ParseCommandID constructs a CommandID from external input.
func ParseCommandID(s string) (CommandID, error) {
	u, err := parseUUID(s, "command id")
	return CommandID(u), err
}

// NewActorID generates a fresh actor identifier.
func NewActorID() ActorID { return ActorID(uuid.New()) }

// NewRuleID generates a fresh rule identifier.
func NewRuleID() RuleID { return RuleID(uuid.New()) }

// NewCommandID generates a fresh command identifier.
func NewCommandID() CommandID { return CommandID(uuid.New()) }

// NewAuditID generates a fresh audit entry identifier.
func NewAuditID() AuditID { return AuditID(uuid.New()) }

func (id ActorID) String() string   { return uuid.UUID(id).String() }
func (id RuleID) String() string    { return uuid.UUID(id).String() }
func (id CommandID) String() string { return uuid.UUID(id).String() }
func (id AuditID) String() string   { return uuid.UUID(id).String() }

func (id ActorID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RuleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CommandID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AuditID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// Text marshaling keeps IDs as canonical UUID strings wherever they cross a
// serialization boundary.

func (id ActorID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id RuleID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id CommandID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AuditID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }

func (id *ActorID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RuleID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CommandID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *AuditID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
