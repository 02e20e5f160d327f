package domain

import dErrors "cmdgate/pkg/domain-errors"

// RuleAction is the action a matched rule prescribes for a command.
// Invariant: the value must be one of the three supported actions.
//
// Usage: construct via ParseRuleAction at trust boundaries; direct casting
// bypasses validation.
type RuleAction string

const (
	RuleActionAutoAccept      RuleAction = "AUTO_ACCEPT"
	RuleActionAutoReject      RuleAction = "AUTO_REJECT"
	RuleActionRequireApproval RuleAction = "REQUIRE_APPROVAL"
)

// validRuleActions is the single source of truth for valid rule actions.
var validRuleActions = map[RuleAction]bool{
	RuleActionAutoAccept:      true,
	RuleActionAutoReject:      true,
	RuleActionRequireApproval: true,
}

// ParseRuleAction constructs a RuleAction from external input.
//
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRuleAction(s string) (RuleAction, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "action cannot be empty")
	}
	a := RuleAction(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid rule action")
	}
	return a, nil
}

// IsValid checks if the action is one of the supported enum values.
func (a RuleAction) IsValid() bool { return validRuleActions[a] }

func (a RuleAction) String() string { return string(a) }

// Outcome is the terminal (or pending) state of an admission decision.
// Wire-stable: ACCEPTED, REJECTED, PENDING.
type Outcome string

const (
	OutcomeAccepted Outcome = "ACCEPTED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomePending  Outcome = "PENDING"
)

var validOutcomes = map[Outcome]bool{
	OutcomeAccepted: true,
	OutcomeRejected: true,
	OutcomePending:  true,
}

// IsValid checks if the outcome is one of the supported enum values.
func (o Outcome) IsValid() bool { return validOutcomes[o] }

func (o Outcome) String() string { return string(o) }

// ReasonCode explains an admission outcome. The vocabulary is closed and
// wire-stable; clients dispatch on these values.
type ReasonCode string

const (
	ReasonInsufficientCredits ReasonCode = "INSUFFICIENT_CREDITS"
	ReasonNoMatchingRule      ReasonCode = "NO_MATCHING_RULE"
	ReasonAutoReject          ReasonCode = "AUTO_REJECT"
	ReasonPendingApproval     ReasonCode = "PENDING_APPROVAL"
)

func (r ReasonCode) String() string { return string(r) }

// ActorRole distinguishes administrators from regular members.
type ActorRole string

const (
	RoleAdmin  ActorRole = "admin"
	RoleMember ActorRole = "member"
)

var validActorRoles = map[ActorRole]bool{
	RoleAdmin:  true,
	RoleMember: true,
}

// ParseActorRole constructs an ActorRole from external input.
func ParseActorRole(s string) (ActorRole, error) {
	if s == "" {
		return RoleMember, nil
	}
	r := ActorRole(s)
	if !validActorRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r ActorRole) IsValid() bool { return validActorRoles[r] }

func (r ActorRole) String() string { return string(r) }
