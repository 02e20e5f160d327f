package admin

import (
	"strings"
	"time"

	"cmdgate/internal/admission/models"
	"cmdgate/internal/audit"
	dErrors "cmdgate/pkg/domain-errors"
)

// CreateActorRequest is the POST /admin/actors payload. Credits falls back
// to the configured default when omitted.
type CreateActorRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	Credits *int   `json:"credits"`
}

func (r CreateActorRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if r.Credits != nil && *r.Credits < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "credits must not be negative")
	}
	return nil
}

// UpdateActorRequest is the PUT /admin/actors/{actorID} payload.
type UpdateActorRequest struct {
	Credits *int `json:"credits"`
}

// ActorResponse is the wire form of an actor. APIKey is populated only in
// the creation response; the key is never retrievable afterwards.
type ActorResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	APIKey    string    `json:"api_key,omitempty"`
}

func fromActor(a *models.Actor) ActorResponse {
	return ActorResponse{
		ID:        a.ID.String(),
		Name:      a.Name,
		Role:      a.Role.String(),
		Credits:   a.Credits,
		CreatedAt: a.CreatedAt,
	}
}

// RuleRequest is the create/update payload for rules.
type RuleRequest struct {
	Priority    *int   `json:"priority"`
	Pattern     string `json:"pattern"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// RuleResponse is the wire form of a rule.
type RuleResponse struct {
	ID          string    `json:"id"`
	Priority    int       `json:"priority"`
	Pattern     string    `json:"pattern"`
	Action      string    `json:"action"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func fromRule(r *models.Rule) RuleResponse {
	return RuleResponse{
		ID:          r.ID.String(),
		Priority:    r.Priority,
		Pattern:     r.Pattern,
		Action:      r.Action.String(),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

// ResolveRequest is the POST /admin/commands/{commandID}/resolve payload.
type ResolveRequest struct {
	Approve bool `json:"approve"`
}

// AuditLogResponse is the wire form of an audit event.
type AuditLogResponse struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id,omitempty"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func fromAuditEvent(e audit.Event) AuditLogResponse {
	resp := AuditLogResponse{
		ID:        e.ID.String(),
		Action:    e.Action,
		Details:   e.Details,
		RequestID: e.RequestID,
		CreatedAt: e.Timestamp,
	}
	if !e.ActorID.IsNil() {
		resp.ActorID = e.ActorID.String()
	}
	return resp
}
