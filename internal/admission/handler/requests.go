package handler

import (
	"strings"
	"time"

	"cmdgate/internal/admission/models"
	dErrors "cmdgate/pkg/domain-errors"
)

// SubmitRequest is the POST /commands payload.
type SubmitRequest struct {
	CommandText string `json:"command_text"`
}

// Validate enforces request-level invariants before the service runs.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.CommandText) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "command_text is required")
	}
	return nil
}

// DecisionResponse is the wire form of an admission decision.
type DecisionResponse struct {
	Status     string                   `json:"status"`
	Reason     string                   `json:"reason,omitempty"`
	CommandID  string                   `json:"command_id"`
	RuleID     string                   `json:"matched_rule_id,omitempty"`
	Result     *models.ExecutionResult  `json:"result,omitempty"`
	NewBalance *int                     `json:"new_balance,omitempty"`
}

// FromDecision maps a domain decision to its wire form.
func FromDecision(d *models.Decision) DecisionResponse {
	resp := DecisionResponse{
		Status:     strings.ToLower(d.Outcome.String()),
		Reason:     d.Reason.String(),
		CommandID:  d.CommandID.String(),
		Result:     d.Result,
		NewBalance: d.BalanceAfter,
	}
	if d.MatchedRuleID != nil {
		resp.RuleID = d.MatchedRuleID.String()
	}
	return resp
}

// CommandResponse is the wire form of a command record.
type CommandResponse struct {
	ID          string                  `json:"id"`
	ActorID     string                  `json:"actor_id"`
	CommandText string                  `json:"command_text"`
	RuleID      string                  `json:"matched_rule_id,omitempty"`
	Decision    string                  `json:"decision"`
	Cost        int                     `json:"cost"`
	Result      *models.ExecutionResult `json:"result,omitempty"`
	ExecutedAt  *time.Time              `json:"executed_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// FromRecord maps a command record to its wire form.
func FromRecord(rec *models.CommandRecord) CommandResponse {
	resp := CommandResponse{
		ID:          rec.ID.String(),
		ActorID:     rec.ActorID.String(),
		CommandText: rec.CommandText,
		Decision:    rec.Decision.String(),
		Cost:        rec.Cost,
		Result:      rec.Result,
		ExecutedAt:  rec.ExecutedAt,
		CreatedAt:   rec.CreatedAt,
	}
	if rec.MatchedRuleID != nil {
		resp.RuleID = rec.MatchedRuleID.String()
	}
	return resp
}

// FromRecords maps a record slice, never returning nil so the wire form is
// always a JSON array.
func FromRecords(recs []*models.CommandRecord) []CommandResponse {
	out := make([]CommandResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}
