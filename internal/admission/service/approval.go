package service

import (
	"context"
	"time"

	"cmdgate/internal/admission/models"
	"cmdgate/internal/admission/ports"
	"cmdgate/internal/audit"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// Resolve moves a PENDING command record to a terminal decision. Approval
// re-runs the debit+execute leg of the pipeline, so the at-most-one-debit
// invariant holds here exactly as it does for auto-accepted commands; a
// concurrent resolution of the same record loses with a conflict error.
func (s *Service) Resolve(ctx context.Context, commandID id.CommandID, approve bool, resolvedBy id.ActorID) (*models.Decision, error) {
	rec, err := s.commands.Get(ctx, commandID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load command record")
	}
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "command not found")
	}
	if rec.Decision != id.OutcomePending {
		return nil, dErrors.New(dErrors.CodeConflict, "command is not pending approval")
	}

	if !approve {
		return s.resolveRejected(ctx, rec, resolvedBy, id.ReasonAutoReject)
	}

	newBalance, err := s.actors.TryDebit(ctx, rec.ActorID, s.cost)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInsufficientCredits) {
			// The actor ran dry while the command sat in the queue.
			return s.resolveRejected(ctx, rec, resolvedBy, id.ReasonInsufficientCredits)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "debit failed")
	}

	result, err := s.executor.Run(ctx, rec.CommandText)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "execution collaborator failed")
	}

	now := time.Now().UTC()
	resolved := *rec
	resolved.Decision = id.OutcomeAccepted
	resolved.Cost = s.cost
	resolved.Result = result
	resolved.ExecutedAt = &now
	if err := s.commands.Resolve(ctx, commandID, &resolved); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Lost the PENDING transition to a concurrent resolution. Return
			// the debit so the record's winner owns the only charge.
			if _, cerr := s.actors.Credit(ctx, rec.ActorID, s.cost); cerr != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to return debit after lost resolution",
					"command_id", commandID,
					"actor_id", rec.ActorID,
					"error", cerr,
				)
			}
		}
		return nil, err
	}

	decision := &models.Decision{
		Outcome:       id.OutcomeAccepted,
		CommandID:     commandID,
		MatchedRuleID: rec.MatchedRuleID,
		Result:        result,
		BalanceAfter:  &newBalance,
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		ActorID: resolvedBy,
		Action:  audit.EventCommandResolved,
		Details: map[string]any{
			"command_id": commandID.String(),
			"outcome":    id.OutcomeAccepted.String(),
			"actor_id":   rec.ActorID.String(),
		},
	}, "command_id", commandID, "resolved_by", resolvedBy)

	s.notify(ctx, models.Notification{
		Target: models.NotificationTarget{ActorID: rec.ActorID},
		Type:   "command_update",
		Payload: map[string]any{
			"command_id":  commandID.String(),
			"status":      "executed",
			"result":      result,
			"new_balance": newBalance,
		},
	})
	return decision, nil
}

func (s *Service) resolveRejected(ctx context.Context, rec *models.CommandRecord, resolvedBy id.ActorID, reason id.ReasonCode) (*models.Decision, error) {
	resolved := *rec
	resolved.Decision = id.OutcomeRejected
	resolved.Cost = 0
	if err := s.commands.Resolve(ctx, rec.ID, &resolved); err != nil {
		return nil, err
	}

	decision := &models.Decision{
		Outcome:       id.OutcomeRejected,
		Reason:        reason,
		CommandID:     rec.ID,
		MatchedRuleID: rec.MatchedRuleID,
	}

	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		ActorID: resolvedBy,
		Action:  audit.EventCommandResolved,
		Details: map[string]any{
			"command_id": rec.ID.String(),
			"outcome":    id.OutcomeRejected.String(),
			"reason":     reason.String(),
			"actor_id":   rec.ActorID.String(),
		},
	}, "command_id", rec.ID, "resolved_by", resolvedBy)

	s.notify(ctx, models.Notification{
		Target: models.NotificationTarget{ActorID: rec.ActorID},
		Type:   "command_update",
		Payload: map[string]any{
			"command_id": rec.ID.String(),
			"status":     "rejected",
			"reason":     reason.String(),
		},
	})
	return decision, nil
}
