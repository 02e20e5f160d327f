// Package service implements the admission pipeline: the state machine that
// composes the rule matcher and the credit ledger into one decision per
// submitted command.
//
// The pipeline never raises a fault for a normal decision path; every reason
// in the closed vocabulary is a modeled outcome. Only collaborator failures
// (store unreachable, executor fault) surface as errors, so callers can
// always distinguish "decided to reject" from "could not decide".
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"cmdgate/internal/admission/matcher"
	"cmdgate/internal/admission/metrics"
	"cmdgate/internal/admission/models"
	"cmdgate/internal/admission/ports"
	"cmdgate/internal/audit"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// DefaultCommandCost is the flat per-command charge.
const DefaultCommandCost = 1

type Service struct {
	rules          ports.RuleStore
	actors         ports.ActorStore
	commands       ports.CommandStore
	matcher        *matcher.Matcher
	executor       ports.Executor
	notifier       ports.Notifier
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	cost           int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(notifier ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCommandCost overrides the flat per-command charge.
func WithCommandCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func New(rules ports.RuleStore, actors ports.ActorStore, commands ports.CommandStore, m *matcher.Matcher, executor ports.Executor, opts ...Option) (*Service, error) {
	if rules == nil {
		return nil, fmt.Errorf("rule store is required")
	}
	if actors == nil {
		return nil, fmt.Errorf("actor store is required")
	}
	if commands == nil {
		return nil, fmt.Errorf("command store is required")
	}
	if m == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}

	svc := &Service{
		rules:    rules,
		actors:   actors,
		commands: commands,
		matcher:  m,
		executor: executor,
		tracer:   otel.Tracer("cmdgate/admission"),
		cost:     DefaultCommandCost,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Admit decides whether actorID may execute commandText, charging the flat
// cost exactly once on acceptance. The decision and its effects (command
// record, audit event, notifications) are fully computed before any effect
// is dispatched, and the debit is committed before the acceptance
// notification goes out.
func (s *Service) Admit(ctx context.Context, actorID id.ActorID, commandText string) (*models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "admission.Admit")
	defer span.End()
	start := time.Now()

	// Step 1: balance pre-check. An optimization and a precise reason: a
	// broke actor is rejected before any rule evaluation. Step 4 remains
	// the authority under concurrency.
	balance, err := s.actors.Balance(ctx, actorID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "balance pre-check failed")
	}
	if balance < s.cost {
		return s.finishRejected(ctx, span, start, actorID, commandText, id.ReasonInsufficientCredits, nil, false)
	}

	// Step 2: match against a consistent rule-set snapshot.
	rules, err := s.rules.ListOrdered(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rule set")
	}
	matched, err := s.matcher.Match(ctx, rules, commandText)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "rule matching failed")
	}
	if matched == nil {
		// Default deny: no explicit rule means no admission.
		return s.finishRejected(ctx, span, start, actorID, commandText, id.ReasonNoMatchingRule, nil, false)
	}

	// Step 3: dispatch on the matched rule's action.
	switch matched.Action {
	case id.RuleActionAutoReject:
		return s.finishRejected(ctx, span, start, actorID, commandText, id.ReasonAutoReject, &matched.ID, true)

	case id.RuleActionRequireApproval:
		return s.finishPending(ctx, span, start, actorID, commandText, matched)

	case id.RuleActionAutoAccept:
		return s.finishAccepted(ctx, span, start, actorID, commandText, matched)

	default:
		return nil, dErrors.New(dErrors.CodeInternal, "unknown rule action")
	}
}

// finishAccepted runs the authoritative debit and, on success, the executor.
// The debit may still fail here even after the step-1 pre-check: the balance
// can change between the two under concurrent submissions.
func (s *Service) finishAccepted(ctx context.Context, span trace.Span, start time.Time, actorID id.ActorID, commandText string, matched *models.Rule) (*models.Decision, error) {
	newBalance, err := s.actors.TryDebit(ctx, actorID, s.cost)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInsufficientCredits) {
			if s.metrics != nil {
				s.metrics.DebitFailures.Inc()
			}
			return s.finishRejected(ctx, span, start, actorID, commandText, id.ReasonInsufficientCredits, &matched.ID, false)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err), "debit failed")
	}

	// The debit is committed; a fault from here on propagates without
	// reversal. Admission is effects-first, not speculative.
	result, err := s.executor.Run(ctx, commandText)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "execution collaborator failed")
	}

	now := time.Now().UTC()
	rec := &models.CommandRecord{
		ID:            id.NewCommandID(),
		ActorID:       actorID,
		CommandText:   commandText,
		MatchedRuleID: &matched.ID,
		Decision:      id.OutcomeAccepted,
		Cost:          s.cost,
		Result:        result,
		ExecutedAt:    &now,
		CreatedAt:     now,
	}
	if err := s.commands.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist command record")
	}

	decision := &models.Decision{
		Outcome:       id.OutcomeAccepted,
		CommandID:     rec.ID,
		MatchedRuleID: &matched.ID,
		Result:        result,
		BalanceAfter:  &newBalance,
	}

	s.observe(span, start, decision)
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		ActorID: actorID,
		Action:  audit.EventCommandAccepted,
		Details: map[string]any{
			"command_id": rec.ID.String(),
			"rule_id":    matched.ID.String(),
			"cost":       s.cost,
		},
	}, "actor_id", actorID, "command_id", rec.ID)

	s.notify(ctx, models.Notification{
		Target: models.NotificationTarget{ActorID: actorID},
		Type:   "command_update",
		Payload: map[string]any{
			"command_id":  rec.ID.String(),
			"status":      "executed",
			"result":      result,
			"new_balance": newBalance,
		},
	})
	return decision, nil
}

func (s *Service) finishPending(ctx context.Context, span trace.Span, start time.Time, actorID id.ActorID, commandText string, matched *models.Rule) (*models.Decision, error) {
	rec := &models.CommandRecord{
		ID:            id.NewCommandID(),
		ActorID:       actorID,
		CommandText:   commandText,
		MatchedRuleID: &matched.ID,
		Decision:      id.OutcomePending,
		Cost:          0,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.commands.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist command record")
	}

	decision := &models.Decision{
		Outcome:       id.OutcomePending,
		Reason:        id.ReasonPendingApproval,
		CommandID:     rec.ID,
		MatchedRuleID: &matched.ID,
	}

	s.observe(span, start, decision)
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		ActorID: actorID,
		Action:  audit.EventCommandPending,
		Details: map[string]any{
			"command_id": rec.ID.String(),
			"rule_id":    matched.ID.String(),
		},
	}, "actor_id", actorID, "command_id", rec.ID)

	s.notify(ctx, models.Notification{
		Target: models.NotificationTarget{AllAdmins: true},
		Type:   "approval_request",
		Payload: map[string]any{
			"command_id":   rec.ID.String(),
			"command_text": commandText,
			"submitted_by": actorID.String(),
		},
	})
	s.notify(ctx, models.Notification{
		Target: models.NotificationTarget{ActorID: actorID},
		Type:   "command_update",
		Payload: map[string]any{
			"command_id": rec.ID.String(),
			"status":     "pending",
		},
	})
	return decision, nil
}

// finishRejected terminalizes a rejection. Step-1 and no-match rejections
// carry no notification: no rule matched, so there is nothing actionable to
// tell the actor beyond the direct response.
func (s *Service) finishRejected(ctx context.Context, span trace.Span, start time.Time, actorID id.ActorID, commandText string, reason id.ReasonCode, matchedRuleID *id.RuleID, notifyActor bool) (*models.Decision, error) {
	rec := &models.CommandRecord{
		ID:            id.NewCommandID(),
		ActorID:       actorID,
		CommandText:   commandText,
		MatchedRuleID: matchedRuleID,
		Decision:      id.OutcomeRejected,
		Cost:          0,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.commands.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist command record")
	}

	decision := &models.Decision{
		Outcome:       id.OutcomeRejected,
		Reason:        reason,
		CommandID:     rec.ID,
		MatchedRuleID: matchedRuleID,
	}

	s.observe(span, start, decision)
	details := map[string]any{
		"command_id": rec.ID.String(),
		"reason":     reason.String(),
	}
	if matchedRuleID != nil {
		details["rule_id"] = matchedRuleID.String()
	}
	ports.LogAudit(ctx, s.logger, s.auditPublisher, audit.Event{
		ActorID: actorID,
		Action:  audit.EventCommandRejected,
		Details: details,
	}, "actor_id", actorID, "command_id", rec.ID, "reason", reason)

	if notifyActor {
		s.notify(ctx, models.Notification{
			Target: models.NotificationTarget{ActorID: actorID},
			Type:   "command_update",
			Payload: map[string]any{
				"command_id": rec.ID.String(),
				"status":     "rejected",
				"reason":     reason.String(),
			},
		})
	}
	return decision, nil
}

// ValidatePattern checks a rule pattern at authoring time. See
// matcher.Validate for the budget semantics and their limits.
func (s *Service) ValidatePattern(pattern string) error {
	return s.matcher.Validate(pattern)
}

// Commands returns an actor's command history, newest first.
func (s *Service) Commands(ctx context.Context, actorID id.ActorID, offset, limit int) ([]*models.CommandRecord, error) {
	recs, err := s.commands.ListByActor(ctx, actorID, offset, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list command records")
	}
	return recs, nil
}

// Command returns one command record, or a not_found error.
func (s *Service) Command(ctx context.Context, commandID id.CommandID) (*models.CommandRecord, error) {
	rec, err := s.commands.Get(ctx, commandID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load command record")
	}
	if rec == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "command not found")
	}
	return rec, nil
}

// PendingCommands returns all records awaiting approval, oldest first.
func (s *Service) PendingCommands(ctx context.Context) ([]*models.CommandRecord, error) {
	recs, err := s.commands.ListPending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list pending commands")
	}
	return recs, nil
}

func (s *Service) observe(span trace.Span, start time.Time, decision *models.Decision) {
	span.SetAttributes(
		attribute.String("admission.outcome", decision.Outcome.String()),
		attribute.String("admission.reason", decision.Reason.String()),
	)
	if s.metrics != nil {
		s.metrics.ObserveDecision(decision.Outcome.String(), decision.Reason.String(), time.Since(start).Seconds())
	}
}

func (s *Service) notify(ctx context.Context, n models.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, n); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "notification delivery failed",
			"type", n.Type,
			"error", err,
		)
	}
}
