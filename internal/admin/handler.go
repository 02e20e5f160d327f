// Package admin exposes operator endpoints: actor provisioning, rule
// authoring, audit inspection, and resolution of pending commands. Routes
// must be mounted behind actor authentication plus the admin role check.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	admissionhandler "cmdgate/internal/admission/handler"
	"cmdgate/internal/admission/models"
	"cmdgate/internal/admission/ports"
	"cmdgate/internal/audit"
	"cmdgate/internal/platform/apikey"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
	"cmdgate/pkg/platform/httputil"
	"cmdgate/pkg/requestcontext"
)

// Resolver is the slice of the admission service the admin surface needs.
type Resolver interface {
	PendingCommands(ctx context.Context) ([]*models.CommandRecord, error)
	Resolve(ctx context.Context, commandID id.CommandID, approve bool, resolvedBy id.ActorID) (*models.Decision, error)
	ValidatePattern(pattern string) error
}

// AuditLister reads back persisted audit events.
type AuditLister interface {
	List(ctx context.Context, offset, limit int) ([]audit.Event, error)
}

type Handler struct {
	actors         ports.ActorStore
	rules          ports.RuleStore
	resolver       Resolver
	auditLogs      AuditLister
	auditPublisher ports.AuditPublisher
	logger         *slog.Logger
	defaultCredits int
}

type Option func(*Handler)

// WithDefaultCredits sets the balance new actors start with when the
// creation request does not specify one.
func WithDefaultCredits(credits int) Option {
	return func(h *Handler) {
		h.defaultCredits = credits
	}
}

func New(actors ports.ActorStore, rules ports.RuleStore, resolver Resolver, auditLogs AuditLister, auditPublisher ports.AuditPublisher, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		actors:         actors,
		rules:          rules,
		resolver:       resolver,
		auditLogs:      auditLogs,
		auditPublisher: auditPublisher,
		logger:         logger,
		defaultCredits: 100,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the admin routes. The router must already enforce
// authentication and the admin role.
func (h *Handler) Register(r chi.Router) {
	r.Post("/actors", h.HandleCreateActor)
	r.Get("/actors", h.HandleListActors)
	r.Put("/actors/{actorID}", h.HandleUpdateActor)

	r.Post("/rules", h.HandleCreateRule)
	r.Get("/rules", h.HandleListRules)
	r.Put("/rules/{ruleID}", h.HandleUpdateRule)
	r.Delete("/rules/{ruleID}", h.HandleDeleteRule)

	r.Get("/commands/pending", h.HandlePendingCommands)
	r.Post("/commands/{commandID}/resolve", h.HandleResolveCommand)

	r.Get("/audit-logs", h.HandleAuditLogs)
}

// HandleCreateActor provisions an actor and returns its API key. The key is
// shown once; only the digest is stored.
func (h *Handler) HandleCreateActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateActorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}
	role, err := id.ParseActorRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key, digest, err := apikey.Generate()
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate API key"))
		return
	}

	credits := h.defaultCredits
	if req.Credits != nil {
		credits = *req.Credits
	}
	now := time.Now().UTC()
	actor := &models.Actor{
		ID:           id.NewActorID(),
		Name:         strings.TrimSpace(req.Name),
		APIKeyDigest: digest,
		Role:         role,
		Credits:      credits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.actors.Create(ctx, actor); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ports.LogAudit(ctx, h.logger, h.auditPublisher, audit.Event{
		ActorID: requestcontext.ActorID(ctx),
		Action:  audit.EventActorCreated,
		Details: map[string]any{
			"actor_id": actor.ID.String(),
			"name":     actor.Name,
			"role":     actor.Role.String(),
			"credits":  actor.Credits,
		},
	}, "actor_id", actor.ID)

	resp := fromActor(actor)
	resp.APIKey = key
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// HandleListActors handles GET /actors.
func (h *Handler) HandleListActors(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actors, err := h.actors.List(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]ActorResponse, 0, len(actors))
	for _, a := range actors {
		out = append(out, fromActor(a))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleUpdateActor handles PUT /actors/{actorID}. Only the credit balance
// is mutable; identity fields are fixed at creation.
func (h *Handler) HandleUpdateActor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	actorID, err := id.ParseActorID(chi.URLParam(r, "actorID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[UpdateActorRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.Credits == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credits is required"))
		return
	}
	if *req.Credits < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "credits must not be negative"))
		return
	}

	if err := h.actors.SetCredits(ctx, actorID, *req.Credits); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ports.LogAudit(ctx, h.logger, h.auditPublisher, audit.Event{
		ActorID: requestcontext.ActorID(ctx),
		Action:  audit.EventActorUpdated,
		Details: map[string]any{
			"actor_id": actorID.String(),
			"credits":  *req.Credits,
		},
	}, "actor_id", actorID)

	actor, err := h.actors.Get(ctx, actorID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if actor == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "actor not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromActor(actor))
}

// HandleCreateRule handles POST /rules. The pattern is compiled and probed
// before the rule is persisted so an unsafe pattern never enters the set.
func (h *Handler) HandleCreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rule, err := h.ruleFromRequest(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	rule.ID = id.NewRuleID()
	rule.CreatedAt = time.Now().UTC()

	if err := h.rules.Create(ctx, rule); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ports.LogAudit(ctx, h.logger, h.auditPublisher, audit.Event{
		ActorID: requestcontext.ActorID(ctx),
		Action:  audit.EventRuleCreated,
		Details: map[string]any{
			"rule_id":  rule.ID.String(),
			"priority": rule.Priority,
			"pattern":  rule.Pattern,
			"action":   rule.Action.String(),
		},
	}, "rule_id", rule.ID)

	httputil.WriteJSON(w, http.StatusCreated, fromRule(rule))
}

// HandleListRules handles GET /rules, returned in match order.
func (h *Handler) HandleListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules, err := h.rules.ListOrdered(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]RuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, fromRule(rule))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleUpdateRule handles PUT /rules/{ruleID}.
func (h *Handler) HandleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RuleRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rule, err := h.ruleFromRequest(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	existing, err := h.rules.Get(ctx, ruleID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if existing == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "rule not found"))
		return
	}
	rule.ID = ruleID
	rule.CreatedAt = existing.CreatedAt

	if err := h.rules.Update(ctx, rule); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ports.LogAudit(ctx, h.logger, h.auditPublisher, audit.Event{
		ActorID: requestcontext.ActorID(ctx),
		Action:  audit.EventRuleUpdated,
		Details: map[string]any{
			"rule_id":  rule.ID.String(),
			"priority": rule.Priority,
			"pattern":  rule.Pattern,
			"action":   rule.Action.String(),
		},
	}, "rule_id", rule.ID)

	httputil.WriteJSON(w, http.StatusOK, fromRule(rule))
}

// HandleDeleteRule handles DELETE /rules/{ruleID}.
func (h *Handler) HandleDeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ruleID, err := id.ParseRuleID(chi.URLParam(r, "ruleID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.rules.Delete(ctx, ruleID); err != nil {
		httputil.WriteError(w, err)
		return
	}

	ports.LogAudit(ctx, h.logger, h.auditPublisher, audit.Event{
		ActorID: requestcontext.ActorID(ctx),
		Action:  audit.EventRuleDeleted,
		Details: map[string]any{"rule_id": ruleID.String()},
	}, "rule_id", ruleID)

	w.WriteHeader(http.StatusNoContent)
}

// HandlePendingCommands handles GET /commands/pending, oldest first.
func (h *Handler) HandlePendingCommands(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, err := h.resolver.PendingCommands(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, admissionhandler.FromRecords(recs))
}

// HandleResolveCommand handles POST /commands/{commandID}/resolve.
func (h *Handler) HandleResolveCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	commandID, err := id.ParseCommandID(chi.URLParam(r, "commandID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	decision, err := h.resolver.Resolve(ctx, commandID, req.Approve, requestcontext.ActorID(ctx))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "command resolved",
		"request_id", requestID,
		"command_id", commandID,
		"approve", req.Approve,
		"outcome", decision.Outcome,
	)
	httputil.WriteJSON(w, http.StatusOK, admissionhandler.FromDecision(decision))
}

// HandleAuditLogs handles GET /audit-logs, newest first.
func (h *Handler) HandleAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	offset, limit := 0, 100
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}

	events, err := h.auditLogs.List(ctx, offset, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]AuditLogResponse, 0, len(events))
	for _, e := range events {
		out = append(out, fromAuditEvent(e))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// ruleFromRequest validates the shared create/update payload and returns the
// rule with its mutable fields populated.
func (h *Handler) ruleFromRequest(req RuleRequest) (*models.Rule, error) {
	if req.Priority == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "priority is required")
	}
	if strings.TrimSpace(req.Pattern) == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "pattern is required")
	}
	action, err := id.ParseRuleAction(req.Action)
	if err != nil {
		return nil, err
	}
	if err := h.resolver.ValidatePattern(req.Pattern); err != nil {
		return nil, err
	}
	return &models.Rule{
		Priority:    *req.Priority,
		Pattern:     req.Pattern,
		Action:      action,
		Description: req.Description,
	}, nil
}
