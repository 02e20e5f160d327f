package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
	"cmdgate/pkg/platform/httputil"
	"cmdgate/pkg/requestcontext"
)

// Service defines the admission operations the handler needs.
type Service interface {
	Admit(ctx context.Context, actorID id.ActorID, commandText string) (*models.Decision, error)
	Commands(ctx context.Context, actorID id.ActorID, offset, limit int) ([]*models.CommandRecord, error)
	Command(ctx context.Context, commandID id.CommandID) (*models.CommandRecord, error)
}

// Handler wires command submission endpoints to the admission service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts command endpoints on the router. The router must already
// enforce actor authentication.
func (h *Handler) Register(r chi.Router) {
	r.Post("/commands", h.HandleSubmit)
	r.Get("/commands", h.HandleList)
	r.Get("/commands/{commandID}", h.HandleGet)
}

// HandleSubmit handles POST /commands: one admission decision per call.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.service.Admit(ctx, actorID, req.CommandText)
	if err != nil {
		h.logger.ErrorContext(ctx, "admission failed",
			"request_id", requestID,
			"actor_id", actorID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "command admitted",
		"request_id", requestID,
		"actor_id", actorID,
		"outcome", decision.Outcome,
		"reason", decision.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromDecision(decision))
}

// HandleList handles GET /commands: the caller's history, newest first.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	offset, limit := pagination(r, 100)
	recs, err := h.service.Commands(ctx, actorID, offset, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecords(recs))
}

// HandleGet handles GET /commands/{commandID}. Members only see their own
// records; admins see all.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actorID := requestcontext.ActorID(ctx)
	if actorID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	commandID, err := id.ParseCommandID(chi.URLParam(r, "commandID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Command(ctx, commandID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if rec.ActorID != actorID && requestcontext.ActorRole(ctx) != id.RoleAdmin {
		// Not found rather than forbidden: do not reveal other actors' data.
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "command not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRecord(rec))
}

func pagination(r *http.Request, defaultLimit int) (offset, limit int) {
	limit = defaultLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= defaultLimit {
		limit = v
	}
	return offset, limit
}
