package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"cmdgate/internal/admission/matcher"
	"cmdgate/internal/admission/models"
	"cmdgate/internal/admission/service"
	actorstore "cmdgate/internal/admission/store/actor"
	commandstore "cmdgate/internal/admission/store/command"
	rulestore "cmdgate/internal/admission/store/rule"
	"cmdgate/internal/executor"
	id "cmdgate/pkg/domain"
	"cmdgate/pkg/requestcontext"
)

// HandlerSuite drives the command endpoints through a real service wired to
// in-memory components; no mocks.
type HandlerSuite struct {
	suite.Suite
	ctx     context.Context
	router  http.Handler
	actors  *actorstore.InMemoryStore
	rules   *rulestore.InMemoryStore
	actorID id.ActorID
	adminID id.ActorID
}

func (s *HandlerSuite) SetupTest() {
	s.ctx = context.Background()
	s.actors = actorstore.NewInMemoryStore()
	s.rules = rulestore.NewInMemoryStore()
	commands := commandstore.NewInMemoryStore()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	svc, err := service.New(s.rules, s.actors, commands, matcher.New(), executor.NewSimulated(),
		service.WithLogger(logger))
	require.NoError(s.T(), err)

	s.actorID = s.seedActor(id.RoleMember, 100)
	s.adminID = s.seedActor(id.RoleAdmin, 100)
	s.seedRule(1, `^rm\s+-rf\s+/`, id.RuleActionAutoReject)
	s.seedRule(5, `^ls|^cat|^pwd|^echo`, id.RuleActionAutoAccept)

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	s.router = r
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) seedActor(role id.ActorRole, credits int) id.ActorID {
	now := time.Now().UTC()
	actor := &models.Actor{
		ID:           id.NewActorID(),
		Name:         "tester",
		APIKeyDigest: "digest-" + id.NewActorID().String(),
		Role:         role,
		Credits:      credits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(s.T(), s.actors.Create(s.ctx, actor))
	return actor.ID
}

func (s *HandlerSuite) seedRule(priority int, pattern string, action id.RuleAction) {
	require.NoError(s.T(), s.rules.Create(s.ctx, &models.Rule{
		ID:        id.NewRuleID(),
		Priority:  priority,
		Pattern:   pattern,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}))
}

// do sends a request with the given identity injected, the way the auth
// middleware would.
func (s *HandlerSuite) do(method, target string, body any, actorID id.ActorID, role id.ActorRole) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.T(), err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	ctx := requestcontext.WithActorID(req.Context(), actorID)
	ctx = requestcontext.WithActorRole(ctx, role)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// =============================================================================
// POST /commands
// =============================================================================

func (s *HandlerSuite) TestSubmit_Accepted() {
	rec := s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "ls -la"}, s.actorID, id.RoleMember)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var resp DecisionResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), "accepted", resp.Status)
	assert.NotEmpty(s.T(), resp.CommandID)
	assert.NotEmpty(s.T(), resp.RuleID)
	require.NotNil(s.T(), resp.NewBalance)
	assert.Equal(s.T(), 99, *resp.NewBalance)
	require.NotNil(s.T(), resp.Result)
	assert.Contains(s.T(), resp.Result.Stdout, "file1.txt")
}

func (s *HandlerSuite) TestSubmit_Rejected() {
	rec := s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "rm -rf /"}, s.actorID, id.RoleMember)
	require.Equal(s.T(), http.StatusOK, rec.Code, "a modeled rejection is still a 200 decision")

	var resp DecisionResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(s.T(), "rejected", resp.Status)
	assert.Equal(s.T(), "AUTO_REJECT", resp.Reason)
	assert.Nil(s.T(), resp.NewBalance)
}

func (s *HandlerSuite) TestSubmit_EmptyCommand() {
	rec := s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "   "}, s.actorID, id.RoleMember)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSubmit_InvalidJSON() {
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader([]byte("not json")))
	ctx := requestcontext.WithActorID(req.Context(), s.actorID)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSubmit_Unauthenticated() {
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewReader([]byte(`{"command_text":"ls"}`)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// GET /commands and GET /commands/{commandID}
// =============================================================================

func (s *HandlerSuite) TestList_OwnRecordsOnly() {
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "ls"}, s.actorID, id.RoleMember).Code)
	require.Equal(s.T(), http.StatusOK, s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "pwd"}, s.adminID, id.RoleAdmin).Code)

	rec := s.do(http.MethodGet, "/commands", nil, s.actorID, id.RoleMember)
	require.Equal(s.T(), http.StatusOK, rec.Code)

	var resp []CommandResponse
	require.NoError(s.T(), json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(s.T(), resp, 1)
	assert.Equal(s.T(), s.actorID.String(), resp[0].ActorID)
}

func (s *HandlerSuite) TestList_EmptyIsJSONArray() {
	rec := s.do(http.MethodGet, "/commands", nil, s.actorID, id.RoleMember)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.JSONEq(s.T(), "[]", rec.Body.String())
}

func (s *HandlerSuite) TestGet_OwnershipEnforced() {
	submit := s.do(http.MethodPost, "/commands", SubmitRequest{CommandText: "ls"}, s.actorID, id.RoleMember)
	require.Equal(s.T(), http.StatusOK, submit.Code)
	var decision DecisionResponse
	require.NoError(s.T(), json.NewDecoder(submit.Body).Decode(&decision))

	otherID := s.seedActor(id.RoleMember, 100)

	owner := s.do(http.MethodGet, "/commands/"+decision.CommandID, nil, s.actorID, id.RoleMember)
	assert.Equal(s.T(), http.StatusOK, owner.Code)

	stranger := s.do(http.MethodGet, "/commands/"+decision.CommandID, nil, otherID, id.RoleMember)
	assert.Equal(s.T(), http.StatusNotFound, stranger.Code, "other actors' records look absent, not forbidden")

	admin := s.do(http.MethodGet, "/commands/"+decision.CommandID, nil, s.adminID, id.RoleAdmin)
	assert.Equal(s.T(), http.StatusOK, admin.Code)
}

func (s *HandlerSuite) TestGet_BadID() {
	rec := s.do(http.MethodGet, "/commands/not-a-uuid", nil, s.actorID, id.RoleMember)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
}
