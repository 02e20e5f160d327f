package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

func newRecord(actorID id.ActorID, decision id.Outcome, createdAt time.Time) *models.CommandRecord {
	return &models.CommandRecord{
		ID:          id.NewCommandID(),
		ActorID:     actorID,
		CommandText: "ls -la",
		Decision:    decision,
		CreatedAt:   createdAt,
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := newRecord(id.NewActorID(), id.OutcomeAccepted, time.Now().UTC())

	require.NoError(t, store.Create(ctx, rec))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)

	missing, err := store.Get(ctx, id.NewCommandID())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestListByActor_NewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	actorID := id.NewActorID()
	base := time.Now().UTC()

	oldest := newRecord(actorID, id.OutcomeAccepted, base.Add(-2*time.Hour))
	middle := newRecord(actorID, id.OutcomeRejected, base.Add(-time.Hour))
	newest := newRecord(actorID, id.OutcomeAccepted, base)
	other := newRecord(id.NewActorID(), id.OutcomeAccepted, base)
	for _, rec := range []*models.CommandRecord{oldest, newest, middle, other} {
		require.NoError(t, store.Create(ctx, rec))
	}

	recs, err := store.ListByActor(ctx, actorID, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3, "only the actor's own records are listed")
	assert.Equal(t, newest.ID, recs[0].ID)
	assert.Equal(t, middle.ID, recs[1].ID)
	assert.Equal(t, oldest.ID, recs[2].ID)
}

func TestListByActor_Pagination(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	actorID := id.NewActorID()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Create(ctx, newRecord(actorID, id.OutcomeAccepted, base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := store.ListByActor(ctx, actorID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	past, err := store.ListByActor(ctx, actorID, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestListPending_OldestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Now().UTC()

	newerPending := newRecord(id.NewActorID(), id.OutcomePending, base)
	olderPending := newRecord(id.NewActorID(), id.OutcomePending, base.Add(-time.Hour))
	accepted := newRecord(id.NewActorID(), id.OutcomeAccepted, base.Add(-2*time.Hour))
	for _, rec := range []*models.CommandRecord{newerPending, olderPending, accepted} {
		require.NoError(t, store.Create(ctx, rec))
	}

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, olderPending.ID, pending[0].ID)
	assert.Equal(t, newerPending.ID, pending[1].ID)
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := newRecord(id.NewActorID(), id.OutcomePending, time.Now().UTC())
	require.NoError(t, store.Create(ctx, rec))

	resolved := *rec
	resolved.Decision = id.OutcomeAccepted
	resolved.Cost = 1
	require.NoError(t, store.Resolve(ctx, rec.ID, &resolved))

	got, err := store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id.OutcomeAccepted, got.Decision)
	assert.Equal(t, 1, got.Cost)
}

func TestResolve_AlreadyResolved(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	rec := newRecord(id.NewActorID(), id.OutcomeAccepted, time.Now().UTC())
	require.NoError(t, store.Create(ctx, rec))

	resolved := *rec
	resolved.Decision = id.OutcomeRejected
	err := store.Resolve(ctx, rec.ID, &resolved)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "terminal records are immutable")
}

func TestResolve_Missing(t *testing.T) {
	store := NewInMemoryStore()
	rec := newRecord(id.NewActorID(), id.OutcomeAccepted, time.Now().UTC())

	err := store.Resolve(context.Background(), id.NewCommandID(), rec)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
