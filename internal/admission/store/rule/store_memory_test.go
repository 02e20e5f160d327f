package rule

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

func newRule(priority int, pattern string) *models.Rule {
	return &models.Rule{
		ID:        id.NewRuleID(),
		Priority:  priority,
		Pattern:   pattern,
		Action:    id.RuleActionAutoAccept,
		CreatedAt: time.Now().UTC(),
	}
}

func TestListOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	catchAll := newRule(100, `.*`)
	deny := newRule(1, `^rm`)
	approval := newRule(10, `^sudo`)
	for _, r := range []*models.Rule{catchAll, deny, approval} {
		require.NoError(t, store.Create(ctx, r))
	}

	rules, err := store.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, deny.ID, rules[0].ID)
	assert.Equal(t, approval.ID, rules[1].ID)
	assert.Equal(t, catchAll.ID, rules[2].ID)
}

func TestListOrdered_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := newRule(5, `^ls`)
	require.NoError(t, store.Create(ctx, r))

	snapshot, err := store.ListOrdered(ctx)
	require.NoError(t, err)
	snapshot[0].Pattern = `mutated`

	again, err := store.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, `^ls`, again[0].Pattern, "snapshots must not alias store state")
}

func TestCreate_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := newRule(5, `^ls`)

	require.NoError(t, store.Create(ctx, r))
	err := store.Create(ctx, r)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := newRule(5, `^ls`)
	require.NoError(t, store.Create(ctx, r))

	r.Priority = 7
	r.Pattern = `^ls|^cat`
	require.NoError(t, store.Update(ctx, r))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 7, got.Priority)
	assert.Equal(t, `^ls|^cat`, got.Pattern)
}

func TestUpdate_Missing(t *testing.T) {
	store := NewInMemoryStore()

	err := store.Update(context.Background(), newRule(5, `^ls`))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	r := newRule(5, `^ls`)
	require.NoError(t, store.Create(ctx, r))

	require.NoError(t, store.Delete(ctx, r.ID))

	got, err := store.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	err = store.Delete(ctx, r.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
