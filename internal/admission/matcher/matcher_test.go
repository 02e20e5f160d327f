package matcher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

func rule(priority int, pattern string, action id.RuleAction) *models.Rule {
	return &models.Rule{
		ID:        id.NewRuleID(),
		Priority:  priority,
		Pattern:   pattern,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// Match ordering and precedence
// =============================================================================

func TestMatch_FirstMatchByPriorityWins(t *testing.T) {
	m := New()
	deny := rule(1, `^rm\s+-rf\s+/`, id.RuleActionAutoReject)
	allow := rule(5, `^ls|^cat|^pwd|^echo`, id.RuleActionAutoAccept)
	catchAll := rule(100, `.*`, id.RuleActionAutoReject)

	matched, err := m.Match(context.Background(), []*models.Rule{catchAll, allow, deny}, "ls -la")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, allow.ID, matched.ID, "lowest matching priority must win even when input is unsorted")
}

func TestMatch_EarlierRuleShadowsLater(t *testing.T) {
	m := New()
	deny := rule(1, `^rm\s+-rf\s+/`, id.RuleActionAutoReject)
	catchAll := rule(100, `.*`, id.RuleActionAutoReject)

	matched, err := m.Match(context.Background(), []*models.Rule{deny, catchAll}, "rm -rf /")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, deny.ID, matched.ID)
}

func TestMatch_TiebreakByCreationTime(t *testing.T) {
	m := New()
	older := rule(10, `^sudo`, id.RuleActionRequireApproval)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := rule(10, `sudo`, id.RuleActionAutoReject)

	matched, err := m.Match(context.Background(), []*models.Rule{newer, older}, "sudo reboot")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, older.ID, matched.ID, "equal priorities break ties by creation time")
}

func TestMatch_NoMatchReturnsNilNil(t *testing.T) {
	m := New()
	allow := rule(5, `^ls`, id.RuleActionAutoAccept)

	matched, err := m.Match(context.Background(), []*models.Rule{allow}, "curl http://example.com")
	require.NoError(t, err)
	assert.Nil(t, matched, "no matching rule is a normal outcome, not an error")
}

func TestMatch_EmptyRuleSet(t *testing.T) {
	m := New()

	matched, err := m.Match(context.Background(), nil, "anything")
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestMatch_Deterministic(t *testing.T) {
	m := New()
	rules := []*models.Rule{
		rule(1, `^rm\s+-rf\s+/`, id.RuleActionAutoReject),
		rule(5, `^ls|^cat|^pwd|^echo`, id.RuleActionAutoAccept),
		rule(10, `^sudo`, id.RuleActionRequireApproval),
		rule(100, `.*`, id.RuleActionAutoReject),
	}

	first, err := m.Match(context.Background(), rules, "cat /etc/hostname")
	require.NoError(t, err)
	require.NotNil(t, first)
	for i := 0; i < 20; i++ {
		again, err := m.Match(context.Background(), rules, "cat /etc/hostname")
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, first.ID, again.ID, "same snapshot and text must always pick the same rule")
	}
}

// =============================================================================
// Pattern semantics
// =============================================================================

func TestMatch_CaseInsensitive(t *testing.T) {
	m := New()
	allow := rule(5, `^ls`, id.RuleActionAutoAccept)

	matched, err := m.Match(context.Background(), []*models.Rule{allow}, "LS -LA")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, allow.ID, matched.ID)
}

func TestMatch_UnanchoredSearch(t *testing.T) {
	m := New()
	r := rule(5, `reboot`, id.RuleActionAutoReject)

	matched, err := m.Match(context.Background(), []*models.Rule{r}, "sudo reboot now")
	require.NoError(t, err)
	require.NotNil(t, matched, "patterns match anywhere in the command text")
}

func TestMatch_MalformedPatternSkipped(t *testing.T) {
	m := New()
	broken := rule(1, `[unclosed`, id.RuleActionAutoReject)
	catchAll := rule(100, `.*`, id.RuleActionAutoReject)

	matched, err := m.Match(context.Background(), []*models.Rule{broken, catchAll}, "ls")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, catchAll.ID, matched.ID, "a malformed rule is skipped, not fatal")
}

func TestMatch_CanceledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Match(ctx, []*models.Rule{rule(5, `^ls`, id.RuleActionAutoAccept)}, "ls")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	m := New()

	assert.NoError(t, m.Validate(`^ls`))
	assert.NoError(t, m.Validate(`.*`))

	err := m.Validate(`[invalid`)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestWithTimeoutObserver(t *testing.T) {
	// A nanosecond budget against megabytes of input makes every evaluation
	// exceed its budget, so the observer fires once per skipped rule and the
	// match falls through to no-match.
	calls := 0
	m := New(WithBudget(time.Nanosecond), WithTimeoutObserver(func() { calls++ }))
	text := strings.Repeat("a", 8<<20)

	matched, err := m.Match(context.Background(), []*models.Rule{
		rule(5, `a.*b`, id.RuleActionAutoAccept),
		rule(10, `a.*c`, id.RuleActionAutoAccept),
	}, text)
	require.NoError(t, err)
	assert.Nil(t, matched)
	assert.Equal(t, 2, calls)
}

func TestMatch_CompileCountsAgainstBudget(t *testing.T) {
	// A megabyte-long pattern against a short input: the match itself is
	// instant, so only a budget that covers compilation can expire here.
	calls := 0
	m := New(WithBudget(time.Nanosecond), WithTimeoutObserver(func() { calls++ }))
	pattern := strings.Repeat("a", 1<<20)

	matched, err := m.Match(context.Background(), []*models.Rule{
		rule(5, pattern, id.RuleActionAutoAccept),
	}, "ls -la")
	require.NoError(t, err)
	assert.Nil(t, matched)
	assert.Equal(t, 1, calls)
}
