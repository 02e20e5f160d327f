// Package matcher evaluates an ordered rule set against a command string.
// It is a pure function of (rules, command text): no state, no side effects,
// safe for unsynchronized concurrent use against rule-set snapshots.
package matcher

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"cmdgate/internal/admission/models"
	dErrors "cmdgate/pkg/domain-errors"
)

// DefaultBudget bounds wall-clock time spent on a single rule's pattern.
const DefaultBudget = 5 * time.Second

type Matcher struct {
	budget    time.Duration
	logger    *slog.Logger
	onTimeout func()
}

type Option func(*Matcher)

func WithBudget(budget time.Duration) Option {
	return func(m *Matcher) {
		m.budget = budget
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithTimeoutObserver registers a callback invoked each time a rule is
// skipped for exceeding the budget. Used for metrics.
func WithTimeoutObserver(fn func()) Option {
	return func(m *Matcher) {
		m.onTimeout = fn
	}
}

func New(opts ...Option) *Matcher {
	m := &Matcher{budget: DefaultBudget}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match returns the first rule whose pattern matches commandText, or nil when
// none does. Rules must already be in precedence order (models.SortRules);
// Match re-sorts defensively so callers cannot break precedence by passing an
// unsorted slice.
//
// Patterns match case-insensitively as an unanchored search. A rule whose
// pattern fails to compile, or whose evaluation exceeds the per-rule budget,
// is skipped and evaluation continues with the next rule; neither aborts the
// whole operation. A nil return with nil error is the normal no-match case.
func (m *Matcher) Match(ctx context.Context, rules []*models.Rule, commandText string) (*models.Rule, error) {
	ordered := make([]*models.Rule, len(rules))
	copy(ordered, rules)
	models.SortRules(ordered)

	for _, rule := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "match canceled")
		}

		matched, err := m.evalRule(ctx, rule, commandText)
		if err != nil {
			// Timeout or compile failure: skip the rule, log the anomaly,
			// keep the rest of the rule set available.
			if dErrors.HasCode(err, dErrors.CodeTimeout) && m.onTimeout != nil {
				m.onTimeout()
			}
			if m.logger != nil {
				m.logger.WarnContext(ctx, "rule skipped during match",
					"rule_id", rule.ID,
					"priority", rule.Priority,
					"error", err,
				)
			}
			continue
		}
		if matched {
			return rule, nil
		}
	}
	return nil, nil
}

// evalRule compiles and evaluates one rule's pattern under the time budget.
// The budget is enforced per call on a worker goroutine, never via any
// process-wide mechanism, so one runaway rule cannot stall other submissions.
// Compilation runs inside the worker too, so the budget bounds the whole
// evaluation and not just the match step.
func (m *Matcher) evalRule(ctx context.Context, rule *models.Rule, commandText string) (bool, error) {
	type result struct {
		matched bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		// regexp is RE2: compilation and evaluation both terminate in time
		// linear in their input, so this goroutine cannot leak indefinitely
		// even when the budget fires first.
		re, err := compileInsensitive(rule.Pattern)
		if err != nil {
			done <- result{err: dErrors.Wrap(err, dErrors.CodeValidation, "malformed pattern")}
			return
		}
		done <- result{matched: re.MatchString(commandText)}
	}()

	timer := time.NewTimer(m.budget)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.matched, r.err
	case <-timer.C:
		return false, dErrors.New(dErrors.CodeTimeout, "rule evaluation exceeded budget")
	case <-ctx.Done():
		return false, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "match canceled")
	}
}

// Validate checks a pattern at authoring time, using the same budget
// mechanism as live matching. Returns CodeValidation for a malformed pattern
// and CodeTimeout when probing exceeds the budget.
//
// The probe runs against an empty input, which is a weak guarantee: runaway
// cost is input-dependent, not pattern-only-dependent. The live per-rule
// budget remains the authority; validation only keeps obviously broken
// patterns out of the rule set.
func (m *Matcher) Validate(pattern string) error {
	done := make(chan error, 1)
	go func() {
		re, err := compileInsensitive(pattern)
		if err != nil {
			done <- dErrors.Wrap(err, dErrors.CodeValidation, "malformed pattern")
			return
		}
		re.MatchString("")
		done <- nil
	}()

	timer := time.NewTimer(m.budget)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return dErrors.New(dErrors.CodeTimeout, "pattern validation exceeded budget")
	}
}

func compileInsensitive(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}
