// Package rule provides ordered rule-set storage. ListOrdered hands out
// snapshots so in-flight matches never observe a half-updated rule list.
package rule

import (
	"context"
	"sync"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[id.RuleID]*models.Rule
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{rules: make(map[id.RuleID]*models.Rule)}
}

// ListOrdered returns a copy of all rules in precedence order. The copies
// keep a concurrent rule edit from retroactively affecting an in-flight
// decision.
func (s *InMemoryStore) ListOrdered(_ context.Context) ([]*models.Rule, error) {
	s.mu.RLock()
	out := make([]*models.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		cp := *rule
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	models.SortRules(out)
	return out, nil
}

func (s *InMemoryStore) Get(_ context.Context, ruleID id.RuleID) (*models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[ruleID]
	if !exists {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

func (s *InMemoryStore) Create(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "rule already exists")
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, rule *models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; !exists {
		return dErrors.New(dErrors.CodeNotFound, "rule not found")
	}
	cp := *rule
	s.rules[rule.ID] = &cp
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, ruleID id.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[ruleID]; !exists {
		return dErrors.New(dErrors.CodeNotFound, "rule not found")
	}
	delete(s.rules, ruleID)
	return nil
}
