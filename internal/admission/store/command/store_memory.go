// Package command persists command records: one immutable record per
// admission decision, with a single permitted transition out of PENDING.
package command

import (
	"context"
	"sort"
	"sync"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.CommandID]*models.CommandRecord
	order   []id.CommandID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.CommandID]*models.CommandRecord)}
}

func (s *InMemoryStore) Create(_ context.Context, rec *models.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "command record already exists")
	}
	cp := *rec
	s.records[rec.ID] = &cp
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, commandID id.CommandID) (*models.CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.records[commandID]
	if !exists {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID id.ActorID, offset, limit int) ([]*models.CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*models.CommandRecord
	for _, rec := range s.records {
		if rec.ActorID == actorID {
			cp := *rec
			mine = append(mine, &cp)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].CreatedAt.After(mine[j].CreatedAt) })

	if offset >= len(mine) {
		return nil, nil
	}
	mine = mine[offset:]
	if limit > 0 && limit < len(mine) {
		mine = mine[:limit]
	}
	return mine, nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]*models.CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []*models.CommandRecord
	for _, rec := range s.records {
		if rec.Decision == id.OutcomePending {
			cp := *rec
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	return pending, nil
}

// Resolve transitions a PENDING record to the terminal decision carried by
// rec. Any other starting state is a conflict: terminal records are
// immutable.
func (s *InMemoryStore) Resolve(_ context.Context, commandID id.CommandID, rec *models.CommandRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.records[commandID]
	if !exists {
		return dErrors.New(dErrors.CodeNotFound, "command record not found")
	}
	if current.Decision != id.OutcomePending {
		return dErrors.New(dErrors.CodeConflict, "command record already resolved")
	}
	cp := *rec
	cp.ID = commandID
	s.records[commandID] = &cp
	return nil
}
