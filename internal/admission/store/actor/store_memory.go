// Package actor provides the actor identity store and the credit ledger.
// The ledger contract: TryDebit is linearizable per actor and independent
// across actors. No other component writes balances.
package actor

import (
	"context"
	"sync"
	"time"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// InMemoryStore implements ActorStore with per-actor locking. The registry
// mutex only guards the maps; every access to a stored actor's fields, reads
// included, happens under that actor's own lock, so operations on different
// actors never serialize against each other while reads and debits of the
// same actor always do.
type InMemoryStore struct {
	mu     sync.RWMutex
	actors map[id.ActorID]*models.Actor
	byKey  map[string]id.ActorID
	locks  map[id.ActorID]*sync.Mutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		actors: make(map[id.ActorID]*models.Actor),
		byKey:  make(map[string]id.ActorID),
		locks:  make(map[id.ActorID]*sync.Mutex),
	}
}

func (s *InMemoryStore) Create(_ context.Context, actor *models.Actor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actors[actor.ID]; exists {
		return dErrors.New(dErrors.CodeConflict, "actor already exists")
	}
	if _, exists := s.byKey[actor.APIKeyDigest]; exists {
		return dErrors.New(dErrors.CodeConflict, "api key already in use")
	}
	cp := *actor
	s.actors[actor.ID] = &cp
	s.byKey[actor.APIKeyDigest] = actor.ID
	s.locks[actor.ID] = &sync.Mutex{}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, actorID id.ActorID) (*models.Actor, error) {
	lock, actor, err := s.lockActor(actorID)
	if err != nil {
		return nil, nil
	}
	defer lock.Unlock()

	cp := *actor
	return &cp, nil
}

func (s *InMemoryStore) GetByAPIKeyDigest(ctx context.Context, digest string) (*models.Actor, error) {
	s.mu.RLock()
	actorID, exists := s.byKey[digest]
	s.mu.RUnlock()
	if !exists {
		return nil, nil
	}
	return s.Get(ctx, actorID)
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Actor, error) {
	s.mu.RLock()
	ids := make([]id.ActorID, 0, len(s.actors))
	for actorID := range s.actors {
		ids = append(ids, actorID)
	}
	s.mu.RUnlock()

	out := make([]*models.Actor, 0, len(ids))
	for _, actorID := range ids {
		lock, actor, err := s.lockActor(actorID)
		if err != nil {
			continue
		}
		cp := *actor
		lock.Unlock()
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) SetCredits(_ context.Context, actorID id.ActorID, credits int) error {
	if credits < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credits cannot be negative")
	}

	lock, actor, err := s.lockActor(actorID)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	actor.Credits = credits
	actor.UpdatedAt = time.Now().UTC()
	return nil
}

// TryDebit atomically checks and decrements the actor's balance. The check
// and write execute as one critical section under the actor's lock, so two
// concurrent debits can never both succeed when only one could be afforded.
func (s *InMemoryStore) TryDebit(_ context.Context, actorID id.ActorID, amount int) (int, error) {
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "debit amount must be positive")
	}

	lock, actor, err := s.lockActor(actorID)
	if err != nil {
		return 0, err
	}
	defer lock.Unlock()

	if actor.Credits < amount {
		return actor.Credits, dErrors.New(dErrors.CodeInsufficientCredits, "insufficient credits")
	}
	actor.Credits -= amount
	actor.UpdatedAt = time.Now().UTC()
	return actor.Credits, nil
}

// Credit adds to the actor's balance under the same per-actor lock as
// TryDebit, so refunds serialize with debits.
func (s *InMemoryStore) Credit(_ context.Context, actorID id.ActorID, amount int) (int, error) {
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "credit amount must be positive")
	}

	lock, actor, err := s.lockActor(actorID)
	if err != nil {
		return 0, err
	}
	defer lock.Unlock()

	actor.Credits += amount
	actor.UpdatedAt = time.Now().UTC()
	return actor.Credits, nil
}

func (s *InMemoryStore) Balance(_ context.Context, actorID id.ActorID) (int, error) {
	lock, actor, err := s.lockActor(actorID)
	if err != nil {
		return 0, err
	}
	defer lock.Unlock()

	return actor.Credits, nil
}

// lockActor acquires the per-actor mutex and returns the live record. It is
// the single entry point to a stored actor's fields for readers and writers
// alike. Caller must Unlock the returned mutex.
func (s *InMemoryStore) lockActor(actorID id.ActorID) (*sync.Mutex, *models.Actor, error) {
	s.mu.RLock()
	lock, exists := s.locks[actorID]
	actor := s.actors[actorID]
	s.mu.RUnlock()
	if !exists {
		return nil, nil, dErrors.New(dErrors.CodeNotFound, "actor not found")
	}
	lock.Lock()
	return lock, actor, nil
}
