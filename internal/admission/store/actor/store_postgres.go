package actor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// PostgresStore persists actors in PostgreSQL. The debit is a single
// conditional UPDATE...RETURNING, so row-level locking gives the per-actor
// critical section without any application-side lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the bootstrap DDL for the actors table.
const Schema = `
CREATE TABLE IF NOT EXISTS actors (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	api_key_digest TEXT NOT NULL UNIQUE,
	role TEXT NOT NULL,
	credits INTEGER NOT NULL CHECK (credits >= 0),
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

const actorColumns = `id, name, api_key_digest, role, credits, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, actor *models.Actor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actors (`+actorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(actor.ID), actor.Name, actor.APIKeyDigest, actor.Role.String(), actor.Credits, actor.CreatedAt, actor.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create actor: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, actorID id.ActorID) (*models.Actor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actorColumns+` FROM actors WHERE id = $1
	`, uuid.UUID(actorID))
	return scanActor(row)
}

func (s *PostgresStore) GetByAPIKeyDigest(ctx context.Context, digest string) (*models.Actor, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actorColumns+` FROM actors WHERE api_key_digest = $1
	`, digest)
	return scanActor(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Actor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actorColumns+` FROM actors ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var actors []*models.Actor
	for rows.Next() {
		actor, err := scanActorRow(rows)
		if err != nil {
			return nil, err
		}
		actors = append(actors, actor)
	}
	return actors, rows.Err()
}

func (s *PostgresStore) SetCredits(ctx context.Context, actorID id.ActorID, credits int) error {
	if credits < 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "credits cannot be negative")
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE actors SET credits = $2, updated_at = $3 WHERE id = $1
	`, uuid.UUID(actorID), credits, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set credits rows affected: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, "actor not found")
	}
	return nil
}

// TryDebit decrements the balance only when sufficient, in one statement.
// The WHERE clause is the sufficiency check; a zero-row update means the
// balance was too low (or the actor is unknown) and nothing changed.
func (s *PostgresStore) TryDebit(ctx context.Context, actorID id.ActorID, amount int) (int, error) {
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "debit amount must be positive")
	}

	var newBalance int
	err := s.db.QueryRowContext(ctx, `
		UPDATE actors
		SET credits = credits - $2, updated_at = $3
		WHERE id = $1 AND credits >= $2
		RETURNING credits
	`, uuid.UUID(actorID), amount, time.Now().UTC()).Scan(&newBalance)
	if err == sql.ErrNoRows {
		// Distinguish missing actor from insufficient balance for callers.
		balance, berr := s.Balance(ctx, actorID)
		if berr != nil {
			return 0, berr
		}
		return balance, dErrors.New(dErrors.CodeInsufficientCredits, "insufficient credits")
	}
	if err != nil {
		return 0, fmt.Errorf("try debit: %w", err)
	}
	return newBalance, nil
}

// Credit increments the balance in one statement.
func (s *PostgresStore) Credit(ctx context.Context, actorID id.ActorID, amount int) (int, error) {
	if amount <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "credit amount must be positive")
	}

	var newBalance int
	err := s.db.QueryRowContext(ctx, `
		UPDATE actors
		SET credits = credits + $2, updated_at = $3
		WHERE id = $1
		RETURNING credits
	`, uuid.UUID(actorID), amount, time.Now().UTC()).Scan(&newBalance)
	if err == sql.ErrNoRows {
		return 0, dErrors.New(dErrors.CodeNotFound, "actor not found")
	}
	if err != nil {
		return 0, fmt.Errorf("credit: %w", err)
	}
	return newBalance, nil
}

func (s *PostgresStore) Balance(ctx context.Context, actorID id.ActorID) (int, error) {
	var balance int
	err := s.db.QueryRowContext(ctx, `
		SELECT credits FROM actors WHERE id = $1
	`, uuid.UUID(actorID)).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, dErrors.New(dErrors.CodeNotFound, "actor not found")
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActorRow(row scanner) (*models.Actor, error) {
	var (
		actor   models.Actor
		actorID uuid.UUID
		role    string
	)
	if err := row.Scan(&actorID, &actor.Name, &actor.APIKeyDigest, &role, &actor.Credits, &actor.CreatedAt, &actor.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan actor: %w", err)
	}
	actor.ID = id.ActorID(actorID)
	actor.Role = id.ActorRole(role)
	return &actor, nil
}

func scanActor(row *sql.Row) (*models.Actor, error) {
	actor, err := scanActorRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return actor, nil
}
