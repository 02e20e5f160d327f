package command

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// PostgresStore persists command records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the bootstrap DDL for the commands table.
const Schema = `
CREATE TABLE IF NOT EXISTS commands (
	id UUID PRIMARY KEY,
	actor_id UUID NOT NULL,
	command_text TEXT NOT NULL,
	matched_rule_id UUID,
	decision TEXT NOT NULL,
	cost INTEGER NOT NULL,
	result JSONB,
	executed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_commands_actor_created ON commands (actor_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_commands_decision ON commands (decision) WHERE decision = 'PENDING';
`

const commandColumns = `id, actor_id, command_text, matched_rule_id, decision, cost, result, executed_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, rec *models.CommandRecord) error {
	result, err := marshalResult(rec.Result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO commands (`+commandColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.UUID(rec.ID), uuid.UUID(rec.ActorID), rec.CommandText, matchedRuleArg(rec.MatchedRuleID),
		rec.Decision.String(), rec.Cost, result, rec.ExecutedAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create command record: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, commandID id.CommandID) (*models.CommandRecord, error) {
	rec, err := scanCommand(s.db.QueryRowContext(ctx, `
		SELECT `+commandColumns+` FROM commands WHERE id = $1
	`, uuid.UUID(commandID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID id.ActorID, offset, limit int) ([]*models.CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM commands
		WHERE actor_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, uuid.UUID(actorID), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list command records: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

func (s *PostgresStore) ListPending(ctx context.Context) ([]*models.CommandRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM commands
		WHERE decision = 'PENDING'
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending command records: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

// Resolve transitions a PENDING record to a terminal decision. The WHERE
// clause guards the transition so a concurrent resolution loses cleanly.
func (s *PostgresStore) Resolve(ctx context.Context, commandID id.CommandID, rec *models.CommandRecord) error {
	result, err := marshalResult(rec.Result)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE commands
		SET decision = $2, cost = $3, result = $4, executed_at = $5
		WHERE id = $1 AND decision = 'PENDING'
	`, uuid.UUID(commandID), rec.Decision.String(), rec.Cost, result, rec.ExecutedAt)
	if err != nil {
		return fmt.Errorf("resolve command record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve rows affected: %w", err)
	}
	if affected == 0 {
		existing, gerr := s.Get(ctx, commandID)
		if gerr != nil {
			return gerr
		}
		if existing == nil {
			return dErrors.New(dErrors.CodeNotFound, "command record not found")
		}
		return dErrors.New(dErrors.CodeConflict, "command record already resolved")
	}
	return nil
}

func marshalResult(result *models.ExecutionResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal execution result: %w", err)
	}
	return data, nil
}

func matchedRuleArg(ruleID *id.RuleID) any {
	if ruleID == nil {
		return nil
	}
	return uuid.UUID(*ruleID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCommand(row scanner) (*models.CommandRecord, error) {
	var (
		rec        models.CommandRecord
		commandID  uuid.UUID
		actorID    uuid.UUID
		ruleID     uuid.NullUUID
		decision   string
		result     []byte
		executedAt sql.NullTime
	)
	if err := row.Scan(&commandID, &actorID, &rec.CommandText, &ruleID, &decision, &rec.Cost, &result, &executedAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan command record: %w", err)
	}
	rec.ID = id.CommandID(commandID)
	rec.ActorID = id.ActorID(actorID)
	if ruleID.Valid {
		rid := id.RuleID(ruleID.UUID)
		rec.MatchedRuleID = &rid
	}
	rec.Decision = id.Outcome(decision)
	if len(result) > 0 {
		rec.Result = &models.ExecutionResult{}
		if err := json.Unmarshal(result, rec.Result); err != nil {
			return nil, fmt.Errorf("unmarshal execution result: %w", err)
		}
	}
	if executedAt.Valid {
		t := executedAt.Time
		rec.ExecutedAt = &t
	}
	return &rec, nil
}

func collectCommands(rows *sql.Rows) ([]*models.CommandRecord, error) {
	var recs []*models.CommandRecord
	for rows.Next() {
		rec, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
