package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cmdgate/internal/admission/models"
	id "cmdgate/pkg/domain"
	dErrors "cmdgate/pkg/domain-errors"
)

// PostgresStore persists rules in PostgreSQL. Pure I/O; precedence semantics
// live in the ORDER BY, mirroring models.SortRules.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema is the bootstrap DDL for the rules table.
const Schema = `
CREATE TABLE IF NOT EXISTS rules (
	id UUID PRIMARY KEY,
	priority INTEGER NOT NULL,
	pattern TEXT NOT NULL,
	action TEXT NOT NULL,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_priority ON rules (priority ASC, created_at ASC, id ASC);
`

const ruleColumns = `id, priority, pattern, action, description, created_at`

func (s *PostgresStore) ListOrdered(ctx context.Context) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+` FROM rules
		ORDER BY priority ASC, created_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, ruleID id.RuleID) (*models.Rule, error) {
	rule, err := scanRule(s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+` FROM rules WHERE id = $1
	`, uuid.UUID(ruleID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *PostgresStore) Create(ctx context.Context, rule *models.Rule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (`+ruleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(rule.ID), rule.Priority, rule.Pattern, rule.Action.String(), rule.Description, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, rule *models.Rule) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE rules SET priority = $2, pattern = $3, action = $4, description = $5
		WHERE id = $1
	`, uuid.UUID(rule.ID), rule.Priority, rule.Pattern, rule.Action.String(), rule.Description)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return requireAffected(res, "rule not found")
}

func (s *PostgresStore) Delete(ctx context.Context, ruleID id.RuleID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = $1`, uuid.UUID(ruleID))
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return requireAffected(res, "rule not found")
}

func requireAffected(res sql.Result, notFoundMsg string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*models.Rule, error) {
	var (
		rule        models.Rule
		ruleID      uuid.UUID
		action      string
		description sql.NullString
	)
	if err := row.Scan(&ruleID, &rule.Priority, &rule.Pattern, &action, &description, &rule.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan rule: %w", err)
	}
	rule.ID = id.RuleID(ruleID)
	rule.Action = id.RuleAction(action)
	rule.Description = description.String
	return &rule, nil
}
