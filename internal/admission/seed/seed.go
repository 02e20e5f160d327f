// Package seed installs the default rule set and the bootstrap admin on
// first start. Seeding is idempotent: it only writes into empty stores, so
// operator edits survive restarts.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cmdgate/internal/admission/models"
	"cmdgate/internal/admission/ports"
	"cmdgate/internal/platform/apikey"
	id "cmdgate/pkg/domain"
)

// defaultRules is the out-of-the-box policy: block destructive commands,
// allow read-only basics, queue privilege escalation for approval, and deny
// everything else via the catch-all.
var defaultRules = []models.Rule{
	{Priority: 1, Pattern: `^rm\s+-rf\s+/`, Action: id.RuleActionAutoReject, Description: "Block recursive root deletion"},
	{Priority: 5, Pattern: `^ls|^cat|^pwd|^echo`, Action: id.RuleActionAutoAccept, Description: "Allow safe read-only commands"},
	{Priority: 10, Pattern: `^sudo`, Action: id.RuleActionRequireApproval, Description: "Privilege escalation needs approval"},
	{Priority: 100, Pattern: `.*`, Action: id.RuleActionAutoReject, Description: "Default deny"},
}

// Options configures seeding.
type Options struct {
	// AdminKey is the bootstrap admin's API key. When empty a key is
	// generated and logged once.
	AdminKey string

	// DefaultCredits is the bootstrap admin's starting balance.
	DefaultCredits int
}

// Run seeds rules and the bootstrap admin. Safe to call on every start.
func Run(ctx context.Context, rules ports.RuleStore, actors ports.ActorStore, logger *slog.Logger, opts Options) error {
	if err := seedRules(ctx, rules, logger); err != nil {
		return err
	}
	return seedAdmin(ctx, actors, logger, opts)
}

func seedRules(ctx context.Context, rules ports.RuleStore, logger *slog.Logger) error {
	existing, err := rules.ListOrdered(ctx)
	if err != nil {
		return fmt.Errorf("list rules: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, tpl := range defaultRules {
		rule := tpl
		rule.ID = id.NewRuleID()
		rule.CreatedAt = now
		if err := rules.Create(ctx, &rule); err != nil {
			return fmt.Errorf("seed rule %q: %w", rule.Pattern, err)
		}
	}
	logger.Info("seeded default rules", "count", len(defaultRules))
	return nil
}

func seedAdmin(ctx context.Context, actors ports.ActorStore, logger *slog.Logger, opts Options) error {
	existing, err := actors.List(ctx)
	if err != nil {
		return fmt.Errorf("list actors: %w", err)
	}
	for _, a := range existing {
		if a.Role == id.RoleAdmin {
			return nil
		}
	}

	key := opts.AdminKey
	generated := false
	if key == "" {
		var err error
		key, _, err = apikey.Generate()
		if err != nil {
			return fmt.Errorf("generate admin key: %w", err)
		}
		generated = true
	}

	now := time.Now().UTC()
	admin := &models.Actor{
		ID:           id.NewActorID(),
		Name:         "admin",
		APIKeyDigest: apikey.Digest(key),
		Role:         id.RoleAdmin,
		Credits:      opts.DefaultCredits,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := actors.Create(ctx, admin); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if generated {
		// Shown once at bootstrap; only the digest is persisted.
		logger.Info("seeded bootstrap admin", "actor_id", admin.ID, "api_key", key)
	} else {
		logger.Info("seeded bootstrap admin", "actor_id", admin.ID)
	}
	return nil
}
