package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/model"
)

// LoadUser retrieves a user aggregate.
func (s *SQLiteStorage) LoadUser(ctx context.Context, userID string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var (
		user                                        model.User
		profile, categories, history, rules, docIDs string
		rulesUpdatedAt, lastOptimization            sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, profile, categories, history, rules, document_ids,
		       rules_updated_at, last_profile_optimization, created_at
		FROM users WHERE id = ?`, userID).Scan(
		&user.ID, &profile, &categories, &history, &rules, &docIDs,
		&rulesUpdatedAt, &lastOptimization, &user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	columns := []struct {
		dest any
		name string
		raw  string
	}{
		{name: "profile", raw: profile, dest: &user.Profile},
		{name: "categories", raw: categories, dest: &user.Categories},
		{name: "history", raw: history, dest: &user.History},
		{name: "rules", raw: rules, dest: &user.Rules},
		{name: "document_ids", raw: docIDs, dest: &user.DocumentIDs},
	}
	for _, col := range columns {
		if err := json.Unmarshal([]byte(col.raw), col.dest); err != nil {
			return nil, fmt.Errorf("failed to decode user %s: %w", col.name, err)
		}
	}

	if rulesUpdatedAt.Valid {
		t := rulesUpdatedAt.Time
		user.RulesUpdatedAt = &t
	}
	if lastOptimization.Valid {
		t := lastOptimization.Time
		user.LastProfileOptimization = &t
	}
	if user.Categories == nil {
		user.Categories = model.NewCategoryTemplate()
	}

	return &user, nil
}

// SaveUser inserts or replaces a user aggregate.
func (s *SQLiteStorage) SaveUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateUser(user); err != nil {
		return err
	}

	encoded := make([]string, 0, 5)
	for _, v := range []any{user.Profile, user.Categories, user.History, nonNil(user.Rules), nonNil(user.DocumentIDs)} {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode user: %w", err)
		}
		encoded = append(encoded, string(data))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, profile, categories, history, rules, document_ids,
		                   rules_updated_at, last_profile_optimization, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			profile = excluded.profile,
			categories = excluded.categories,
			history = excluded.history,
			rules = excluded.rules,
			document_ids = excluded.document_ids,
			rules_updated_at = excluded.rules_updated_at,
			last_profile_optimization = excluded.last_profile_optimization,
			updated_at = CURRENT_TIMESTAMP`,
		user.ID, encoded[0], encoded[1], encoded[2], encoded[3], encoded[4],
		nullTime(user.RulesUpdatedAt), nullTime(user.LastProfileOptimization), user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
