package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/receipt-flow/internal/agent"
	"github.com/Veraticus/receipt-flow/internal/config"
	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/service"
	"github.com/Veraticus/receipt-flow/internal/session"
	"github.com/Veraticus/receipt-flow/internal/storage"
)

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newSessionManager(cfg *config.Config) *session.Manager {
	return session.NewManager(session.Options{
		Logger:   slog.Default(),
		Capacity: cfg.Sessions.Capacity,
		HardTTL:  cfg.Sessions.HardTTL,
	})
}

// initAgent builds the agent on top of the configured storage and model backends.
// Commands that never call a model pass needModels=false and may run without API keys.
// The returned storage must be closed by the caller.
func initAgent(ctx context.Context, cfg *config.Config, sessions *session.Manager, needModels bool) (*agent.Agent, service.Storage, error) {
	var router *llm.Router
	switch err := cfg.RequireAPIKey(); {
	case err == nil:
		router, err = llm.NewRouterFromConfig(cfg.Models.Primary, cfg.Models.Secondary, slog.Default())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create model backends: %w", err)
		}
	case needModels:
		return nil, nil, err
	default:
		router = llm.NewRouter(llm.Disabled{}, nil)
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if sessions == nil {
		sessions = newSessionManager(cfg)
	}

	a := agent.NewWithConfig(store, router, sessions, slog.Default(), agent.Config{
		MaxFeedbacks:        cfg.Learning.MaxFeedbacks,
		FeedbackBatchSize:   cfg.Learning.BatchSize,
		ProfileMaxDocuments: cfg.Profile.MaxDocuments,
		ProfileBatchSize:    cfg.Profile.BatchSize,
	})
	return a, store, nil
}
