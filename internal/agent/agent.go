// Package agent wires the pipeline, sessions, storage and learners into the
// operations exposed to callers: upload, confirm, cancel and the learning triggers.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/learning"
	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/pipeline"
	"github.com/Veraticus/receipt-flow/internal/prompts"
	"github.com/Veraticus/receipt-flow/internal/service"
	"github.com/Veraticus/receipt-flow/internal/session"
)

// Confirmation errors. Confirm and Cancel also return false with these.
var (
	ErrSessionNotFound = fmt.Errorf("session %w", common.ErrNotFound)
	ErrNoDocument      = errors.New("session has no document")
	ErrNotPending      = errors.New("document is not pending")
	ErrInvalidEdit     = errors.New("invalid modification")
)

// Backends selects a model backend by name.
type Backends interface {
	Backend(name llm.BackendName) llm.Gateway
}

// Config holds the learning limits used by the agent.
type Config struct {
	MaxFeedbacks        int
	FeedbackBatchSize   int
	ProfileMaxDocuments int
	ProfileBatchSize    int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxFeedbacks:        learning.DefaultMaxFeedbacks,
		FeedbackBatchSize:   learning.DefaultBatchSize,
		ProfileMaxDocuments: learning.DefaultMaxDocuments,
		ProfileBatchSize:    learning.DefaultDocumentBatch,
	}
}

// Agent is the entry point for document uploads and user learning.
type Agent struct {
	storage   service.Storage
	sessions  *session.Manager
	pipeline  *pipeline.Pipeline
	feedback  *learning.FeedbackLearner
	optimizer *learning.ProfileOptimizer
	logger    *slog.Logger
	userLocks sync.Map
	config    Config
}

// New creates an agent with the default configuration.
func New(storage service.Storage, backends Backends, sessions *session.Manager, logger *slog.Logger) *Agent {
	return NewWithConfig(storage, backends, sessions, logger, DefaultConfig())
}

// NewWithConfig creates an agent. The pipeline runs on the primary backend and
// both learners on the secondary.
func NewWithConfig(storage service.Storage, backends Backends, sessions *session.Manager, logger *slog.Logger, config Config) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	builder := prompts.MustNewBuilder()
	secondary := backends.Backend(llm.BackendSecondary)

	optimizer := learning.NewProfileOptimizer(secondary, storage, builder, logger)
	optimizer.MaxDocuments = config.ProfileMaxDocuments
	optimizer.BatchSize = config.ProfileBatchSize

	return &Agent{
		storage:   storage,
		sessions:  sessions,
		pipeline:  pipeline.New(backends.Backend(llm.BackendPrimary), builder, logger),
		feedback:  learning.NewFeedbackLearner(secondary, storage, builder, logger),
		optimizer: optimizer,
		logger:    logger,
		config:    config,
	}
}

// Sessions exposes the session manager.
func (a *Agent) Sessions() *session.Manager {
	return a.sessions
}

// lockUser serializes read-modify-write cycles on one user.
func (a *Agent) lockUser(userID string) func() {
	mu, _ := a.userLocks.LoadOrStore(userID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// loadOrCreateUser returns the stored user, creating one with defaults on first use.
func (a *Agent) loadOrCreateUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := a.storage.LoadUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user = model.NewUser(userID)
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	a.logger.Info("Created user", "user_id", userID)
	return user, nil
}

// Upload runs the pipeline for one image and returns the resulting session.
// Pipeline failures are reported through the session's Error state; the error
// return is reserved for failures outside the pipeline.
func (a *Agent) Upload(ctx context.Context, userID, imagePath, text, audioPath string) (*session.Session, error) {
	user, err := a.loadOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	sess, err := a.sessions.Create(userID, imagePath, text, audioPath)
	if err != nil {
		return nil, err
	}
	logger := a.logger.With("session_id", sess.ID, "user_id", userID)

	result, runErr := a.pipeline.Run(ctx, user, pipeline.Input{ImagePath: imagePath, Text: text, AudioPath: audioPath})
	if runErr != nil {
		invalid := errors.Is(runErr, pipeline.ErrInvalidImage)
		message := "处理失败: " + runErr.Error()
		var invalidErr *pipeline.InvalidImageError
		if errors.As(runErr, &invalidErr) {
			message = "上传的图片不是票据: " + invalidErr.Reason
		}
		logger.Warn("Upload failed", "invalid_image", invalid, "error", runErr)
		return a.sessions.Update(sess.ID, func(s *session.Session) error {
			return s.SetError(message, invalid)
		})
	}

	if err := a.storeDocument(ctx, userID, result.Document); err != nil {
		logger.Error("Failed to store document", "error", err)
		failed, updateErr := a.sessions.Update(sess.ID, func(s *session.Session) error {
			return s.SetError("保存票据失败: "+err.Error(), false)
		})
		return failed, errors.Join(err, updateErr)
	}

	logger.Info("Document awaiting confirmation", "document_id", result.Document.ID, "degraded", len(result.Degraded))
	return a.sessions.Update(sess.ID, func(s *session.Session) error {
		return s.SetPending(result)
	})
}

func (a *Agent) storeDocument(ctx context.Context, userID string, doc *model.Document) error {
	unlock := a.lockUser(userID)
	defer unlock()

	user, err := a.loadOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := a.storage.SaveDocument(ctx, userID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	user.AddDocument(doc.ID)
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}
