// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/receipt-flow/internal/model"
)

// Storage defines the contract for our persistence layer.
// Loading a missing user or document returns an error wrapping common.ErrNotFound.
type Storage interface {
	// User operations
	LoadUser(ctx context.Context, userID string) (*model.User, error)
	SaveUser(ctx context.Context, user *model.User) error

	// Document operations
	LoadDocument(ctx context.Context, userID, documentID string) (*model.Document, error)
	SaveDocument(ctx context.Context, userID string, doc *model.Document) error
	ListUserDocuments(ctx context.Context, userID string) ([]string, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
