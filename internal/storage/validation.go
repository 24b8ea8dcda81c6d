// Package storage provides the SQLite persistence layer for users and documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Veraticus/receipt-flow/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidDocument = errors.New("invalid document")
	ErrInvalidUser     = errors.New("invalid user")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(documentStructLevel, model.Document{})
	return v
}

// documentStructLevel rejects labels outside the closed enums.
func documentStructLevel(sl validator.StructLevel) {
	doc, ok := sl.Current().Interface().(model.Document)
	if !ok {
		return
	}
	if doc.Type != "" && !slices.Contains(model.DocumentTypes, doc.Type) {
		sl.ReportError(doc.Type, "Type", "Type", "document_type", string(doc.Type))
	}
	if doc.UserCategory != "" && !slices.Contains(model.UserCategories, doc.UserCategory) {
		sl.ReportError(doc.UserCategory, "UserCategory", "UserCategory", "user_category", string(doc.UserCategory))
	}
	switch doc.Status {
	case model.StatusPending, model.StatusVerified, model.StatusVoided, "":
	default:
		sl.ReportError(doc.Status, "Status", "Status", "document_status", string(doc.Status))
	}
}

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDocument checks struct tags and enum membership.
func validateDocument(userID string, doc *model.Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document", ErrNilParameter)
	}
	if err := validate.Struct(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	if doc.UserID != userID {
		return fmt.Errorf("%w: owner %q does not match %q", ErrInvalidDocument, doc.UserID, userID)
	}
	return nil
}

// validateUser validates a user aggregate.
func validateUser(user *model.User) error {
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}
	if strings.TrimSpace(user.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidUser)
	}
	if len(user.Rules) > model.MaxRules {
		return fmt.Errorf("%w: %d rules exceeds limit of %d", ErrInvalidUser, len(user.Rules), model.MaxRules)
	}
	for c, tags := range user.Categories {
		if len(tags) > model.MaxTagsPerCategory {
			return fmt.Errorf("%w: category %s has %d tags", ErrInvalidUser, c, len(tags))
		}
	}
	return nil
}
