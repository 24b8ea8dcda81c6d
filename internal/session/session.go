// Package session tracks upload sessions from processing through user confirmation.
package session

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/pipeline"
)

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("invalid session transition")

// Session is the context of a single upload attempt.
type Session struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Document       *model.Document
	Recognition    *pipeline.Recognition
	Classification *pipeline.Classification
	Intent         *pipeline.Intent
	ID             string
	UserID         string
	ImagePath      string
	UserText       string
	AudioPath      string
	State          State
	Error          string
	Degraded       []pipeline.Stage
	InvalidImage   bool
}

func newSession(userID, imagePath, text, audioPath string, now time.Time) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ImagePath: imagePath,
		UserText:  text,
		AudioPath: audioPath,
		State:     StateUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *Session) transition(to State) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, to)
	}
	s.State = to
	s.UpdatedAt = time.Now()
	return nil
}

// SetPending stores a pipeline result and waits for the user.
func (s *Session) SetPending(result *pipeline.Result) error {
	if err := s.transition(StatePending); err != nil {
		return err
	}
	s.Document = result.Document
	s.Recognition = &result.Recognition
	s.Classification = &result.Classification
	s.Intent = result.Intent
	s.Degraded = slices.Clone(result.Degraded)
	return nil
}

// SetError records a failure. invalidImage marks uploads rejected as not a receipt.
func (s *Session) SetError(message string, invalidImage bool) error {
	if err := s.transition(StateError); err != nil {
		return err
	}
	s.Error = message
	s.InvalidImage = invalidImage
	return nil
}

// Confirm completes a pending session.
func (s *Session) Confirm() error {
	return s.transition(StateConfirmed)
}

// Cancel abandons a pending session.
func (s *Session) Cancel() error {
	return s.transition(StateCancelled)
}

// DocumentID returns the id of the proposed document, if any.
func (s *Session) DocumentID() string {
	if s.Document == nil {
		return ""
	}
	return s.Document.ID
}

// Summary is the externally visible view of a session.
type Summary struct {
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
	ID           string    `json:"session_id" yaml:"session_id"`
	UserID       string    `json:"user_id" yaml:"user_id"`
	State        State     `json:"state" yaml:"state"`
	DocumentID   string    `json:"document_id,omitempty" yaml:"document_id,omitempty"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	HasError     bool      `json:"has_error" yaml:"has_error"`
	InvalidImage bool      `json:"invalid_image" yaml:"invalid_image"`
}

// Summary reports the session's state without the pipeline payloads.
func (s *Session) Summary() Summary {
	return Summary{
		ID:           s.ID,
		UserID:       s.UserID,
		State:        s.State,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		DocumentID:   s.DocumentID(),
		HasError:     s.Error != "",
		Error:        s.Error,
		InvalidImage: s.InvalidImage,
	}
}

// clone copies the session deeply enough that callers cannot mutate stored state.
func (s *Session) clone() *Session {
	c := *s
	c.Degraded = slices.Clone(s.Degraded)
	if s.Document != nil {
		doc := *s.Document
		doc.Tags = slices.Clone(s.Document.Tags)
		doc.StructuredFields = maps.Clone(s.Document.StructuredFields)
		c.Document = &doc
	}
	if s.Recognition != nil {
		r := *s.Recognition
		c.Recognition = &r
	}
	if s.Classification != nil {
		cl := *s.Classification
		cl.Tags = slices.Clone(s.Classification.Tags)
		c.Classification = &cl
	}
	if s.Intent != nil {
		i := *s.Intent
		c.Intent = &i
	}
	return &c
}
