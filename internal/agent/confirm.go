package agent

import (
	"context"
	"fmt"
	"slices"

	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/session"
)

// Modifications are the user's edits to a proposed document. Zero fields keep
// the proposal; a non-nil Tags replaces the tag set.
type Modifications struct {
	DocumentType model.DocumentType
	UserCategory model.UserCategory
	Tags         []string
}

func (m *Modifications) validate() error {
	if m == nil {
		return nil
	}
	if m.DocumentType != "" {
		if _, ok := model.ParseDocumentType(string(m.DocumentType)); !ok {
			return fmt.Errorf("%w: unknown document type %q", ErrInvalidEdit, m.DocumentType)
		}
	}
	if m.UserCategory != "" {
		if _, ok := model.ParseUserCategory(string(m.UserCategory)); !ok {
			return fmt.Errorf("%w: unknown user category %q", ErrInvalidEdit, m.UserCategory)
		}
	}
	return nil
}

func (m *Modifications) apply(doc *model.Document) {
	if m == nil {
		return
	}
	if m.DocumentType != "" {
		doc.Type, _ = model.ParseDocumentType(string(m.DocumentType))
	}
	if m.UserCategory != "" {
		doc.UserCategory, _ = model.ParseUserCategory(string(m.UserCategory))
	}
	if m.Tags != nil {
		doc.SetTags(m.Tags)
	}
}

// pendingDocument resolves a session to its stored, still pending document.
func (a *Agent) pendingDocument(ctx context.Context, sessionID string) (*session.Session, *model.Document, error) {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if sess.Document == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoDocument, sessionID)
	}
	if sess.State != session.StatePending {
		return nil, nil, fmt.Errorf("%w: session is %s", ErrNotPending, sess.State)
	}

	doc, err := a.storage.LoadDocument(ctx, sess.UserID, sess.Document.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load document: %w", err)
	}
	if doc.Status != model.StatusPending {
		return nil, nil, fmt.Errorf("%w: document is %s", ErrNotPending, doc.Status)
	}
	return sess, doc, nil
}

// Confirm verifies the session's document, applying the user's edits first.
// A correction is queued for learning only when the edits change the
// classification. The boolean reports success.
func (a *Agent) Confirm(ctx context.Context, sessionID string, mods *Modifications) (bool, error) {
	if err := mods.validate(); err != nil {
		return false, err
	}

	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	unlock := a.lockUser(sess.UserID)
	defer unlock()

	sess, doc, err := a.pendingDocument(ctx, sessionID)
	if err != nil {
		return false, err
	}
	logger := a.logger.With("session_id", sessionID, "user_id", sess.UserID, "document_id", doc.ID)

	feedback := model.NewFeedback(doc.ID, model.SourceManual)
	feedback.OriginalCategory = doc.Type
	feedback.OriginalUserCategory = doc.UserCategory
	feedback.OriginalTags = slices.Clone(doc.Tags)

	mods.apply(doc)

	feedback.NewCategory = doc.Type
	feedback.NewUserCategory = doc.UserCategory
	feedback.NewTags = slices.Clone(doc.Tags)

	if err := doc.Transition(model.StatusVerified); err != nil {
		return false, err
	}

	if err := a.storage.SaveDocument(ctx, sess.UserID, doc); err != nil {
		return false, fmt.Errorf("failed to save document: %w", err)
	}

	// The document is verified from here on, so a failed feedback write is
	// logged rather than reopening the session.
	if feedback.Changed() {
		if err := a.recordFeedback(ctx, sess.UserID, feedback); err != nil {
			logger.Error("Failed to record classification feedback", "error", err)
		} else {
			logger.Info("Recorded classification feedback",
				"category_changed", feedback.CategoryChanged(),
				"user_category_changed", feedback.UserCategoryChanged(),
				"tags_changed", feedback.TagsChanged())
		}
	}

	if _, err := a.sessions.Update(sessionID, func(s *session.Session) error {
		s.Document = doc
		return s.Confirm()
	}); err != nil {
		return false, err
	}

	logger.Info("Document confirmed")
	return true, nil
}

func (a *Agent) recordFeedback(ctx context.Context, userID string, feedback model.ClassificationFeedback) error {
	user, err := a.loadOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	user.RecordFeedback(feedback)
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// Cancel voids the session's pending document.
func (a *Agent) Cancel(ctx context.Context, sessionID string) (bool, error) {
	sess, ok := a.sessions.Get(sessionID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	unlock := a.lockUser(sess.UserID)
	defer unlock()

	sess, doc, err := a.pendingDocument(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if err := doc.Transition(model.StatusVoided); err != nil {
		return false, err
	}
	if err := a.storage.SaveDocument(ctx, sess.UserID, doc); err != nil {
		return false, fmt.Errorf("failed to save document: %w", err)
	}
	if _, err := a.sessions.Update(sessionID, func(s *session.Session) error {
		s.Document = doc
		return s.Cancel()
	}); err != nil {
		return false, err
	}

	a.logger.Info("Document voided", "session_id", sessionID, "document_id", doc.ID)
	return true, nil
}
