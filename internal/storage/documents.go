package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/model"
)

// SaveDocument inserts or replaces a document owned by userID.
func (s *SQLiteStorage) SaveDocument(ctx context.Context, userID string, doc *model.Document) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateDocument(userID, doc); err != nil {
		return err
	}

	fields := doc.StructuredFields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode structured fields: %w", err)
	}
	tagsJSON, err := json.Marshal(nonNil(doc.Tags))
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	var amount sql.NullFloat64
	if doc.Amount != nil {
		amount = sql.NullFloat64{Float64: *doc.Amount, Valid: true}
	}
	var issuedDate sql.NullString
	if doc.IssuedDate != nil {
		issuedDate = sql.NullString{String: *doc.IssuedDate, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, user_id, upload_time, type, source_image, recognized_text,
		                       structured_fields, user_category, tags, amount, issued_date,
		                       status, type_reasoning, tag_reasoning, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			source_image = excluded.source_image,
			recognized_text = excluded.recognized_text,
			structured_fields = excluded.structured_fields,
			user_category = excluded.user_category,
			tags = excluded.tags,
			amount = excluded.amount,
			issued_date = excluded.issued_date,
			status = excluded.status,
			type_reasoning = excluded.type_reasoning,
			tag_reasoning = excluded.tag_reasoning,
			updated_at = CURRENT_TIMESTAMP
		WHERE documents.user_id = excluded.user_id`,
		doc.ID, userID, doc.UploadTime, doc.Type, doc.SourceImage, doc.RecognizedText,
		string(fieldsJSON), doc.UserCategory, string(tagsJSON), amount, issuedDate,
		doc.Status, doc.TypeReasoning, doc.TagReasoning,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	// The upsert skips rows owned by someone else.
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check saved document: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: document %s belongs to another user", common.ErrDuplicateEntry, doc.ID)
	}
	return nil
}

// LoadDocument retrieves a document owned by userID.
func (s *SQLiteStorage) LoadDocument(ctx context.Context, userID, documentID string) (*model.Document, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(documentID, "documentID"); err != nil {
		return nil, err
	}

	var (
		doc                                       model.Document
		sourceImage, recognizedText, userCategory sql.NullString
		typeReasoning, tagReasoning, issuedDate   sql.NullString
		fieldsJSON, tagsJSON                      string
		amount                                    sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, upload_time, type, source_image, recognized_text, structured_fields,
		       user_category, tags, amount, issued_date, status, type_reasoning, tag_reasoning
		FROM documents WHERE id = ? AND user_id = ?`, documentID, userID).Scan(
		&doc.ID, &doc.UserID, &doc.UploadTime, &doc.Type, &sourceImage, &recognizedText, &fieldsJSON,
		&userCategory, &tagsJSON, &amount, &issuedDate, &doc.Status, &typeReasoning, &tagReasoning,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", documentID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &doc.StructuredFields); err != nil {
		return nil, fmt.Errorf("failed to decode structured fields: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	doc.SourceImage = sourceImage.String
	doc.RecognizedText = recognizedText.String
	doc.UserCategory = model.UserCategory(userCategory.String)
	doc.TypeReasoning = typeReasoning.String
	doc.TagReasoning = tagReasoning.String
	if amount.Valid {
		v := amount.Float64
		doc.Amount = &v
	}
	if issuedDate.Valid {
		v := issuedDate.String
		doc.IssuedDate = &v
	}

	return &doc, nil
}

// ListUserDocuments returns the ids of a user's documents, oldest upload first.
func (s *SQLiteStorage) ListUserDocuments(ctx context.Context, userID string) ([]string, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents WHERE user_id = ? ORDER BY upload_time, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return ids, nil
}
