package testutil

import (
	"fmt"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/Veraticus/receipt-flow/internal/model"
)

// DocumentBuilder assembles pending documents for tests.
//
//	doc := testutil.NewDocument("u1").
//		WithType(model.DocumentItinerary).
//		WithCategory(model.CategoryTransportation, "差旅商务出行").
//		WithAmount(553).
//		Build()
type DocumentBuilder struct {
	doc model.Document
}

var documentSeq atomic.Int64

// NewDocument starts a pending receipt-slip document owned by userID.
func NewDocument(userID string) *DocumentBuilder {
	seq := documentSeq.Add(1)
	return &DocumentBuilder{doc: model.Document{
		ID:             fmt.Sprintf("doc-%03d", seq),
		UserID:         userID,
		UploadTime:     time.Date(2025, 4, 9, 10, 0, 0, 0, time.UTC),
		Type:           model.DocumentReceiptSlip,
		RecognizedText: "示例小票",
		UserCategory:   model.CategoryShopping,
		Status:         model.StatusPending,
		Tags:           []string{},
	}}
}

// WithID overrides the generated id.
func (b *DocumentBuilder) WithID(id string) *DocumentBuilder {
	b.doc.ID = id
	return b
}

// WithType sets the professional category.
func (b *DocumentBuilder) WithType(t model.DocumentType) *DocumentBuilder {
	b.doc.Type = t
	return b
}

// WithCategory sets the user category and tags.
func (b *DocumentBuilder) WithCategory(c model.UserCategory, tags ...string) *DocumentBuilder {
	b.doc.UserCategory = c
	b.doc.SetTags(tags)
	return b
}

// WithText sets the recognized text.
func (b *DocumentBuilder) WithText(text string) *DocumentBuilder {
	b.doc.RecognizedText = text
	return b
}

// WithAmount sets the amount.
func (b *DocumentBuilder) WithAmount(amount float64) *DocumentBuilder {
	b.doc.Amount = &amount
	return b
}

// WithIssuedDate sets the canonical issue date.
func (b *DocumentBuilder) WithIssuedDate(date string) *DocumentBuilder {
	b.doc.IssuedDate = &date
	return b
}

// WithFields sets the structured fields.
func (b *DocumentBuilder) WithFields(fields map[string]any) *DocumentBuilder {
	b.doc.StructuredFields = maps.Clone(fields)
	return b
}

// WithReasoning sets both reasoning strings.
func (b *DocumentBuilder) WithReasoning(typeReasoning, tagReasoning string) *DocumentBuilder {
	b.doc.TypeReasoning = typeReasoning
	b.doc.TagReasoning = tagReasoning
	return b
}

// WithStatus sets the status.
func (b *DocumentBuilder) WithStatus(s model.DocumentStatus) *DocumentBuilder {
	b.doc.Status = s
	return b
}

// UploadedAt sets the upload time.
func (b *DocumentBuilder) UploadedAt(t time.Time) *DocumentBuilder {
	b.doc.UploadTime = t
	return b
}

// Build returns a copy of the document.
func (b *DocumentBuilder) Build() *model.Document {
	doc := b.doc
	doc.Tags = slices.Clone(b.doc.Tags)
	doc.StructuredFields = maps.Clone(b.doc.StructuredFields)
	return &doc
}

// NewFeedback builds a feedback record for doc that moves it to newCategory/newTags.
func NewFeedback(doc *model.Document, newType model.DocumentType, newCategory model.UserCategory, newTags ...string) model.ClassificationFeedback {
	f := model.NewFeedback(doc.ID, model.SourceManual)
	f.OriginalCategory = doc.Type
	f.OriginalUserCategory = doc.UserCategory
	f.OriginalTags = slices.Clone(doc.Tags)
	f.NewCategory = newType
	f.NewUserCategory = newCategory
	f.NewTags = newTags
	return f
}
