package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/common"
	"github.com/Veraticus/receipt-flow/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testDocument(userID string) *model.Document {
	amount := 42.5
	date := "2025/04/09"
	return &model.Document{
		ID:             model.NewDocumentID(),
		UserID:         userID,
		UploadTime:     time.Date(2025, 4, 9, 8, 30, 0, 0, time.UTC),
		Type:           model.DocumentItinerary,
		SourceImage:    "uploads/ticket.jpg",
		RecognizedText: "西安北 -> 绵阳",
		StructuredFields: map[string]any{
			"departure_datetime": "2025/04/09 08:30:00",
			"total_amount":       42.5,
			"passenger":          map[string]any{"name": "张三"},
			"stops":              []any{"西安北", "绵阳"},
		},
		UserCategory:  model.CategoryTransportation,
		Tags:          []string{"差旅商务出行"},
		Amount:        &amount,
		IssuedDate:    &date,
		Status:        model.StatusPending,
		TypeReasoning: "has train number",
		TagReasoning:  "business trip",
	}
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("reaches expected version and is idempotent", func(t *testing.T) {
		store := createTestStorage(t)
		require.NoError(t, store.Migrate(ctx))

		version, err := store.SchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, ExpectedSchemaVersion, version)
	})

	t.Run("file database", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "receipts.db")
		store, err := NewSQLiteStorage(path)
		require.NoError(t, err)
		defer func() { _ = store.Close() }()

		require.NoError(t, store.Migrate(ctx))
		assert.Equal(t, path, store.Path())
	})

	t.Run("rejects empty path", func(t *testing.T) {
		_, err := NewSQLiteStorage("  ")
		assert.ErrorIs(t, err, ErrEmptyString)
	})
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	t.Run("missing user", func(t *testing.T) {
		_, err := store.LoadUser(ctx, "nobody")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		user := model.NewUser("u1", "engineer", "travels often")
		user.SetRules([]string{"rail tickets are transportation"}, time.Now())
		require.NoError(t, user.Categories.AddTag(model.CategoryDining, "咖啡"))
		fb := model.NewFeedback("doc-1", model.SourceManual)
		fb.OriginalUserCategory = model.CategoryShopping
		fb.NewUserCategory = model.CategoryDining
		fb.NewTags = []string{"咖啡"}
		user.RecordFeedback(fb)
		user.AddDocument("doc-1")

		require.NoError(t, store.SaveUser(ctx, user))

		loaded, err := store.LoadUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, user.Profile.Items, loaded.Profile.Items)
		assert.Equal(t, user.Rules, loaded.Rules)
		assert.Equal(t, []string{"doc-1"}, loaded.DocumentIDs)
		assert.True(t, loaded.Categories.HasTag(model.CategoryDining, "咖啡"))
		require.Len(t, loaded.History.Feedbacks, 1)
		assert.Equal(t, fb.ID, loaded.History.Feedbacks[0].ID)
		assert.Equal(t, model.CategoryDining, loaded.History.Feedbacks[0].NewUserCategory)
		require.NotNil(t, loaded.RulesUpdatedAt)
		assert.WithinDuration(t, *user.RulesUpdatedAt, *loaded.RulesUpdatedAt, time.Second)
		assert.Nil(t, loaded.LastProfileOptimization)
	})

	t.Run("save overwrites", func(t *testing.T) {
		user, err := store.LoadUser(ctx, "u1")
		require.NoError(t, err)
		user.SetRules(nil, time.Now())
		user.History.Clear()
		require.NoError(t, store.SaveUser(ctx, user))

		loaded, err := store.LoadUser(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, loaded.Rules)
		assert.Empty(t, loaded.History.Feedbacks)
	})

	t.Run("validation", func(t *testing.T) {
		assert.ErrorIs(t, store.SaveUser(ctx, nil), ErrNilParameter)
		assert.ErrorIs(t, store.SaveUser(ctx, &model.User{}), ErrInvalidUser)

		user := model.NewUser("u2")
		for i := 0; i <= model.MaxRules; i++ {
			user.Rules = append(user.Rules, "rule")
		}
		assert.ErrorIs(t, store.SaveUser(ctx, user), ErrInvalidUser)
	})
}

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	store := createTestStorage(t)

	t.Run("round trip keeps structured fields", func(t *testing.T) {
		doc := testDocument("u1")
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))

		loaded, err := store.LoadDocument(ctx, "u1", doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.StructuredFields, loaded.StructuredFields)
		assert.Equal(t, doc.Tags, loaded.Tags)
		assert.Equal(t, doc.Type, loaded.Type)
		assert.Equal(t, doc.UserCategory, loaded.UserCategory)
		assert.Equal(t, doc.Status, loaded.Status)
		assert.Equal(t, doc.TypeReasoning, loaded.TypeReasoning)
		assert.Equal(t, doc.TagReasoning, loaded.TagReasoning)
		assert.Equal(t, doc.RecognizedText, loaded.RecognizedText)
		assert.Equal(t, doc.SourceImage, loaded.SourceImage)
		require.NotNil(t, loaded.Amount)
		assert.InDelta(t, 42.5, *loaded.Amount, 1e-9)
		require.NotNil(t, loaded.IssuedDate)
		assert.Equal(t, "2025/04/09", *loaded.IssuedDate)
		assert.True(t, doc.UploadTime.Equal(loaded.UploadTime))
	})

	t.Run("nil optionals", func(t *testing.T) {
		doc := testDocument("u1")
		doc.Amount = nil
		doc.IssuedDate = nil
		doc.StructuredFields = nil
		doc.Tags = nil
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))

		loaded, err := store.LoadDocument(ctx, "u1", doc.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded.Amount)
		assert.Nil(t, loaded.IssuedDate)
		assert.Empty(t, loaded.StructuredFields)
		assert.Empty(t, loaded.Tags)
	})

	t.Run("update status", func(t *testing.T) {
		doc := testDocument("u1")
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))
		require.NoError(t, doc.Transition(model.StatusVerified))
		doc.SetTags([]string{"日常通勤出行"})
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))

		loaded, err := store.LoadDocument(ctx, "u1", doc.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusVerified, loaded.Status)
		assert.Equal(t, []string{"日常通勤出行"}, loaded.Tags)
	})

	t.Run("owner scoping", func(t *testing.T) {
		doc := testDocument("u1")
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))

		_, err := store.LoadDocument(ctx, "u2", doc.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
		assert.ErrorIs(t, store.SaveDocument(ctx, "u2", doc), ErrInvalidDocument)
	})

	t.Run("id owned by another user", func(t *testing.T) {
		doc := testDocument("u1")
		require.NoError(t, store.SaveDocument(ctx, "u1", doc))

		clash := testDocument("u2")
		clash.ID = doc.ID
		clash.RecognizedText = "overwritten"
		err := store.SaveDocument(ctx, "u2", clash)
		assert.ErrorIs(t, err, common.ErrDuplicateEntry)

		loaded, err := store.LoadDocument(ctx, "u1", doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.RecognizedText, loaded.RecognizedText)
		_, err = store.LoadDocument(ctx, "u2", doc.ID)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := store.LoadDocument(ctx, "u1", "nope")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("list in upload order", func(t *testing.T) {
		store := createTestStorage(t)
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		var want []string
		for i := 0; i < 3; i++ {
			doc := testDocument("u3")
			doc.UploadTime = base.Add(time.Duration(2-i) * time.Hour)
			require.NoError(t, store.SaveDocument(ctx, "u3", doc))
			want = append([]string{doc.ID}, want...)
		}

		ids, err := store.ListUserDocuments(ctx, "u3")
		require.NoError(t, err)
		assert.Equal(t, want, ids)

		ids, err = store.ListUserDocuments(ctx, "other")
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		mutate func(*model.Document)
		name   string
	}{
		{name: "missing id", mutate: func(d *model.Document) { d.ID = "" }},
		{name: "unknown type", mutate: func(d *model.Document) { d.Type = "passport" }},
		{name: "unknown category", mutate: func(d *model.Document) { d.UserCategory = "misc" }},
		{name: "unknown status", mutate: func(d *model.Document) { d.Status = "archived" }},
		{name: "missing status", mutate: func(d *model.Document) { d.Status = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDocument("u1")
			tt.mutate(doc)
			assert.ErrorIs(t, validateDocument("u1", doc), ErrInvalidDocument)
		})
	}

	assert.NoError(t, validateDocument("u1", testDocument("u1")))
	assert.ErrorIs(t, validateDocument("u1", nil), ErrNilParameter)
}
