// Package testutil provides shared test helpers: an isolated in-memory
// database, a scripted model gateway and document fixtures.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/service"
	"github.com/Veraticus/receipt-flow/internal/storage"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory database that is closed when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// SeedUser saves a user and returns it.
func (db *TestDB) SeedUser(user *model.User) *model.User {
	db.t.Helper()
	if err := db.Storage.SaveUser(context.Background(), user); err != nil {
		db.t.Fatalf("failed to seed user %q: %v", user.ID, err)
	}
	return user
}

// SeedDocuments saves documents for their owners and records ownership on user.
func (db *TestDB) SeedDocuments(user *model.User, docs ...*model.Document) {
	db.t.Helper()
	ctx := context.Background()
	for _, doc := range docs {
		if err := db.Storage.SaveDocument(ctx, user.ID, doc); err != nil {
			db.t.Fatalf("failed to seed document %q: %v", doc.ID, err)
		}
		user.AddDocument(doc.ID)
	}
	if err := db.Storage.SaveUser(ctx, user); err != nil {
		db.t.Fatalf("failed to save user %q: %v", user.ID, err)
	}
}

// MustLoadUser loads a user or fails the test.
func (db *TestDB) MustLoadUser(id string) *model.User {
	db.t.Helper()
	user, err := db.Storage.LoadUser(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to load user %q: %v", id, err)
	}
	return user
}

// MustLoadDocument loads a document or fails the test.
func (db *TestDB) MustLoadDocument(userID, id string) *model.Document {
	db.t.Helper()
	doc, err := db.Storage.LoadDocument(context.Background(), userID, id)
	if err != nil {
		db.t.Fatalf("failed to load document %q: %v", id, err)
	}
	return doc
}
