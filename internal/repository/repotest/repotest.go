// Package repotest opens throwaway migrated SQLite databases for tests.
package repotest

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// New returns a migrated in-memory database closed at test cleanup.
func New(t testing.TB) *repository.DB {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	db, err := repository.Open(ctx, repository.Config{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)",
	}, logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
