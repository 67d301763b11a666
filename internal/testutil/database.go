// Package testutil provides shared fixtures for tests: a migrated SQLite
// database and an in-memory TagMemoryStore with call accounting.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-tagger/internal/storage"
	"github.com/Veraticus/spice-tagger/internal/testutil/memories"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage  *storage.SQLiteStorage
	t        *testing.T
	Memories memories.Memories
}

// SetupTestDB creates a new in-memory test database seeded with mems.
// It automatically handles migrations and cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t,
//		memories.NewBuilder(t).
//			WithFixture(memories.FixtureCommuter).
//			Memories(),
//	)
func SetupTestDB(t *testing.T, mems memories.Memories) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if err := mems.Seed(ctx, store); err != nil {
		t.Fatalf("failed to seed memories: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage:  store,
		Memories: mems,
		t:        t,
	}
}

// SetupTestDBWithBuilder creates a test database using a memory builder.
//
// Example:
//
//	db := testutil.SetupTestDBWithBuilder(t, func(b memories.Builder) memories.Builder {
//		return b.WithConfirmation(memories.UserAlice, "Grab", "Transport", 3)
//	})
func SetupTestDBWithBuilder(t *testing.T, configure func(memories.Builder) memories.Builder) *TestDB {
	t.Helper()

	builder := memories.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	return SetupTestDB(t, builder.Memories())
}
