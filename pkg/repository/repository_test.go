package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
	"github.com/secmon-lab/tedbrain/pkg/domain/model"
	"github.com/secmon-lab/tedbrain/pkg/repository/firestore"
	"github.com/secmon-lab/tedbrain/pkg/repository/memory"
	"github.com/secmon-lab/tedbrain/pkg/repository/sqlite"
)

type repoFactory func(t *testing.T) interfaces.Repository

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	repo, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "brain.db"))
	if err != nil {
		t.Fatalf("failed to create sqlite repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close sqlite repository: %v", err)
		}
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	// Owners are random per test, so the standard collections can be shared
	repo, err := firestore.New(context.Background(), projectID, databaseID,
		firestore.WithCollectionPrefix("test_"))
	if err != nil {
		t.Fatalf("failed to create firestore repository: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

// runAllBackends runs fn against every backend available in this
// environment
func runAllBackends(t *testing.T, fn func(t *testing.T, newRepo repoFactory)) {
	t.Run("memory", func(t *testing.T) { fn(t, newMemoryRepository) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteRepository) })
	t.Run("firestore", func(t *testing.T) { fn(t, newFirestoreRepository) })
}

func newOwner() model.OwnerID {
	return model.OwnerID(fmt.Sprintf("owner-%s", uuid.NewString()))
}

// now is truncated to what every backend can store
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func newItem(content string) *model.Item {
	return &model.Item{
		ID:        model.NewItemID(),
		Content:   content,
		Source:    model.SourceNote,
		Metadata:  map[string]any{"tag": "test"},
		CreatedAt: now(),
	}
}
