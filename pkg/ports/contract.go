package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// RunStoreContract is a reusable suite verifying that an adapter complies
// with the RunStore interface. Adapter test packages call it against their
// concrete store.
func RunStoreContract(t *testing.T, store RunStore) {
	t.Helper()
	ctx := context.Background()

	record := &domain.RunRecord{
		ID:        "run-1",
		Workflow:  "contract",
		Status:    domain.RunCompleted,
		Context:   domain.Context{"answer": 42, "title": "done"},
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("Save_Load", func(t *testing.T) {
		if err := store.Save(ctx, record); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		got, err := store.Load(ctx, "run-1")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if got.ID != record.ID || got.Status != record.Status {
			t.Errorf("loaded record mismatch: got %+v, want %+v", got, record)
		}
		if got.Context["title"] != "done" {
			t.Errorf("context not persisted: %+v", got.Context)
		}
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		_, err := store.Load(ctx, "no-such-run")
		if !errors.Is(err, domain.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		ids, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		found := false
		for _, id := range ids {
			if id == "run-1" {
				found = true
			}
		}
		if !found {
			t.Errorf("run-1 missing from list: %v", ids)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := store.Delete(ctx, "run-1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		_, err := store.Load(ctx, "run-1")
		if !errors.Is(err, domain.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
	})
}
