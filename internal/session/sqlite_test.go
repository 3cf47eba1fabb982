package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sessions.db")
	store, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	s, err := store.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.State = models.StateCode
	s.Complete(models.FieldCode, "SA001")
	s.State = models.StateFullName
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := store.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.State != models.StateFullName {
		t.Errorf("loaded state = %s, want %s", loaded.State, models.StateFullName)
	}
	if loaded.Values[models.FieldCode] != "SA001" {
		t.Errorf("loaded code value = %q", loaded.Values[models.FieldCode])
	}
	if len(loaded.History) != 1 || loaded.History[0].Field != models.FieldCode {
		t.Errorf("loaded history = %+v", loaded.History)
	}
}

func TestSQLiteStoreResetDeleteActiveCount(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	s, _ := store.GetOrCreate(ctx, "u1")
	s.State = models.StateCode
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	store.GetOrCreate(ctx, "u2") // idle

	count, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("ActiveCount = %d, want 1", count)
	}

	if err := store.Reset(ctx, "u1"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	reloaded, _ := store.GetOrCreate(ctx, "u1")
	if reloaded.Active() {
		t.Error("session should be idle after reset")
	}

	if err := store.Delete(ctx, "u2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestSQLiteStoreSweepIdle(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	stale, _ := store.GetOrCreate(ctx, "stale")
	stale.State = models.StateCode
	stale.Values[models.FieldCode] = "SA001"
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)
	if err := store.Save(ctx, stale); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	fresh, _ := store.GetOrCreate(ctx, "fresh")
	fresh.State = models.StateCode
	fresh.UpdatedAt = time.Now()
	if err := store.Save(ctx, fresh); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	swept, err := store.SweepIdle(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}

	reloaded, _ := store.GetOrCreate(ctx, "stale")
	if reloaded.Active() || len(reloaded.Values) != 0 {
		t.Errorf("stale session should be idle and empty, got state=%s values=%v", reloaded.State, reloaded.Values)
	}
	kept, _ := store.GetOrCreate(ctx, "fresh")
	if !kept.Active() {
		t.Error("fresh session should still be active")
	}
}
