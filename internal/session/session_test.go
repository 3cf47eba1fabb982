package session

import (
	"context"
	"testing"
	"time"

	"github.com/telkomfield/visitbot/internal/models"
)

func TestSessionCompleteAndBack(t *testing.T) {
	s := New("u1")
	s.State = models.StateCode
	s.Complete(models.FieldCode, "SA001")
	s.State = models.StateFullName
	s.Complete(models.FieldFullName, "Budi Santoso")
	s.State = models.StatePhone

	if len(s.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(s.History))
	}
	if s.Values[models.FieldFullName] != "Budi Santoso" {
		t.Errorf("full_name value = %q", s.Values[models.FieldFullName])
	}

	// Going back pops the last completed step and clears its value in one
	// operation.
	step, ok := s.Back()
	if !ok {
		t.Fatal("Back() should succeed with non-empty history")
	}
	if step.State != models.StateFullName || step.Field != models.FieldFullName {
		t.Errorf("Back() popped %+v", step)
	}
	if s.State != models.StateFullName {
		t.Errorf("state after back = %s, want %s", s.State, models.StateFullName)
	}
	if _, present := s.Values[models.FieldFullName]; present {
		t.Error("full_name value should be cleared after back")
	}
	if s.Values[models.FieldCode] != "SA001" {
		t.Error("earlier values must survive a back")
	}
	if len(s.History) != 1 {
		t.Errorf("history length after back = %d, want 1", len(s.History))
	}
}

func TestSessionBackEmptyHistory(t *testing.T) {
	s := New("u1")
	s.State = models.StateCode
	before := s.State

	if _, ok := s.Back(); ok {
		t.Fatal("Back() with empty history must fail")
	}
	if s.State != before {
		t.Errorf("state changed by failed back: %s", s.State)
	}
}

func TestSessionReset(t *testing.T) {
	s := New("u1")
	s.State = models.StateCode
	s.Complete(models.FieldCode, "SA001")
	s.Reset()

	if s.State != models.StateIdle {
		t.Errorf("state after reset = %s", s.State)
	}
	if len(s.Values) != 0 || len(s.History) != 0 {
		t.Error("reset must clear values and history")
	}
}

func TestMemoryStoreGetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s1, err := store.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s1.State != models.StateIdle {
		t.Errorf("new session state = %s", s1.State)
	}

	// Same user gets the same session instance.
	s1.State = models.StateCode
	s2, err := store.GetOrCreate(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s2.State != models.StateCode {
		t.Error("GetOrCreate must return the same session per user")
	}

	// Distinct users are isolated.
	other, _ := store.GetOrCreate(ctx, "u2")
	if other.State != models.StateIdle {
		t.Error("sessions must be keyed per user")
	}
}

func TestMemoryStoreResetAndDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s, _ := store.GetOrCreate(ctx, "u1")
	s.State = models.StateCode
	s.Complete(models.FieldCode, "SA001")

	if err := store.Reset(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, _ = store.GetOrCreate(ctx, "u1")
	if s.Active() || len(s.Values) != 0 {
		t.Error("reset session should be idle and empty")
	}

	if err := store.Delete(ctx, "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fresh, _ := store.GetOrCreate(ctx, "u1")
	if fresh == s {
		t.Error("delete should discard the old session instance")
	}
}

func TestMemoryStoreActiveCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, _ := store.GetOrCreate(ctx, "u1")
	a.State = models.StateCode
	store.GetOrCreate(ctx, "u2") // stays idle

	count, err := store.ActiveCount(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Errorf("ActiveCount = %d, want 1", count)
	}
}

func TestMemoryStoreSweepIdle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	stale, _ := store.GetOrCreate(ctx, "stale")
	stale.State = models.StateCode
	stale.Values[models.FieldCode] = "SA001"
	stale.UpdatedAt = time.Now().Add(-48 * time.Hour)

	fresh, _ := store.GetOrCreate(ctx, "fresh")
	fresh.State = models.StateCode

	swept, err := store.SweepIdle(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	if stale.Active() || len(stale.Values) != 0 {
		t.Error("stale session should be reset")
	}
	if !fresh.Active() {
		t.Error("fresh session should be untouched")
	}
}
