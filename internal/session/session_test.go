package session

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	token, err := store.Create(ctx, Session{UserID: "u1", Role: "USER"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	sess, err := store.Get(ctx, token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if sess.UserID != "u1" || sess.Role != "USER" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	if err := store.Delete(ctx, token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, token); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	store.now = func() time.Time { return now }

	token, err := store.Create(ctx, Session{UserID: "u1", Role: "USER"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now = base.Add(30 * time.Second)
	if _, err := store.Get(ctx, token); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}

	now = base.Add(2 * time.Minute)
	if _, err := store.Get(ctx, token); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore(time.Hour)
	if _, err := store.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
