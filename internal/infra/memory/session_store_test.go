package memory

import (
	"context"
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	token, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !store.Valid(ctx, token) {
		t.Fatalf("fresh session must be valid")
	}
	if store.Valid(ctx, "not-a-token") {
		t.Fatalf("unknown token must be invalid")
	}

	store.Revoke(ctx, token)
	if store.Valid(ctx, token) {
		t.Fatalf("revoked session must be invalid")
	}
}

func TestExpiredSessionsRejectedAndSwept(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	store := NewSessionStoreWithClock(time.Hour, func() time.Time { return now })

	token, err := store.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if store.Valid(ctx, token) {
		t.Fatalf("expired session must be invalid")
	}
	if removed := store.Sweep(); removed != 1 {
		t.Fatalf("expected sweep to remove 1 session, removed %d", removed)
	}
	if removed := store.Sweep(); removed != 0 {
		t.Fatalf("second sweep must be a no-op, removed %d", removed)
	}
}
