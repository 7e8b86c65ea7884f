package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/careplus/appointment-agent/internal/appointments"
)

func TestInMemorySessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(time.Hour)

	if _, err := store.Get(ctx, "conv-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	session := NewSession("conv-1")
	session.State = StateCollectingReason
	session.Kind = appointments.KindPhysical
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State != StateCollectingReason || loaded.Kind != appointments.KindPhysical {
		t.Errorf("unexpected session: %+v", loaded)
	}

	// The store hands out copies.
	loaded.State = StateConfirmed
	again, err := store.Get(ctx, "conv-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if again.State != StateCollectingReason {
		t.Error("mutation of a returned session leaked into the store")
	}

	if err := store.Delete(ctx, "conv-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "conv-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestInMemorySessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore(time.Millisecond)

	if err := store.Put(ctx, NewSession("conv-2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := store.Get(ctx, "conv-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}

func newTestRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisSessionStoreWithClient(client, time.Hour)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestRedisStore(t)

	if _, err := store.Get(ctx, "conv-3"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	session := NewSession("conv-3")
	session.State = StateSelectingSlot
	session.PatientName = "Jane Doe"
	session.PatientEmail = "jane@example.com"
	if err := store.Put(ctx, session); err != nil {
		t.Fatalf("put: %v", err)
	}

	loaded, err := store.Get(ctx, "conv-3")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.State != StateSelectingSlot || loaded.PatientName != "Jane Doe" || loaded.PatientEmail != "jane@example.com" {
		t.Errorf("unexpected session: %+v", loaded)
	}

	if err := store.Delete(ctx, "conv-3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "conv-3"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestRedisSessionStoreTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestRedisStore(t)

	if err := store.Put(ctx, NewSession("conv-4")); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(2 * time.Hour)

	if _, err := store.Get(ctx, "conv-4"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expired session, got %v", err)
	}
}
