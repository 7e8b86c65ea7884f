package bookings

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedStore deduplicates provider webhook deliveries so a redelivered
// event never applies twice.
type ProcessedStore interface {
	// MarkProcessed records an event id, returning false if it was
	// already recorded.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// InMemoryProcessedStore tracks processed events in a map.
type InMemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInMemoryProcessedStore creates an empty in-memory store.
func NewInMemoryProcessedStore() *InMemoryProcessedStore {
	return &InMemoryProcessedStore{seen: make(map[string]struct{})}
}

// MarkProcessed records an event id, returning false if already seen.
func (s *InMemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := provider + ":" + eventID
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}
	return true, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresProcessedStore records processed events in Postgres so dedupe
// survives restarts and works across replicas.
type PostgresProcessedStore struct {
	pool execer
}

// NewPostgresProcessedStore creates a store backed by a pgx pool.
func NewPostgresProcessedStore(pool *pgxpool.Pool) *PostgresProcessedStore {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresProcessedStore{pool: pool}
}

// NewPostgresProcessedStoreWithExec allows injecting mocks for tests.
func NewPostgresProcessedStoreWithExec(exec execer) *PostgresProcessedStore {
	if exec == nil {
		panic("bookings: exec required")
	}
	return &PostgresProcessedStore{pool: exec}
}

// MarkProcessed inserts an event id, returning false if it already exists.
func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	query := `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	ct, err := s.pool.Exec(ctx, query, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("bookings: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
