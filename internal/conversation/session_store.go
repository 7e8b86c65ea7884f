package conversation

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session exists for a conversation.
var ErrSessionNotFound = errors.New("conversation: session not found")

// SessionStore persists dialogue sessions between messages.
type SessionStore interface {
	Get(ctx context.Context, conversationID string) (*Session, error)
	Put(ctx context.Context, session *Session) error
	Delete(ctx context.Context, conversationID string) error
}

// InMemorySessionStore keeps sessions in a map with lazy TTL expiry.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession
}

type memorySession struct {
	session   Session
	expiresAt time.Time
}

// NewInMemorySessionStore creates an in-memory store. A non-positive ttl
// disables expiry.
func NewInMemorySessionStore(ttl time.Duration) *InMemorySessionStore {
	return &InMemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
	}
}

// Get retrieves a session, honoring expiry.
func (s *InMemorySessionStore) Get(_ context.Context, conversationID string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.ttl > 0 && time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, conversationID)
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	cp := entry.session
	return &cp, nil
}

// Put stores a session.
func (s *InMemorySessionStore) Put(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.ConversationID] = memorySession{
		session:   *session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes a session.
func (s *InMemorySessionStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, conversationID)
	return nil
}

// RedisSessionStore keeps sessions in Redis so conversations survive
// restarts and can move between replicas.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOptions configures the Redis session store.
type RedisOptions struct {
	Addr     string
	Password string
	UseTLS   bool
	TTL      time.Duration
}

// NewRedisSessionStore creates a Redis-backed store.
func NewRedisSessionStore(opts RedisOptions) *RedisSessionStore {
	ro := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
	}
	if opts.UseTLS {
		ro.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{
		client: redis.NewClient(ro),
		ttl:    ttl,
	}
}

// NewRedisSessionStoreWithClient allows injecting a client for tests.
func NewRedisSessionStoreWithClient(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl}
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}

// Get retrieves a session.
func (s *RedisSessionStore) Get(ctx context.Context, conversationID string) (*Session, error) {
	raw, err := s.client.Get(ctx, sessionKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &session, nil
}

// Put stores a session with the configured TTL.
func (s *RedisSessionStore) Put(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ConversationID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("conversation: store session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *RedisSessionStore) Delete(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, sessionKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("conversation: delete session: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}
