package bookings

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Repository defines the interface for booking storage
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id string) (*Booking, error)
	GetByEventURI(ctx context.Context, eventURI string) (*Booking, error)
	GetByConfirmationCode(ctx context.Context, code string) (*Booking, error)
	// LatestPendingByEmail returns the most recently created pending
	// booking for an email, or ErrBookingNotFound.
	LatestPendingByEmail(ctx context.Context, email string) (*Booking, error)
	ListByEmail(ctx context.Context, email string) ([]*Booking, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error)
	Update(ctx context.Context, b *Booking) error
}

// InMemoryRepository keeps bookings in a map. It backs tests and
// deployments without a database.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bookings: make(map[string]*Booking),
	}
}

// Create stores a new booking.
func (r *InMemoryRepository) Create(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

// Get retrieves a booking by ID.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

// GetByEventURI retrieves the booking tied to a provider event.
func (r *InMemoryRepository) GetByEventURI(ctx context.Context, eventURI string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if eventURI == "" {
		return nil, ErrBookingNotFound
	}
	for _, b := range r.bookings {
		if b.EventURI == eventURI {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

// GetByConfirmationCode retrieves a booking by its confirmation code.
func (r *InMemoryRepository) GetByConfirmationCode(ctx context.Context, code string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrBookingNotFound
	}
	for _, b := range r.bookings {
		if b.ConfirmationCode == code {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

// LatestPendingByEmail returns the newest pending booking for an email.
func (r *InMemoryRepository) LatestPendingByEmail(ctx context.Context, email string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrBookingNotFound
	}
	var latest *Booking
	for _, b := range r.bookings {
		if b.Status != StatusPending || normalizeEmail(b.PatientEmail) != email {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrBookingNotFound
	}
	cp := *latest
	return &cp, nil
}

// ListByEmail returns all bookings for an email, newest first.
func (r *InMemoryRepository) ListByEmail(ctx context.Context, email string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = normalizeEmail(email)
	var out []*Booking
	for _, b := range r.bookings {
		if normalizeEmail(b.PatientEmail) == email {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ListByConversation returns all bookings started from a conversation,
// newest first.
func (r *InMemoryRepository) ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, b := range r.bookings {
		if b.ConversationID == conversationID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update replaces a stored booking. The status transition is validated
// against the stored row under the lock, so a stale caller cannot
// resurrect a booking that reached a terminal status in the meantime.
func (r *InMemoryRepository) Update(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.bookings[b.ID]
	if !ok {
		return ErrBookingNotFound
	}
	if _, err := cur.CanTransition(b.Status); err != nil {
		return err
	}
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	r.bookings[b.ID] = &cp
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
