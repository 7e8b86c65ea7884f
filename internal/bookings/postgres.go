package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careplus/appointment-agent/internal/appointments"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository persists bookings in Postgres.
type PostgresRepository struct {
	pool querier
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

// NewPostgresRepositoryWithQuerier allows injecting mocks for tests.
func NewPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	if q == nil {
		panic("bookings: querier required")
	}
	return &PostgresRepository{pool: q}
}

const bookingColumns = `id, conversation_id, patient_name, patient_email, patient_phone,
	kind, reason, slot_start, slot_display, scheduling_url,
	status, confirmation_code, event_uri, invitee_uri, source,
	created_at, updated_at, confirmed_at, cancelled_at`

// Create inserts a booking row.
func (r *PostgresRepository) Create(ctx context.Context, b *Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.pool.Exec(ctx, query,
		b.ID, b.ConversationID, b.PatientName, b.PatientEmail, b.PatientPhone,
		string(b.Kind), b.Reason, b.SlotStart, b.SlotDisplay, b.SchedulingURL,
		string(b.Status), b.ConfirmationCode, b.EventURI, b.InviteeURI, b.Source,
		b.CreatedAt, b.UpdatedAt, b.ConfirmedAt, b.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

// Get retrieves a booking by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetByEventURI retrieves the booking tied to a provider event.
func (r *PostgresRepository) GetByEventURI(ctx context.Context, eventURI string) (*Booking, error) {
	if eventURI == "" {
		return nil, ErrBookingNotFound
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_uri = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, eventURI))
}

// GetByConfirmationCode retrieves a booking by its confirmation code.
func (r *PostgresRepository) GetByConfirmationCode(ctx context.Context, code string) (*Booking, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrBookingNotFound
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE confirmation_code = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, code))
}

// LatestPendingByEmail returns the newest pending booking for an email.
func (r *PostgresRepository) LatestPendingByEmail(ctx context.Context, email string) (*Booking, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrBookingNotFound
	}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE lower(patient_email) = $1 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, email))
}

// ListByEmail returns all bookings for an email, newest first.
func (r *PostgresRepository) ListByEmail(ctx context.Context, email string) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE lower(patient_email) = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("bookings: list by email: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// ListByConversation returns all bookings started from a conversation,
// newest first.
func (r *PostgresRepository) ListByConversation(ctx context.Context, conversationID string) ([]*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE conversation_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("bookings: list by conversation: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// Update replaces a stored booking. The WHERE clause only matches rows
// whose current status permits the incoming one, so a stale caller cannot
// resurrect a booking that reached a terminal status in the meantime.
func (r *PostgresRepository) Update(ctx context.Context, b *Booking) error {
	b.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE bookings SET
			conversation_id = $2, patient_name = $3, patient_email = $4, patient_phone = $5,
			kind = $6, reason = $7, slot_start = $8, slot_display = $9, scheduling_url = $10,
			status = $11, confirmation_code = $12, event_uri = $13, invitee_uri = $14, source = $15,
			updated_at = $16, confirmed_at = $17, cancelled_at = $18
		WHERE id = $1 AND (
			status = $11
			OR (status = 'pending' AND $11 IN ('confirmed', 'cancelled'))
			OR (status = 'confirmed' AND $11 IN ('cancelled', 'no_show'))
		)
	`
	ct, err := r.pool.Exec(ctx, query,
		b.ID, b.ConversationID, b.PatientName, b.PatientEmail, b.PatientPhone,
		string(b.Kind), b.Reason, b.SlotStart, b.SlotDisplay, b.SchedulingURL,
		string(b.Status), b.ConfirmationCode, b.EventURI, b.InviteeURI, b.Source,
		b.UpdatedAt, b.ConfirmedAt, b.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("bookings: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Either the row is gone or its current status rejects the
		// transition; look once more to tell the two apart.
		if _, err := r.Get(ctx, b.ID); errors.Is(err, ErrBookingNotFound) {
			return ErrBookingNotFound
		}
		return ErrTerminalStatus
	}
	return nil
}

func (r *PostgresRepository) scanOne(row pgx.Row) (*Booking, error) {
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("bookings: scan: %w", err)
	}
	return b, nil
}

func scanAll(rows pgx.Rows) ([]*Booking, error) {
	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate rows: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var kind, status string
	if err := row.Scan(
		&b.ID, &b.ConversationID, &b.PatientName, &b.PatientEmail, &b.PatientPhone,
		&kind, &b.Reason, &b.SlotStart, &b.SlotDisplay, &b.SchedulingURL,
		&status, &b.ConfirmationCode, &b.EventURI, &b.InviteeURI, &b.Source,
		&b.CreatedAt, &b.UpdatedAt, &b.ConfirmedAt, &b.CancelledAt,
	); err != nil {
		return nil, err
	}
	b.Kind = appointments.ParseKind(kind)
	b.Status = Status(status)
	return &b, nil
}
