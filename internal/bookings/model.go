package bookings

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/careplus/appointment-agent/internal/appointments"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	// StatusPending means the patient picked a slot but the scheduling
	// provider has not yet reported the event as booked.
	StatusPending Status = "pending"
	// StatusConfirmed means the provider reported the event as booked.
	StatusConfirmed Status = "confirmed"
	// StatusCancelled means the booking was cancelled, by the patient or
	// by the provider.
	StatusCancelled Status = "cancelled"
	// StatusNoShow means the patient missed a confirmed appointment.
	StatusNoShow Status = "no_show"
)

var (
	// ErrBookingNotFound is returned when no booking matches a lookup.
	ErrBookingNotFound = errors.New("bookings: booking not found")
	// ErrTerminalStatus is returned when a transition would resurrect a
	// cancelled booking.
	ErrTerminalStatus = errors.New("bookings: booking already in a terminal status")
)

// Source records how a booking entered the system.
const (
	SourceChat    = "chat"
	SourceWebhook = "webhook"
	SourceSync    = "sync"
)

// Booking is one appointment request and its reconciliation state against
// the scheduling provider.
type Booking struct {
	ID             string
	ConversationID string

	PatientName  string
	PatientEmail string
	PatientPhone string

	Kind   appointments.Kind
	Reason string

	SlotStart     time.Time
	SlotDisplay   string
	SchedulingURL string

	Status           Status
	ConfirmationCode string
	EventURI         string
	InviteeURI       string
	Source           string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
}

// CanTransition reports whether a status change is allowed and whether it
// is a real change. Replaying the current status is a permitted no-op.
// Pending moves to confirmed or cancelled; confirmed moves to cancelled or
// no-show; cancelled and no-show never come back.
func (b *Booking) CanTransition(next Status) (changed bool, err error) {
	if b.Status == next {
		return false, nil
	}
	switch b.Status {
	case StatusPending:
		if next == StatusConfirmed || next == StatusCancelled {
			return true, nil
		}
		return false, ErrTerminalStatus
	case StatusConfirmed:
		if next == StatusCancelled || next == StatusNoShow {
			return true, nil
		}
		return false, ErrTerminalStatus
	default:
		return false, ErrTerminalStatus
	}
}

// Active reports whether the booking still represents an upcoming
// appointment or an in-flight request.
func (b *Booking) Active() bool {
	return b.Status == StatusPending || b.Status == StatusConfirmed
}

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewConfirmationCode generates a 6-character code patients can quote at
// the front desk.
func NewConfirmationCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the platform entropy source is
		// broken; fall back to a fixed marker rather than panic.
		return "APPT00"
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf)
}
