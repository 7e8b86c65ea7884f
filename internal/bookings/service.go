package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/calendly"
	"github.com/careplus/appointment-agent/pkg/logging"
)

var bookingsTracer = otel.Tracer("careplus.internal.bookings")

// Service orchestrates the booking lifecycle: reserving a slot for a
// patient, confirming it once the provider reports the event, and
// cancelling both locally and upstream.
type Service struct {
	repo     Repository
	provider calendly.Provider
	logger   *logging.Logger
}

// NewService constructs a bookings service.
func NewService(repo Repository, provider calendly.Provider, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if provider == nil {
		panic("bookings: provider required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, provider: provider, logger: logger}
}

// ReserveRequest carries everything needed to hold a slot for a patient.
type ReserveRequest struct {
	ConversationID string
	PatientName    string
	PatientEmail   string
	PatientPhone   string
	Kind           appointments.Kind
	Reason         string
	SlotStart      time.Time
	SlotDisplay    string
	SchedulingURL  string
}

// Reserve creates a pending booking and returns it with a scheduling link
// pre-filled with the patient's details. The booking stays pending until
// the provider reports the event booked.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.reserve")
	defer span.End()
	span.SetAttributes(
		attribute.String("careplus.conversation_id", req.ConversationID),
		attribute.String("careplus.kind", string(req.Kind)),
	)

	code, err := s.mintConfirmationCode(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	b := &Booking{
		ID:               uuid.New().String(),
		ConversationID:   req.ConversationID,
		PatientName:      req.PatientName,
		PatientEmail:     req.PatientEmail,
		PatientPhone:     req.PatientPhone,
		Kind:             req.Kind,
		Reason:           req.Reason,
		SlotStart:        req.SlotStart,
		SlotDisplay:      req.SlotDisplay,
		SchedulingURL:    calendly.PrefilledLink(req.SchedulingURL, req.PatientName, req.PatientEmail, req.Reason),
		Status:           StatusPending,
		ConfirmationCode: code,
		Source:           SourceChat,
	}
	if err := s.repo.Create(ctx, b); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: reserve: %w", err)
	}
	s.logger.Info("booking reserved",
		"booking_id", b.ID,
		"conversation_id", b.ConversationID,
		"slot", b.SlotDisplay,
	)
	return b, nil
}

// mintConfirmationCode generates a code and regenerates on the rare
// collision with an existing booking.
func (s *Service) mintConfirmationCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := NewConfirmationCode()
		_, err := s.repo.GetByConfirmationCode(ctx, code)
		if errors.Is(err, ErrBookingNotFound) {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("bookings: mint confirmation code: %w", err)
		}
	}
	return "", errors.New("bookings: confirmation code space exhausted")
}

// Confirm moves a booking to confirmed and records the provider event it
// maps to. Confirming an already confirmed booking is a no-op; confirming a
// cancelled one fails with ErrTerminalStatus.
func (s *Service) Confirm(ctx context.Context, bookingID, eventURI, inviteeURI string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("careplus.booking_id", bookingID))

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	changed, err := b.CanTransition(StatusConfirmed)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !changed {
		return b, nil
	}

	now := time.Now().UTC()
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	if eventURI != "" {
		b.EventURI = eventURI
	}
	if inviteeURI != "" {
		b.InviteeURI = inviteeURI
	}
	if b.ConfirmationCode == "" {
		b.ConfirmationCode = NewConfirmationCode()
	}
	if err := s.repo.Update(ctx, b); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: confirm: %w", err)
	}
	s.logger.Info("booking confirmed",
		"booking_id", b.ID,
		"confirmation_code", b.ConfirmationCode,
		"event_uri", b.EventURI,
	)
	return b, nil
}

// Cancel cancels a booking. If the booking maps to a provider event the
// event is cancelled upstream first; a local-only pending booking is just
// marked cancelled. Cancelling an already cancelled booking is a no-op.
func (s *Service) Cancel(ctx context.Context, bookingID, reason string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("careplus.booking_id", bookingID))

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if b.Status == StatusCancelled {
		return b, nil
	}

	if b.EventURI != "" {
		if err := s.provider.CancelEvent(ctx, b.EventURI, reason); err != nil {
			// A 404 means the event is already gone upstream; the
			// local cancel still applies.
			var apiErr *calendly.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
				span.RecordError(err)
				return nil, fmt.Errorf("bookings: cancel upstream: %w", err)
			}
		}
	}
	return s.MarkCancelled(ctx, bookingID)
}

// CancelByCode cancels the booking matching a confirmation code.
func (s *Service) CancelByCode(ctx context.Context, code, reason string) (*Booking, error) {
	b, err := s.repo.GetByConfirmationCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Cancel(ctx, b.ID, reason)
}

// MarkCancelled applies the local cancelled transition without touching the
// provider. The reconciler uses it when the provider already reported the
// cancellation.
func (s *Service) MarkCancelled(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	changed, err := b.CanTransition(StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !changed {
		return b, nil
	}
	now := time.Now().UTC()
	b.Status = StatusCancelled
	b.CancelledAt = &now
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("bookings: mark cancelled: %w", err)
	}
	s.logger.Info("booking cancelled", "booking_id", b.ID)
	return b, nil
}

// MarkNoShow records that the patient missed a confirmed appointment.
func (s *Service) MarkNoShow(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	changed, err := b.CanTransition(StatusNoShow)
	if err != nil {
		return nil, err
	}
	if !changed {
		return b, nil
	}
	b.Status = StatusNoShow
	if err := s.repo.Update(ctx, b); err != nil {
		return nil, fmt.Errorf("bookings: mark no-show: %w", err)
	}
	s.logger.Info("booking marked no-show", "booking_id", b.ID)
	return b, nil
}

// Get retrieves a booking by ID.
func (s *Service) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return s.repo.Get(ctx, bookingID)
}

// GetByCode retrieves a booking by confirmation code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Booking, error) {
	return s.repo.GetByConfirmationCode(ctx, code)
}

// ListByEmail returns a patient's bookings, newest first.
func (s *Service) ListByEmail(ctx context.Context, email string) ([]*Booking, error) {
	return s.repo.ListByEmail(ctx, email)
}

// ActiveForConversation returns the newest pending or confirmed booking
// started from a conversation, or ErrBookingNotFound.
func (s *Service) ActiveForConversation(ctx context.Context, conversationID string) (*Booking, error) {
	all, err := s.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.Active() {
			return b, nil
		}
	}
	return nil, ErrBookingNotFound
}
