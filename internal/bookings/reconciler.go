package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/calendly"
	"github.com/careplus/appointment-agent/pkg/logging"
)

var reconcilerTracer = otel.Tracer("careplus.internal.bookings.reconciler")

const webhookProvider = "calendly"

// slotDisplayLayout matches the availability display format so provider
// times render the same way everywhere.
const slotDisplayLayout = "Monday, January 02 at 3:04 PM"

// InviteeEvent is the normalized payload of a provider invitee webhook.
type InviteeEvent struct {
	// DeliveryID identifies the webhook delivery for dedupe.
	DeliveryID string
	EventURI   string
	InviteeURI string
	Email      string
	Name       string
	StartAt    time.Time
	EndAt      time.Time
	Reason     string
}

// Reconciler folds provider state into the booking repository. Webhook
// events arrive at-least-once and out of order, so every apply is
// idempotent and a cancelled booking never comes back.
type Reconciler struct {
	service   *Service
	repo      Repository
	provider  calendly.Provider
	processed ProcessedStore
	logger    *logging.Logger
	lookback  time.Duration
	pageSize  int
	now       func() time.Time
}

// NewReconciler constructs a reconciler.
func NewReconciler(service *Service, repo Repository, provider calendly.Provider, processed ProcessedStore, lookback time.Duration, pageSize int, logger *logging.Logger) *Reconciler {
	if service == nil {
		panic("bookings: service required")
	}
	if repo == nil {
		panic("bookings: repository required")
	}
	if provider == nil {
		panic("bookings: provider required")
	}
	if processed == nil {
		processed = NewInMemoryProcessedStore()
	}
	if logger == nil {
		logger = logging.Default()
	}
	if lookback <= 0 {
		lookback = 7 * 24 * time.Hour
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Reconciler{
		service:   service,
		repo:      repo,
		provider:  provider,
		processed: processed,
		logger:    logger,
		lookback:  lookback,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// HandleInviteeCreated applies an invitee.created event. The matching
// cascade tries the exact event URI first, then the most recent pending
// booking for the invitee's email, and finally records the event as a
// booking of its own so walk-in provider bookings still show up.
func (rc *Reconciler) HandleInviteeCreated(ctx context.Context, ev InviteeEvent) (*Booking, error) {
	ctx, span := reconcilerTracer.Start(ctx, "reconciler.invitee_created")
	defer span.End()
	span.SetAttributes(attribute.String("careplus.event_uri", ev.EventURI))

	fresh, err := rc.processed.MarkProcessed(ctx, webhookProvider, ev.DeliveryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !fresh {
		rc.logger.Debug("webhook delivery already processed", "delivery_id", ev.DeliveryID)
		return nil, nil
	}

	return rc.adopt(ctx, ev, SourceWebhook)
}

// HandleInviteeCanceled applies an invitee.canceled event using the same
// matching cascade. An unmatched cancellation still gets a record so the
// provider calendar and the repository agree.
func (rc *Reconciler) HandleInviteeCanceled(ctx context.Context, ev InviteeEvent) (*Booking, error) {
	ctx, span := reconcilerTracer.Start(ctx, "reconciler.invitee_canceled")
	defer span.End()
	span.SetAttributes(attribute.String("careplus.event_uri", ev.EventURI))

	fresh, err := rc.processed.MarkProcessed(ctx, webhookProvider, ev.DeliveryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if !fresh {
		rc.logger.Debug("webhook delivery already processed", "delivery_id", ev.DeliveryID)
		return nil, nil
	}

	if b, err := rc.repo.GetByEventURI(ctx, ev.EventURI); err == nil {
		return rc.service.MarkCancelled(ctx, b.ID)
	} else if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	if b, err := rc.repo.LatestPendingByEmail(ctx, ev.Email); err == nil {
		b.EventURI = ev.EventURI
		b.InviteeURI = ev.InviteeURI
		if err := rc.repo.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("bookings: link cancelled event: %w", err)
		}
		return rc.service.MarkCancelled(ctx, b.ID)
	} else if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	now := rc.now().UTC()
	b := rc.orphanBooking(ev, SourceWebhook)
	b.Status = StatusCancelled
	b.CancelledAt = &now
	if err := rc.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("bookings: record unmatched cancellation: %w", err)
	}
	rc.logger.Warn("recorded cancellation with no matching booking",
		"event_uri", ev.EventURI,
		"email", ev.Email,
	)
	return b, nil
}

// SyncByEmail probes the provider for a recent booking by the given email.
// It backstops lost webhooks: the scheduled-events listing is scanned over
// the lookback window and the first active event with a matching active
// invitee is adopted. A non-zero date narrows the scan to events starting
// on that calendar day.
func (rc *Reconciler) SyncByEmail(ctx context.Context, email string, date time.Time) (*Booking, error) {
	ctx, span := reconcilerTracer.Start(ctx, "reconciler.sync_by_email")
	defer span.End()

	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrBookingNotFound
	}

	events, err := rc.provider.ScheduledEvents(ctx, rc.now().Add(-rc.lookback), rc.pageSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: sync scan: %w", err)
	}

	for _, event := range events {
		if event.Status != calendly.EventStatusActive {
			continue
		}
		if !date.IsZero() && !sameCalendarDay(event.StartAt, date) {
			continue
		}
		if b, err := rc.repo.GetByEventURI(ctx, event.URI); err == nil {
			if normalizeEmail(b.PatientEmail) == email {
				return b, nil
			}
			continue
		} else if !errors.Is(err, ErrBookingNotFound) {
			return nil, err
		}

		invitees, err := rc.provider.EventInvitees(ctx, event.URI)
		if err != nil {
			rc.logger.Warn("sync: listing invitees failed",
				"event_uri", event.URI,
				"error", err.Error(),
			)
			continue
		}
		for _, inv := range invitees {
			if inv.Status != calendly.EventStatusActive || normalizeEmail(inv.Email) != email {
				continue
			}
			return rc.adopt(ctx, InviteeEvent{
				EventURI:   event.URI,
				InviteeURI: inv.URI,
				Email:      inv.Email,
				Name:       inv.Name,
				StartAt:    event.StartAt,
				EndAt:      event.EndAt,
			}, SourceSync)
		}
	}
	return nil, ErrBookingNotFound
}

// RecoverReference resolves a booking reference the repository does not
// know by scanning the provider calendar. The reference may be a full
// event or invitee URI or just its trailing id segment; a hit is adopted
// the same way a live webhook would be.
func (rc *Reconciler) RecoverReference(ctx context.Context, ref string) (*Booking, error) {
	ctx, span := reconcilerTracer.Start(ctx, "reconciler.recover_reference")
	defer span.End()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrBookingNotFound
	}

	events, err := rc.provider.ScheduledEvents(ctx, rc.now().Add(-rc.lookback), rc.pageSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bookings: reference scan: %w", err)
	}

	for _, event := range events {
		if event.Status != calendly.EventStatusActive {
			continue
		}
		eventMatch := referenceMatches(event.URI, ref)
		invitees, err := rc.provider.EventInvitees(ctx, event.URI)
		if err != nil {
			rc.logger.Warn("reference scan: listing invitees failed",
				"event_uri", event.URI,
				"error", err.Error(),
			)
			continue
		}
		for _, inv := range invitees {
			if inv.Status != calendly.EventStatusActive {
				continue
			}
			if !eventMatch && !referenceMatches(inv.URI, ref) {
				continue
			}
			return rc.adopt(ctx, InviteeEvent{
				EventURI:   event.URI,
				InviteeURI: inv.URI,
				Email:      inv.Email,
				Name:       inv.Name,
				StartAt:    event.StartAt,
				EndAt:      event.EndAt,
			}, SourceSync)
		}
	}
	return nil, ErrBookingNotFound
}

func referenceMatches(uri, ref string) bool {
	return uri == ref || strings.HasSuffix(uri, "/"+ref)
}

func sameCalendarDay(a, b time.Time) bool {
	y1, m1, d1 := a.In(b.Location()).Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// adopt applies a booked provider event to the repository via the matching
// cascade.
func (rc *Reconciler) adopt(ctx context.Context, ev InviteeEvent, source string) (*Booking, error) {
	if b, err := rc.repo.GetByEventURI(ctx, ev.EventURI); err == nil {
		return rc.service.Confirm(ctx, b.ID, ev.EventURI, ev.InviteeURI)
	} else if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	if b, err := rc.repo.LatestPendingByEmail(ctx, ev.Email); err == nil {
		if !ev.StartAt.IsZero() {
			b.SlotStart = ev.StartAt
			b.SlotDisplay = ev.StartAt.Format(slotDisplayLayout)
		}
		if err := rc.repo.Update(ctx, b); err != nil {
			return nil, fmt.Errorf("bookings: apply provider slot: %w", err)
		}
		return rc.service.Confirm(ctx, b.ID, ev.EventURI, ev.InviteeURI)
	} else if !errors.Is(err, ErrBookingNotFound) {
		return nil, err
	}

	now := rc.now().UTC()
	b := rc.orphanBooking(ev, source)
	b.Status = StatusConfirmed
	b.ConfirmedAt = &now
	b.ConfirmationCode = NewConfirmationCode()
	if err := rc.repo.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("bookings: record provider booking: %w", err)
	}
	rc.logger.Info("adopted provider booking with no pending match",
		"booking_id", b.ID,
		"event_uri", ev.EventURI,
		"source", source,
	)
	return b, nil
}

func (rc *Reconciler) orphanBooking(ev InviteeEvent, source string) *Booking {
	b := &Booking{
		ID:           uuid.New().String(),
		PatientName:  ev.Name,
		PatientEmail: strings.TrimSpace(ev.Email),
		Kind:         appointments.KindConsultation,
		SlotStart:    ev.StartAt,
		EventURI:     ev.EventURI,
		InviteeURI:   ev.InviteeURI,
		Source:       source,
	}
	if !ev.StartAt.IsZero() {
		b.SlotDisplay = ev.StartAt.Format(slotDisplayLayout)
	}
	return b
}
