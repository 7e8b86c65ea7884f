package bookings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/calendly"
)

func newTestService() (*Service, *InMemoryRepository, *calendly.MockProvider) {
	repo := NewInMemoryRepository()
	provider := calendly.NewMockProvider()
	return NewService(repo, provider, nil), repo, provider
}

func reserveTestBooking(t *testing.T, svc *Service) *Booking {
	t.Helper()
	b, err := svc.Reserve(context.Background(), ReserveRequest{
		ConversationID: "conv-1",
		PatientName:    "Jane Doe",
		PatientEmail:   "jane@example.com",
		PatientPhone:   "+15551234567",
		Kind:           appointments.KindConsultation,
		Reason:         "persistent cough",
		SlotStart:      time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		SlotDisplay:    "Tuesday, March 03 at 10:00 AM",
		SchedulingURL:  "https://calendly.example/clinic/visit",
	})
	if err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}
	return b
}

func TestReserveCreatesPending(t *testing.T) {
	svc, repo, _ := newTestService()
	b := reserveTestBooking(t, svc)

	if b.Status != StatusPending {
		t.Fatalf("expected pending, got %s", b.Status)
	}
	if _, err := uuid.Parse(b.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", b.ID)
	}
	for _, want := range []string{"name=Jane+Doe", "email=jane%40example.com", "a1=persistent+cough"} {
		if !strings.Contains(b.SchedulingURL, want) {
			t.Errorf("scheduling url %q missing %q", b.SchedulingURL, want)
		}
	}

	// The code is minted at creation, not at confirmation, so a pending
	// booking can be quoted at the front desk right away.
	if len(b.ConfirmationCode) != 6 {
		t.Fatalf("expected 6-char code on a pending booking, got %q", b.ConfirmationCode)
	}
	byCode, err := svc.GetByCode(context.Background(), b.ConfirmationCode)
	if err != nil {
		t.Fatalf("pending booking not found by code: %v", err)
	}
	if byCode.ID != b.ID {
		t.Fatalf("code lookup returned %s, want %s", byCode.ID, b.ID)
	}

	stored, err := repo.Get(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("booking not persisted: %v", err)
	}
	if stored.ConversationID != "conv-1" {
		t.Fatalf("unexpected stored booking %+v", stored)
	}
}

func TestConfirmLifecycle(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	b := reserveTestBooking(t, svc)

	confirmed, err := svc.Confirm(ctx, b.ID, "https://calendly.example/scheduled_events/ev1", "inv1")
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.Status)
	}
	if confirmed.ConfirmationCode != b.ConfirmationCode {
		t.Fatal("confirming should keep the code minted at reservation")
	}
	if confirmed.ConfirmedAt == nil {
		t.Fatal("expected ConfirmedAt set")
	}

	// Replaying the confirmation is a no-op that keeps the code.
	again, err := svc.Confirm(ctx, b.ID, "https://calendly.example/scheduled_events/ev1", "inv1")
	if err != nil {
		t.Fatalf("replayed Confirm returned error: %v", err)
	}
	if again.ConfirmationCode != confirmed.ConfirmationCode {
		t.Fatal("replay should not rotate the confirmation code")
	}

	if _, err := svc.MarkCancelled(ctx, b.ID); err != nil {
		t.Fatalf("MarkCancelled returned error: %v", err)
	}
	if _, err := svc.Confirm(ctx, b.ID, "", ""); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("confirming a cancelled booking should fail, got %v", err)
	}
}

func TestMarkNoShow(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	b := reserveTestBooking(t, svc)

	// A pending booking was never on the calendar, so it cannot be a
	// no-show.
	if _, err := svc.MarkNoShow(ctx, b.ID); !errors.Is(err, ErrTerminalStatus) {
		t.Fatalf("marking a pending booking no-show should fail, got %v", err)
	}

	if _, err := svc.Confirm(ctx, b.ID, "https://calendly.example/scheduled_events/ev1", "inv1"); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}
	missed, err := svc.MarkNoShow(ctx, b.ID)
	if err != nil {
		t.Fatalf("MarkNoShow returned error: %v", err)
	}
	if missed.Status != StatusNoShow {
		t.Fatalf("expected no_show, got %s", missed.Status)
	}

	// Replay is a no-op and the status sticks.
	if _, err := svc.MarkNoShow(ctx, b.ID); err != nil {
		t.Fatalf("replayed MarkNoShow returned error: %v", err)
	}
	stored, err := repo.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if stored.Status != StatusNoShow {
		t.Fatalf("expected stored no_show, got %s", stored.Status)
	}
	if stored.Active() {
		t.Fatal("a missed appointment should not count as active")
	}
}

func TestCancelUpstreamAndLocal(t *testing.T) {
	svc, _, provider := newTestService()
	ctx := context.Background()

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	eventURI := provider.AddEvent("Clinic Visit", "Jane Doe", "jane@example.com", start, start.Add(30*time.Minute))

	b := reserveTestBooking(t, svc)
	if _, err := svc.Confirm(ctx, b.ID, eventURI, ""); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, b.ID, "patient request")
	if err != nil {
		t.Fatalf("Cancel returned error: %v", err)
	}
	if cancelled.Status != StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected booking %+v", cancelled)
	}

	ev, err := provider.Event(ctx, eventURI)
	if err != nil {
		t.Fatalf("Event returned error: %v", err)
	}
	if ev.Status != calendly.EventStatusCanceled {
		t.Fatalf("provider event should be canceled, got %s", ev.Status)
	}

	// Cancelling again is a no-op.
	if _, err := svc.Cancel(ctx, b.ID, "again"); err != nil {
		t.Fatalf("repeated Cancel returned error: %v", err)
	}
}

func TestCancelToleratesMissingUpstreamEvent(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	b := reserveTestBooking(t, svc)
	if _, err := svc.Confirm(ctx, b.ID, "https://calendly.example/scheduled_events/ghost", ""); err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	cancelled, err := svc.Cancel(ctx, b.ID, "patient request")
	if err != nil {
		t.Fatalf("Cancel should tolerate a 404 upstream, got %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestCancelByCode(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	b := reserveTestBooking(t, svc)
	confirmed, err := svc.Confirm(ctx, b.ID, "", "")
	if err != nil {
		t.Fatalf("Confirm returned error: %v", err)
	}

	cancelled, err := svc.CancelByCode(ctx, strings.ToLower(confirmed.ConfirmationCode), "patient request")
	if err != nil {
		t.Fatalf("CancelByCode returned error: %v", err)
	}
	if cancelled.ID != b.ID || cancelled.Status != StatusCancelled {
		t.Fatalf("unexpected booking %+v", cancelled)
	}

	if _, err := svc.CancelByCode(ctx, "ZZZZZZ", "x"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestActiveForConversation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.ActiveForConversation(ctx, "conv-1"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}

	b := reserveTestBooking(t, svc)
	active, err := svc.ActiveForConversation(ctx, "conv-1")
	if err != nil {
		t.Fatalf("ActiveForConversation returned error: %v", err)
	}
	if active.ID != b.ID {
		t.Fatalf("unexpected booking %s", active.ID)
	}

	if _, err := svc.MarkCancelled(ctx, b.ID); err != nil {
		t.Fatalf("MarkCancelled returned error: %v", err)
	}
	if _, err := svc.ActiveForConversation(ctx, "conv-1"); !errors.Is(err, ErrBookingNotFound) {
		t.Fatalf("cancelled booking should not count as active, got %v", err)
	}
}
