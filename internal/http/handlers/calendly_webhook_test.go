package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/bookings"
)

const testSigningKey = "whsec_test_key"

func signPayload(key string, ts string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func reservePending(t *testing.T, f *handlerFixture, email string) *bookings.Booking {
	t.Helper()
	b, err := f.service.Reserve(context.Background(), bookings.ReserveRequest{
		ConversationID: "conv-webhook",
		PatientName:    "Jane Doe",
		PatientEmail:   email,
		Kind:           appointments.KindConsultation,
		Reason:         "checkup",
		SlotStart:      time.Now().Add(48 * time.Hour).Truncate(time.Hour),
		SlotDisplay:    "soon",
		SchedulingURL:  "https://calendly.example/clinic/visit",
	})
	require.NoError(t, err)
	return b
}

func inviteeCreatedBody(email, inviteeURI, eventURI string, start time.Time) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "invitee.created",
		"payload": {
			"uri": %q,
			"email": %q,
			"name": "Jane Doe",
			"status": "active",
			"scheduled_event": {
				"uri": %q,
				"name": "Consultation",
				"start_time": %q,
				"end_time": %q
			}
		}
	}`, inviteeURI, email, eventURI, start.Format(time.RFC3339), start.Add(30*time.Minute).Format(time.RFC3339)))
}

func postWebhook(f *handlerFixture, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/calendly", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("Calendly-Webhook-Signature", signature)
	}
	rec := httptest.NewRecorder()
	f.webhook.Handle(rec, req)
	return rec
}

func TestCalendlyWebhookConfirmsPendingBooking(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)
	b := reservePending(t, f, "jane@example.com")

	body := inviteeCreatedBody("jane@example.com",
		"https://api.calendly.com/scheduled_events/ev1/invitees/in1",
		"https://api.calendly.com/scheduled_events/ev1",
		b.SlotStart,
	)
	rec := postWebhook(f, body, signPayload(testSigningKey, "1700000000", body))
	require.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, updated.Status)
	assert.Equal(t, "https://api.calendly.com/scheduled_events/ev1", updated.EventURI)
	assert.NotEmpty(t, updated.ConfirmationCode)
}

func TestCalendlyWebhookRejectsBadSignature(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)
	b := reservePending(t, f, "jane@example.com")

	body := inviteeCreatedBody("jane@example.com", "uri1", "ev1", b.SlotStart)

	rec := postWebhook(f, body, "t=1700000000,v1=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(f, body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	updated, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusPending, updated.Status)
}

func TestCalendlyWebhookReplayIsIdempotent(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)
	b := reservePending(t, f, "jane@example.com")

	body := inviteeCreatedBody("jane@example.com",
		"https://api.calendly.com/scheduled_events/ev2/invitees/in2",
		"https://api.calendly.com/scheduled_events/ev2",
		b.SlotStart,
	)
	sig := signPayload(testSigningKey, "1700000000", body)

	require.Equal(t, http.StatusOK, postWebhook(f, body, sig).Code)
	require.Equal(t, http.StatusOK, postWebhook(f, body, sig).Code)

	updated, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusConfirmed, updated.Status)
}

func TestCalendlyWebhookCancellation(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)
	b := reservePending(t, f, "jane@example.com")

	created := inviteeCreatedBody("jane@example.com",
		"https://api.calendly.com/scheduled_events/ev3/invitees/in3",
		"https://api.calendly.com/scheduled_events/ev3",
		b.SlotStart,
	)
	require.Equal(t, http.StatusOK, postWebhook(f, created, signPayload(testSigningKey, "1700000000", created)).Code)

	canceled := []byte(`{
		"event": "invitee.canceled",
		"payload": {
			"uri": "https://api.calendly.com/scheduled_events/ev3/invitees/in3",
			"email": "jane@example.com",
			"name": "Jane Doe",
			"status": "canceled",
			"scheduled_event": {"uri": "https://api.calendly.com/scheduled_events/ev3"},
			"cancellation": {"canceled_by": "invitee", "reason": "conflict"}
		}
	}`)
	require.Equal(t, http.StatusOK, postWebhook(f, canceled, signPayload(testSigningKey, "1700000001", canceled)).Code)

	updated, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, updated.Status)
}

func TestCalendlyWebhookIgnoresUnknownEvent(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)

	body := []byte(`{"event": "routing_form_submission.created", "payload": {}}`)
	rec := postWebhook(f, body, signPayload(testSigningKey, "1700000000", body))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalendlyWebhookCreatedAfterCancellationStaysCancelled(t *testing.T) {
	f := newHandlerFixture(t, testSigningKey)
	b := reservePending(t, f, "jane@example.com")

	_, err := f.service.Cancel(context.Background(), b.ID, "changed plans")
	require.NoError(t, err)

	body := inviteeCreatedBody("jane@example.com",
		"https://api.calendly.com/scheduled_events/ev4/invitees/in4",
		"https://api.calendly.com/scheduled_events/ev4",
		b.SlotStart,
	)
	rec := postWebhook(f, body, signPayload(testSigningKey, "1700000000", body))
	// The delivery is still acknowledged; the cancelled booking is final.
	assert.Equal(t, http.StatusOK, rec.Code)

	updated, err := f.repo.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCancelled, updated.Status)
}
