package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/careplus/appointment-agent/internal/bookings"
	"github.com/careplus/appointment-agent/internal/observability/metrics"
	"github.com/careplus/appointment-agent/pkg/logging"
)

const (
	eventInviteeCreated  = "invitee.created"
	eventInviteeCanceled = "invitee.canceled"
)

// CalendlyWebhookHandler receives invitee lifecycle webhooks from the
// scheduling provider and feeds them to the reconciler. Deliveries are
// acknowledged with 200 even when reconciliation rejects them; the provider
// retries anything else and the outcome would not change.
type CalendlyWebhookHandler struct {
	reconciler *bookings.Reconciler
	signingKey string
	metrics    *metrics.WebhookMetrics
	logger     *logging.Logger
}

func NewCalendlyWebhookHandler(reconciler *bookings.Reconciler, signingKey string, m *metrics.WebhookMetrics, logger *logging.Logger) *CalendlyWebhookHandler {
	if reconciler == nil {
		panic("handlers: reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendlyWebhookHandler{
		reconciler: reconciler,
		signingKey: strings.TrimSpace(signingKey),
		metrics:    m,
		logger:     logger,
	}
}

type calendlyWebhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		URI            string `json:"uri"`
		Email          string `json:"email"`
		Name           string `json:"name"`
		Status         string `json:"status"`
		CancelURL      string `json:"cancel_url"`
		ScheduledEvent struct {
			URI       string    `json:"uri"`
			Name      string    `json:"name"`
			StartTime time.Time `json:"start_time"`
			EndTime   time.Time `json:"end_time"`
		} `json:"scheduled_event"`
		Cancellation struct {
			CanceledBy string `json:"canceled_by"`
			Reason     string `json:"reason"`
		} `json:"cancellation"`
	} `json:"payload"`
}

// Handle processes one webhook delivery.
func (h *CalendlyWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if h.signingKey != "" {
		if !verifyCalendlySignature(h.signingKey, body, r.Header.Get("Calendly-Webhook-Signature")) {
			h.logger.Warn("invalid webhook signature")
			h.metrics.ObserveInbound("unknown", "bad_signature")
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var payload calendlyWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.ObserveInbound("unknown", "bad_payload")
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	ev := bookings.InviteeEvent{
		DeliveryID: payload.Event + "|" + payload.Payload.URI,
		EventURI:   payload.Payload.ScheduledEvent.URI,
		InviteeURI: payload.Payload.URI,
		Email:      payload.Payload.Email,
		Name:       payload.Payload.Name,
		StartAt:    payload.Payload.ScheduledEvent.StartTime,
		EndAt:      payload.Payload.ScheduledEvent.EndTime,
		Reason:     payload.Payload.Cancellation.Reason,
	}

	status := "processed"
	switch payload.Event {
	case eventInviteeCreated:
		if _, err := h.reconciler.HandleInviteeCreated(r.Context(), ev); err != nil {
			status = h.reconcileErrStatus(err, payload.Event, ev)
		}
	case eventInviteeCanceled:
		if _, err := h.reconciler.HandleInviteeCanceled(r.Context(), ev); err != nil {
			status = h.reconcileErrStatus(err, payload.Event, ev)
		}
	default:
		h.metrics.ObserveInbound(payload.Event, "ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.metrics.ObserveInbound(payload.Event, status)
	h.metrics.ObserveLatency(payload.Event, time.Since(start).Seconds())
	w.WriteHeader(http.StatusOK)
}

// reconcileErrStatus logs a reconciliation failure and maps it to a metric
// label. The delivery is still acknowledged: a terminal booking stays
// terminal no matter how often the provider retries.
func (h *CalendlyWebhookHandler) reconcileErrStatus(err error, eventType string, ev bookings.InviteeEvent) string {
	if errors.Is(err, bookings.ErrTerminalStatus) {
		h.logger.Warn("webhook ignored for terminal booking",
			"event_type", eventType,
			"invitee_uri", ev.InviteeURI,
		)
		return "terminal"
	}
	h.logger.Error("webhook reconciliation failed",
		"event_type", eventType,
		"invitee_uri", ev.InviteeURI,
		"error", err.Error(),
	)
	return "error"
}

// verifyCalendlySignature checks the "t=<ts>,v1=<hex>" signature header.
// The MAC is HMAC-SHA256 over "<ts>.<payload>" with the webhook signing
// key.
func verifyCalendlySignature(key string, payload []byte, header string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	var ts, sig string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "t="):
			ts = strings.TrimPrefix(part, "t=")
		case strings.HasPrefix(part, "v1="):
			sig = strings.TrimPrefix(part, "v1=")
		}
	}
	if ts == "" || sig == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sig))
}
