package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careplus/appointment-agent/internal/bookings"
	"github.com/careplus/appointment-agent/pkg/logging"
)

// BookingsHandler exposes booking lookup, cancellation, and the on-demand
// provider sync probe.
type BookingsHandler struct {
	service    *bookings.Service
	reconciler *bookings.Reconciler
	logger     *logging.Logger
}

func NewBookingsHandler(service *bookings.Service, reconciler *bookings.Reconciler, logger *logging.Logger) *BookingsHandler {
	if service == nil {
		panic("handlers: bookings service required")
	}
	if reconciler == nil {
		panic("handlers: reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingsHandler{service: service, reconciler: reconciler, logger: logger}
}

type bookingResponse struct {
	ID               string     `json:"id"`
	PatientName      string     `json:"patient_name"`
	PatientEmail     string     `json:"patient_email"`
	Kind             string     `json:"kind"`
	SlotStart        time.Time  `json:"slot_start"`
	SlotDisplay      string     `json:"slot_display"`
	Status           string     `json:"status"`
	StatusNote       string     `json:"status_note"`
	ConfirmationCode string     `json:"confirmation_code,omitempty"`
	SchedulingURL    string     `json:"scheduling_url,omitempty"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

func toBookingResponse(b *bookings.Booking) bookingResponse {
	return bookingResponse{
		ID:               b.ID,
		PatientName:      b.PatientName,
		PatientEmail:     b.PatientEmail,
		Kind:             string(b.Kind),
		SlotStart:        b.SlotStart,
		SlotDisplay:      b.SlotDisplay,
		Status:           string(b.Status),
		StatusNote:       statusNote(b),
		ConfirmationCode: b.ConfirmationCode,
		SchedulingURL:    b.SchedulingURL,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
	}
}

func statusNote(b *bookings.Booking) string {
	switch b.Status {
	case bookings.StatusPending:
		return "Waiting for the calendar to confirm this time. If you haven't finished booking yet, use the scheduling link."
	case bookings.StatusConfirmed:
		return "Confirmed on the clinic calendar."
	case bookings.StatusCancelled:
		return "This booking was cancelled."
	case bookings.StatusNoShow:
		return "This appointment was missed. Call the front desk to rebook."
	default:
		return ""
	}
}

// lookup resolves a path reference that may be a confirmation code, a
// booking id, or a provider event/invitee reference. A reference the
// repository does not know falls through to a provider-side scan, so a
// booking whose webhook never arrived is adopted on first lookup.
func (h *BookingsHandler) lookup(r *http.Request) (*bookings.Booking, error) {
	ref := chi.URLParam(r, "ref")
	b, err := h.service.GetByCode(r.Context(), ref)
	if !errors.Is(err, bookings.ErrBookingNotFound) {
		return b, err
	}
	b, err = h.service.Get(r.Context(), ref)
	if !errors.Is(err, bookings.ErrBookingNotFound) {
		return b, err
	}
	recovered, rerr := h.reconciler.RecoverReference(r.Context(), ref)
	if rerr != nil {
		if errors.Is(rerr, bookings.ErrBookingNotFound) {
			return nil, bookings.ErrBookingNotFound
		}
		h.logger.Warn("provider reference recovery failed", "ref", ref, "error", rerr.Error())
		return nil, bookings.ErrBookingNotFound
	}
	return recovered, nil
}

// Get looks a booking up by confirmation code or id.
func (h *BookingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.lookup(r)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.Error("booking lookup failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}

// Cancel cancels the booking matching a confirmation code or id.
func (h *BookingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	b, err := h.lookup(r)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		h.logger.Error("booking lookup failed", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "failed to load booking")
		return
	}
	cancelled, err := h.service.Cancel(r.Context(), b.ID, "cancelled via api")
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrTerminalStatus):
			writeError(w, http.StatusConflict, "booking already cancelled")
		default:
			h.logger.Error("booking cancellation failed", "booking_id", b.ID, "error", err.Error())
			writeError(w, http.StatusBadGateway, "failed to cancel booking")
		}
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(cancelled))
}

type syncRequest struct {
	Email string `json:"email"`
	// Date optionally narrows the probe to one calendar day, YYYY-MM-DD.
	Date string `json:"date,omitempty"`
}

// Sync runs the provider reconciliation probe for one patient email and
// returns the booking it resolved.
func (h *BookingsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	b, err := h.reconciler.SyncByEmail(r.Context(), email, date)
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "no booking found for email")
			return
		}
		h.logger.Error("sync probe failed", "error", err.Error())
		writeError(w, http.StatusBadGateway, "failed to reach scheduling provider")
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
