package conversation

import (
	"time"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/availability"
)

// State is the dialogue position of a conversation. Every patient message
// is handled by exactly one state handler.
type State string

const (
	// StateGreeting is the entry state before any flow starts.
	StateGreeting State = "greeting"
	// StateFaq follows an answered question, waiting to see whether the
	// patient wants anything else.
	StateFaq State = "faq"
	// StateCollectingReason waits for the visit reason.
	StateCollectingReason State = "collecting_reason"
	// StateCollectingTimePreference waits for morning/afternoon/evening.
	StateCollectingTimePreference State = "collecting_time_preference"
	// StateSelectingSlot waits for the patient to pick an offered slot.
	StateSelectingSlot State = "selecting_slot"
	// StateConfirmingSlot waits for a yes/no on the picked slot.
	StateConfirmingSlot State = "confirming_slot"
	// StateCollectingPatientInfo gathers name and contact details.
	StateCollectingPatientInfo State = "collecting_patient_info"
	// StateConfirmed means a booking was reserved or confirmed.
	StateConfirmed State = "confirmed"
	// StateCheckingAvailability shows openings without a committed flow.
	StateCheckingAvailability State = "checking_availability"
	// StateCheckingSpecificDate waits for a calendar date to check.
	StateCheckingSpecificDate State = "checking_specific_date"
	// StateWaitlist offers a callback when no slots fit.
	StateWaitlist State = "waitlist"
	// StateCancellingBooking waits for cancellation confirmation.
	StateCancellingBooking State = "cancelling_booking"
	// StateReschedulingBooking runs the slot flow for an existing booking.
	StateReschedulingBooking State = "rescheduling_booking"
	// StateError is entered after a provider failure; the next message
	// restarts from the top.
	StateError State = "error"
)

// Session is the per-conversation dialogue memory. Fields are fixed and
// typed; handlers only ever fill them in, never reinterpret them.
type Session struct {
	ConversationID string `json:"conversation_id"`
	State          State  `json:"state"`

	Kind       appointments.Kind       `json:"kind,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	Preference availability.Preference `json:"preference,omitempty"`

	OfferedSlots []availability.Slot `json:"offered_slots,omitempty"`
	SelectedSlot *availability.Slot  `json:"selected_slot,omitempty"`

	PatientName  string `json:"patient_name,omitempty"`
	PatientEmail string `json:"patient_email,omitempty"`
	PatientPhone string `json:"patient_phone,omitempty"`

	BookingID        string `json:"booking_id,omitempty"`
	PendingCancelID  string `json:"pending_cancel_id,omitempty"`
	RescheduleFromID string `json:"reschedule_from_id,omitempty"`
	WaitlistOffered  bool   `json:"waitlist_offered,omitempty"`
	SlotClarified    bool   `json:"slot_clarified,omitempty"`

	History []Turn `json:"history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// historyLimit caps the retained chat turns handed to the language model.
const historyLimit = 10

// Turn is one prior exchange kept for language-model context.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewSession creates a fresh session in the greeting state.
func NewSession(conversationID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ConversationID: conversationID,
		State:          StateGreeting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasPatientInfo reports whether name, email and phone are all on file, the
// set required before a booking can be reserved.
func (s *Session) HasPatientInfo() bool {
	return s.PatientName != "" && s.PatientEmail != "" && s.PatientPhone != ""
}

// Remember appends a chat turn, dropping the oldest beyond the history cap.
func (s *Session) Remember(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text})
	if len(s.History) > historyLimit {
		s.History = s.History[len(s.History)-historyLimit:]
	}
}

// ResetFlow clears booking-flow fields while keeping patient details, so a
// new flow in the same conversation skips questions already answered.
func (s *Session) ResetFlow() {
	s.Kind = ""
	s.Reason = ""
	s.Preference = ""
	s.OfferedSlots = nil
	s.SelectedSlot = nil
	s.PendingCancelID = ""
	s.RescheduleFromID = ""
	s.WaitlistOffered = false
	s.SlotClarified = false
}
