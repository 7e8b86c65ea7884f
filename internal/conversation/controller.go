package conversation

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careplus/appointment-agent/internal/appointments"
	"github.com/careplus/appointment-agent/internal/availability"
	"github.com/careplus/appointment-agent/internal/bookings"
	"github.com/careplus/appointment-agent/internal/clinic"
	"github.com/careplus/appointment-agent/internal/faq"
	"github.com/careplus/appointment-agent/pkg/logging"
)

var conversationTracer = otel.Tracer("careplus.internal.conversation")

// Reply is the assistant's answer to one patient message. Slots carries the
// currently offered times so a client can render them as buttons instead of
// parsing the text; Suggestions are quick replies for the current state.
type Reply struct {
	Text        string   `json:"text"`
	State       State    `json:"state"`
	BookingID   string   `json:"booking_id,omitempty"`
	Slots       []string `json:"slots,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// ControllerConfig wires the controller's collaborators.
type ControllerConfig struct {
	Sessions   SessionStore
	Resolver   *availability.Resolver
	Bookings   *bookings.Service
	Reconciler *bookings.Reconciler
	Retriever  faq.Retriever
	Profile    *clinic.Profile
	LLM        LLMClient // optional
	Logger     *logging.Logger
}

// Controller runs the dialogue. Every message goes through the same
// pipeline: FAQ interception, then the active-booking override, then the
// current state's handler. Messages for the same conversation are handled
// one at a time.
type Controller struct {
	sessions   SessionStore
	resolver   *availability.Resolver
	bookings   *bookings.Service
	reconciler *bookings.Reconciler
	retriever  faq.Retriever
	profile    *clinic.Profile
	llm        LLMClient
	logger     *logging.Logger

	locks sync.Map // conversation id -> *sync.Mutex
}

// NewController creates a dialogue controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Sessions == nil {
		panic("conversation: session store required")
	}
	if cfg.Resolver == nil {
		panic("conversation: availability resolver required")
	}
	if cfg.Bookings == nil {
		panic("conversation: bookings service required")
	}
	if cfg.Reconciler == nil {
		panic("conversation: reconciler required")
	}
	if cfg.Retriever == nil {
		panic("conversation: faq retriever required")
	}
	if cfg.Profile == nil {
		panic("conversation: clinic profile required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Controller{
		sessions:   cfg.Sessions,
		resolver:   cfg.Resolver,
		bookings:   cfg.Bookings,
		reconciler: cfg.Reconciler,
		retriever:  cfg.Retriever,
		profile:    cfg.Profile,
		llm:        cfg.LLM,
		logger:     cfg.Logger,
	}
}

// Process handles one patient message and returns the assistant reply.
// Calls for the same conversation are serialized so the session never sees
// interleaved updates.
func (c *Controller) Process(ctx context.Context, conversationID, text string) (Reply, error) {
	ctx, span := conversationTracer.Start(ctx, "conversation.process")
	defer span.End()
	span.SetAttributes(attribute.String("careplus.conversation_id", conversationID))

	mu := c.conversationLock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	session, err := c.sessions.Get(ctx, conversationID)
	if errors.Is(err, ErrSessionNotFound) {
		session = NewSession(conversationID)
	} else if err != nil {
		span.RecordError(err)
		return Reply{}, err
	}

	text = strings.TrimSpace(text)
	var replyText string
	if text == "" {
		replyText = greetingReply(c.profile.Name)
	} else {
		replyText = c.dispatch(ctx, session, text)
		session.Remember(ChatRoleUser, text)
		session.Remember(ChatRoleAssistant, replyText)
	}

	if err := c.sessions.Put(ctx, session); err != nil {
		span.RecordError(err)
		return Reply{}, err
	}
	span.SetAttributes(attribute.String("careplus.state", string(session.State)))

	reply := Reply{
		Text:        replyText,
		State:       session.State,
		BookingID:   session.BookingID,
		Suggestions: suggestionsFor(session.State),
	}
	switch session.State {
	case StateSelectingSlot, StateCheckingAvailability, StateReschedulingBooking:
		for _, slot := range session.OfferedSlots {
			reply.Slots = append(reply.Slots, slot.Display)
		}
	}
	return reply, nil
}

func (c *Controller) conversationLock(conversationID string) *sync.Mutex {
	mu, _ := c.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// dispatch runs the three-step pipeline.
func (c *Controller) dispatch(ctx context.Context, s *Session, text string) string {
	// Step 1: FAQ interception. A question gets answered in place without
	// losing the patient's position in the flow.
	if reply, handled := c.interceptFAQ(ctx, s, text); handled {
		return reply
	}

	// Step 2: active-booking override. Cancellation and reschedule intent
	// jump the flow regardless of the current state.
	if reply, handled := c.interceptBookingIntent(ctx, s, text); handled {
		return reply
	}

	// Step 3: state dispatch.
	switch s.State {
	case StateGreeting:
		return c.handleGreeting(ctx, s, text)
	case StateFaq:
		return c.handleFaq(ctx, s, text)
	case StateCollectingReason:
		return c.handleCollectingReason(ctx, s, text)
	case StateCollectingTimePreference:
		return c.handleCollectingTimePreference(ctx, s, text)
	case StateSelectingSlot:
		return c.handleSelectingSlot(ctx, s, text)
	case StateConfirmingSlot:
		return c.handleConfirmingSlot(ctx, s, text)
	case StateCollectingPatientInfo:
		return c.handleCollectingPatientInfo(ctx, s, text)
	case StateConfirmed:
		return c.handleConfirmed(ctx, s, text)
	case StateCheckingAvailability:
		return c.handleCheckingAvailability(ctx, s, text)
	case StateCheckingSpecificDate:
		return c.handleCheckingSpecificDate(ctx, s, text)
	case StateWaitlist:
		return c.handleWaitlist(ctx, s, text)
	case StateCancellingBooking:
		return c.handleCancelling(ctx, s, text)
	case StateReschedulingBooking:
		return c.handleRescheduling(ctx, s, text)
	case StateError:
		s.State = StateGreeting
		return c.handleGreeting(ctx, s, text)
	default:
		s.State = StateGreeting
		return c.handleGreeting(ctx, s, text)
	}
}

// interceptFAQ answers clinic questions wherever they appear in the flow.
// Keyword matches fire on statements too ("tell me about parking"); only
// the fuzzier retrieval fallback requires question phrasing.
func (c *Controller) interceptFAQ(ctx context.Context, s *Session, text string) (string, bool) {
	// Availability, cancellation, and reschedule questions belong to the
	// flows, not the FAQ.
	if IsAvailabilityQuestion(text) || IsCancellation(text) || IsReschedule(text) {
		return "", false
	}
	// "my email address is jane@…" brushes the contact keywords but is
	// patient info, and short scheduling answers stay with the flow.
	if HasContactInfo(text) {
		return "", false
	}
	if !LooksLikeQuestion(text) {
		if faq.Classify(text) == faq.TopicNone {
			return "", false
		}
		if LooksLikeSchedulingAnswer(text) && len(strings.Fields(text)) <= 4 {
			return "", false
		}
	}
	_, passage, ok, err := c.retriever.Retrieve(ctx, text)
	if err != nil {
		c.logger.Warn("faq retrieval failed", "error", err.Error())
		return "", false
	}
	if !ok {
		return "", false
	}
	switch s.State {
	case StateGreeting, StateFaq, StateConfirmed, StateError:
		// No flow to resume; settle in the FAQ state.
		s.State = StateFaq
		return passage, true
	}
	return passage + "\n\n" + c.resumePrompt(s), true
}

// resumePrompt restates the pending question so an FAQ detour doesn't
// strand the flow.
func (c *Controller) resumePrompt(s *Session) string {
	switch s.State {
	case StateCollectingReason:
		return "Back to your appointment: what brings you in?"
	case StateCollectingTimePreference:
		return "Back to your appointment: do you prefer mornings, afternoons, or evenings?"
	case StateSelectingSlot, StateCheckingAvailability:
		return "Back to your appointment: which of the offered times works for you?"
	case StateConfirmingSlot:
		if s.SelectedSlot != nil {
			return "Back to your appointment: shall I book " + s.SelectedSlot.Display + "?"
		}
		return anythingElseReply()
	case StateCollectingPatientInfo:
		if s.PatientName == "" {
			return "Back to your appointment: may I have your full name?"
		}
		if s.PatientEmail == "" {
			return "Back to your appointment: what email address should I use?"
		}
		return "Back to your appointment: what phone number should I use?"
	case StateCancellingBooking:
		return "And about the cancellation: should I go ahead?"
	default:
		return anythingElseReply()
	}
}

// interceptBookingIntent handles cancel and reschedule requests from any
// state.
func (c *Controller) interceptBookingIntent(ctx context.Context, s *Session, text string) (string, bool) {
	switch s.State {
	case StateCancellingBooking, StateReschedulingBooking:
		return "", false
	}

	if IsCancellation(text) {
		b := c.findActiveBooking(ctx, s, text)
		if b == nil {
			return nothingToCancelReply(), true
		}
		s.PendingCancelID = b.ID
		s.State = StateCancellingBooking
		return cancelConfirmReply(b), true
	}

	if IsReschedule(text) {
		b := c.findActiveBooking(ctx, s, text)
		if b == nil {
			return nothingToCancelReply(), true
		}
		return c.startReschedule(ctx, s, b), true
	}

	return "", false
}

// codePattern finds a confirmation code mention: six uppercase characters
// with at least one digit.
var codePattern = regexp.MustCompile(`\b[A-Z0-9]{6}\b`)

func (c *Controller) findActiveBooking(ctx context.Context, s *Session, text string) *bookings.Booking {
	if s.BookingID != "" {
		if b, err := c.bookings.Get(ctx, s.BookingID); err == nil && b.Active() {
			return b
		}
	}
	if b, err := c.bookings.ActiveForConversation(ctx, s.ConversationID); err == nil {
		return b
	}
	for _, token := range codePattern.FindAllString(strings.ToUpper(text), -1) {
		if !strings.ContainsAny(token, "0123456789") {
			continue
		}
		if b, err := c.bookings.GetByCode(ctx, token); err == nil && b.Active() {
			return b
		}
	}
	email := s.PatientEmail
	if email == "" {
		email = ExtractEmail(text)
	}
	if email != "" {
		if list, err := c.bookings.ListByEmail(ctx, email); err == nil {
			for _, b := range list {
				if b.Active() {
					return b
				}
			}
		}
	}
	return nil
}

func (c *Controller) handleGreeting(ctx context.Context, s *Session, text string) string {
	if IsWaitlistIntent(text) {
		s.State = StateWaitlist
		return "I can add you to our waitlist and the front desk will call when something opens up. Would you like that?"
	}

	if date, ok := ParseDateMention(text, time.Now()); ok && (IsAvailabilityQuestion(text) || IsSchedulingIntent(text)) {
		return c.showDate(ctx, s, date)
	}

	if IsAvailabilityQuestion(text) {
		return c.showAvailability(ctx, s)
	}

	if IsSchedulingIntent(text) || LooksLikeSchedulingAnswer(text) {
		return c.startBookingFlow(ctx, s, text)
	}

	if IsCompletionCue(text) {
		return goodbyeReply()
	}

	return c.llmReply(ctx, s, text, greetingReply(c.profile.Name))
}

func (c *Controller) handleFaq(ctx context.Context, s *Session, text string) string {
	if IsAffirmative(text) {
		return c.startBookingFlow(ctx, s, "")
	}
	if IsCompletionCue(text) || IsNegative(text) {
		s.State = StateGreeting
		return goodbyeReply()
	}
	return c.handleGreeting(ctx, s, text)
}

// startBookingFlow begins collecting what's needed for a booking. Details
// already present in the message skip their questions.
func (c *Controller) startBookingFlow(ctx context.Context, s *Session, text string) string {
	s.ResetFlow()
	s.Kind = appointments.KindFromText(text)

	if mentionsVisitKind(text) {
		s.Reason = strings.TrimSpace(text)
		if pref := availability.ParsePreference(text); pref != availability.PreferAny {
			s.Preference = pref
			return c.offerUpcomingSlots(ctx, s)
		}
		s.State = StateCollectingTimePreference
		return askPreferenceReply(s.Kind.Label())
	}

	s.State = StateCollectingReason
	return askReasonReply()
}

func mentionsVisitKind(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range []string{"follow", "physical", "checkup", "check-up", "annual", "special", "referral", "consult"} {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

func (c *Controller) handleCollectingReason(ctx context.Context, s *Session, text string) string {
	s.Reason = strings.TrimSpace(text)
	s.Kind = appointments.KindFromText(text)
	if pref := availability.ParsePreference(text); pref != availability.PreferAny {
		s.Preference = pref
		return c.offerUpcomingSlots(ctx, s)
	}
	s.State = StateCollectingTimePreference
	return askPreferenceReply(s.Kind.Label())
}

func (c *Controller) handleCollectingTimePreference(ctx context.Context, s *Session, text string) string {
	if date, ok := ParseDateMention(text, time.Now()); ok {
		return c.showDate(ctx, s, date)
	}
	s.Preference = availability.ParsePreference(text)
	return c.offerUpcomingSlots(ctx, s)
}

func (c *Controller) handleSelectingSlot(ctx context.Context, s *Session, text string) string {
	if slot, ok := availability.Match(s.OfferedSlots, text); ok {
		s.SelectedSlot = &slot
		s.State = StateConfirmingSlot
		return confirmSlotReply(slot.Display, s.Kind.Label())
	}

	if IsRejection(text) {
		if strings.Contains(strings.ToLower(text), "day") || strings.Contains(strings.ToLower(text), "date") {
			s.State = StateCheckingSpecificDate
			return askDateReply()
		}
		// None of the offered slots worked, so look a week further out.
		slots, err := c.resolver.UpcomingFrom(ctx, 8, s.Preference)
		if err != nil {
			c.logger.Error("fetching later availability failed", "error", err.Error())
			return c.enterError(s)
		}
		if len(slots) == 0 {
			s.State = StateWaitlist
			s.WaitlistOffered = true
			return noSlotsReply()
		}
		s.OfferedSlots = slots
		return laterSlotsReply(slots)
	}

	if date, ok := ParseDateMention(text, time.Now()); ok {
		return c.showDate(ctx, s, date)
	}

	return slotNotUnderstoodReply()
}

func (c *Controller) handleConfirmingSlot(ctx context.Context, s *Session, text string) string {
	// A message that already carries contact details means the patient is
	// past confirming; take it as a yes and collect the rest.
	if HasContactInfo(text) {
		s.SlotClarified = false
		s.State = StateCollectingPatientInfo
		return c.handleCollectingPatientInfo(ctx, s, text)
	}

	if IsAffirmative(text) {
		return c.acceptSlot(ctx, s)
	}

	if IsRejection(text) || IsNegative(text) {
		s.SelectedSlot = nil
		s.SlotClarified = false
		s.State = StateSelectingSlot
		if len(s.OfferedSlots) > 0 {
			return offerSlotsReply(s.OfferedSlots)
		}
		return c.offerUpcomingSlots(ctx, s)
	}

	// The patient may name a different slot instead of answering yes/no.
	if slot, ok := availability.Match(s.OfferedSlots, text); ok {
		s.SelectedSlot = &slot
		s.SlotClarified = false
		return confirmSlotReply(slot.Display, s.Kind.Label())
	}

	if s.SelectedSlot != nil {
		// One clarification round, then take the next non-negative reply
		// as a confirmation rather than looping.
		if s.SlotClarified {
			return c.acceptSlot(ctx, s)
		}
		s.SlotClarified = true
		return "Just to confirm: should I book " + s.SelectedSlot.Display + "? A simple yes or no works."
	}
	s.State = StateSelectingSlot
	return slotNotUnderstoodReply()
}

// acceptSlot moves past slot confirmation, reserving right away when the
// patient's details are already known.
func (c *Controller) acceptSlot(ctx context.Context, s *Session) string {
	s.SlotClarified = false
	if s.HasPatientInfo() {
		return c.reserve(ctx, s)
	}
	s.State = StateCollectingPatientInfo
	if s.PatientName == "" {
		return askNameReply()
	}
	if s.PatientEmail == "" {
		return askEmailReply(s.PatientName)
	}
	return askPhoneReply()
}

func (c *Controller) handleCollectingPatientInfo(ctx context.Context, s *Session, text string) string {
	// Extracted fields only ever fill gaps; a later message never
	// overwrites a stored detail.
	if s.PatientEmail == "" {
		if email := ExtractEmail(text); email != "" {
			s.PatientEmail = email
		}
	}
	if s.PatientPhone == "" {
		if phone := ExtractPhone(text); phone != "" {
			s.PatientPhone = phone
		}
	}
	if s.PatientName == "" && !HasContactInfo(text) {
		if name := ExtractName(text); name != "" {
			s.PatientName = name
		}
	}

	if s.PatientName == "" {
		return askNameReply()
	}
	if s.PatientEmail == "" {
		return askEmailReply(s.PatientName)
	}
	if s.PatientPhone == "" {
		return askPhoneReply()
	}
	return c.reserve(ctx, s)
}

func (c *Controller) reserve(ctx context.Context, s *Session) string {
	if s.SelectedSlot == nil {
		s.State = StateSelectingSlot
		return slotNotUnderstoodReply()
	}
	b, err := c.bookings.Reserve(ctx, bookings.ReserveRequest{
		ConversationID: s.ConversationID,
		PatientName:    s.PatientName,
		PatientEmail:   s.PatientEmail,
		PatientPhone:   s.PatientPhone,
		Kind:           s.Kind,
		Reason:         s.Reason,
		SlotStart:      s.SelectedSlot.StartAt,
		SlotDisplay:    s.SelectedSlot.Display,
		SchedulingURL:  s.SelectedSlot.SchedulingURL,
	})
	if err != nil {
		c.logger.Error("reserving booking failed", "error", err.Error())
		return c.enterError(s)
	}

	s.BookingID = b.ID
	s.State = StateConfirmed

	if s.RescheduleFromID != "" && s.RescheduleFromID != b.ID {
		if _, err := c.bookings.Cancel(ctx, s.RescheduleFromID, "rescheduled by patient"); err != nil {
			c.logger.Error("cancelling rescheduled booking failed",
				"booking_id", s.RescheduleFromID,
				"error", err.Error(),
			)
			// The old booking is still live; keep its id so a later
			// attempt can retry, and tell the patient the truth.
			return rescheduleCancelFailedReply(b, c.profile.Phone)
		}
		s.RescheduleFromID = ""
		return rescheduledReply(b)
	}
	return reservedReply(b)
}

func (c *Controller) handleConfirmed(ctx context.Context, s *Session, text string) string {
	t := strings.ToLower(text)
	if strings.Contains(t, "check") || strings.Contains(t, "sync") || strings.Contains(t, "status") || strings.Contains(t, "confirmed yet") {
		return c.checkBooking(ctx, s)
	}
	if IsCompletionCue(text) {
		return goodbyeReply()
	}
	if IsSchedulingIntent(text) {
		return c.startBookingFlow(ctx, s, text)
	}
	return c.llmReply(ctx, s, text, anythingElseReply())
}

// checkBooking reports booking status, probing the provider when the local
// record is still pending.
func (c *Controller) checkBooking(ctx context.Context, s *Session) string {
	if s.BookingID == "" {
		return nothingToCancelReply()
	}
	b, err := c.bookings.Get(ctx, s.BookingID)
	if err != nil {
		c.logger.Error("loading booking failed", "booking_id", s.BookingID, "error", err.Error())
		return c.enterError(s)
	}
	if b.Status == bookings.StatusConfirmed {
		return confirmedReply(b)
	}
	if b.Status == bookings.StatusCancelled {
		s.BookingID = ""
		return "That booking was cancelled. Would you like to schedule a new appointment?"
	}

	synced, err := c.reconciler.SyncByEmail(ctx, b.PatientEmail, time.Time{})
	if err != nil {
		if errors.Is(err, bookings.ErrBookingNotFound) {
			return stillPendingReply(b)
		}
		c.logger.Warn("sync probe failed", "error", err.Error())
		return c.enterError(s)
	}
	if synced.Status == bookings.StatusConfirmed {
		s.BookingID = synced.ID
		return confirmedReply(synced)
	}
	return stillPendingReply(b)
}

func (c *Controller) handleCheckingAvailability(ctx context.Context, s *Session, text string) string {
	if slot, ok := availability.Match(s.OfferedSlots, text); ok {
		s.SelectedSlot = &slot
		if s.Kind == "" {
			s.Kind = appointments.KindConsultation
		}
		s.State = StateConfirmingSlot
		return confirmSlotReply(slot.Display, s.Kind.Label())
	}
	if IsAffirmative(text) {
		s.State = StateSelectingSlot
		return offerSlotsReply(s.OfferedSlots)
	}
	if IsNegative(text) || IsCompletionCue(text) {
		s.State = StateGreeting
		return anythingElseReply()
	}
	if date, ok := ParseDateMention(text, time.Now()); ok {
		return c.showDate(ctx, s, date)
	}
	return c.handleGreeting(ctx, s, text)
}

func (c *Controller) handleCheckingSpecificDate(ctx context.Context, s *Session, text string) string {
	date, ok := ParseDateMention(text, time.Now())
	if !ok {
		return askDateReply()
	}
	return c.showDate(ctx, s, date)
}

func (c *Controller) handleWaitlist(ctx context.Context, s *Session, text string) string {
	if HasContactInfo(text) {
		if s.PatientPhone == "" {
			if phone := ExtractPhone(text); phone != "" {
				s.PatientPhone = phone
			}
		}
		if s.PatientEmail == "" {
			if email := ExtractEmail(text); email != "" {
				s.PatientEmail = email
			}
		}
		return c.joinWaitlist(s)
	}
	if IsAffirmative(text) {
		// The front desk needs a number to call back.
		if s.PatientPhone == "" && s.PatientEmail == "" {
			return "What phone number should the front desk call when a slot opens?"
		}
		return c.joinWaitlist(s)
	}
	if IsNegative(text) || IsRejection(text) {
		s.State = StateGreeting
		return anythingElseReply()
	}
	if date, ok := ParseDateMention(text, time.Now()); ok {
		return c.showDate(ctx, s, date)
	}
	return "Should I add you to the waitlist? A yes or no works."
}

func (c *Controller) joinWaitlist(s *Session) string {
	if s.PatientPhone == "" && s.PatientEmail == "" {
		return "What phone number should the front desk call when a slot opens?"
	}
	s.WaitlistOffered = false
	s.State = StateGreeting
	c.logger.Info("waitlist request recorded",
		"conversation_id", s.ConversationID,
		"phone", s.PatientPhone,
		"email", s.PatientEmail,
	)
	return waitlistAddedReply(c.profile.Phone)
}

func (c *Controller) handleCancelling(ctx context.Context, s *Session, text string) string {
	if IsAffirmative(text) {
		id := s.PendingCancelID
		s.PendingCancelID = ""
		if id == "" {
			s.State = StateGreeting
			return nothingToCancelReply()
		}
		if _, err := c.bookings.Cancel(ctx, id, "cancelled by patient"); err != nil {
			c.logger.Error("cancelling booking failed", "booking_id", id, "error", err.Error())
			return c.enterError(s)
		}
		if s.BookingID == id {
			s.BookingID = ""
		}
		s.ResetFlow()
		s.State = StateGreeting
		return cancelledReply()
	}
	if IsNegative(text) {
		s.PendingCancelID = ""
		if s.BookingID != "" {
			s.State = StateConfirmed
		} else {
			s.State = StateGreeting
		}
		return "Okay, I'll keep your appointment as is. " + anythingElseReply()
	}
	return "Should I cancel it? A yes or no works."
}

func (c *Controller) startReschedule(ctx context.Context, s *Session, b *bookings.Booking) string {
	s.RescheduleFromID = b.ID
	s.Kind = b.Kind
	s.Reason = b.Reason
	if s.PatientName == "" {
		s.PatientName = b.PatientName
	}
	if s.PatientEmail == "" {
		s.PatientEmail = b.PatientEmail
	}
	if s.PatientPhone == "" {
		s.PatientPhone = b.PatientPhone
	}
	s.State = StateReschedulingBooking

	intro := rescheduleIntroReply(b)
	slots, err := c.resolver.Upcoming(ctx, s.Preference)
	if err != nil {
		c.logger.Error("listing slots failed", "error", err.Error())
		return c.enterError(s)
	}
	if len(slots) == 0 {
		s.State = StateWaitlist
		s.WaitlistOffered = true
		return noSlotsReply()
	}
	s.OfferedSlots = slots
	return intro + "\n" + offerSlotsReply(slots)
}

func (c *Controller) handleRescheduling(ctx context.Context, s *Session, text string) string {
	if IsRejection(text) {
		s.RescheduleFromID = ""
		if s.BookingID != "" {
			s.State = StateConfirmed
		} else {
			s.State = StateGreeting
		}
		return "Okay, I'll keep your original time. " + anythingElseReply()
	}
	if slot, ok := availability.Match(s.OfferedSlots, text); ok {
		s.SelectedSlot = &slot
		return c.acceptSlot(ctx, s)
	}
	if date, ok := ParseDateMention(text, time.Now()); ok {
		return c.showDate(ctx, s, date)
	}
	return slotNotUnderstoodReply()
}

// showAvailability lists upcoming openings without starting a flow.
func (c *Controller) showAvailability(ctx context.Context, s *Session) string {
	slots, err := c.resolver.Upcoming(ctx, availability.PreferAny)
	if err != nil {
		c.logger.Error("listing slots failed", "error", err.Error())
		return c.enterError(s)
	}
	if len(slots) == 0 {
		s.State = StateWaitlist
		s.WaitlistOffered = true
		return noSlotsReply()
	}
	s.OfferedSlots = slots
	if s.State != StateReschedulingBooking {
		s.State = StateCheckingAvailability
	}
	return offerSlotsReply(slots) + "\nWould you like to book one of these?"
}

// showDate lists openings on one date, keeping the current flow position.
func (c *Controller) showDate(ctx context.Context, s *Session, date time.Time) string {
	slots, err := c.resolver.ForDate(ctx, date, s.Preference)
	if err != nil {
		c.logger.Error("listing slots failed", "date", date.Format("2006-01-02"), "error", err.Error())
		return c.enterError(s)
	}
	if len(slots) == 0 {
		s.State = StateCheckingSpecificDate
		return "I don't see any openings on " + date.Format("Monday, January 02") + ". Would another date work?"
	}
	s.OfferedSlots = slots
	if s.State != StateReschedulingBooking {
		s.State = StateSelectingSlot
	}
	return offerSlotsReply(slots)
}

// offerUpcomingSlots fetches and presents slots for the session's
// preference.
func (c *Controller) offerUpcomingSlots(ctx context.Context, s *Session) string {
	slots, err := c.resolver.Upcoming(ctx, s.Preference)
	if err != nil {
		c.logger.Error("listing slots failed", "error", err.Error())
		return c.enterError(s)
	}
	if len(slots) == 0 {
		s.State = StateWaitlist
		s.WaitlistOffered = true
		return noSlotsReply()
	}
	s.OfferedSlots = slots
	if s.State != StateReschedulingBooking {
		s.State = StateSelectingSlot
	}
	return offerSlotsReply(slots)
}

// enterError parks the conversation and points at the front desk. The next
// message starts fresh.
func (c *Controller) enterError(s *Session) string {
	s.State = StateError
	return providerErrorReply(c.profile.Phone)
}

// llmReply asks the language model for a free-text answer, falling back to
// a template when no model is configured or the call fails. Recent chat
// turns are passed along so the model sees the conversation so far.
func (c *Controller) llmReply(ctx context.Context, s *Session, text, fallback string) string {
	if c.llm == nil {
		return fallback
	}
	msgs := make([]ChatMessage, 0, len(s.History)+1)
	for _, t := range s.History {
		msgs = append(msgs, ChatMessage{Role: t.Role, Content: t.Text})
	}
	msgs = append(msgs, ChatMessage{Role: ChatRoleUser, Content: text})
	resp, err := c.llm.Complete(ctx, LLMRequest{
		System:      []string{systemPrompt(c.profile)},
		Messages:    msgs,
		MaxTokens:   256,
		Temperature: 0.4,
	})
	if err != nil || strings.TrimSpace(resp.Text) == "" {
		if err != nil {
			c.logger.Warn("llm reply failed", "error", err.Error())
		}
		return fallback
	}
	return resp.Text
}
