package conversation

import (
	"fmt"
	"strings"

	"github.com/careplus/appointment-agent/internal/availability"
	"github.com/careplus/appointment-agent/internal/bookings"
	"github.com/careplus/appointment-agent/internal/clinic"
)

// systemPrompt frames free-text model replies. The model never books
// anything itself; the state machine owns every scheduling action.
func systemPrompt(p *clinic.Profile) string {
	var b strings.Builder
	b.WriteString("You are the scheduling assistant for " + p.Name + ", a medical clinic. ")
	b.WriteString("Be brief, warm, and professional. ")
	b.WriteString("You can answer general questions about the clinic and encourage the patient to book, cancel, or reschedule an appointment through this chat. ")
	b.WriteString("Never invent appointment times, confirmation codes, or medical advice. ")
	b.WriteString("For anything you cannot help with, refer the patient to the front desk at " + p.Phone + ".")
	return b.String()
}

// Reply templates. Kept as plain functions so handlers stay readable and
// tests can assert on stable fragments.

func greetingReply(clinicName string) string {
	return fmt.Sprintf("Hello! I'm the scheduling assistant for %s. I can book, reschedule, or cancel appointments, and answer questions about the clinic. How can I help you today?", clinicName)
}

func askReasonReply() string {
	return "I'd be happy to set that up. What brings you in? For example: a general consultation, a follow-up, an annual physical, or a specialist referral."
}

func askPreferenceReply(kindLabel string) string {
	return fmt.Sprintf("Got it, a %s. Do you prefer mornings, afternoons, or evenings?", kindLabel)
}

func offerSlotsReply(slots []availability.Slot) string {
	var b strings.Builder
	b.WriteString("Here are the next available times:\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Display)
	}
	b.WriteString("Which one works for you? You can also ask for different times.")
	return b.String()
}

// suggestionsFor lists quick replies a chat client can show for a state.
func suggestionsFor(state State) []string {
	switch state {
	case StateGreeting:
		return []string{"Book an appointment", "What times are available?"}
	case StateFaq:
		return []string{"Book an appointment", "That's all, thanks"}
	case StateCollectingReason:
		return []string{"A physical exam", "A follow-up visit", "A general consultation"}
	case StateCollectingTimePreference:
		return []string{"Mornings", "Afternoons", "Evenings"}
	case StateSelectingSlot:
		return []string{"The first one", "A different day"}
	case StateConfirmingSlot, StateWaitlist, StateCancellingBooking:
		return []string{"Yes", "No"}
	case StateConfirmed:
		return []string{"Check my booking", "That's all, thanks"}
	default:
		return nil
	}
}

func laterSlotsReply(slots []availability.Slot) string {
	var b strings.Builder
	b.WriteString("No problem, let's look a little further out. Here's what's open the following week:\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Display)
	}
	b.WriteString("Do any of these work for you?")
	return b.String()
}

func confirmSlotReply(display, kindLabel string) string {
	return fmt.Sprintf("You'd like a %s on %s. Shall I book it?", kindLabel, display)
}

func askNameReply() string {
	return "Great. May I have your full name?"
}

func askEmailReply(name string) string {
	if name != "" {
		return fmt.Sprintf("Thanks, %s. What email address should the confirmation go to?", firstName(name))
	}
	return "What email address should the confirmation go to?"
}

func askPhoneReply() string {
	return "And a phone number the clinic can reach you at?"
}

func reservedReply(b *bookings.Booking) string {
	return fmt.Sprintf(
		"You're almost done! I've held %s for your %s. Please finish booking here: %s\n"+
			"Your confirmation code is %s. You can say \"check my booking\" any time.",
		b.SlotDisplay, b.Kind.Label(), b.SchedulingURL, b.ConfirmationCode,
	)
}

func confirmedReply(b *bookings.Booking) string {
	return fmt.Sprintf(
		"You're all set! Your %s on %s is confirmed. Your confirmation code is %s. Is there anything else I can help with?",
		b.Kind.Label(), b.SlotDisplay, b.ConfirmationCode,
	)
}

func stillPendingReply(b *bookings.Booking) string {
	return fmt.Sprintf(
		"I don't see your booking on the calendar yet. If you haven't finished, use this link: %s\nIt can take a minute to come through; ask me to check again shortly.",
		b.SchedulingURL,
	)
}

func noSlotsReply() string {
	return "I'm sorry, I couldn't find any openings that match in the next week. Would you like me to put you on our waitlist? The front desk will call you when something opens up."
}

func waitlistAddedReply(phone string) string {
	return fmt.Sprintf("You're on the waitlist. The front desk will reach out as soon as a slot opens. If it's urgent, you can call us directly at %s.", phone)
}

func cancelConfirmReply(b *bookings.Booking) string {
	return fmt.Sprintf("I found your %s on %s. Are you sure you want to cancel it?", b.Kind.Label(), b.SlotDisplay)
}

func cancelledReply() string {
	return "Your appointment has been cancelled. Remember, cancellations with less than 24 hours' notice may incur a fee. Is there anything else I can help with?"
}

func nothingToCancelReply() string {
	return "I couldn't find an upcoming appointment for you. If you have a confirmation code or the email you booked with, send it over and I'll look again."
}

func rescheduleIntroReply(b *bookings.Booking) string {
	return fmt.Sprintf("Sure, let's move your %s on %s.", b.Kind.Label(), b.SlotDisplay)
}

func rescheduledReply(newBooking *bookings.Booking) string {
	return fmt.Sprintf(
		"Done! I've held %s instead and cancelled the old time. Finish up here if needed: %s",
		newBooking.SlotDisplay, newBooking.SchedulingURL,
	)
}

func rescheduleCancelFailedReply(newBooking *bookings.Booking, phone string) string {
	return fmt.Sprintf(
		"I've held %s for you, but I couldn't release your old appointment. Please call the office at %s so we can cancel it for you.",
		newBooking.SlotDisplay, phone,
	)
}

func providerErrorReply(phone string) string {
	return fmt.Sprintf("I'm having trouble reaching our scheduling system right now. Please try again in a few minutes, or call the office at %s and we'll get you booked.", phone)
}

func slotNotUnderstoodReply() string {
	return "Sorry, I didn't catch which time you meant. You can reply with the number of the option or the day and time."
}

func goodbyeReply() string {
	return "You're welcome! Take care, and we'll see you at the clinic."
}

func anythingElseReply() string {
	return "Is there anything else I can help you with?"
}

func askDateReply() string {
	return "Which date would you like me to check? You can say something like \"tomorrow\", \"Friday\", or \"March 12\"."
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return full
	}
	return fields[0]
}
