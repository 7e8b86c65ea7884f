package conversation

import (
	"strings"
	"unicode"
)

// Pure text classifiers for patient messages. Each takes the raw message
// and answers one narrow question; handlers combine them. All matching is
// case-insensitive substring or token work, no state.

var affirmativeWords = []string{
	"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "sounds good",
	"perfect", "correct", "that works", "works for me", "confirm", "book it",
	"please do", "go ahead", "definitely", "absolutely",
}

var negativeWords = []string{
	"no", "nope", "nah", "not really", "don't", "do not", "neither",
	"none", "cancel that", "never mind", "nevermind",
}

var rejectionPhrases = []string{
	"none of those", "none of these", "doesn't work", "dont work",
	"don't work", "no good", "something else", "different time",
	"different day", "other times", "other options", "anything else",
	"not those", "neither",
}

var schedulingPhrases = []string{
	"book", "appointment", "schedule", "see a doctor", "see the doctor",
	"come in", "visit", "checkup", "check-up", "make an appt", "see someone",
	"consultation", "physical", "follow up", "follow-up",
}

var cancellationPhrases = []string{
	"cancel", "cancellation", "call off", "can't make it", "cannot make it",
	"won't make it", "wont make it",
}

var reschedulePhrases = []string{
	"reschedule", "re-schedule", "move my appointment", "change my appointment",
	"different slot", "change the time", "move it to", "push it",
}

var waitlistPhrases = []string{
	"waitlist", "wait list", "waiting list", "notify me", "let me know if",
	"call me if", "if something opens", "if anything opens",
}

var availabilityPhrases = []string{
	"what's available", "whats available", "what is available",
	"any availability", "any openings", "any slots", "what times",
	"available times", "open slots", "availability",
}

var completionCues = []string{
	"thanks", "thank you", "that's all", "thats all", "that is all",
	"bye", "goodbye", "see you", "no that's it", "nothing else", "all set",
}

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether the message is a yes.
func IsAffirmative(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	if IsNegative(text) {
		return false
	}
	for _, w := range affirmativeWords {
		if t == w || strings.HasPrefix(t, w+" ") || strings.HasPrefix(t, w+",") || strings.HasPrefix(t, w+"!") || strings.HasPrefix(t, w+".") {
			return true
		}
	}
	return false
}

// IsNegative reports whether the message is a no.
func IsNegative(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	for _, w := range negativeWords {
		if t == w || strings.HasPrefix(t, w+" ") || strings.HasPrefix(t, w+",") || strings.HasPrefix(t, w+"!") || strings.HasPrefix(t, w+".") {
			return true
		}
	}
	return false
}

// IsRejection reports whether the message turns down the offered slots.
// "Not sure" is hesitation, not rejection, so it is carved out.
func IsRejection(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	if strings.Contains(t, "not sure") || strings.Contains(t, "unsure") {
		return false
	}
	return IsNegative(t) || containsAny(t, rejectionPhrases)
}

// IsSchedulingIntent reports whether the patient wants to book something.
func IsSchedulingIntent(text string) bool {
	t := normalize(text)
	if IsCancellation(t) || IsReschedule(t) {
		return false
	}
	return containsAny(t, schedulingPhrases)
}

// IsCancellation reports whether the patient wants to cancel. Cancellation
// outranks rescheduling when a message mentions both.
func IsCancellation(text string) bool {
	t := normalize(text)
	if !containsAny(t, cancellationPhrases) {
		return false
	}
	// "cancellation policy" questions are FAQs, not intents.
	if strings.Contains(t, "policy") || strings.Contains(t, "fee") {
		return false
	}
	return true
}

// IsReschedule reports whether the patient wants to move an appointment.
func IsReschedule(text string) bool {
	t := normalize(text)
	if IsCancellation(t) {
		return false
	}
	return containsAny(t, reschedulePhrases)
}

// IsWaitlistIntent reports whether the patient asks to be waitlisted.
func IsWaitlistIntent(text string) bool {
	return containsAny(normalize(text), waitlistPhrases)
}

// IsAvailabilityQuestion reports whether the patient is asking what times
// are open without committing to book yet.
func IsAvailabilityQuestion(text string) bool {
	return containsAny(normalize(text), availabilityPhrases)
}

// IsCompletionCue reports whether the patient is wrapping up.
func IsCompletionCue(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	return containsAny(t, completionCues)
}

// LooksLikeQuestion reports whether the message reads as a question rather
// than an answer to the current prompt.
func LooksLikeQuestion(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	if strings.HasSuffix(t, "?") {
		return true
	}
	for _, prefix := range []string{"what", "where", "when", "how", "who", "why", "do you", "can i", "is there", "are you", "could i"} {
		if strings.HasPrefix(t, prefix+" ") || t == prefix {
			return true
		}
	}
	return false
}

// LooksLikeSchedulingAnswer reports whether the message plausibly answers a
// scheduling prompt (a time, a day, or a preference) rather than changing
// topic.
func LooksLikeSchedulingAnswer(text string) bool {
	t := normalize(text)
	if t == "" {
		return false
	}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday", "today", "tomorrow"} {
		if strings.Contains(t, day) {
			return true
		}
	}
	for _, word := range []string{"morning", "afternoon", "evening", "am", "pm", "any time", "anytime", "whenever"} {
		if strings.Contains(t, word) {
			return true
		}
	}
	for _, r := range t {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// HasContactInfo reports whether the message carries an email address or a
// phone number.
func HasContactInfo(text string) bool {
	if strings.Contains(text, "@") {
		return true
	}
	digits := 0
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7
}
