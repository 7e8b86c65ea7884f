package availability

import (
	"strings"
	"time"
)

// Preference is a patient's time-of-day preference for appointments.
type Preference string

const (
	PreferAny       Preference = "any"
	PreferMorning   Preference = "morning"
	PreferAfternoon Preference = "afternoon"
	PreferEvening   Preference = "evening"
)

// Matches reports whether a slot start satisfies the preference. Mornings
// run until noon, afternoons from noon until 5 PM, evenings from 5 PM on.
func (p Preference) Matches(t time.Time) bool {
	switch p {
	case PreferMorning:
		return t.Hour() < 12
	case PreferAfternoon:
		return t.Hour() >= 12 && t.Hour() < 17
	case PreferEvening:
		return t.Hour() >= 17
	default:
		return true
	}
}

// ParsePreference scans free text for a time-of-day preference mention.
func ParsePreference(text string) Preference {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "morning") || strings.Contains(t, " am") || strings.HasPrefix(t, "am"):
		return PreferMorning
	case strings.Contains(t, "afternoon"):
		return PreferAfternoon
	case strings.Contains(t, "evening") || strings.Contains(t, "night") || strings.Contains(t, "after work"):
		return PreferEvening
	default:
		return PreferAny
	}
}
