package appointments

import (
	"strings"
	"time"
)

// Kind is a visit type offered by the clinic.
type Kind string

const (
	KindConsultation Kind = "consultation"
	KindFollowUp     Kind = "followup"
	KindPhysical     Kind = "physical"
	KindSpecialist   Kind = "specialist"
)

// kindDurations maps each visit type to its scheduled length.
var kindDurations = map[Kind]time.Duration{
	KindConsultation: 30 * time.Minute,
	KindFollowUp:     15 * time.Minute,
	KindPhysical:     45 * time.Minute,
	KindSpecialist:   60 * time.Minute,
}

// Duration returns the scheduled length for the kind. Unknown kinds fall
// back to the consultation length.
func (k Kind) Duration() time.Duration {
	if d, ok := kindDurations[k]; ok {
		return d
	}
	return kindDurations[KindConsultation]
}

// Label returns a patient-facing name for the kind.
func (k Kind) Label() string {
	switch k {
	case KindFollowUp:
		return "follow-up visit"
	case KindPhysical:
		return "physical exam"
	case KindSpecialist:
		return "specialist referral"
	default:
		return "general consultation"
	}
}

// Valid reports whether k is one of the offered visit types.
func (k Kind) Valid() bool {
	_, ok := kindDurations[k]
	return ok
}

// KindFromText scans free text for a visit type mention. The first match in
// priority order wins; text with no recognizable mention maps to a general
// consultation.
func KindFromText(text string) Kind {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "follow"):
		return KindFollowUp
	case strings.Contains(t, "physical") || strings.Contains(t, "checkup") || strings.Contains(t, "check-up") || strings.Contains(t, "annual"):
		return KindPhysical
	case strings.Contains(t, "special") || strings.Contains(t, "referral"):
		return KindSpecialist
	default:
		return KindConsultation
	}
}

// ParseKind normalizes a stored or user-supplied kind string. The "special"
// alias maps to specialist; anything unrecognized becomes a consultation.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindConsultation:
		return KindConsultation
	case KindFollowUp, "follow-up", "follow up":
		return KindFollowUp
	case KindPhysical:
		return KindPhysical
	case KindSpecialist, "special":
		return KindSpecialist
	default:
		return KindConsultation
	}
}

// Kinds lists the offered visit types in display order.
func Kinds() []Kind {
	return []Kind{KindConsultation, KindFollowUp, KindPhysical, KindSpecialist}
}
