package appointments

import (
	"testing"
	"time"
)

func TestKindDurations(t *testing.T) {
	tests := []struct {
		kind Kind
		want time.Duration
	}{
		{KindConsultation, 30 * time.Minute},
		{KindFollowUp, 15 * time.Minute},
		{KindPhysical, 45 * time.Minute},
		{KindSpecialist, 60 * time.Minute},
		{Kind("bogus"), 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := tt.kind.Duration(); got != tt.want {
			t.Errorf("Duration(%s) = %s, want %s", tt.kind, got, tt.want)
		}
	}
}

func TestKindFromText(t *testing.T) {
	tests := []struct {
		text string
		want Kind
	}{
		{"I need a follow up on my labs", KindFollowUp},
		{"annual physical please", KindPhysical},
		{"time for my checkup", KindPhysical},
		{"I was told to see a specialist", KindSpecialist},
		{"my doctor gave me a referral", KindSpecialist},
		{"I have a persistent cough", KindConsultation},
		{"", KindConsultation},
	}
	for _, tt := range tests {
		if got := KindFromText(tt.text); got != tt.want {
			t.Errorf("KindFromText(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"consultation", KindConsultation},
		{"followup", KindFollowUp},
		{"follow-up", KindFollowUp},
		{"physical", KindPhysical},
		{"specialist", KindSpecialist},
		{"special", KindSpecialist},
		{"  Specialist ", KindSpecialist},
		{"unknown", KindConsultation},
		{"", KindConsultation},
	}
	for _, tt := range tests {
		if got := ParseKind(tt.in); got != tt.want {
			t.Errorf("ParseKind(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestKindsOrderAndValidity(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != 4 {
		t.Fatalf("expected 4 kinds, got %d", len(kinds))
	}
	for _, k := range kinds {
		if !k.Valid() {
			t.Errorf("kind %s should be valid", k)
		}
		if k.Label() == "" {
			t.Errorf("kind %s should have a label", k)
		}
	}
}
