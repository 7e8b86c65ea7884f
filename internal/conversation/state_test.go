package conversation

import (
	"fmt"
	"testing"
)

func TestSessionHasPatientInfo(t *testing.T) {
	s := NewSession("conv-1")
	if s.HasPatientInfo() {
		t.Fatal("empty session should not have patient info")
	}
	s.PatientName = "Jane Doe"
	s.PatientEmail = "jane@example.com"
	if s.HasPatientInfo() {
		t.Fatal("phone still missing")
	}
	s.PatientPhone = "555-867-5309"
	if !s.HasPatientInfo() {
		t.Fatal("all three fields set")
	}
}

func TestSessionResetFlowKeepsPatientDetails(t *testing.T) {
	s := NewSession("conv-2")
	s.PatientName = "Jane Doe"
	s.PatientEmail = "jane@example.com"
	s.PatientPhone = "555-867-5309"
	s.Reason = "sore throat"
	s.SlotClarified = true
	s.BookingID = "bk-1"

	s.ResetFlow()

	if s.Reason != "" || s.SlotClarified {
		t.Fatal("flow fields should be cleared")
	}
	if s.PatientName == "" || s.PatientEmail == "" || s.PatientPhone == "" {
		t.Fatal("patient details should survive a flow reset")
	}
	if s.BookingID != "bk-1" {
		t.Fatal("booking reference should survive a flow reset")
	}
}

func TestSessionRememberCapsHistory(t *testing.T) {
	s := NewSession("conv-3")
	for i := 0; i < 20; i++ {
		s.Remember(ChatRoleUser, fmt.Sprintf("message %d", i))
	}
	if len(s.History) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(s.History), historyLimit)
	}
	if s.History[0].Text != "message 10" {
		t.Fatalf("oldest kept turn = %q, want %q", s.History[0].Text, "message 10")
	}
	if s.History[len(s.History)-1].Text != "message 19" {
		t.Fatalf("newest turn = %q", s.History[len(s.History)-1].Text)
	}
}
