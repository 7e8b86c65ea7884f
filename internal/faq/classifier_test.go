package faq

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want Topic
	}{
		{"Do you take my insurance?", TopicInsurance},
		{"is medicare covered", TopicInsurance},
		{"Where are you located?", TopicLocation},
		{"what's your address", TopicLocation},
		{"What are your hours?", TopicHours},
		{"when are you open", TopicHours},
		{"Is there parking nearby?", TopicParking},
		{"what is your cancellation policy", TopicCancellation},
		{"do you charge a no-show fee", TopicCancellation},
		{"It's my first visit, what should I bring?", TopicFirstVisit},
		{"I'm a new patient", TopicFirstVisit},
		{"What's your phone number?", TopicContact},
		{"Can I pay with a credit card?", TopicPayment},
		{"how much does a visit cost", TopicPayment},
		{"I have a sore throat", TopicNone},
		{"", TopicNone},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestClassifyPriority(t *testing.T) {
	// A message can mention cost words and a policy; the earlier topic in
	// the keyword table wins.
	if got := Classify("how much is the cancellation fee?"); got != TopicCancellation {
		t.Fatalf("expected cancellation topic, got %q", got)
	}
}
