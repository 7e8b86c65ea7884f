package conversation

import (
	"testing"
	"time"
)

func TestExtractEmail(t *testing.T) {
	if got := ExtractEmail("you can reach me at jane.doe+health@example.co.uk thanks"); got != "jane.doe+health@example.co.uk" {
		t.Errorf("ExtractEmail = %q", got)
	}
	if got := ExtractEmail("no address here"); got != "" {
		t.Errorf("ExtractEmail = %q, want empty", got)
	}
}

func TestExtractPhone(t *testing.T) {
	cases := map[string]string{
		"call me at 555-123-4567":     "555-123-4567",
		"it's (555) 123 4567":         "(555) 123 4567",
		"+1 555.123.4567 works":       "+1 555.123.4567",
		"my email is jane123@a45.com": "",
	}
	for in, want := range cases {
		if got := ExtractPhone(in); got != want {
			t.Errorf("ExtractPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractName(t *testing.T) {
	cases := map[string]string{
		"my name is jane doe":     "Jane Doe",
		"I'm Carlos Mendez":       "Carlos Mendez",
		"this is Priya":           "Priya",
		"Jane Doe":                "Jane Doe",
		"yes":                     "",
		"I want an appointment":   "",
		"jane@example.com":        "",
		"Mary Ann Smith":          "Mary Ann Smith",
		"one two three four five": "",
	}
	for in, want := range cases {
		if got := ExtractName(in); got != want {
			t.Errorf("ExtractName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseDateMention(t *testing.T) {
	// A Monday.
	now := time.Date(2026, time.March, 2, 9, 30, 0, 0, time.UTC)

	got, ok := ParseDateMention("can you do tomorrow?", now)
	if !ok || !got.Equal(time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("tomorrow = %v, ok=%v", got, ok)
	}

	got, ok = ParseDateMention("how about friday", now)
	if !ok || got.Weekday() != time.Friday || !got.After(now) {
		t.Errorf("friday = %v, ok=%v", got, ok)
	}

	// Naming today's weekday means next week, not today.
	got, ok = ParseDateMention("monday works", now)
	if !ok || !got.Equal(time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monday = %v, ok=%v", got, ok)
	}

	got, ok = ParseDateMention("what about March 15", now)
	if !ok || !got.Equal(time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("march 15 = %v, ok=%v", got, ok)
	}

	// A month-day already past rolls to next year.
	got, ok = ParseDateMention("january 10", now)
	if !ok || !got.Equal(time.Date(2027, time.January, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("january 10 = %v, ok=%v", got, ok)
	}

	if _, ok := ParseDateMention("sometime soon", now); ok {
		t.Error("expected no date")
	}
}
