package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Per-field extractors. Each is pure: it scans one message and returns the
// first plausible value, or empty. Call sites decide whether to apply a
// result; stored patient details are never overwritten by a later message.

var (
	emailPattern = regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`)
	phonePattern = regexp.MustCompile(`(\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	namePattern  = regexp.MustCompile(`(?i)(?:my name is|i'm|i am|this is|it's|call me)\s+([A-Za-z]+(?:\s+[A-Za-z]+){0,2})`)

	monthDayPattern = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2})`)
)

// ExtractEmail returns the first email address in the text.
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}

// ExtractPhone returns the first phone number in the text. Digit runs that
// are part of an email address are skipped.
func ExtractPhone(text string) string {
	// Strip emails first so "jane123@example.com" is not mistaken for a
	// number.
	cleaned := emailPattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(phonePattern.FindString(cleaned))
}

// ExtractName returns a name mentioned with an introduction phrase, or, for
// a short message of bare capitalized words, the message itself.
func ExtractName(text string) string {
	if m := namePattern.FindStringSubmatch(text); m != nil {
		return tidyName(m[1])
	}

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || len(fields) > 3 {
		return ""
	}
	for _, f := range fields {
		if !isCapitalizedWord(f) {
			return ""
		}
	}
	return tidyName(strings.Join(fields, " "))
}

func isCapitalizedWord(w string) bool {
	if len(w) < 2 {
		return false
	}
	if w[0] < 'A' || w[0] > 'Z' {
		return false
	}
	for _, r := range w[1:] {
		if (r < 'a' || r > 'z') && r != '\'' && r != '-' {
			return false
		}
	}
	return true
}

func tidyName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if w == strings.ToLower(w) {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// ParseDateMention finds a calendar date in free text relative to now:
// "today", "tomorrow", a weekday name (the next occurrence), or a month and
// day like "march 5".
func ParseDateMention(text string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(text)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if strings.Contains(t, "today") {
		return today, true
	}
	if strings.Contains(t, "tomorrow") {
		return today.AddDate(0, 0, 1), true
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if !strings.Contains(t, name) {
			continue
		}
		days := (int(d) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days), true
	}

	if m := monthDayPattern.FindStringSubmatch(text); m != nil {
		month, ok := monthByName(m[1])
		if !ok {
			return time.Time{}, false
		}
		day, err := strconv.Atoi(m[2])
		if err != nil || day < 1 || day > 31 {
			return time.Time{}, false
		}
		candidate := time.Date(now.Year(), month, day, 0, 0, 0, 0, now.Location())
		if candidate.Before(today) {
			candidate = candidate.AddDate(1, 0, 0)
		}
		return candidate, true
	}

	return time.Time{}, false
}

func monthByName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(name, m.String()) {
			return m, true
		}
	}
	return 0, false
}
