package availability

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timePattern picks a clock mention out of free text: "2pm", "2:30 pm",
// "14:00".
var timePattern = regexp.MustCompile(`(\d{1,2}):?(\d{2})?\s*(am|pm)?`)

var ordinalWords = map[string]int{
	"first":  0,
	"second": 1,
	"third":  2,
	"fourth": 3,
	"fifth":  4,
}

// Match resolves a patient's reply to one of the offered slots. The checks
// run in order of confidence: an ordinal pick, the full display string, a
// weekday plus clock time, a calendar date, and finally a bare clock time.
func Match(slots []Slot, input string) (Slot, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	if text == "" || len(slots) == 0 {
		return Slot{}, false
	}

	if idx, ok := ordinalPick(text, len(slots)); ok {
		return slots[idx], true
	}

	for _, s := range slots {
		disp := strings.ToLower(s.Display)
		if strings.Contains(text, disp) || (len(text) >= 4 && strings.Contains(disp, text)) {
			return s, true
		}
	}

	for _, s := range slots {
		if containsWeekday(text, s.StartAt) && matchesClock(text, s.StartAt) {
			return s, true
		}
	}

	for _, s := range slots {
		if containsDate(text, s.StartAt) {
			return s, true
		}
	}

	for _, s := range slots {
		if matchesClock(text, s.StartAt) {
			return s, true
		}
	}

	return Slot{}, false
}

func ordinalPick(text string, n int) (int, bool) {
	if idx, err := strconv.Atoi(text); err == nil {
		if idx >= 1 && idx <= n {
			return idx - 1, true
		}
		return 0, false
	}
	for word, idx := range ordinalWords {
		if strings.Contains(text, word) && idx < n {
			return idx, true
		}
	}
	if strings.HasPrefix(text, "option ") {
		if idx, err := strconv.Atoi(strings.TrimPrefix(text, "option ")); err == nil && idx >= 1 && idx <= n {
			return idx - 1, true
		}
	}
	return 0, false
}

func containsWeekday(text string, t time.Time) bool {
	return strings.Contains(text, strings.ToLower(t.Weekday().String()))
}

func containsDate(text string, t time.Time) bool {
	month := strings.ToLower(t.Month().String())
	if !strings.Contains(text, month) {
		return false
	}
	day := strconv.Itoa(t.Day())
	padded := t.Format("02")
	return containsWord(text, day) || strings.Contains(text, month+" "+padded)
}

func matchesClock(text string, t time.Time) bool {
	m := timePattern.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour > 23 {
		return false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return false
		}
	}
	if minute != t.Minute() {
		return false
	}
	switch m[3] {
	case "pm":
		if hour < 12 {
			hour += 12
		}
		return hour == t.Hour()
	case "am":
		if hour == 12 {
			hour = 0
		}
		return hour == t.Hour()
	default:
		// Without a meridiem, "2" matches both 02:00 and 14:00.
		return hour == t.Hour() || (hour < 12 && hour+12 == t.Hour())
	}
}

func containsWord(text, word string) bool {
	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if tok == word {
			return true
		}
	}
	return false
}
