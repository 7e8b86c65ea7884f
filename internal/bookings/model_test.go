package bookings

import (
	"errors"
	"strings"
	"testing"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		changed bool
		err     error
	}{
		{"pending to confirmed", StatusPending, StatusConfirmed, true, nil},
		{"pending to cancelled", StatusPending, StatusCancelled, true, nil},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, true, nil},
		{"confirmed replay", StatusConfirmed, StatusConfirmed, false, nil},
		{"cancelled replay", StatusCancelled, StatusCancelled, false, nil},
		{"cancelled to confirmed", StatusCancelled, StatusConfirmed, false, ErrTerminalStatus},
		{"confirmed to pending", StatusConfirmed, StatusPending, false, ErrTerminalStatus},
		{"confirmed to no-show", StatusConfirmed, StatusNoShow, true, nil},
		{"pending to no-show", StatusPending, StatusNoShow, false, ErrTerminalStatus},
		{"no-show replay", StatusNoShow, StatusNoShow, false, nil},
		{"no-show to confirmed", StatusNoShow, StatusConfirmed, false, ErrTerminalStatus},
		{"no-show to cancelled", StatusNoShow, StatusCancelled, false, ErrTerminalStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &Booking{Status: tt.from}
			changed, err := b.CanTransition(tt.to)
			if changed != tt.changed {
				t.Fatalf("changed = %v, want %v", changed, tt.changed)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestActive(t *testing.T) {
	if !(&Booking{Status: StatusPending}).Active() {
		t.Error("pending booking should be active")
	}
	if !(&Booking{Status: StatusConfirmed}).Active() {
		t.Error("confirmed booking should be active")
	}
	if (&Booking{Status: StatusCancelled}).Active() {
		t.Error("cancelled booking should not be active")
	}
}

func TestNewConfirmationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code := NewConfirmationCode()
		if len(code) != 6 {
			t.Fatalf("expected 6-character code, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeCharset, r) {
				t.Fatalf("code %q has character outside charset", code)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatal("codes should vary")
	}
}
