package calendly

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAvailableTimesFiltersUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/event_type_available_times" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"collection":[
			{"status":"available","start_time":"2026-03-02T14:00:00Z","scheduling_url":"https://calendly.example/a","invitees_remaining":1},
			{"status":"available","start_time":"2026-03-02T15:00:00Z","scheduling_url":"https://calendly.example/b","invitees_remaining":0},
			{"status":"unavailable","start_time":"2026-03-02T16:00:00Z","scheduling_url":"https://calendly.example/c","invitees_remaining":1},
			{"status":"available","start_time":"not-a-time","scheduling_url":"https://calendly.example/d","invitees_remaining":1}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL, time.Second, nil)
	slots, err := c.AvailableTimes(context.Background(), "https://calendly.example/event_types/et1", time.Now(), time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("AvailableTimes returned error: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 usable slot, got %d", len(slots))
	}
	if slots[0].SchedulingURL != "https://calendly.example/a" {
		t.Fatalf("unexpected slot %+v", slots[0])
	}
}

func TestEventResolvesFullURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scheduled_events/ev1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"resource":{"uri":"https://api.calendly.com/scheduled_events/ev1","name":"Clinic Visit","status":"active","start_time":"2026-03-02T14:00:00Z","end_time":"2026-03-02T14:30:00Z"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL, time.Second, nil)
	ev, err := c.Event(context.Background(), "https://api.calendly.com/scheduled_events/ev1")
	if err != nil {
		t.Fatalf("Event returned error: %v", err)
	}
	if ev.Status != EventStatusActive {
		t.Fatalf("unexpected status %s", ev.Status)
	}
	if !ev.StartAt.Equal(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", ev.StartAt)
	}
}

func TestCancelEventPostsReason(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL, time.Second, nil)
	if err := c.CancelEvent(context.Background(), "/scheduled_events/ev1", "patient request"); err != nil {
		t.Fatalf("CancelEvent returned error: %v", err)
	}
	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/scheduled_events/ev1/cancellation" {
		t.Fatalf("unexpected path %s", gotPath)
	}
}

func TestDoSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := NewClient("test-token", srv.URL, time.Second, nil)
	_, err := c.ScheduledEvents(context.Background(), time.Now(), 10)
	if err == nil {
		t.Fatal("expected error from 503 response")
	}
	if !IsTransient(err) {
		t.Fatalf("503 should classify as transient: %v", err)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Fatalf("error should carry response body, got %v", err)
	}
}

func TestMissingTokenFailsFast(t *testing.T) {
	c := NewClient("", "https://api.calendly.example", time.Second, nil)
	_, err := c.ScheduledEvents(context.Background(), time.Now(), 10)
	if err == nil {
		t.Fatal("expected error with missing token")
	}
	if IsTransient(err) {
		t.Fatal("missing token is not transient")
	}
}

func TestPrefilledLink(t *testing.T) {
	got := PrefilledLink("https://calendly.example/clinic/visit", "Jane Doe", "jane@example.com", "persistent cough")
	for _, want := range []string{"name=Jane+Doe", "email=jane%40example.com", "a1=persistent+cough"} {
		if !strings.Contains(got, want) {
			t.Errorf("link %q missing %q", got, want)
		}
	}
	if !strings.HasPrefix(got, "https://calendly.example/clinic/visit?") {
		t.Errorf("unexpected link prefix: %q", got)
	}

	if got := PrefilledLink("https://calendly.example/x?utm=1", "", "a@b.c", ""); !strings.Contains(got, "&email=") {
		t.Errorf("existing query should extend with &, got %q", got)
	}
	if got := PrefilledLink("https://calendly.example/x", "", "", ""); got != "https://calendly.example/x" {
		t.Errorf("empty params should leave url untouched, got %q", got)
	}
}
