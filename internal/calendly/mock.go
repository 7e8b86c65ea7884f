package calendly

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MockProvider is an in-memory Provider for tests and offline deployments.
// Openings are generated deterministically inside business hours, and
// scheduled events live in a map guarded by a mutex.
type MockProvider struct {
	mu     sync.Mutex
	events map[string]*mockEvent
	seq    int
}

type mockEvent struct {
	event    ScheduledEvent
	invitees []Invitee
}

// NewMockProvider creates an empty mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{events: make(map[string]*mockEvent)}
}

// mockSlotHours are the slot start hours offered on open days.
var mockSlotHours = []int{9, 10, 11, 13, 14, 15}

// AvailableTimes generates hourly openings on weekdays and Saturday
// mornings inside [from, to), skipping hours already taken by an active
// scheduled event.
func (m *MockProvider) AvailableTimes(_ context.Context, _ string, from, to time.Time) ([]TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var slots []TimeSlot
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for ; day.Before(to); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Sunday {
			continue
		}
		for _, hour := range mockSlotHours {
			if day.Weekday() == time.Saturday && hour >= 13 {
				continue
			}
			start := day.Add(time.Duration(hour) * time.Hour)
			if start.Before(from) || !start.Before(to) {
				continue
			}
			if m.takenLocked(start) {
				continue
			}
			slots = append(slots, TimeSlot{
				StartAt:       start,
				SchedulingURL: fmt.Sprintf("https://calendly.example/clinic/visit/%d", start.Unix()),
				InviteesLeft:  1,
			})
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartAt.Before(slots[j].StartAt) })
	return slots, nil
}

func (m *MockProvider) takenLocked(start time.Time) bool {
	for _, e := range m.events {
		if e.event.Status == EventStatusActive && e.event.StartAt.Equal(start) {
			return true
		}
	}
	return false
}

// ScheduledEvents lists events starting at or after from, most recent first.
func (m *MockProvider) ScheduledEvents(_ context.Context, from time.Time, count int) ([]ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if count <= 0 {
		count = 50
	}
	var events []ScheduledEvent
	for _, e := range m.events {
		if e.event.StartAt.Before(from) {
			continue
		}
		events = append(events, e.event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartAt.After(events[j].StartAt) })
	if len(events) > count {
		events = events[:count]
	}
	return events, nil
}

// Event fetches a single scheduled event by URI.
func (m *MockProvider) Event(_ context.Context, uri string) (*ScheduledEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[uri]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "event not found"}
	}
	ev := e.event
	return &ev, nil
}

// EventInvitees lists the attendees of a scheduled event.
func (m *MockProvider) EventInvitees(_ context.Context, eventURI string) ([]Invitee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventURI]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: "event not found"}
	}
	out := make([]Invitee, len(e.invitees))
	copy(out, e.invitees)
	return out, nil
}

// CancelEvent marks a scheduled event and its invitees canceled.
func (m *MockProvider) CancelEvent(_ context.Context, eventURI, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[eventURI]
	if !ok {
		return &APIError{StatusCode: 404, Body: "event not found"}
	}
	e.event.Status = EventStatusCanceled
	for i := range e.invitees {
		e.invitees[i].Status = EventStatusCanceled
	}
	return nil
}

// AddEvent seeds a scheduled event with a single active invitee and returns
// its URI.
func (m *MockProvider) AddEvent(name, inviteeName, inviteeEmail string, start, end time.Time) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	uri := fmt.Sprintf("https://calendly.example/scheduled_events/mock-%d", m.seq)
	m.events[uri] = &mockEvent{
		event: ScheduledEvent{
			URI:     uri,
			Name:    name,
			Status:  EventStatusActive,
			StartAt: start,
			EndAt:   end,
		},
		invitees: []Invitee{{
			URI:       fmt.Sprintf("%s/invitees/mock-%d", uri, m.seq),
			Email:     inviteeEmail,
			Name:      inviteeName,
			Status:    EventStatusActive,
			CancelURL: fmt.Sprintf("https://calendly.example/cancellations/mock-%d", m.seq),
		}},
	}
	return uri
}
