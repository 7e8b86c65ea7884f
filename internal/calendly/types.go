package calendly

import "time"

// TimeSlot is one bookable opening returned by the availability endpoint.
type TimeSlot struct {
	StartAt       time.Time
	SchedulingURL string
	InviteesLeft  int
}

// ScheduledEvent is a booked event on the provider calendar.
type ScheduledEvent struct {
	URI     string
	Name    string
	Status  string
	StartAt time.Time
	EndAt   time.Time
}

// Invitee is one attendee of a scheduled event.
type Invitee struct {
	URI       string
	Email     string
	Name      string
	Status    string
	CancelURL string
}

// Event statuses reported by the provider.
const (
	EventStatusActive   = "active"
	EventStatusCanceled = "canceled"
)

// availableTimesResponse is the wire shape of the availability listing.
type availableTimesResponse struct {
	Collection []struct {
		Status           string `json:"status"`
		StartTime        string `json:"start_time"`
		SchedulingURL    string `json:"scheduling_url"`
		InviteesRemaining int   `json:"invitees_remaining"`
	} `json:"collection"`
}

// scheduledEventsResponse is the wire shape of the scheduled-events listing.
type scheduledEventsResponse struct {
	Collection []eventResource `json:"collection"`
	Pagination struct {
		NextPageToken string `json:"next_page_token"`
	} `json:"pagination"`
}

type eventResource struct {
	URI       string `json:"uri"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type eventEnvelope struct {
	Resource eventResource `json:"resource"`
}

// inviteesResponse is the wire shape of the event-invitees listing.
type inviteesResponse struct {
	Collection []struct {
		URI       string `json:"uri"`
		Email     string `json:"email"`
		Name      string `json:"name"`
		Status    string `json:"status"`
		CancelURL string `json:"cancel_url"`
	} `json:"collection"`
}
