package calendly

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/careplus/appointment-agent/pkg/logging"
)

const defaultTimeout = 10 * time.Second

// Provider is the scheduling backend the booking flows run against. The
// production implementation is the Calendly REST API; tests and offline
// deployments use MockProvider.
type Provider interface {
	// AvailableTimes lists bookable openings for an event type in a window.
	AvailableTimes(ctx context.Context, eventType string, from, to time.Time) ([]TimeSlot, error)
	// ScheduledEvents lists booked events starting at or after from.
	ScheduledEvents(ctx context.Context, from time.Time, count int) ([]ScheduledEvent, error)
	// Event fetches a single scheduled event by URI.
	Event(ctx context.Context, uri string) (*ScheduledEvent, error)
	// EventInvitees lists the attendees of a scheduled event.
	EventInvitees(ctx context.Context, eventURI string) ([]Invitee, error)
	// CancelEvent cancels a scheduled event with a reason.
	CancelEvent(ctx context.Context, eventURI, reason string) error
}

// Client talks to the Calendly v2 REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	logger     *logging.Logger
}

// NewClient creates a Calendly API client.
func NewClient(token, baseURL string, timeout time.Duration, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if baseURL == "" {
		baseURL = "https://api.calendly.com"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
		logger:     logger,
	}
}

// AvailableTimes lists bookable openings for the event type between from and
// to. Fully booked openings are filtered out.
func (c *Client) AvailableTimes(ctx context.Context, eventType string, from, to time.Time) ([]TimeSlot, error) {
	q := url.Values{}
	q.Set("event_type", eventType)
	q.Set("start_time", from.UTC().Format(time.RFC3339))
	q.Set("end_time", to.UTC().Format(time.RFC3339))

	var out availableTimesResponse
	if err := c.do(ctx, http.MethodGet, "/event_type_available_times?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	slots := make([]TimeSlot, 0, len(out.Collection))
	for _, s := range out.Collection {
		if s.Status != "available" || s.InviteesRemaining <= 0 {
			continue
		}
		start, err := time.Parse(time.RFC3339, s.StartTime)
		if err != nil {
			continue
		}
		slots = append(slots, TimeSlot{
			StartAt:       start,
			SchedulingURL: s.SchedulingURL,
			InviteesLeft:  s.InviteesRemaining,
		})
	}
	return slots, nil
}

// ScheduledEvents lists booked events starting at or after from, most recent
// first.
func (c *Client) ScheduledEvents(ctx context.Context, from time.Time, count int) ([]ScheduledEvent, error) {
	if count <= 0 {
		count = 50
	}
	q := url.Values{}
	q.Set("min_start_time", from.UTC().Format(time.RFC3339))
	q.Set("count", strconv.Itoa(count))
	q.Set("sort", "start_time:desc")

	var out scheduledEventsResponse
	if err := c.do(ctx, http.MethodGet, "/scheduled_events?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}

	events := make([]ScheduledEvent, 0, len(out.Collection))
	for _, e := range out.Collection {
		ev, err := parseEvent(e)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Event fetches a single scheduled event. The uri may be a full provider URI
// or a bare path.
func (c *Client) Event(ctx context.Context, uri string) (*ScheduledEvent, error) {
	var out eventEnvelope
	if err := c.do(ctx, http.MethodGet, resourcePath(uri), nil, &out); err != nil {
		return nil, err
	}
	ev, err := parseEvent(out.Resource)
	if err != nil {
		return nil, fmt.Errorf("calendly: parse event: %w", err)
	}
	return &ev, nil
}

// EventInvitees lists the attendees of a scheduled event.
func (c *Client) EventInvitees(ctx context.Context, eventURI string) ([]Invitee, error) {
	var out inviteesResponse
	if err := c.do(ctx, http.MethodGet, resourcePath(eventURI)+"/invitees", nil, &out); err != nil {
		return nil, err
	}
	invitees := make([]Invitee, 0, len(out.Collection))
	for _, i := range out.Collection {
		invitees = append(invitees, Invitee{
			URI:       i.URI,
			Email:     i.Email,
			Name:      i.Name,
			Status:    i.Status,
			CancelURL: i.CancelURL,
		})
	}
	return invitees, nil
}

// CancelEvent cancels a scheduled event with a reason.
func (c *Client) CancelEvent(ctx context.Context, eventURI, reason string) error {
	payload := map[string]string{"reason": reason}
	return c.do(ctx, http.MethodPost, resourcePath(eventURI)+"/cancellation", payload, nil)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if strings.TrimSpace(c.token) == "" {
		return fmt.Errorf("calendly: missing api token")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("calendly: marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("calendly: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calendly: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("calendly: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &APIError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("calendly: unmarshal response: %w", err)
	}
	return nil
}

// resourcePath reduces a provider URI to the path the client can request
// against its own base URL.
func resourcePath(uri string) string {
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		if u, err := url.Parse(uri); err == nil {
			return u.Path
		}
	}
	if !strings.HasPrefix(uri, "/") {
		return "/" + uri
	}
	return uri
}

func parseEvent(e eventResource) (ScheduledEvent, error) {
	start, err := time.Parse(time.RFC3339, e.StartTime)
	if err != nil {
		return ScheduledEvent{}, err
	}
	end, err := time.Parse(time.RFC3339, e.EndTime)
	if err != nil {
		return ScheduledEvent{}, err
	}
	return ScheduledEvent{
		URI:     e.URI,
		Name:    e.Name,
		Status:  e.Status,
		StartAt: start,
		EndAt:   end,
	}, nil
}

// PrefilledLink appends invitee details to a scheduling URL so the booking
// page opens with name, email, and the visit reason already filled in.
func PrefilledLink(schedulingURL, name, email, answer string) string {
	if schedulingURL == "" {
		return ""
	}
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	if email != "" {
		q.Set("email", email)
	}
	if answer != "" {
		q.Set("a1", answer)
	}
	if len(q) == 0 {
		return schedulingURL
	}
	sep := "?"
	if strings.Contains(schedulingURL, "?") {
		sep = "&"
	}
	return schedulingURL + sep + q.Encode()
}
