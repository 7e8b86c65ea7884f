package availability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careplus/appointment-agent/internal/calendly"
	"github.com/careplus/appointment-agent/pkg/logging"
)

const (
	defaultScanDays = 7
	defaultMaxSlots = 4
	slotCapCeiling  = 5
)

// Slot is one offerable opening with its patient-facing display string.
type Slot struct {
	StartAt       time.Time
	Display       string
	SchedulingURL string
}

// displayLayout renders "Monday, March 02 at 10:00 AM".
const displayLayout = "Monday, January 02 at 3:04 PM"

// Resolver finds openings to offer a patient. It scans the provider day by
// day starting tomorrow, filters by time-of-day preference, and caps the
// result so replies stay short. Provider calls retry once on transient
// failures and every outcome feeds the health snapshot.
type Resolver struct {
	provider  calendly.Provider
	eventType string
	scanDays  int
	maxSlots  int
	retries   int
	backoff   time.Duration
	logger    *logging.Logger
	now       func() time.Time

	mu     sync.Mutex
	health calendly.Health
}

// NewResolver creates a resolver. The provider is required.
func NewResolver(provider calendly.Provider, eventType string, scanDays, maxSlots, retries int, backoff time.Duration, logger *logging.Logger) *Resolver {
	if provider == nil {
		panic("availability: provider is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if scanDays <= 0 {
		scanDays = defaultScanDays
	}
	if maxSlots <= 0 {
		maxSlots = defaultMaxSlots
	}
	if maxSlots > slotCapCeiling {
		maxSlots = slotCapCeiling
	}
	if retries < 0 {
		retries = 0
	}
	return &Resolver{
		provider:  provider,
		eventType: eventType,
		scanDays:  scanDays,
		maxSlots:  maxSlots,
		retries:   retries,
		backoff:   backoff,
		logger:    logger,
		now:       time.Now,
		health:    calendly.NewHealth(),
	}
}

// Health returns the current provider health snapshot.
func (r *Resolver) Health() calendly.Health {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.health
}

// Upcoming scans the next scanDays days starting tomorrow and returns up to
// maxSlots openings matching the preference. Days that already produced
// enough slots stop the scan early.
func (r *Resolver) Upcoming(ctx context.Context, pref Preference) ([]Slot, error) {
	return r.UpcomingFrom(ctx, 1, pref)
}

// UpcomingFrom scans scanDays days starting offsetDays from today. Used to
// offer a later window when the patient rejects the first set of slots.
func (r *Resolver) UpcomingFrom(ctx context.Context, offsetDays int, pref Preference) ([]Slot, error) {
	if offsetDays < 1 {
		offsetDays = 1
	}
	var out []Slot
	day := startOfDay(r.now()).AddDate(0, 0, offsetDays)
	for i := 0; i < r.scanDays && len(out) < r.maxSlots; i++ {
		slots, err := r.forDay(ctx, day)
		if err != nil {
			// Slots already gathered are still worth offering; a later
			// failing day only cuts the scan short.
			if len(out) > 0 {
				r.logger.Warn("availability scan cut short",
					"day", day.Format("2006-01-02"),
					"slots", len(out),
					"error", err.Error(),
				)
				return out, nil
			}
			return nil, err
		}
		for _, s := range slots {
			if !pref.Matches(s.StartAt) {
				continue
			}
			out = append(out, s)
			if len(out) >= r.maxSlots {
				break
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

// ForDate returns up to maxSlots openings on a single calendar day.
func (r *Resolver) ForDate(ctx context.Context, date time.Time, pref Preference) ([]Slot, error) {
	slots, err := r.forDay(ctx, startOfDay(date))
	if err != nil {
		return nil, err
	}
	var out []Slot
	for _, s := range slots {
		if !pref.Matches(s.StartAt) {
			continue
		}
		out = append(out, s)
		if len(out) >= r.maxSlots {
			break
		}
	}
	return out, nil
}

func (r *Resolver) forDay(ctx context.Context, day time.Time) ([]Slot, error) {
	from := day
	to := day.AddDate(0, 0, 1)

	var raw []calendly.TimeSlot
	err := r.call(ctx, func() error {
		var callErr error
		raw, callErr = r.provider.AvailableTimes(ctx, r.eventType, from, to)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("availability: list slots for %s: %w", day.Format("2006-01-02"), err)
	}

	slots := make([]Slot, 0, len(raw))
	for _, s := range raw {
		slots = append(slots, Slot{
			StartAt:       s.StartAt,
			Display:       s.StartAt.Format(displayLayout),
			SchedulingURL: s.SchedulingURL,
		})
	}
	return slots, nil
}

// call runs fn with retry on transient failures and records every outcome
// in the health snapshot. Backoff grows linearly with the attempt number.
func (r *Resolver) call(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		r.observe(err)
		if err == nil || !calendly.IsTransient(err) || attempt >= r.retries {
			return err
		}
		r.logger.Warn("provider call failed, retrying",
			"attempt", attempt+1,
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempt+1)):
		}
	}
}

func (r *Resolver) observe(err error) {
	r.mu.Lock()
	r.health = r.health.Observe(err, r.now())
	r.mu.Unlock()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
