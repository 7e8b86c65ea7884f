package clinic

import (
	"fmt"
	"strings"
	"time"
)

// Hours is an open/close pair in 24-hour local time. The zero value means
// closed all day.
type Hours struct {
	Open  int
	Close int
}

// Closed reports whether the day has no open window.
func (h Hours) Closed() bool {
	return h.Open == 0 && h.Close == 0
}

// Profile describes a single clinic location: identity, contact details,
// opening hours, and the policy passages the assistant answers FAQs from.
type Profile struct {
	Name    string
	Phone   string
	Email   string
	Address string
	Website string

	Hours map[time.Weekday]Hours

	// Policies maps an FAQ topic to the passage returned for it.
	Policies map[string]string
}

// DefaultProfile builds the stock profile with standard weekday hours.
// Name and phone come from configuration so deployments can rebrand
// without code changes.
func DefaultProfile(name, phone string) *Profile {
	if name == "" {
		name = "CarePlus Family Clinic"
	}
	if phone == "" {
		phone = "+1-555-123-4567"
	}
	p := &Profile{
		Name:    name,
		Phone:   phone,
		Email:   "frontdesk@careplusclinic.example",
		Address: "450 Wellness Way, Suite 200, Springfield",
		Website: "https://careplusclinic.example",
		Hours: map[time.Weekday]Hours{
			time.Monday:    {Open: 8, Close: 18},
			time.Tuesday:   {Open: 8, Close: 18},
			time.Wednesday: {Open: 8, Close: 18},
			time.Thursday:  {Open: 8, Close: 18},
			time.Friday:    {Open: 8, Close: 18},
			time.Saturday:  {Open: 9, Close: 14},
		},
	}
	p.Policies = map[string]string{
		"insurance": "We accept most major insurance plans, including PPO and HMO networks. " +
			"Please bring your insurance card to your visit. If you are unsure whether your plan is accepted, " +
			"call us at " + phone + " and our front desk can verify coverage before your appointment.",
		"location": "We are located at " + p.Address + ". " +
			"The entrance is on the ground floor next to the pharmacy, and the building is wheelchair accessible.",
		"hours": "Our hours are Monday through Friday 8:00 AM to 6:00 PM and Saturday 9:00 AM to 2:00 PM. " +
			"We are closed on Sundays.",
		"parking": "Free patient parking is available in the lot behind the building. " +
			"Street parking on Wellness Way is metered, so the rear lot is usually your best option.",
		"cancellation": "You can cancel or reschedule at no charge up to 24 hours before your appointment. " +
			"Cancellations with less than 24 hours' notice may incur a $25 fee. " +
			"To cancel, just tell me here or call " + phone + ".",
		"first_visit": "For your first visit, please arrive 15 minutes early and bring a photo ID, your insurance card, " +
			"and a list of any medications you take. New patient forms are also available on our website if you prefer " +
			"to fill them out ahead of time.",
		"contact": "You can reach us at " + phone + " or " + p.Email + ". " +
			"For urgent medical concerns outside office hours, please call 911 or go to your nearest emergency room.",
		"payment": "We accept cash, all major credit cards, HSA and FSA cards, and most insurance plans. " +
			"Co-pays are collected at check-in.",
	}
	return p
}

// Answer returns the policy passage for an FAQ topic.
func (p *Profile) Answer(topic string) (string, bool) {
	passage, ok := p.Policies[strings.ToLower(strings.TrimSpace(topic))]
	return passage, ok
}

// Topics returns the FAQ topics the profile can answer.
func (p *Profile) Topics() []string {
	topics := make([]string, 0, len(p.Policies))
	for topic := range p.Policies {
		topics = append(topics, topic)
	}
	return topics
}

// IsOpen reports whether the clinic is open at the given local time.
func (p *Profile) IsOpen(t time.Time) bool {
	h, ok := p.Hours[t.Weekday()]
	if !ok || h.Closed() {
		return false
	}
	return t.Hour() >= h.Open && t.Hour() < h.Close
}

// HoursLine formats one weekday's hours for display.
func (p *Profile) HoursLine(d time.Weekday) string {
	h, ok := p.Hours[d]
	if !ok || h.Closed() {
		return fmt.Sprintf("%s: closed", d)
	}
	return fmt.Sprintf("%s: %s - %s", d, formatHour(h.Open), formatHour(h.Close))
}

func formatHour(hour int) string {
	switch {
	case hour == 0:
		return "12:00 AM"
	case hour < 12:
		return fmt.Sprintf("%d:00 AM", hour)
	case hour == 12:
		return "12:00 PM"
	default:
		return fmt.Sprintf("%d:00 PM", hour-12)
	}
}
