package faq

import "strings"

// Topic identifies a frequently asked question category. Topic values match
// the clinic profile's policy keys.
type Topic string

const (
	TopicInsurance    Topic = "insurance"
	TopicLocation     Topic = "location"
	TopicHours        Topic = "hours"
	TopicParking      Topic = "parking"
	TopicCancellation Topic = "cancellation"
	TopicFirstVisit   Topic = "first_visit"
	TopicContact      Topic = "contact"
	TopicPayment      Topic = "payment"
	TopicNone         Topic = ""
)

// topicKeywords maps each topic to the phrases that select it. Order
// matters: earlier topics win when a message mentions several.
var topicKeywords = []struct {
	topic    Topic
	keywords []string
}{
	{TopicInsurance, []string{"insurance", "coverage", "covered", "ppo", "hmo", "medicare", "medicaid"}},
	{TopicCancellation, []string{"cancellation policy", "cancel policy", "cancellation fee", "cancel fee", "no show", "no-show", "late fee"}},
	{TopicFirstVisit, []string{"first visit", "first time", "new patient", "what should i bring", "what do i bring", "what to bring"}},
	{TopicParking, []string{"parking", "park my car", "where do i park", "where can i park"}},
	{TopicHours, []string{"hours", "what time do you open", "what time do you close", "when are you open", "open on", "open today", "open tomorrow"}},
	{TopicLocation, []string{"where are you", "located", "location", "address", "directions", "how do i get", "find you"}},
	{TopicContact, []string{"phone number", "contact", "call you", "reach you", "email address", "fax"}},
	{TopicPayment, []string{"payment", "how much", "cost", "price", "pricing", "credit card", "pay with", "hsa", "fsa", "copay", "co-pay"}},
}

// Classify scans free text for an FAQ topic mention. TopicNone means the
// message is not a recognizable FAQ.
func Classify(text string) Topic {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return TopicNone
	}
	for _, entry := range topicKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(t, kw) {
				return entry.topic
			}
		}
	}
	return TopicNone
}
