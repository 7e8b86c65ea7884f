package faq

import (
	"context"
	"strings"

	"github.com/careplus/appointment-agent/internal/clinic"
)

// Retriever answers patient questions from clinic knowledge. Implementations
// may use keyword rules, lexical scoring, or an external index.
type Retriever interface {
	// Retrieve returns the best passage for a query. ok is false when
	// nothing matched well enough to answer with.
	Retrieve(ctx context.Context, query string) (topic Topic, passage string, ok bool, err error)
}

// KeywordRetriever answers from the clinic profile's policy passages.
// Keyword classification runs first; when no keyword hits, a token-overlap
// score against the passages themselves acts as a fallback so paraphrased
// questions still land.
type KeywordRetriever struct {
	profile *clinic.Profile
}

// NewKeywordRetriever creates a retriever over a clinic profile.
func NewKeywordRetriever(profile *clinic.Profile) *KeywordRetriever {
	if profile == nil {
		panic("faq: clinic profile required")
	}
	return &KeywordRetriever{profile: profile}
}

// minOverlap is the number of distinct shared tokens a passage needs to be
// offered as an answer.
const minOverlap = 2

// Retrieve implements Retriever.
func (r *KeywordRetriever) Retrieve(_ context.Context, query string) (Topic, string, bool, error) {
	if topic := Classify(query); topic != TopicNone {
		if passage, ok := r.profile.Answer(string(topic)); ok {
			return topic, passage, true, nil
		}
	}

	topic, passage, score := r.bestOverlap(query)
	if score < minOverlap {
		return TopicNone, "", false, nil
	}
	return topic, passage, true, nil
}

func (r *KeywordRetriever) bestOverlap(query string) (Topic, string, int) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return TopicNone, "", 0
	}

	var bestTopic Topic
	var bestPassage string
	best := 0
	for name, passage := range r.profile.Policies {
		score := 0
		passageTokens := tokenize(passage)
		for tok := range queryTokens {
			if _, ok := passageTokens[tok]; ok {
				score++
			}
		}
		if score > best {
			best = score
			bestTopic = Topic(name)
			bestPassage = passage
		}
	}
	return bestTopic, bestPassage, best
}

// stopwords are tokens too common to signal a topic.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "you": {}, "your": {}, "for": {}, "are": {},
	"can": {}, "what": {}, "with": {}, "have": {}, "please": {}, "about": {},
	"that": {}, "this": {}, "our": {}, "any": {}, "all": {}, "will": {},
	"most": {},
}

func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := strings.Trim(field, ".,!?;:'\"()")
		if len(tok) < 3 {
			continue
		}
		if _, skip := stopwords[tok]; skip {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}
