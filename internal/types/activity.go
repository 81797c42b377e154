package types

import "strings"

// Activity is an immutable catalog entry.
type Activity struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// EmbeddingText is the text embedded for the activity, e.g. "Bouldering gym bouldering, indoor".
func (a Activity) EmbeddingText() string {
	return a.Name + " " + strings.Join(a.Tags, ", ")
}

// Candidate is an activity selected by similarity search, optionally enriched
// with nearby places. It only lives for the duration of one request.
type Candidate struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Places []POI    `json:"places"`
}

// NewCandidate copies an activity into a request-scoped candidate.
func NewCandidate(a Activity) Candidate {
	tags := make([]string, len(a.Tags))
	copy(tags, a.Tags)
	return Candidate{
		Name:   a.Name,
		Tags:   tags,
		Places: []POI{},
	}
}
