package types

import "strings"

// SuggestRequest is the body of POST /api/suggest. Optional fields are nil when absent.
type SuggestRequest struct {
	Lat      *float64 `json:"lat" validate:"required,gte=-90,lte=90" example:"35.6812"`
	Lon      *float64 `json:"lon" validate:"required,gte=-180,lte=180" example:"139.7671"`
	Mood     *string  `json:"mood,omitempty" validate:"omitnil,max=120" example:"まったり"`
	RadiusKm *int     `json:"radius_km,omitempty" validate:"omitnil,gte=1,lte=500" example:"2"`
	Indoor   *bool    `json:"indoor,omitempty" example:"false"`
	Budget   *string  `json:"budget,omitempty" validate:"omitnil,max=50" example:"~3000円"`
}

// Normalize trims free-text fields in place.
func (r *SuggestRequest) Normalize() {
	if r.Mood != nil {
		m := strings.TrimSpace(*r.Mood)
		r.Mood = &m
	}
	if r.Budget != nil {
		b := strings.TrimSpace(*r.Budget)
		r.Budget = &b
	}
}

// Prefs extracts the user preferences consumed by the rule engine and prompts.
func (r SuggestRequest) Prefs() UserPrefs {
	p := UserPrefs{
		Indoor:   r.Indoor,
		RadiusKm: r.RadiusKm,
		Budget:   r.Budget,
	}
	if r.Mood != nil {
		p.Mood = *r.Mood
	}
	return p
}

// UserPrefs are the validated user inputs that influence tags and text.
type UserPrefs struct {
	Mood     string
	Indoor   *bool
	RadiusKm *int
	Budget   *string
}

// WantsIndoor reports whether the user explicitly asked for indoor activities.
func (p UserPrefs) WantsIndoor() bool {
	return p.Indoor != nil && *p.Indoor
}

// SuggestResponse is the payload returned by POST /api/suggest.
type SuggestResponse struct {
	Suggestions    string         `json:"suggestions"`
	Weather        map[string]any `json:"weather"`
	Tags           []string       `json:"tags"`
	Candidates     []Candidate    `json:"candidates"`
	NearPOIs       []string       `json:"near_pois"`
	ElapsedSec     float64        `json:"elapsed_sec"`
	Fallback       bool           `json:"fallback"`
	Degraded       bool           `json:"degraded"`
	FallbackReason FailureReason  `json:"fallback_reason,omitempty"`
}
