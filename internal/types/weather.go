package types

import "time"

// WeatherSnapshot holds the raw "current" and "hourly" blocks returned by the
// weather service. A cached snapshot is never mutated; a fresh fetch replaces it.
type WeatherSnapshot struct {
	Current   map[string]any `json:"current"`
	Hourly    map[string]any `json:"hourly,omitempty"`
	Degraded  bool           `json:"-"`
	FetchedAt time.Time      `json:"-"`
}

// EmptyWeather is the placeholder used when the weather service could not be reached.
func EmptyWeather(at time.Time) *WeatherSnapshot {
	return &WeatherSnapshot{
		Current:   map[string]any{},
		Hourly:    map[string]any{},
		Degraded:  true,
		FetchedAt: at,
	}
}

// Digest returns the current-conditions block exposed to clients and prompts.
func (w *WeatherSnapshot) Digest() map[string]any {
	if w == nil || w.Current == nil {
		return map[string]any{}
	}
	return w.Current
}
