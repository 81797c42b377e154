// Package rules maps current weather and user preferences to activity tags.
//
// The engine is pure: the same weather and preferences always produce the same
// ordered, deduplicated tag list.
package rules

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/ogayu22918/Play-Plan/internal/types"
)

// ErrMalformedWeather is returned when the weather input is not a structured record.
var ErrMalformedWeather = errors.New("rules: weather is not a structured record")

// Tag groups contributed by each trigger, in emission order.
var (
	IndoorTags    = []string{"indoor", "museum", "cinema", "boardgame", "spa", "arcade"}
	HeatTags      = []string{"aquarium", "mall"}
	ColdTags      = []string{"sauna", "cafe", "spa"}
	AdventureTags = []string{"bouldering", "trampoline", "karaoke"}
	RelaxedTags   = []string{"cafe", "bookstore"}
)

// Thresholds are the tunable trigger boundaries. All comparisons are inclusive.
type Thresholds struct {
	IndoorPrecipProbability float64  `mapstructure:"indoorPrecipProbability"` // percent, >=
	IndoorWindSpeed         float64  `mapstructure:"indoorWindSpeed"`         // m/s, >=
	HotApparentTemp         float64  `mapstructure:"hotApparentTemp"`         // °C, >=
	ColdApparentTemp        float64  `mapstructure:"coldApparentTemp"`        // °C, <=
	AdventureKeywords       []string `mapstructure:"adventureKeywords"`
	RelaxedKeywords         []string `mapstructure:"relaxedKeywords"`
}

// DefaultThresholds returns the canonical trigger values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		IndoorPrecipProbability: 50,
		IndoorWindSpeed:         10,
		HotApparentTemp:         30,
		ColdApparentTemp:        8,
		AdventureKeywords:       []string{"冒険", "adventure"},
		RelaxedKeywords:         []string{"まったり", "relax"},
	}
}

// Engine derives tags from weather and preferences.
type Engine struct {
	th Thresholds
}

// NewEngine creates an Engine. Zero-valued keyword lists fall back to the defaults.
func NewEngine(th Thresholds) *Engine {
	def := DefaultThresholds()
	if len(th.AdventureKeywords) == 0 {
		th.AdventureKeywords = def.AdventureKeywords
	}
	if len(th.RelaxedKeywords) == 0 {
		th.RelaxedKeywords = def.RelaxedKeywords
	}
	return &Engine{th: th}
}

// Thresholds returns the engine configuration.
func (e *Engine) Thresholds() Thresholds {
	return e.th
}

// Conditions are the numeric inputs the triggers look at.
type Conditions struct {
	Precipitation            float64
	ApparentTemperature      float64
	WindSpeed10m             float64
	PrecipitationProbability float64
	// HasApparentTemperature is false when the reading is absent, empty or
	// unparsable, so such a snapshot never trips the temperature triggers.
	HasApparentTemperature bool
}

// ConditionsOf extracts trigger inputs from a snapshot. Absent or unparsable
// values read as 0.
func ConditionsOf(w *types.WeatherSnapshot) Conditions {
	if w == nil {
		return Conditions{}
	}
	apparent, hasApparent := NumberOK(w.Current["apparent_temperature"])
	return Conditions{
		Precipitation:            Number(w.Current["precipitation"]),
		ApparentTemperature:      apparent,
		WindSpeed10m:             Number(w.Current["wind_speed_10m"]),
		PrecipitationProbability: Number(w.Hourly["precipitation_probability"]),
		HasApparentTemperature:   hasApparent,
	}
}

// Derive returns the tags triggered by w and prefs.
func (e *Engine) Derive(w *types.WeatherSnapshot, prefs types.UserPrefs) ([]string, error) {
	if w == nil {
		return nil, ErrMalformedWeather
	}
	c := ConditionsOf(w)

	tags := make([]string, 0, 12)
	if c.Precipitation > 0 ||
		c.PrecipitationProbability >= e.th.IndoorPrecipProbability ||
		prefs.WantsIndoor() ||
		c.WindSpeed10m >= e.th.IndoorWindSpeed {
		tags = append(tags, IndoorTags...)
	}
	if c.HasApparentTemperature && c.ApparentTemperature >= e.th.HotApparentTemp {
		tags = append(tags, HeatTags...)
	}
	if c.HasApparentTemperature && c.ApparentTemperature <= e.th.ColdApparentTemp {
		tags = append(tags, ColdTags...)
	}
	if containsAny(prefs.Mood, e.th.AdventureKeywords) {
		tags = append(tags, AdventureTags...)
	}
	if containsAny(prefs.Mood, e.th.RelaxedKeywords) {
		tags = append(tags, RelaxedTags...)
	}
	return dedupe(tags), nil
}

// DeriveFromJSON decodes a raw weather document and derives tags from it.
// A document that is not a JSON object fails with ErrMalformedWeather.
func (e *Engine) DeriveFromJSON(raw []byte, prefs types.UserPrefs) ([]string, error) {
	w, err := SnapshotFromJSON(raw)
	if err != nil {
		return nil, err
	}
	return e.Derive(w, prefs)
}

// SnapshotFromJSON turns a raw weather document into a snapshot. Missing or
// non-object "current"/"hourly" blocks become empty maps.
func SnapshotFromJSON(raw []byte) (*types.WeatherSnapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Join(ErrMalformedWeather, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, ErrMalformedWeather
	}
	w := &types.WeatherSnapshot{
		Current: map[string]any{},
		Hourly:  map[string]any{},
	}
	if c, ok := obj["current"].(map[string]any); ok {
		w.Current = c
	}
	if h, ok := obj["hourly"].(map[string]any); ok {
		w.Hourly = h
	}
	return w, nil
}

// Number coerces a decoded JSON value to float64. Sequences yield their first
// element; nil, NaN and unparsable values yield 0.
func Number(v any) float64 {
	f, _ := NumberOK(v)
	return f
}

// NumberOK is Number that also reports whether v held a usable reading.
func NumberOK(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case []any:
		if len(x) == 0 {
			return 0, false
		}
		return NumberOK(x[0])
	case []float64:
		if len(x) == 0 {
			return 0, false
		}
		f = x[0]
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func containsAny(s string, keywords []string) bool {
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func dedupe(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
