package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogayu22918/Play-Plan/internal/types"
)

func weather(current map[string]any, hourly map[string]any) *types.WeatherSnapshot {
	if current == nil {
		current = map[string]any{}
	}
	if hourly == nil {
		hourly = map[string]any{}
	}
	return &types.WeatherSnapshot{Current: current, Hourly: hourly}
}

func prefs(mood string, indoor bool) types.UserPrefs {
	return types.UserPrefs{Mood: mood, Indoor: &indoor}
}

func setOf(groups ...[]string) map[string]bool {
	s := map[string]bool{}
	for _, g := range groups {
		for _, t := range g {
			s[t] = true
		}
	}
	return s
}

func asSet(tags []string) map[string]bool {
	return setOf(tags)
}

func TestEngine_Derive(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	tests := []struct {
		name    string
		weather *types.WeatherSnapshot
		prefs   types.UserPrefs
		want    map[string]bool
	}{
		{
			name:    "no trigger yields empty set",
			weather: weather(map[string]any{"precipitation": 0.0, "apparent_temperature": 20.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "rain adds indoor group",
			weather: weather(map[string]any{"precipitation": 1.0, "apparent_temperature": 20.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(IndoorTags),
		},
		{
			name:    "user asks for indoor",
			weather: weather(map[string]any{"precipitation": 0.0, "apparent_temperature": 25.0}, nil),
			prefs:   prefs("", true),
			want:    setOf(IndoorTags),
		},
		{
			name:    "precipitation probability at threshold",
			weather: weather(map[string]any{"apparent_temperature": 18.0}, map[string]any{"precipitation_probability": []any{50.0, 10.0}}),
			prefs:   prefs("", false),
			want:    setOf(IndoorTags),
		},
		{
			name:    "precipitation probability below threshold",
			weather: weather(map[string]any{"apparent_temperature": 18.0}, map[string]any{"precipitation_probability": []any{49.0}}),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "strong wind",
			weather: weather(map[string]any{"apparent_temperature": 15.0, "wind_speed_10m": 10.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(IndoorTags),
		},
		{
			name:    "heat boundary is inclusive",
			weather: weather(map[string]any{"apparent_temperature": 30.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(HeatTags),
		},
		{
			name:    "just below heat boundary",
			weather: weather(map[string]any{"apparent_temperature": 29.9999}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "cold boundary is inclusive",
			weather: weather(map[string]any{"apparent_temperature": 8.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(ColdTags),
		},
		{
			name:    "just above cold boundary",
			weather: weather(map[string]any{"apparent_temperature": 8.0001}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "adventure mood",
			weather: weather(map[string]any{"apparent_temperature": 25.0}, nil),
			prefs:   prefs("今日は冒険したい", false),
			want:    setOf(AdventureTags),
		},
		{
			name:    "relaxed mood in english",
			weather: weather(map[string]any{"apparent_temperature": 25.0}, nil),
			prefs:   prefs("Relaxing afternoon", false),
			want:    setOf(RelaxedTags),
		},
		{
			name:    "both moods fire",
			weather: weather(map[string]any{"apparent_temperature": 22.0}, nil),
			prefs:   prefs("まったり冒険", false),
			want:    setOf(AdventureTags, RelaxedTags),
		},
		{
			name:    "rain and adventure union",
			weather: weather(map[string]any{"precipitation": 2.0, "apparent_temperature": 22.0}, nil),
			prefs:   prefs("冒険", false),
			want:    setOf(IndoorTags, AdventureTags),
		},
		{
			name:    "null precipitation reads as zero",
			weather: weather(map[string]any{"precipitation": nil, "apparent_temperature": 22.0}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "null apparent temperature trips no temperature trigger",
			weather: weather(map[string]any{"apparent_temperature": nil}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "missing current block only mood fires",
			weather: weather(nil, nil),
			prefs:   prefs("まったり", false),
			want:    setOf(RelaxedTags),
		},
		{
			name:    "string values are coerced",
			weather: weather(map[string]any{"precipitation": "0.4", "apparent_temperature": "5"}, nil),
			prefs:   prefs("", false),
			want:    setOf(IndoorTags, ColdTags),
		},
		{
			name:    "unparsable apparent temperature trips no temperature trigger",
			weather: weather(map[string]any{"precipitation": "0.4", "apparent_temperature": "bogus"}, nil),
			prefs:   prefs("", false),
			want:    setOf(IndoorTags),
		},
		{
			name:    "empty apparent temperature sequence trips no temperature trigger",
			weather: weather(map[string]any{"apparent_temperature": []any{}}, nil),
			prefs:   prefs("", false),
			want:    setOf(),
		},
		{
			name:    "apparent temperature sequence uses first element",
			weather: weather(map[string]any{"apparent_temperature": []any{31.0, 2.0}}, nil),
			prefs:   prefs("", false),
			want:    setOf(HeatTags),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Derive(tt.weather, tt.prefs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, asSet(got))
			assert.Len(t, got, len(asSet(got)), "tags must be unique")
		})
	}
}

func TestEngine_Derive_PreservesFirstOccurrenceOrder(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	w := weather(map[string]any{"precipitation": 3.0, "apparent_temperature": 2.0}, nil)

	got, err := engine.Derive(w, prefs("まったり", false))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"indoor", "museum", "cinema", "boardgame", "spa", "arcade",
		"sauna", "cafe",
		"bookstore",
	}, got)
}

func TestEngine_Derive_NoIndoorWhenCalm(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	for _, precipProb := range []float64{0, 10, 49.9} {
		for _, wind := range []float64{0, 5, 9.99} {
			for _, temp := range []float64{-5, 10, 20, 35} {
				w := weather(
					map[string]any{"precipitation": 0.0, "apparent_temperature": temp, "wind_speed_10m": wind},
					map[string]any{"precipitation_probability": precipProb},
				)
				got, err := engine.Derive(w, prefs("", false))
				require.NoError(t, err)
				assert.NotContains(t, got, "indoor")
				assert.NotContains(t, got, "museum")
				assert.NotContains(t, got, "cinema")
			}
		}
	}
}

func TestEngine_Derive_IsUnionOfTriggers(t *testing.T) {
	engine := NewEngine(DefaultThresholds())
	w := weather(map[string]any{"precipitation": 1.0, "apparent_temperature": 31.0}, nil)

	all, err := engine.Derive(w, prefs("冒険 まったり", false))
	require.NoError(t, err)

	rainOnly, _ := engine.Derive(weather(map[string]any{"precipitation": 1.0, "apparent_temperature": 20.0}, nil), prefs("", false))
	heatOnly, _ := engine.Derive(weather(map[string]any{"apparent_temperature": 31.0}, nil), prefs("", false))
	moodOnly, _ := engine.Derive(weather(map[string]any{"apparent_temperature": 20.0}, nil), prefs("冒険 まったり", false))

	assert.Equal(t, setOf(moodOnly, heatOnly, rainOnly), asSet(all))
}

func TestEngine_Derive_Malformed(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	_, err := engine.Derive(nil, prefs("", false))
	assert.ErrorIs(t, err, ErrMalformedWeather)

	for _, raw := range []string{`"invalid"`, `[1,2,3]`, `42`, `not json`} {
		_, err := engine.DeriveFromJSON([]byte(raw), prefs("", false))
		assert.ErrorIs(t, err, ErrMalformedWeather, raw)
	}
}

func TestEngine_DeriveFromJSON(t *testing.T) {
	engine := NewEngine(DefaultThresholds())

	got, err := engine.DeriveFromJSON([]byte(`{"current":{"precipitation":0,"apparent_temperature":20},"hourly":{"precipitation_probability":[80,70]}}`), prefs("", false))
	require.NoError(t, err)
	assert.Equal(t, IndoorTags, got)

	got, err = engine.DeriveFromJSON([]byte(`{}`), prefs("", false))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestEngine_CustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.IndoorPrecipProbability = 60
	th.ColdApparentTemp = 5
	engine := NewEngine(th)

	got, err := engine.Derive(weather(map[string]any{"apparent_temperature": 6.0}, map[string]any{"precipitation_probability": 55.0}), prefs("", false))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNumber(t *testing.T) {
	assert.Equal(t, 0.0, Number(nil))
	assert.Equal(t, 1.5, Number(1.5))
	assert.Equal(t, 3.0, Number(3))
	assert.Equal(t, 2.5, Number(" 2.5 "))
	assert.Equal(t, 0.0, Number("x"))
	assert.Equal(t, 7.0, Number([]any{7.0, 1.0}))
	assert.Equal(t, 0.0, Number([]any{}))
	assert.Equal(t, 0.0, Number(map[string]any{}))
	assert.Equal(t, 0.0, Number(true))
}

func TestNumberOK(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{in: nil},
		{in: "bogus"},
		{in: []any{}},
		{in: []float64{}},
		{in: []any{"x"}},
		{in: map[string]any{}},
		{in: 0.0, want: 0, wantOK: true},
		{in: "-3.5", want: -3.5, wantOK: true},
		{in: []any{12.0}, want: 12, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := NumberOK(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%#v", tt.in)
		assert.Equal(t, tt.want, got, "%#v", tt.in)
	}

	c := ConditionsOf(weather(map[string]any{"apparent_temperature": "n/a"}, nil))
	assert.False(t, c.HasApparentTemperature)
	c = ConditionsOf(weather(map[string]any{"apparent_temperature": 0.0}, nil))
	assert.True(t, c.HasApparentTemperature)
}
