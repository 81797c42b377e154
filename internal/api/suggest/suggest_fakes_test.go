package suggest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ogayu22918/Play-Plan/internal/api/rules"
	"github.com/ogayu22918/Play-Plan/internal/api/weather"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

type fakeWeather struct {
	snap  *types.WeatherSnapshot
	calls atomic.Int32
}

func (f *fakeWeather) Get(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	if ctx.Err() != nil {
		return nil, weather.ErrDeadlineExceeded
	}
	f.calls.Add(1)
	if f.snap == nil {
		return types.EmptyWeather(time.Now()), nil
	}
	return f.snap, nil
}

func mildWeather() *types.WeatherSnapshot {
	return &types.WeatherSnapshot{
		Current: map[string]any{
			"time": "2025-06-01T14:00", "precipitation": 0.0, "apparent_temperature": 20.0,
			"temperature_2m": 21.0, "wind_speed_10m": 2.0, "weather_code": 1.0,
		},
		Hourly: map[string]any{"precipitation_probability": []any{10.0}},
	}
}

type brokenRules struct{ err error }

func (b brokenRules) Derive(*types.WeatherSnapshot, types.UserPrefs) ([]string, error) {
	return nil, b.err
}

func (b brokenRules) Thresholds() rules.Thresholds { return rules.DefaultThresholds() }

type fakeRetriever struct {
	activities []types.Activity
	err        error
	mu         sync.Mutex
	queries    []string
}

func (f *fakeRetriever) TopK(ctx context.Context, query string, k int) ([]types.Activity, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return []types.Activity{}, f.err
	}
	if k < len(f.activities) {
		return f.activities[:k], nil
	}
	return f.activities, nil
}

func (f *fakeRetriever) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeGenerator struct {
	ensureErr error
	generate  func(ctx context.Context, prompt string) (string, error)
	mu        sync.Mutex
	prompts   []string
}

func (f *fakeGenerator) Ensure(context.Context) error { return f.ensureErr }

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.generate == nil {
		return "1. 雨の日の美術館プラン\n2. カフェでまったりプラン\n3. ボードゲームプラン", nil
	}
	return f.generate(ctx, prompt)
}

func (f *fakeGenerator) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

type fakePOI struct {
	enabled   bool
	nearby    types.Outcome[[]string]
	enrich    func(cands []types.Candidate) types.Outcome[[]types.Candidate]
	nearCalls atomic.Int32
}

func (f *fakePOI) Enabled() bool { return f.enabled }

func (f *fakePOI) FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int, tags []string, budget time.Duration) types.Outcome[[]string] {
	f.nearCalls.Add(1)
	return f.nearby
}

func (f *fakePOI) EnrichCandidates(ctx context.Context, cands []types.Candidate, lat, lon float64, radiusMeters int, budget time.Duration) types.Outcome[[]types.Candidate] {
	if f.enrich == nil {
		return types.Succeeded(cands)
	}
	return f.enrich(cands)
}

func catalog() []types.Activity {
	return []types.Activity{
		{Name: "美術館めぐり", Tags: []string{"museum", "indoor"}},
		{Name: "カフェで読書", Tags: []string{"cafe", "bookstore"}},
		{Name: "ボルダリング", Tags: []string{"bouldering", "active"}},
	}
}
