// Package suggest runs the suggestion pipeline: weather, rule tags, nearby
// places, retrieval, enrichment and generation under one request deadline.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ogayu22918/Play-Plan/app/observability/metrics"
	generativeAI "github.com/ogayu22918/Play-Plan/internal/api/generative_ai"
	"github.com/ogayu22918/Play-Plan/internal/api/poi"
	"github.com/ogayu22918/Play-Plan/internal/api/rules"
	"github.com/ogayu22918/Play-Plan/internal/api/weather"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

var (
	ErrInvalidRequest      = errors.New("suggest: invalid request")
	ErrDeadlineExceeded    = errors.New("suggest: deadline exceeded")
	ErrMissingCredentials  = errors.New("suggest: generation credentials missing")
	ErrUpstreamUnavailable = errors.New("suggest: upstream unavailable")
	ErrRuleEngine          = errors.New("suggest: rule engine failure")
)

type Config struct {
	Budget         time.Duration `mapstructure:"budget"`
	CandidateCount int           `mapstructure:"candidateCount"`
	EnrichShare    float64       `mapstructure:"enrichShare"`
}

func DefaultConfig() Config {
	return Config{
		Budget:         6 * time.Second,
		CandidateCount: 8,
		EnrichShare:    0.6,
	}
}

// WithDefaults fills unset or out-of-range fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Budget <= 0 {
		c.Budget = def.Budget
	}
	if c.CandidateCount <= 0 {
		c.CandidateCount = def.CandidateCount
	}
	if c.EnrichShare <= 0 || c.EnrichShare > 1 {
		c.EnrichShare = def.EnrichShare
	}
	return c
}

// EnrichBudget is the share of the full budget granted to POI lookups.
func (c Config) EnrichBudget() time.Duration {
	return time.Duration(float64(c.Budget) * c.EnrichShare)
}

// WeatherSource returns current conditions, degraded rather than failing
// once an attempt was made.
type WeatherSource interface {
	Get(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
}

type TagDeriver interface {
	Derive(w *types.WeatherSnapshot, prefs types.UserPrefs) ([]string, error)
	Thresholds() rules.Thresholds
}

type CandidateRetriever interface {
	TopK(ctx context.Context, queryText string, k int) ([]types.Activity, error)
}

// Generator produces free text. Ensure reports missing credentials before any work.
type Generator interface {
	Ensure(ctx context.Context) error
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Service orchestrates one suggestion request. generator and retriever may be
// nil when generation is disabled; poiService may be nil.
type Service struct {
	cfg       Config
	weather   WeatherSource
	rules     TagDeriver
	poi       poi.Service
	retriever CandidateRetriever
	generator Generator
	metrics   *metrics.AppMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(cfg Config, weatherSource WeatherSource, tagDeriver TagDeriver, poiService poi.Service,
	retriever CandidateRetriever, generator Generator, m *metrics.AppMetrics, logger *slog.Logger) *Service {
	return &Service{
		cfg:       cfg.WithDefaults(),
		weather:   weatherSource,
		rules:     tagDeriver,
		poi:       poiService,
		retriever: retriever,
		generator: generator,
		metrics:   m,
		logger:    logger.With(slog.String("service", "suggest")),
		now:       time.Now,
	}
}

// Config returns the effective configuration after defaults.
func (s *Service) Config() Config {
	return s.cfg
}

// run is the per-request state threaded through the stages.
type run struct {
	start    time.Time
	req      types.SuggestRequest
	prefs    types.UserPrefs
	weather  *types.WeatherSnapshot
	tags     []string
	nearPOIs []string
	cands    []types.Candidate
	degraded bool
}

// Suggest validates req and runs every stage against one deadline. The
// returned error wraps one of the package sentinels; degradation is reported
// in the response, never as an error.
func (s *Service) Suggest(ctx context.Context, req types.SuggestRequest) (*types.SuggestResponse, error) {
	ctx, span := otel.Tracer("SuggestService").Start(ctx, "Suggest")
	defer span.End()

	r := &run{start: s.now(), nearPOIs: []string{}, cands: []types.Candidate{}}
	resp, err := s.suggest(ctx, r, req)
	elapsed := time.Since(r.start).Seconds()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "suggest failed")
		s.metrics.RecordRequest(ctx, outcomeOf(err), elapsed)
		return nil, err
	}
	span.SetAttributes(
		attribute.Bool("fallback", resp.Fallback),
		attribute.Bool("degraded", resp.Degraded),
	)
	span.SetStatus(codes.Ok, "")
	s.metrics.RecordRequest(ctx, "ok", elapsed)
	return resp, nil
}

func (s *Service) suggest(ctx context.Context, r *run, req types.SuggestRequest) (*types.SuggestResponse, error) {
	// Validate
	req.Normalize()
	if err := validateStruct(&req); err != nil {
		return nil, err
	}
	r.req = req
	r.prefs = req.Prefs()
	s.logger.DebugContext(ctx, "Validated request", slog.Any("fields", presentFields(req)))

	if s.generator != nil {
		if err := s.generator.Ensure(ctx); err != nil {
			return nil, classifyCredentialError(err)
		}
	}

	ctx, cancel := context.WithDeadline(ctx, r.start.Add(s.cfg.Budget))
	defer cancel()

	if err := s.stageWeather(ctx, r); err != nil {
		return nil, err
	}
	if err := s.stageRules(ctx, r); err != nil {
		return nil, err
	}
	s.stageNearby(ctx, r)
	if err := s.stageRetrieval(ctx, r); err != nil {
		return nil, err
	}
	s.stageEnrichment(ctx, r)
	text, reason := s.stageGeneration(ctx, r)
	return s.respond(ctx, r, text, reason), nil
}

func (s *Service) stageWeather(ctx context.Context, r *run) error {
	defer s.timeStage(ctx, "weather")()
	w, err := s.weather.Get(ctx, *r.req.Lat, *r.req.Lon)
	switch {
	case errors.Is(err, weather.ErrDeadlineExceeded):
		return fmt.Errorf("%w: weather stage: %w", ErrDeadlineExceeded, err)
	case err != nil || w == nil:
		s.logger.WarnContext(ctx, "Weather unavailable", slog.Any("error", err))
		w = types.EmptyWeather(s.now())
	}
	r.weather = w
	if w.Degraded {
		r.degraded = true
	}
	return nil
}

func (s *Service) stageRules(ctx context.Context, r *run) (err error) {
	defer s.timeStage(ctx, "rules")()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRuleEngine, p)
		}
	}()
	tags, err := s.rules.Derive(r.weather, r.prefs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Rule engine failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrRuleEngine, err)
	}
	r.tags = tags
	return nil
}

func (s *Service) stageNearby(ctx context.Context, r *run) {
	if r.req.RadiusKm == nil || s.poi == nil || !s.poi.Enabled() {
		return
	}
	defer s.timeStage(ctx, "poi_nearby")()
	out := s.poi.FetchNearby(ctx, *r.req.Lat, *r.req.Lon, *r.req.RadiusKm*1000, r.tags, remaining(ctx))
	if out.Failed() {
		s.logger.InfoContext(ctx, "Nearby places unavailable", slog.String("reason", string(out.Reason)), slog.Any("error", out.Err))
		return
	}
	r.nearPOIs = out.Value
}

func (s *Service) stageRetrieval(ctx context.Context, r *run) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: before retrieval", ErrDeadlineExceeded)
	}
	if s.retriever == nil || s.generator == nil {
		return nil
	}
	defer s.timeStage(ctx, "retrieval")()
	activities, err := s.retriever.TopK(ctx, RetrievalQuery(r.prefs, r.tags), s.cfg.CandidateCount)
	if err != nil {
		s.logger.WarnContext(ctx, "Retrieval failed, continuing without candidates", slog.Any("error", err))
		r.degraded = true
		return nil
	}
	cands := make([]types.Candidate, len(activities))
	for i, a := range activities {
		cands[i] = types.NewCandidate(a)
		cands[i].ID = poi.CandidateID(a.Name)
	}
	r.cands = cands
	return nil
}

func (s *Service) stageEnrichment(ctx context.Context, r *run) {
	if ctx.Err() != nil || len(r.cands) == 0 || r.req.RadiusKm == nil || s.poi == nil || !s.poi.Enabled() {
		return
	}
	defer s.timeStage(ctx, "enrichment")()
	budget := time.Duration(float64(remaining(ctx)) * s.cfg.EnrichShare)
	out := s.poi.EnrichCandidates(ctx, r.cands, *r.req.Lat, *r.req.Lon, *r.req.RadiusKm*1000, budget)
	if out.Failed() {
		s.logger.InfoContext(ctx, "Enrichment failed", slog.String("reason", string(out.Reason)), slog.Any("error", out.Err))
		r.degraded = true
	}
	if len(out.Value) == len(r.cands) {
		r.cands = out.Value
	}
}

// stageGeneration returns the generated text, or "" and the reason the
// fallback must be used.
func (s *Service) stageGeneration(ctx context.Context, r *run) (string, types.FailureReason) {
	if ctx.Err() != nil {
		return "", types.FailureTimeout
	}
	if s.generator == nil {
		return "", types.FailureDisabled
	}
	defer s.timeStage(ctx, "generation")()

	prompt := BuildPrompt(r.prefs, r.weather.Digest(), r.cands, AllowedPlaceNames(r.cands, r.nearPOIs))

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := s.generator.GenerateText(ctx, prompt)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Generation timed out")
		return "", types.FailureTimeout
	case res := <-done:
		switch {
		case res.err != nil && errors.Is(res.err, context.DeadlineExceeded):
			return "", types.FailureTimeout
		case errors.Is(res.err, generativeAI.ErrEmptyResponse):
			return "", types.FailureEmptyResult
		case res.err != nil:
			s.logger.WarnContext(ctx, "Generation failed", slog.Any("error", res.err))
			return "", types.FailureUpstream
		case strings.TrimSpace(res.text) == "":
			return "", types.FailureEmptyResult
		}
		return strings.TrimSpace(res.text), types.FailureNone
	}
}

func (s *Service) respond(ctx context.Context, r *run, text string, reason types.FailureReason) *types.SuggestResponse {
	resp := &types.SuggestResponse{
		Suggestions: text,
		Weather:     r.weather.Digest(),
		Tags:        r.tags,
		Candidates:  r.cands,
		NearPOIs:    r.nearPOIs,
		Degraded:    r.degraded,
	}
	if reason != types.FailureNone {
		resp.Suggestions = BuildFallback(FallbackInput{
			Weather:    r.weather,
			Prefs:      r.prefs,
			Tags:       r.tags,
			Candidates: r.cands,
			NearPOIs:   r.nearPOIs,
			Now:        s.now(),
			Thresholds: s.rules.Thresholds(),
		})
		resp.Fallback = true
		resp.Degraded = true
		resp.FallbackReason = reason
		s.metrics.RecordFallback(ctx, string(reason))
	}
	if resp.Degraded {
		s.metrics.RecordDegraded(ctx)
	}
	resp.ElapsedSec = math.Round(time.Since(r.start).Seconds()*1000) / 1000

	hasPOI := false
	for _, c := range resp.Candidates {
		if len(c.Places) > 0 {
			hasPOI = true
			break
		}
	}
	radius := 0
	if r.req.RadiusKm != nil {
		radius = *r.req.RadiusKm
	}
	s.logger.InfoContext(ctx, "suggest_metric",
		slog.Float64("latency_sec", resp.ElapsedSec),
		slog.Bool("degraded", resp.Degraded),
		slog.Bool("fallback", resp.Fallback),
		slog.String("fallback_reason", string(resp.FallbackReason)),
		slog.Any("tags", resp.Tags),
		slog.Int("radius_km", radius),
		slog.Bool("has_poi", hasPOI),
		slog.Any("weather", weatherDigestForLog(r.weather)),
	)
	return resp
}

func (s *Service) timeStage(ctx context.Context, stage string) func() {
	started := time.Now()
	return func() {
		s.metrics.RecordStage(ctx, stage, time.Since(started).Seconds())
	}
}

func remaining(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return max(time.Until(deadline), 0)
}

func classifyCredentialError(err error) error {
	switch {
	case errors.Is(err, generativeAI.ErrMissingAPIKey):
		return fmt.Errorf("%w: %w", ErrMissingCredentials, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrDeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMissingCredentials):
		return "missing_credentials"
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrRuleEngine):
		return "rule_engine"
	default:
		return "error"
	}
}

// presentFields lists which optional fields were sent, never their values.
func presentFields(req types.SuggestRequest) []string {
	fields := []string{"lat", "lon"}
	if req.Mood != nil {
		fields = append(fields, "mood")
	}
	if req.RadiusKm != nil {
		fields = append(fields, "radius_km")
	}
	if req.Indoor != nil {
		fields = append(fields, "indoor")
	}
	if req.Budget != nil {
		fields = append(fields, "budget")
	}
	return fields
}

func weatherDigestForLog(w *types.WeatherSnapshot) map[string]any {
	d := map[string]any{}
	if w == nil {
		return d
	}
	for _, k := range []string{"temperature_2m", "apparent_temperature", "precipitation", "weather_code", "wind_speed_10m"} {
		if v, ok := w.Current[k]; ok {
			d[k] = v
		}
	}
	d["degraded"] = w.Degraded
	return d
}
