package poi

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogayu22918/Play-Plan/internal/cache"
	"github.com/ogayu22918/Play-Plan/internal/resilience"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

// candidateNamespace seeds the name-derived candidate IDs.
var candidateNamespace = uuid.MustParse("6f1c9a52-3d0e-4b8e-9a57-8f2d1c7e4b10")

type Config struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"baseURL"`
	Lang              string        `mapstructure:"lang"`
	CacheTTL          time.Duration `mapstructure:"cacheTTL"`
	Attempts          int           `mapstructure:"attempts"`
	Backoff           time.Duration `mapstructure:"backoff"`
	MinBudget         time.Duration `mapstructure:"minBudget"`
	RequestsPerSecond float64       `mapstructure:"requestsPerSecond"`
	Burst             int           `mapstructure:"burst"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:           true,
		BaseURL:           DefaultOverpassURL,
		Lang:              "ja",
		CacheTTL:          10 * time.Minute,
		Attempts:          3,
		Backoff:           250 * time.Millisecond,
		MinBudget:         300 * time.Millisecond,
		RequestsPerSecond: 1,
		Burst:             2,
	}
}

// Service looks up named places around a coordinate and attaches them to candidates.
type Service interface {
	Enabled() bool
	FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int, tags []string, budget time.Duration) types.Outcome[[]string]
	EnrichCandidates(ctx context.Context, candidates []types.Candidate, lat, lon float64, radiusMeters int, budget time.Duration) types.Outcome[[]types.Candidate]
}

var _ Service = (*ServiceImpl)(nil)

type ServiceImpl struct {
	client Client
	cache  *cache.TTL[[]types.POI]
	cfg    Config
	logger *slog.Logger
}

func NewServiceImpl(client Client, cfg Config, clock cache.Clock, logger *slog.Logger) *ServiceImpl {
	def := DefaultConfig()
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = def.Attempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.MinBudget <= 0 {
		cfg.MinBudget = def.MinBudget
	}
	return &ServiceImpl{
		client: client,
		cache:  cache.New[[]types.POI](cfg.CacheTTL, clock),
		cfg:    cfg,
		logger: logger.With(slog.String("service", "poi")),
	}
}

func (s *ServiceImpl) Enabled() bool { return s.cfg.Enabled }

// FetchNearby returns up to eight place names ordered by distance.
func (s *ServiceImpl) FetchNearby(ctx context.Context, lat, lon float64, radiusMeters int, tags []string, budget time.Duration) types.Outcome[[]string] {
	out := s.Nearby(ctx, lat, lon, radiusMeters, tags, budget)
	names := make([]string, 0, len(out.Value))
	for _, p := range out.Value {
		names = append(names, p.Name)
	}
	return types.Outcome[[]string]{Value: names, Reason: out.Reason, Err: out.Err}
}

// Nearby returns up to eight places for the categories mapped from tags,
// ordered by distance.
func (s *ServiceImpl) Nearby(ctx context.Context, lat, lon float64, radiusMeters int, tags []string, budget time.Duration) types.Outcome[[]types.POI] {
	ctx, span := otel.Tracer("POIService").Start(ctx, "Nearby", trace.WithAttributes(
		attribute.Int("radius_m", radiusMeters),
	))
	defer span.End()

	out := s.search(ctx, lat, lon, ClampRadius(radiusMeters, MaxNearbyRadiusMeters), SelectCategories(tags), budget)
	if len(out.Value) > maxNearbyNames {
		out.Value = out.Value[:maxNearbyNames]
	}
	span.SetAttributes(attribute.Int("results", len(out.Value)))
	return out
}

// EnrichCandidates attaches up to three places to each candidate, chosen by
// the candidate's own tags in order. Candidates are copied, never mutated.
func (s *ServiceImpl) EnrichCandidates(ctx context.Context, candidates []types.Candidate, lat, lon float64, radiusMeters int, budget time.Duration) types.Outcome[[]types.Candidate] {
	ctx, span := otel.Tracer("POIService").Start(ctx, "EnrichCandidates", trace.WithAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("radius_m", radiusMeters),
	))
	defer span.End()

	enriched := make([]types.Candidate, len(candidates))
	var union []string
	for i, c := range candidates {
		enriched[i] = c
		enriched[i].Places = []types.POI{}
		if enriched[i].ID == "" {
			enriched[i].ID = CandidateID(c.Name)
		}
		union = append(union, c.Tags...)
	}

	out := s.search(ctx, lat, lon, ClampRadius(radiusMeters, MaxEnrichRadiusMeters), SelectCategories(union), budget)

	buckets := make(map[string][]types.POI)
	for _, p := range out.Value {
		cat := p.Category()
		buckets[cat] = append(buckets[cat], p)
	}
	for i := range enriched {
		enriched[i].Places = pickPlaces(enriched[i].Tags, buckets)
	}
	return types.Outcome[[]types.Candidate]{Value: enriched, Reason: out.Reason, Err: out.Err}
}

// CandidateID derives a stable identifier from an activity name.
func CandidateID(name string) string {
	return uuid.NewSHA1(candidateNamespace, []byte(name)).String()
}

func pickPlaces(tags []string, buckets map[string][]types.POI) []types.POI {
	places := make([]types.POI, 0, maxPlacesPerCandidate)
	for _, t := range tags {
		for _, p := range buckets[t] {
			if len(places) == maxPlacesPerCandidate {
				return places
			}
			if slices.ContainsFunc(places, func(q types.POI) bool { return q.Name == p.Name }) {
				continue
			}
			places = append(places, p)
		}
	}
	return places
}

// search runs one batched query with caching and retries. Results are
// deduplicated by name and sorted by distance.
func (s *ServiceImpl) search(ctx context.Context, lat, lon float64, radiusMeters int, categories []Category, budget time.Duration) types.Outcome[[]types.POI] {
	if len(categories) == 0 {
		return types.Succeeded([]types.POI{})
	}
	if !s.cfg.Enabled {
		return types.FailedWith([]types.POI{}, types.FailureDisabled, nil)
	}

	key := CacheKey(lat, lon, radiusMeters, categories)
	if pois, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "POI cache hit", slog.String("key", key))
		return types.Succeeded(pois)
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < budget {
		budget = time.Until(deadline)
	}
	if budget < s.cfg.MinBudget {
		s.logger.DebugContext(ctx, "Skipping POI lookup, budget exhausted", slog.Duration("budget", budget))
		return types.FailedWith([]types.POI{}, types.FailureBudgetExhausted, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var elements []Element
	err := resilience.RetryLinear(ctx, s.cfg.Attempts, s.cfg.Backoff, func(ctx context.Context, attempt int) error {
		var err error
		elements, err = s.client.Around(ctx, lat, lon, radiusMeters, categories)
		if err != nil {
			s.logger.WarnContext(ctx, "POI lookup attempt failed", slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		reason := types.FailureUpstream
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = types.FailureTimeout
		}
		return types.FailedWith([]types.POI{}, reason, err)
	}

	pois := s.toPOIs(elements, lat, lon, categories)
	s.cache.Set(key, pois)
	return types.Succeeded(pois)
}

func (s *ServiceImpl) toPOIs(elements []Element, lat, lon float64, categories []Category) []types.POI {
	pois := make([]types.POI, 0, len(elements))
	for _, e := range elements {
		name := displayName(e.Tags, s.cfg.Lang)
		if name == "" {
			continue
		}
		plat, plon, ok := e.Position()
		if !ok {
			continue
		}
		idx := slices.IndexFunc(categories, func(c Category) bool { return c.Filter.Matches(e.Tags) })
		if idx < 0 {
			continue
		}
		cat := categories[idx]
		pois = append(pois, types.POI{
			Name:       name,
			Lat:        plat,
			Lon:        plon,
			DistanceKm: roundTo(HaversineKm(lat, lon, plat, plon), 3),
			Tags: map[string]string{
				"category":     cat.Tag,
				cat.Filter.Key: cat.Filter.Value,
			},
			OSMURL: osmURL(e.Type, e.ID),
		})
	}
	slices.SortStableFunc(pois, func(a, b types.POI) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		default:
			return 0
		}
	})

	seen := make(map[string]struct{}, len(pois))
	deduped := pois[:0]
	for _, p := range pois {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		deduped = append(deduped, p)
	}
	return deduped
}
