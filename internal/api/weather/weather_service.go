package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ogayu22918/Play-Plan/internal/cache"
	"github.com/ogayu22918/Play-Plan/internal/resilience"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

// ErrDeadlineExceeded means the caller's deadline passed before any fetch attempt.
var ErrDeadlineExceeded = errors.New("weather: deadline exceeded before fetch")

type Config struct {
	BaseURL        string        `mapstructure:"baseURL"`
	AttemptTimeout time.Duration `mapstructure:"attemptTimeout"`
	CacheTTL       time.Duration `mapstructure:"cacheTTL"`
	Attempts       int           `mapstructure:"attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		AttemptTimeout: 4 * time.Second,
		CacheTTL:       10 * time.Minute,
		Attempts:       3,
		Backoff:        300 * time.Millisecond,
	}
}

// Service serves snapshots from a TTL cache keyed by the coordinate rounded
// to 2 decimals, falling back to the client on a miss.
type Service struct {
	client Client
	cache  *cache.TTL[*types.WeatherSnapshot]
	group  singleflight.Group
	cfg    Config
	logger *slog.Logger
}

func NewService(client Client, cfg Config, clock cache.Clock, logger *slog.Logger) *Service {
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
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	return &Service{
		client: client,
		cache:  cache.New[*types.WeatherSnapshot](cfg.CacheTTL, clock),
		cfg:    cfg,
		logger: logger.With(slog.String("service", "weather")),
	}
}

// CacheKey rounds the coordinate to 2 decimals.
func CacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.2f,%.2f", round(lat, 2), round(lon, 2))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Get returns the cached snapshot or fetches a fresh one. When every attempt
// fails the result is a degraded empty snapshot, which is cached too.
// ErrDeadlineExceeded is returned only when ctx is already done on a miss.
//
// Concurrent misses for one key share a fetch that runs on its own deadline,
// so one caller giving up does not cut the fetch short for the others. A
// caller whose ctx ends first gets an uncached degraded snapshot.
func (s *Service) Get(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	key := CacheKey(lat, lon)
	if snap, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "Weather cache hit", slog.String("key", key))
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, ErrDeadlineExceeded
	}

	ch := s.group.DoChan(key, func() (any, error) {
		if snap, ok := s.cache.Get(key); ok {
			return snap, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout())
		defer cancel()
		snap, exhausted := s.fetch(fetchCtx, lat, lon, key)
		if !snap.Degraded || exhausted {
			s.cache.Set(key, snap)
		}
		return snap, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*types.WeatherSnapshot), nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Weather fetch outlived request deadline, continuing degraded", slog.String("key", key))
		return types.EmptyWeather(s.cache.Clock().Now()), nil
	}
}

// fetchTimeout covers every attempt plus the linear backoff between them.
func (s *Service) fetchTimeout() time.Duration {
	backoff := s.cfg.Backoff * time.Duration(s.cfg.Attempts*(s.cfg.Attempts-1)/2)
	return s.cfg.AttemptTimeout*time.Duration(s.cfg.Attempts) + backoff
}

// fetch reports exhausted when every attempt ran and failed, as opposed to
// running out of time.
func (s *Service) fetch(ctx context.Context, lat, lon float64, key string) (*types.WeatherSnapshot, bool) {
	var snap *types.WeatherSnapshot
	attempts := 0
	err := resilience.RetryLinear(ctx, s.cfg.Attempts, s.cfg.Backoff, func(ctx context.Context, attempt int) error {
		attempts = attempt
		var err error
		snap, err = s.client.Forecast(ctx, lat, lon)
		if err != nil {
			s.logger.WarnContext(ctx, "Weather fetch attempt failed",
				slog.String("key", key), slog.Int("attempt", attempt), slog.Any("error", err))
		}
		return err
	})
	if err != nil || snap == nil {
		s.logger.ErrorContext(ctx, "Weather unavailable, continuing degraded", slog.String("key", key), slog.Any("error", err))
		return types.EmptyWeather(s.cache.Clock().Now()), attempts == s.cfg.Attempts && ctx.Err() == nil
	}
	snap.FetchedAt = s.cache.Clock().Now()
	return snap, false
}
