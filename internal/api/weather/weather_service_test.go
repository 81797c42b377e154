package weather

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogayu22918/Play-Plan/internal/cache"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

const forecastBody = `{
  "latitude": 35.68, "longitude": 139.77,
  "current": {"time": "2025-06-01T14:00", "interval": 900, "temperature_2m": 21.3,
    "apparent_temperature": 20.1, "precipitation": 0, "weather_code": 1, "wind_speed_10m": 3.2},
  "hourly": {"time": ["2025-06-01T00:00"], "precipitation_probability": [10]}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type upstream struct {
	hits   atomic.Int32
	status atomic.Int32
	query  atomic.Value
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{}
	u.status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.query.Store(r.URL.RawQuery)
		if code := int(u.status.Load()); code != http.StatusOK {
			http.Error(w, "unavailable", code)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, forecastBody)
	}))
	t.Cleanup(srv.Close)
	return u, srv
}

func newTestService(srv *httptest.Server, clock cache.Clock) *Service {
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Backoff = time.Millisecond
	client := NewOpenMeteoClient(cfg.BaseURL, time.Second, testLogger())
	return NewService(client, cfg, clock, testLogger())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "35.68,139.77", CacheKey(35.6812, 139.7671))
	assert.Equal(t, CacheKey(35.681, 139.771), CacheKey(35.684, 139.769))
	assert.NotEqual(t, CacheKey(35.68, 139.77), CacheKey(35.69, 139.77))
	assert.Equal(t, "-33.87,151.21", CacheKey(-33.8688, 151.2093))
}

func TestOpenMeteoClient_Forecast(t *testing.T) {
	u, srv := newUpstream(t)
	client := NewOpenMeteoClient(srv.URL, time.Second, testLogger())

	snap, err := client.Forecast(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.InDelta(t, 20.1, snap.Current["apparent_temperature"], 1e-9)
	assert.Equal(t, "2025-06-01T14:00", snap.Current["time"])
	assert.NotNil(t, snap.Hourly["precipitation_probability"])
	assert.False(t, snap.Degraded)

	q := u.query.Load().(string)
	assert.Contains(t, q, "latitude=35.68")
	assert.Contains(t, q, "longitude=139.77")
	assert.Contains(t, q, "hourly=precipitation_probability")
	assert.Contains(t, q, "wind_speed_unit=ms")
	assert.Contains(t, q, "timezone=auto")
}

func TestOpenMeteoClient_StatusError(t *testing.T) {
	u, srv := newUpstream(t)
	u.status.Store(http.StatusServiceUnavailable)
	client := NewOpenMeteoClient(srv.URL, time.Second, testLogger())

	_, err := client.Forecast(context.Background(), 1, 2)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
}

func TestService_CachesWithinTTL(t *testing.T) {
	u, srv := newUpstream(t)
	clock := cache.NewManualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestService(srv, clock)
	ctx := context.Background()

	_, err := svc.Get(ctx, 35.681, 139.771)
	require.NoError(t, err)
	clock.Advance(599 * time.Second)
	_, err = svc.Get(ctx, 35.684, 139.769)
	require.NoError(t, err)
	assert.EqualValues(t, 1, u.hits.Load(), "same 2-decimal key within 600s must not refetch")

	clock.Advance(time.Second)
	_, err = svc.Get(ctx, 35.68, 139.77)
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.hits.Load(), "entry older than 600s must be refetched")
}

func TestService_DegradesAfterRetriesAndCachesPlaceholder(t *testing.T) {
	u, srv := newUpstream(t)
	u.status.Store(http.StatusBadGateway)
	svc := newTestService(srv, cache.NewManualClock(time.Now()))

	snap, err := svc.Get(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.True(t, snap.Degraded)
	assert.Empty(t, snap.Current)
	assert.EqualValues(t, 3, u.hits.Load())

	again, err := svc.Get(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Same(t, snap, again)
	assert.EqualValues(t, 3, u.hits.Load())
}

func TestService_RecoversAfterTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, forecastBody)
	}))
	defer srv.Close()
	svc := newTestService(srv, cache.SystemClock{})

	snap, err := svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.False(t, snap.Degraded)
	assert.EqualValues(t, 2, hits.Load())
}

func TestService_DeadlinePassedBeforeFirstAttempt(t *testing.T) {
	u, srv := newUpstream(t)
	svc := newTestService(srv, cache.SystemClock{})

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	snap, err := svc.Get(ctx, 35.68, 139.77)
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.Nil(t, snap)
	assert.EqualValues(t, 0, u.hits.Load())
}

func TestService_CacheHitIgnoresDeadline(t *testing.T) {
	u, srv := newUpstream(t)
	svc := newTestService(srv, cache.SystemClock{})
	_, err := svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := svc.Get(ctx, 35.68, 139.77)
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.EqualValues(t, 1, u.hits.Load())
}

func TestService_SharedFetchOutlivesImpatientCaller(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(300 * time.Millisecond)
		_, _ = io.WriteString(w, forecastBody)
	}))
	defer srv.Close()
	svc := newTestService(srv, cache.SystemClock{})

	short, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	leaderDone := make(chan *types.WeatherSnapshot, 1)
	go func() {
		snap, err := svc.Get(short, 35.68, 139.77)
		assert.NoError(t, err)
		leaderDone <- snap
	}()
	for hits.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}

	follower, err := svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.False(t, follower.Degraded)

	leader := <-leaderDone
	assert.True(t, leader.Degraded)

	next, err := svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.False(t, next.Degraded)
	assert.EqualValues(t, 1, hits.Load())
}

func TestService_TimedOutFetchIsNotCached(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if slow.Load() {
			time.Sleep(200 * time.Millisecond)
		}
		_, _ = io.WriteString(w, forecastBody)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Attempts = 1
	cfg.AttemptTimeout = 50 * time.Millisecond
	svc := NewService(NewOpenMeteoClient(srv.URL, time.Second, testLogger()), cfg, cache.SystemClock{}, testLogger())

	snap, err := svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.True(t, snap.Degraded)

	slow.Store(false)
	snap, err = svc.Get(context.Background(), 35.68, 139.77)
	require.NoError(t, err)
	assert.False(t, snap.Degraded)
	assert.EqualValues(t, 2, hits.Load())
}

func TestService_ConcurrentRequestsShareFetch(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = io.WriteString(w, forecastBody)
	}))
	defer srv.Close()
	svc := newTestService(srv, cache.SystemClock{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := svc.Get(context.Background(), 35.68, 139.77)
			assert.NoError(t, err)
			assert.False(t, snap.Degraded)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.LessOrEqual(t, hits.Load(), int32(10))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}
