// Package weather fetches current conditions from Open-Meteo and caches them
// per rounded coordinate.
package weather

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogayu22918/Play-Plan/internal/resilience"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

const (
	DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

	currentFields = "temperature_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m"
	hourlyFields  = "precipitation_probability"
)

// Client calls the Open-Meteo forecast endpoint.
type Client interface {
	Forecast(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error)
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("open-meteo returned status %d: %s", e.StatusCode, e.Body)
}

type forecastResponse struct {
	Current map[string]any `json:"current"`
	Hourly  map[string]any `json:"hourly"`
}

type OpenMeteoClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*types.WeatherSnapshot]
	logger     *slog.Logger
}

// NewOpenMeteoClient builds a client. An empty baseURL selects DefaultBaseURL.
// attemptTimeout bounds a single HTTP round trip.
func NewOpenMeteoClient(baseURL string, attemptTimeout time.Duration, logger *slog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 4 * time.Second
	}
	return &OpenMeteoClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: attemptTimeout},
		breaker:    resilience.NewBreaker[*types.WeatherSnapshot]("open-meteo", resilience.DefaultBreakerSettings, logger),
		logger:     logger,
	}
}

func (c *OpenMeteoClient) Forecast(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	ctx, span := otel.Tracer("WeatherClient").Start(ctx, "Forecast", trace.WithAttributes(
		attribute.Float64("lat", lat),
		attribute.Float64("lon", lon),
	))
	defer span.End()

	snap, err := c.breaker.Execute(func() (*types.WeatherSnapshot, error) {
		return c.fetch(ctx, lat, lon)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "forecast failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return snap, nil
}

func (c *OpenMeteoClient) fetch(ctx context.Context, lat, lon float64) (*types.WeatherSnapshot, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", currentFields)
	q.Set("hourly", hourlyFields)
	q.Set("wind_speed_unit", "ms")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build forecast request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("forecast request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	if payload.Current == nil {
		payload.Current = map[string]any{}
	}
	if payload.Hourly == nil {
		payload.Hourly = map[string]any{}
	}
	return &types.WeatherSnapshot{
		Current:   payload.Current,
		Hourly:    payload.Hourly,
		FetchedAt: time.Now(),
	}, nil
}
