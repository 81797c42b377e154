package poi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ogayu22918/Play-Plan/internal/resilience"
)

const DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

// Element is a node or way returned by Overpass. Ways carry their centre.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"center,omitempty"`
	Tags map[string]string `json:"tags"`
}

// Position returns the element's coordinate, using the centre for ways.
func (e Element) Position() (lat, lon float64, ok bool) {
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	if e.Type == "node" {
		return e.Lat, e.Lon, true
	}
	return 0, 0, false
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

// Client runs spatial queries against a geodata service.
type Client interface {
	Around(ctx context.Context, lat, lon float64, radiusMeters int, categories []Category) ([]Element, error)
}

// StatusError is returned for non-2xx Overpass responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("overpass returned status %d: %s", e.StatusCode, e.Body)
}

type OverpassClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]Element]
	logger     *slog.Logger
}

// NewOverpassClient builds a client limited to rps requests per second.
func NewOverpassClient(baseURL string, rps float64, burst int, logger *slog.Logger) *OverpassClient {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 2
	}
	return &OverpassClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker:    resilience.NewBreaker[[]Element]("overpass", resilience.DefaultBreakerSettings, logger),
		logger:     logger,
	}
}

// BuildQuery composes one batched Overpass QL query covering every category.
func BuildQuery(lat, lon float64, radiusMeters int, categories []Category) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:10];(")
	for _, c := range categories {
		for _, kind := range []string{"node", "way"} {
			fmt.Fprintf(&b, `%s["%s"="%s"](around:%d,%.6f,%.6f);`, kind, c.Filter.Key, c.Filter.Value, radiusMeters, lat, lon)
		}
	}
	b.WriteString(");out center;")
	return b.String()
}

func (c *OverpassClient) Around(ctx context.Context, lat, lon float64, radiusMeters int, categories []Category) ([]Element, error) {
	ctx, span := otel.Tracer("OverpassClient").Start(ctx, "Around", trace.WithAttributes(
		attribute.Int("radius_m", radiusMeters),
		attribute.Int("categories", len(categories)),
	))
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("overpass rate limit: %w", err)
	}

	elements, err := c.breaker.Execute(func() ([]Element, error) {
		return c.post(ctx, BuildQuery(lat, lon, radiusMeters, categories))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overpass query failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("elements", len(elements)))
	return elements, nil
}

func (c *OverpassClient) post(ctx context.Context, query string) ([]Element, error) {
	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var payload overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	return payload.Elements, nil
}
