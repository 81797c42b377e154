package poi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogayu22918/Play-Plan/internal/api"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

// NearbyFinder is the lookup used by the handler.
type NearbyFinder interface {
	Enabled() bool
	Nearby(ctx context.Context, lat, lon float64, radiusMeters int, tags []string, budget time.Duration) types.Outcome[[]types.POI]
}

var _ NearbyFinder = (*ServiceImpl)(nil)

// NearbyResponse is the payload of GET /api/pois/nearby.
type NearbyResponse struct {
	Places   []types.POI         `json:"places"`
	Degraded bool                `json:"degraded"`
	Reason   types.FailureReason `json:"reason,omitempty"`
}

type HandlerImpl struct {
	service NearbyFinder
	budget  time.Duration
	logger  *slog.Logger
}

func NewHandlerImpl(service NearbyFinder, budget time.Duration, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		service: service,
		budget:  budget,
		logger:  logger,
	}
}

// Budget is the time granted to each nearby lookup.
func (h *HandlerImpl) Budget() time.Duration { return h.budget }

// Nearby godoc
// @Summary      Nearby places
// @Description  Lists up to eight named OpenStreetMap places around a coordinate for the given activity tags.
// @Tags         POI
// @Produce      json
// @Param        lat       query number true  "Latitude"
// @Param        lon       query number true  "Longitude"
// @Param        radius_km query int    false "Search radius in km (1-500, clamped to 5km)"
// @Param        tags      query string false "Comma separated activity tags, e.g. cafe,museum"
// @Success      200 {object} NearbyResponse
// @Failure      400 {object} api.ErrorPayload "Invalid query"
// @Failure      503 {object} api.ErrorPayload "Lookup disabled"
// @Router       /api/pois/nearby [get]
func (h *HandlerImpl) Nearby(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("POIHandler").Start(r.Context(), "Nearby", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/pois/nearby"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Nearby"))

	if !h.service.Enabled() {
		api.ErrorResponse(w, r, http.StatusServiceUnavailable, "poi_disabled")
		return
	}

	q, details := parseNearbyQuery(r.URL.Query())
	if len(details) > 0 {
		l.InfoContext(ctx, "Invalid nearby query", slog.Any("details", details))
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", details...)
		return
	}

	out := h.service.Nearby(ctx, q.lat, q.lon, q.radiusKm*1000, q.tags, h.budget)
	if out.Failed() {
		l.WarnContext(ctx, "Nearby lookup degraded", slog.String("reason", string(out.Reason)), slog.Any("error", out.Err))
	}
	api.WriteJSONResponse(w, r, http.StatusOK, NearbyResponse{
		Places:   out.Value,
		Degraded: out.Failed(),
		Reason:   out.Reason,
	})
}

type nearbyQuery struct {
	lat, lon float64
	radiusKm int
	tags     []string
}

func parseNearbyQuery(v url.Values) (nearbyQuery, []string) {
	q := nearbyQuery{radiusKm: 1}
	var details []string

	parseCoord := func(name string, limit float64) float64 {
		raw := v.Get(name)
		if raw == "" {
			details = append(details, name+": field required")
			return 0
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			details = append(details, name+": must be of type number")
			return 0
		}
		if f < -limit || f > limit {
			details = append(details, fmt.Sprintf("%s: must be between %g and %g", name, -limit, limit))
		}
		return f
	}
	q.lat = parseCoord("lat", 90)
	q.lon = parseCoord("lon", 180)

	if raw := v.Get("radius_km"); raw != "" {
		n, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			details = append(details, "radius_km: must be of type integer")
		case n < 1 || n > 500:
			details = append(details, "radius_km: must be between 1 and 500")
		default:
			q.radiusKm = n
		}
	}

	for _, t := range strings.Split(v.Get("tags"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			q.tags = append(q.tags, t)
		}
	}
	return q, details
}
