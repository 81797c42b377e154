package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogayu22918/Play-Plan/internal/api"
	"github.com/ogayu22918/Play-Plan/internal/types"
)

// Suggester is the orchestrator contract used by the handler.
type Suggester interface {
	Suggest(ctx context.Context, req types.SuggestRequest) (*types.SuggestResponse, error)
}

var _ Suggester = (*Service)(nil)

type Handler struct {
	service Suggester
	logger  *slog.Logger
}

func NewHandler(service Suggester, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Suggest godoc
// @Summary      Suggest leisure plans
// @Description  Fetches the weather, derives activity tags, retrieves similar activities, attaches nearby places and returns generated or templated plans.
// @Tags         Suggest
// @Accept       json
// @Produce      json
// @Param        request body types.SuggestRequest true "Location and preferences"
// @Success      200 {object} types.SuggestResponse
// @Failure      400 {object} api.ErrorPayload "Invalid request"
// @Failure      500 {object} api.ErrorPayload "Missing credentials or internal error"
// @Failure      502 {object} api.ErrorPayload "Generation provider unavailable"
// @Failure      504 {object} api.ErrorPayload "Deadline exceeded before weather or retrieval"
// @Router       /api/suggest [post]
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("SuggestHandler").Start(r.Context(), "Suggest", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/suggest"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "Suggest"))
	l.DebugContext(ctx, "Suggest handler invoked")

	body, err := api.ReadJSONBody(w, r)
	if err != nil {
		l.InfoContext(ctx, "Failed to read request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var req types.SuggestRequest
	if err := api.DecodeJSON(normalizeIndoor(body), &req); err != nil {
		l.InfoContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	resp, err := h.service.Suggest(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, r, l, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, r *http.Request, l *slog.Logger, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		l.InfoContext(ctx, "Request failed validation", slog.Any("details", verr.Details))
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid_request", verr.Details...)
	case errors.Is(err, ErrMissingCredentials):
		l.ErrorContext(ctx, "Generation credentials missing", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "missing_credentials", "generation API key not set")
	case errors.Is(err, ErrUpstreamUnavailable):
		l.ErrorContext(ctx, "Generation client unavailable", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadGateway, "upstream_unavailable")
	case errors.Is(err, ErrDeadlineExceeded):
		l.WarnContext(ctx, "Request deadline exceeded", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusGatewayTimeout, "timeout")
	case errors.Is(err, ErrRuleEngine):
		l.ErrorContext(ctx, "Rule engine failure", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "rule_engine_error")
	default:
		l.ErrorContext(ctx, "Unhandled suggest error", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusInternalServerError, "internal_error")
	}
}

// normalizeIndoor drops an empty-string "indoor" so it reads as absent. Any
// other body is returned unchanged for strict decoding.
func normalizeIndoor(body []byte) []byte {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return body
	}
	v, ok := fields["indoor"]
	if !ok || !bytes.Equal(bytes.TrimSpace(v), []byte(`""`)) {
		return body
	}
	delete(fields, "indoor")
	out, err := json.Marshal(fields)
	if err != nil {
		return body
	}
	return out
}

// Healthz godoc
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Router       /healthz [get]
func Healthz(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, api.HealthResponse{OK: true})
}
