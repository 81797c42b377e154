package router

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	appLogger "github.com/ogayu22918/Play-Plan/app/logger"
	appMiddleware "github.com/ogayu22918/Play-Plan/app/middleware"
	"github.com/ogayu22918/Play-Plan/internal/api/poi"
	"github.com/ogayu22918/Play-Plan/internal/api/suggest"
)

// Config contains dependencies needed for the router setup.
type Config struct {
	SuggestHandler *suggest.Handler
	POIHandler     *poi.HandlerImpl // optional
	Logger         *slog.Logger

	AllowedOrigins []string
	RateLimit      int
	RateWindow     time.Duration
	// RequestTimeout bounds every API request; it should exceed the suggest budget.
	RequestTimeout time.Duration
	StaticDir      string
}

// SetupRouter builds the application router with server-wide middleware applied.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(appMiddleware.Recoverer(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", suggest.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.StripSlashes)
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		r.Use(middleware.Compress(5, "application/json"))

		r.With(appMiddleware.RateLimitByIP(cfg.RateLimit, cfg.RateWindow)).Post("/suggest", cfg.SuggestHandler.Suggest)
		if cfg.POIHandler != nil {
			r.Get("/pois/nearby", cfg.POIHandler.Nearby)
		}
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	))

	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		} else {
			cfg.Logger.Warn("Static directory not found, front-end disabled", slog.String("dir", cfg.StaticDir))
		}
	}

	return r
}
