package container

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogayu22918/Play-Plan/app/observability/metrics"
	"github.com/ogayu22918/Play-Plan/config"
	"github.com/ogayu22918/Play-Plan/internal/api/embeddings"
	generativeAI "github.com/ogayu22918/Play-Plan/internal/api/generative_ai"
	"github.com/ogayu22918/Play-Plan/internal/api/poi"
	"github.com/ogayu22918/Play-Plan/internal/api/rules"
	"github.com/ogayu22918/Play-Plan/internal/api/suggest"
	"github.com/ogayu22918/Play-Plan/internal/api/weather"
	"github.com/ogayu22918/Play-Plan/internal/cache"
	"github.com/ogayu22918/Play-Plan/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *slog.Logger
	Provider       generativeAI.Provider // nil when generation is disabled
	Store          *embeddings.Store     // nil when generation is disabled
	WeatherService *weather.Service
	POIService     *poi.ServiceImpl
	SuggestService *suggest.Service
	SuggestHandler *suggest.Handler
	POIHandler     *poi.HandlerImpl
}

// NewContainer wires the services. Nothing here touches the network; the
// generation client and the embedding matrix initialise on first use.
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	clock := cache.SystemClock{}

	weatherClient := weather.NewOpenMeteoClient(cfg.Weather.BaseURL, cfg.Weather.AttemptTimeout, logger)
	weatherService := weather.NewService(weatherClient, cfg.Weather, clock, logger)

	ruleEngine := rules.NewEngine(cfg.Rules)

	overpassClient := poi.NewOverpassClient(cfg.POI.BaseURL, cfg.POI.RequestsPerSecond, cfg.POI.Burst, logger)
	poiService := poi.NewServiceImpl(overpassClient, cfg.POI, clock, logger)

	c := &Container{
		Config:         cfg,
		Logger:         logger,
		WeatherService: weatherService,
		POIService:     poiService,
	}

	// Interfaces stay untyped nil when generation is off so the orchestrator
	// goes straight to the template.
	var generator suggest.Generator
	var retriever suggest.CandidateRetriever
	if cfg.Generation.Enabled {
		provider, err := generativeAI.NewProvider(cfg.Generation, logger)
		if err != nil {
			return nil, err
		}
		catalog, err := embeddings.LoadCatalog(cfg.Embeddings.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load activity catalog: %w", err)
		}
		store := embeddings.NewStore(catalog, cfg.Embeddings.MatrixPath, provider, logger)

		c.Provider = provider
		c.Store = store
		generator = provider
		retriever = embeddings.NewRetriever(store, provider, logger)
		logger.Info("Generation enabled",
			slog.String("provider", provider.Name()),
			slog.Int("activities", len(catalog)))
	} else {
		logger.Warn("Generation disabled, responses use the template")
	}

	metrics.InitAppMetrics()
	c.SuggestService = suggest.NewService(cfg.Suggest, weatherService, ruleEngine, poiService, retriever, generator, metrics.Get(), logger)
	c.SuggestHandler = suggest.NewHandler(c.SuggestService, logger)

	c.POIHandler = poi.NewHandlerImpl(poiService, c.SuggestService.Config().EnrichBudget(), logger)

	return c, nil
}

// Router builds the HTTP handler for the container's services.
func (c *Container) Router() http.Handler {
	return router.SetupRouter(&router.Config{
		SuggestHandler: c.SuggestHandler,
		POIHandler:     c.POIHandler,
		Logger:         c.Logger,
		AllowedOrigins: c.Config.Server.AllowedOrigins,
		RateLimit:      c.Config.Server.RateLimit.Requests,
		RateWindow:     c.Config.Server.RateLimit.Window,
		RequestTimeout: c.SuggestService.Config().Budget + 2*time.Second,
		StaticDir:      c.Config.Server.StaticDir,
	})
}

const defaultWarmupTimeout = 2 * time.Minute

// Warmup builds the embedding matrix ahead of the first request, bounded by
// the configured warmup timeout. A missing credential is not an error here;
// the first request reports it.
func (c *Container) Warmup(ctx context.Context) error {
	if c.Store == nil {
		return nil
	}
	timeout := c.Config.Embeddings.WarmupTimeout
	if timeout <= 0 {
		timeout = defaultWarmupTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Provider.Ensure(ctx); err != nil {
		if errors.Is(err, generativeAI.ErrMissingAPIKey) {
			c.Logger.Warn("Skipping embedding warmup", slog.Any("error", err))
			return nil
		}
		return err
	}
	_, err := c.Store.EnsureReady(ctx)
	return err
}
