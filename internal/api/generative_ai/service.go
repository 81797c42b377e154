package generativeAI

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

var (
	ErrMissingAPIKey = errors.New("generative ai: api key environment variable is not set")
	ErrClientInit    = errors.New("generative ai: client initialisation failed")
	ErrEmptyResponse = errors.New("generative ai: empty response")
)

// geminiEmbedBatchLimit is the maximum number of texts per batch embedding call.
const geminiEmbedBatchLimit = 100

// Config selects and tunes the generative provider.
type Config struct {
	Enabled         bool    `mapstructure:"enabled"`
	Provider        string  `mapstructure:"provider"` // "gemini" or "openai"
	APIKeyEnv       string  `mapstructure:"apiKeyEnv"`
	GenerationModel string  `mapstructure:"generationModel"`
	EmbeddingModel  string  `mapstructure:"embeddingModel"`
	BaseURL         string  `mapstructure:"baseURL"`
	Temperature     float32 `mapstructure:"temperature"`
}

// Provider generates text and embeddings. Implementations initialise their
// underlying client lazily on first use and are safe for concurrent use.
type Provider interface {
	Name() string
	// Ensure initialises the client, failing with ErrMissingAPIKey when the
	// credential is absent and ErrClientInit when construction fails.
	Ensure(ctx context.Context) error
	GenerateText(ctx context.Context, prompt string) (string, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider builds the provider named in cfg.
func NewProvider(cfg Config, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return NewAIClient(cfg, logger), nil
	case "openai":
		return NewOpenAIClient(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown generative provider %q", cfg.Provider)
	}
}

// AIClient is the Gemini provider.
type AIClient struct {
	mu             sync.Mutex
	client         *genai.Client
	apiKeyEnv      string
	model          string
	embeddingModel string
	temperature    float32
	logger         *slog.Logger
}

var _ Provider = (*AIClient)(nil)

func NewAIClient(cfg Config, logger *slog.Logger) *AIClient {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = "gemini-2.5-flash"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "gemini-embedding-001"
	}
	return &AIClient{
		apiKeyEnv:      cfg.APIKeyEnv,
		model:          cfg.GenerationModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		logger:         logger.With(slog.String("component", "gemini")),
	}
}

func (ai *AIClient) Name() string { return "gemini" }

func (ai *AIClient) Ensure(ctx context.Context) error {
	_, err := ai.genaiClient(ctx)
	return err
}

func (ai *AIClient) genaiClient(ctx context.Context) (*genai.Client, error) {
	ai.mu.Lock()
	defer ai.mu.Unlock()
	if ai.client != nil {
		return ai.client, nil
	}

	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "NewAIClient")
	defer span.End()

	apiKey := os.Getenv(ai.apiKeyEnv)
	if apiKey == "" {
		span.SetStatus(codes.Error, "API key not set")
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, ai.apiKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create Gemini client")
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}
	ai.logger.Info("Gemini client initialised", slog.String("model", ai.model))
	ai.client = client
	return client, nil
}

// GenerateText runs a single-shot generation with thinking disabled.
func (ai *AIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "GenerateText", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", ai.model),
	))
	defer span.End()

	client, err := ai.genaiClient(ctx)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	config := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if ai.temperature > 0 {
		config.Temperature = genai.Ptr(ai.temperature)
	}

	result, err := client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to generate content")
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		span.SetStatus(codes.Error, "Empty generation")
		return "", ErrEmptyResponse
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	span.SetStatus(codes.Ok, "Content generated successfully")
	return text, nil
}

func (ai *AIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := ai.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts in order, splitting into API-sized batches.
func (ai *AIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "EmbedTexts", trace.WithAttributes(
		attribute.Int("texts.count", len(texts)),
		attribute.String("model", ai.embeddingModel),
	))
	defer span.End()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	client, err := ai.genaiClient(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiEmbedBatchLimit {
		end := min(start+geminiEmbedBatchLimit, len(texts))
		contents := make([]*genai.Content, 0, end-start)
		for _, t := range texts[start:end] {
			contents = append(contents, genai.Text(t)...)
		}

		resp, err := client.Models.EmbedContent(ctx, ai.embeddingModel, contents, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to embed content")
			return nil, fmt.Errorf("gemini embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embed: got %d vectors for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, ErrEmptyResponse
			}
			out = append(out, e.Values)
		}
	}

	span.SetStatus(codes.Ok, "Embeddings generated")
	return out, nil
}
