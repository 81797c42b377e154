package generativeAI

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIClient is a provider for OpenAI-compatible endpoints.
type OpenAIClient struct {
	mu             sync.Mutex
	client         *openai.Client
	apiKeyEnv      string
	baseURL        string
	model          string
	embeddingModel string
	temperature    float32
	logger         *slog.Logger
}

var _ Provider = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg Config, logger *slog.Logger) *OpenAIClient {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.GenerationModel == "" {
		cfg.GenerationModel = openai.GPT4oMini
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = string(openai.SmallEmbedding3)
	}
	return &OpenAIClient{
		apiKeyEnv:      cfg.APIKeyEnv,
		baseURL:        cfg.BaseURL,
		model:          cfg.GenerationModel,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		logger:         logger.With(slog.String("component", "openai")),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Ensure(ctx context.Context) error {
	_, err := c.openaiClient()
	return err
}

func (c *OpenAIClient) openaiClient() (*openai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	apiKey := os.Getenv(c.apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, c.apiKeyEnv)
	}
	config := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		config.BaseURL = c.baseURL
	}
	c.client = openai.NewClientWithConfig(config)
	c.logger.Info("OpenAI client initialised", slog.String("model", c.model))
	return c.client, nil
}

func (c *OpenAIClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "OpenAI.GenerateText", trace.WithAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.String("model", c.model),
	))
	defer span.End()

	client, err := c.openaiClient()
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create chat completion")
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	span.SetStatus(codes.Ok, "Content generated successfully")
	return text, nil
}

func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *OpenAIClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := otel.Tracer("GenerativeAI").Start(ctx, "OpenAI.EmbedTexts", trace.WithAttributes(
		attribute.Int("texts.count", len(texts)),
	))
	defer span.End()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	client, err := c.openaiClient()
	if err != nil {
		return nil, err
	}
	resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai embed: index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
