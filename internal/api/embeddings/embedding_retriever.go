package embeddings

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogayu22918/Play-Plan/internal/types"
)

// Match is a retrieved activity with its catalog index and cosine similarity.
type Match struct {
	Activity types.Activity
	Index    int
	Score    float32
}

// Retriever answers exact top-k cosine similarity queries over a Store.
type Retriever struct {
	store    *Store
	embedder Embedder
	logger   *slog.Logger
}

func NewRetriever(store *Store, embedder Embedder, logger *slog.Logger) *Retriever {
	return &Retriever{
		store:    store,
		embedder: embedder,
		logger:   logger.With(slog.String("component", "retriever")),
	}
}

// TopK returns at most min(k, catalog size) activities ordered by descending
// similarity to queryText. The result is empty, never nil, when k <= 0 or on error.
func (r *Retriever) TopK(ctx context.Context, queryText string, k int) ([]types.Activity, error) {
	matches, err := r.TopKScored(ctx, queryText, k)
	out := make([]types.Activity, len(matches))
	for i, m := range matches {
		out[i] = m.Activity
	}
	return out, err
}

// TopKScored is TopK with indices and scores. Ties are broken by catalog index.
func (r *Retriever) TopKScored(ctx context.Context, queryText string, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}
	ctx, span := otel.Tracer("Retriever").Start(ctx, "TopK", trace.WithAttributes(attribute.Int("k", k)))
	defer span.End()

	m, err := r.store.EnsureReady(ctx)
	if err != nil {
		span.RecordError(err)
		return []Match{}, err
	}
	if m.Rows() == 0 {
		return []Match{}, nil
	}
	if r.embedder == nil {
		return []Match{}, ErrNoEmbedder
	}
	q, err := r.embedder.EmbedText(ctx, queryText)
	if err != nil {
		span.RecordError(err)
		return []Match{}, fmt.Errorf("embed query: %w", err)
	}
	scores, err := m.Scores(Normalize(q))
	if err != nil {
		span.RecordError(err)
		return []Match{}, err
	}

	catalog := r.store.Catalog()
	selected := SelectTopK(scores, k)
	out := make([]Match, len(selected))
	for i, s := range selected {
		out[i] = Match{Activity: catalog[s.Index], Index: s.Index, Score: s.Score}
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}
