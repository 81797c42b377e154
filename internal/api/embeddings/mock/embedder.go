// Package mock provides a deterministic Embedder for tests.
package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

const DefaultDim = 64

// Embedder returns FNV-seeded vectors so equal texts always embed equally.
// Function fields override the default behaviour.
type Embedder struct {
	Dim            int
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	textCalls  atomic.Int64
	batchCalls atomic.Int64
}

func NewEmbedder() *Embedder {
	return &Embedder{Dim: DefaultDim}
}

func (m *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.textCalls.Add(1)
	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return Vector(text, m.dim()), nil
}

func (m *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, m.dim())
	}
	return out, nil
}

// TextCalls counts EmbedText invocations.
func (m *Embedder) TextCalls() int { return int(m.textCalls.Load()) }

// BatchCalls counts EmbedTexts invocations.
func (m *Embedder) BatchCalls() int { return int(m.batchCalls.Load()) }

func (m *Embedder) dim() int {
	if m.Dim <= 0 {
		return DefaultDim
	}
	return m.Dim
}

// Vector derives a pseudo-random vector in [-0.5, 0.5) from text.
func Vector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	v := make([]float32, dim)
	for i := range v {
		seed = seed*1664525 + 1013904223
		v[i] = float32(seed%1000)/1000.0 - 0.5
	}
	return v
}
