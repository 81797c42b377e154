// Package embeddings holds the activity catalog, its cached embedding matrix
// and the exact top-k cosine retriever built on top of them.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/ogayu22918/Play-Plan/internal/types"
)

var (
	ErrStoreNotReady = errors.New("embeddings: store is not ready")
	ErrNoEmbedder    = errors.New("embeddings: no embedder configured")
)

// Embedder turns text into vectors.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// State is the lifecycle of the store's matrix.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// matrixFile is the on-disk layout of the raw (not normalised) embedding matrix.
// Row i belongs to catalog entry i.
type matrixFile struct {
	Rows    int         `json:"rows"`
	Dim     int         `json:"dim"`
	Vectors [][]float32 `json:"vectors"`
}

// Store pairs the catalog with its unit-normalised embedding matrix.
// The matrix is built lazily by EnsureReady and rebuilt when its row count no
// longer matches the catalog.
type Store struct {
	mu       sync.RWMutex
	building *semaphore.Weighted
	state    State
	lastErr  error
	matrix   *Matrix
	catalog  []types.Activity
	path     string
	embedder Embedder
	logger   *slog.Logger
}

// NewStore creates an uninitialised store. path is where the raw matrix is
// persisted; an empty path keeps it in memory only.
func NewStore(catalog []types.Activity, path string, embedder Embedder, logger *slog.Logger) *Store {
	return &Store{
		building: semaphore.NewWeighted(1),
		catalog:  catalog,
		path:     path,
		embedder: embedder,
		logger:   logger.With(slog.String("component", "embedding_store")),
	}
}

// LoadCatalog reads the static activity catalog.
func LoadCatalog(path string) ([]types.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var activities []types.Activity
	if err := json.Unmarshal(data, &activities); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return activities, nil
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Catalog returns the activity catalog. Callers must not modify it.
func (s *Store) Catalog() []types.Activity {
	return s.catalog
}

// EnsureReady returns a matrix whose row count equals the catalog size,
// loading or building it on first use. Concurrent callers wait for a single
// build, each no longer than its own ctx allows. A failed build leaves the
// store in StateFailed and is retried on the next call.
func (s *Store) EnsureReady(ctx context.Context) (*Matrix, error) {
	if m := s.readyMatrix(); m != nil {
		return m, nil
	}

	if err := s.building.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreNotReady, err)
	}
	defer s.building.Release(1)
	if m := s.readyMatrix(); m != nil {
		return m, nil
	}

	ctx, span := otel.Tracer("EmbeddingStore").Start(ctx, "EnsureReady", trace.WithAttributes(
		attribute.Int("catalog.size", len(s.catalog)),
		attribute.String("state", s.State().String()),
	))
	defer span.End()

	m, err := s.initialise(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "embedding matrix initialisation failed")
		s.logger.ErrorContext(ctx, "Embedding matrix initialisation failed", slog.Any("error", err))
		return nil, fmt.Errorf("%w: %w", ErrStoreNotReady, err)
	}
	s.matrix = m
	s.state = StateReady
	s.lastErr = nil
	span.SetStatus(codes.Ok, "embedding matrix ready")
	return m, nil
}

func (s *Store) readyMatrix() *Matrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateReady && s.matrix.Rows() == len(s.catalog) {
		return s.matrix
	}
	return nil
}

// LastError returns the error of the most recent failed initialisation.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Store) initialise(ctx context.Context) (*Matrix, error) {
	vectors, err := s.load()
	switch {
	case err == nil && len(vectors) == len(s.catalog):
		s.logger.InfoContext(ctx, "Loaded embedding matrix", slog.String("path", s.path), slog.Int("rows", len(vectors)))
		return NewMatrix(vectors)
	case err == nil:
		s.logger.WarnContext(ctx, "Embedding matrix shape does not match catalog, rebuilding",
			slog.Int("rows", len(vectors)), slog.Int("catalog", len(s.catalog)))
	case !errors.Is(err, os.ErrNotExist):
		s.logger.WarnContext(ctx, "Embedding matrix unreadable, rebuilding", slog.Any("error", err))
	}

	vectors, err = s.build(ctx)
	if err != nil {
		return nil, err
	}
	m, err := NewMatrix(vectors)
	if err != nil {
		return nil, err
	}
	if err := s.persist(vectors); err != nil {
		// The in-memory matrix is still usable.
		s.logger.WarnContext(ctx, "Failed to persist embedding matrix", slog.Any("error", err))
	}
	return m, nil
}

func (s *Store) build(ctx context.Context) ([][]float32, error) {
	if s.embedder == nil {
		return nil, ErrNoEmbedder
	}
	texts := make([]string, len(s.catalog))
	for i, a := range s.catalog {
		texts[i] = a.EmbeddingText()
	}
	s.logger.InfoContext(ctx, "Building embedding matrix", slog.Int("activities", len(texts)))
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed catalog: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed catalog: got %d vectors for %d activities", len(vectors), len(texts))
	}
	return vectors, nil
}

func (s *Store) load() ([][]float32, error) {
	if s.path == "" {
		return nil, os.ErrNotExist
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var f matrixFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return f.Vectors, nil
}

// persist writes the raw matrix atomically via a temp file and rename.
func (s *Store) persist(vectors [][]float32) error {
	if s.path == "" {
		return nil
	}
	return WriteMatrixFile(s.path, vectors)
}

// WriteMatrixFile writes vectors in the store's on-disk format.
func WriteMatrixFile(path string, vectors [][]float32) error {
	f := matrixFile{Rows: len(vectors), Vectors: vectors}
	if len(vectors) > 0 {
		f.Dim = len(vectors[0])
	}
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
