package embeddings

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"slices"
)

// normEpsilon guards normalisation against zero vectors.
const normEpsilon = 1e-9

var ErrDimensionMismatch = errors.New("embeddings: vector dimension mismatch")

// Matrix is an immutable, row-normalised N×D embedding matrix stored flat.
type Matrix struct {
	rows int
	dim  int
	unit []float32
}

// NewMatrix normalises vectors row by row. All rows must share one dimension.
func NewMatrix(vectors [][]float32) (*Matrix, error) {
	if len(vectors) == 0 {
		return &Matrix{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: row 0 is empty", ErrDimensionMismatch)
	}
	unit := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		unit = append(unit, Normalize(v)...)
	}
	return &Matrix{rows: len(vectors), dim: dim, unit: unit}, nil
}

func (m *Matrix) Rows() int { return m.rows }
func (m *Matrix) Dim() int  { return m.dim }

// Row returns the unit vector at index i. The slice aliases the matrix and must not be modified.
func (m *Matrix) Row(i int) []float32 {
	return m.unit[i*m.dim : (i+1)*m.dim]
}

// Normalize returns v scaled to unit length, with normEpsilon added to the norm.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Scores returns the dot product of every row with q.
func (m *Matrix) Scores(q []float32) ([]float32, error) {
	if len(q) != m.dim {
		return nil, fmt.Errorf("%w: query has %d values, matrix has %d", ErrDimensionMismatch, len(q), m.dim)
	}
	scores := make([]float32, m.rows)
	for i := 0; i < m.rows; i++ {
		row := m.unit[i*m.dim : (i+1)*m.dim]
		var dot float32
		for j, x := range row {
			dot += x * q[j]
		}
		scores[i] = dot
	}
	return scores, nil
}

// Scored is a row index with its similarity.
type Scored struct {
	Index int
	Score float32
}

// ranksBefore orders by score descending, then index ascending.
func ranksBefore(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// worstFirst is a heap whose root is the lowest-ranked element kept so far.
type worstFirst []Scored

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(Scored)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// SelectTopK picks the k best scores. For k < len(scores) it keeps a bounded
// heap of size k instead of sorting every score; only the selected k are sorted.
func SelectTopK(scores []float32, k int) []Scored {
	if k <= 0 || len(scores) == 0 {
		return []Scored{}
	}
	var selected []Scored
	if k >= len(scores) {
		selected = make([]Scored, len(scores))
		for i, s := range scores {
			selected[i] = Scored{Index: i, Score: s}
		}
	} else {
		h := make(worstFirst, 0, k)
		for i, s := range scores {
			c := Scored{Index: i, Score: s}
			if h.Len() < k {
				heap.Push(&h, c)
				continue
			}
			if ranksBefore(c, h[0]) {
				h[0] = c
				heap.Fix(&h, 0)
			}
		}
		selected = h
	}
	slices.SortFunc(selected, func(a, b Scored) int {
		switch {
		case ranksBefore(a, b):
			return -1
		case ranksBefore(b, a):
			return 1
		default:
			return 0
		}
	})
	return selected
}
