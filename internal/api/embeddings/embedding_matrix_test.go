package embeddings

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix_NormalisesRows(t *testing.T) {
	m, err := NewMatrix([][]float32{{3, 4}, {0, 2}, {0, 0}})
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, 2, m.Dim())

	assert.InDelta(t, 0.6, m.Row(0)[0], 1e-6)
	assert.InDelta(t, 0.8, m.Row(0)[1], 1e-6)
	assert.InDelta(t, 1.0, m.Row(1)[1], 1e-6)
	for _, x := range m.Row(2) {
		assert.False(t, math.IsNaN(float64(x)), "zero vector must not produce NaN")
	}
}

func TestNewMatrix_DimensionMismatch(t *testing.T) {
	_, err := NewMatrix([][]float32{{1, 2}, {1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewMatrix([][]float32{{}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMatrix_Scores(t *testing.T) {
	m, err := NewMatrix([][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	scores, err := m.Scores(Normalize([]float32{1, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.InDelta(t, 0.0, scores[1], 1e-6)
	assert.InDelta(t, math.Sqrt2/2, scores[2], 1e-6)

	_, err = m.Scores([]float32{1, 0, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSelectTopK(t *testing.T) {
	scores := []float32{0.1, 0.9, 0.5, 0.9, 0.3}

	tests := []struct {
		name string
		k    int
		want []int
	}{
		{"zero k", 0, []int{}},
		{"negative k", -3, []int{}},
		{"ties broken by index", 2, []int{1, 3}},
		{"three", 3, []int{1, 3, 2}},
		{"k equals n", 5, []int{1, 3, 2, 4, 0}},
		{"k above n", 50, []int{1, 3, 2, 4, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectTopK(scores, tt.k)
			idx := make([]int, len(got))
			for i, s := range got {
				idx[i] = s.Index
			}
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestSelectTopK_MatchesFullSort(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	for trial := 0; trial < 50; trial++ {
		n := 1 + r.IntN(300)
		scores := make([]float32, n)
		for i := range scores {
			// Coarse values so ties are common.
			scores[i] = float32(r.IntN(20)) / 20
		}
		all := make([]Scored, n)
		for i, s := range scores {
			all[i] = Scored{Index: i, Score: s}
		}
		slices.SortStableFunc(all, func(a, b Scored) int {
			switch {
			case a.Score > b.Score:
				return -1
			case a.Score < b.Score:
				return 1
			default:
				return 0
			}
		})

		k := 1 + r.IntN(n)
		assert.Equal(t, all[:k], SelectTopK(scores, k), "trial %d n=%d k=%d", trial, n, k)
	}
}
