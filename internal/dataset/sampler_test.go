package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func rampSet(t *testing.T, n int) *Set {
	t.Helper()
	raw := make([]byte, n*ImageSize)
	labels := make([]uint8, n)
	for i := 0; i < n; i++ {
		for j := 0; j < ImageSize; j++ {
			raw[i*ImageSize+j] = byte(i * 20)
		}
		labels[i] = uint8(i)
	}
	set, err := NewSet(raw, labels)
	require.NoError(t, err)
	return set
}

func TestSamplerDeterministic(t *testing.T) {
	set := rampSet(t, 10)
	a, err := NewSampler(set, 7)
	require.NoError(t, err)
	b, err := NewSampler(set, 7)
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Batch(16), b.Batch(16)))
	assert.True(t, mat.Equal(a.Noise(4, 100), b.Noise(4, 100)))
}

func TestSamplerBatchDrawsWholeImages(t *testing.T) {
	set := rampSet(t, 5)
	s, err := NewSampler(set, 1)
	require.NoError(t, err)

	batch := s.Batch(32)
	rows, cols := batch.Dims()
	require.Equal(t, 32, rows)
	require.Equal(t, ImageSize, cols)
	for i := 0; i < rows; i++ {
		row := batch.RawRowView(i)
		for _, v := range row {
			require.Equal(t, row[0], v, "row %d mixes images", i)
		}
		require.True(t, row[0] >= -1 && row[0] <= 1)
	}
}

func TestSamplerRejectsEmptySet(t *testing.T) {
	_, err := NewSampler(&Set{}, 1)
	require.Error(t, err)
}

func TestNormalizeRange(t *testing.T) {
	out := Normalize([]byte{0, 255, 127})
	assert.Equal(t, -1.0, out[0])
	assert.Equal(t, 1.0, out[1])
	assert.InDelta(t, -0.5/127.5, out[2], 1e-12)
}

func TestNewSetChecksCounts(t *testing.T) {
	_, err := NewSet(make([]byte, ImageSize+1), nil)
	require.Error(t, err)
	_, err = NewSet(make([]byte, 2*ImageSize), []uint8{1})
	require.Error(t, err)
}
