package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 10*time.Millisecond, Step{DLoss: 1.2, DAcc: 0.5, GLoss: 0.7})
	w.Record(64, 10*time.Millisecond, 20*time.Millisecond, Step{DLoss: 0.8, DAcc: 1.0, GLoss: 0.9})
	snap := w.Snapshot()

	assert.InDelta(t, 2133.3333, snap.ImagesPerSec, 1)
	assert.InDelta(t, 15.0, snap.AvgDataMS, 1e-9)
	assert.Equal(t, 2, snap.Steps)
	assert.InDelta(t, 1.0, snap.Mean.DLoss, 1e-12)
	assert.InDelta(t, 0.75, snap.Mean.DAcc, 1e-12)
	assert.InDelta(t, 0.8, snap.Mean.GLoss, 1e-12)
	assert.Equal(t, 0.8, snap.Last.DLoss)

	require.Zero(t, w.samples)
	require.Zero(t, w.steps)
}

func TestEmptyWindowSnapshot(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	assert.Zero(t, snap.ImagesPerSec)
	assert.Zero(t, snap.Steps)
}
