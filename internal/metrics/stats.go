package metrics

import "time"

// Window accumulates losses and timing across multiple iterations.
type Window struct {
	samples int
	data    time.Duration
	compute time.Duration
	steps   int

	dLoss, dAcc, gLoss float64
	last               Step
}

// Step is what one training iteration reports.
type Step struct {
	DLoss float64
	DAcc  float64
	GLoss float64
}

// Record adds a new measurement to the window.
func (w *Window) Record(batchSize int, dataTime, computeTime time.Duration, s Step) {
	w.samples += batchSize
	w.data += dataTime
	w.compute += computeTime
	w.steps++
	w.dLoss += s.DLoss
	w.dAcc += s.DAcc
	w.gLoss += s.GLoss
	w.last = s
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Last: w.last, Steps: w.steps}
	total := w.data + w.compute
	if total > 0 {
		snap.ImagesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		n := float64(w.steps)
		snap.AvgDataMS = (w.data.Seconds() * 1000) / n
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / n
		snap.Mean = Step{DLoss: w.dLoss / n, DAcc: w.dAcc / n, GLoss: w.gLoss / n}
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps        int
	ImagesPerSec float64
	AvgDataMS    float64
	AvgComputeMS float64
	Mean         Step
	Last         Step
}
