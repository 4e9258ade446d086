package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Epsilon bounds probabilities away from 0 and 1 before taking logs.
const Epsilon = 1e-7

// BinaryCrossEntropy returns the mean loss of pred against a constant
// target, together with dL/dpred.
//
//	L = -(1/N) * sum(t*log(p) + (1-t)*log(1-p))
func BinaryCrossEntropy(pred *mat.Dense, target float64) (float64, *mat.Dense) {
	rows, cols := pred.Dims()
	n := float64(rows * cols)
	grad := mat.NewDense(rows, cols, nil)
	loss := 0.0
	for i := 0; i < rows; i++ {
		pr := pred.RawRowView(i)
		gr := grad.RawRowView(i)
		for j, p := range pr {
			p = clip(p)
			loss -= target*math.Log(p) + (1-target)*math.Log(1-p)
			gr[j] = (p - target) / (p * (1 - p)) / n
		}
	}
	return loss / n, grad
}

// BinaryAccuracy is the fraction of predictions on the same side of 0.5
// as the target.
func BinaryAccuracy(pred *mat.Dense, target float64) float64 {
	rows, cols := pred.Dims()
	want := target > 0.5
	hits := 0
	for i := 0; i < rows; i++ {
		for _, p := range pred.RawRowView(i) {
			if (p > 0.5) == want {
				hits++
			}
		}
	}
	return float64(hits) / float64(rows*cols)
}

func clip(p float64) float64 {
	if p < Epsilon {
		return Epsilon
	}
	if p > 1-Epsilon {
		return 1 - Epsilon
	}
	return p
}
