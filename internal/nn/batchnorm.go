package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BatchNorm normalises each feature over the batch.
//
// In training mode the batch statistics are used and folded into the
// moving averages as moving = moving*Momentum + batch*(1-Momentum).
// In inference mode the moving averages are used instead.
type BatchNorm struct {
	name     string
	size     int
	Momentum float64
	Eps      float64

	gamma      *Param
	beta       *Param
	movingMean *Param
	movingVar  *Param

	// forward cache
	xhat   *mat.Dense
	invStd []float64
	train  bool
}

func NewBatchNorm(name string, size int, momentum, eps float64) *BatchNorm {
	ones := make([]float64, size)
	for i := range ones {
		ones[i] = 1
	}
	varOnes := append([]float64(nil), ones...)
	return &BatchNorm{
		name:       name,
		size:       size,
		Momentum:   momentum,
		Eps:        eps,
		gamma:      newParam(name+"/gamma", 1, size, ones),
		beta:       newParam(name+"/beta", 1, size, nil),
		movingMean: newParam(name+"/moving_mean", 1, size, nil),
		movingVar:  newParam(name+"/moving_variance", 1, size, varOnes),
	}
}

func (b *BatchNorm) Name() string { return b.name }

func (b *BatchNorm) OutputSize(n int) int { return n }

func (b *BatchNorm) Params() []*Param { return []*Param{b.gamma, b.beta} }

func (b *BatchNorm) Buffers() []*Param { return []*Param{b.movingMean, b.movingVar} }

func (b *BatchNorm) Forward(x *mat.Dense, train bool) *mat.Dense {
	mustCols(x, b.size, b.name)
	batch, _ := x.Dims()

	mean := make([]float64, b.size)
	variance := make([]float64, b.size)
	if train {
		for i := 0; i < batch; i++ {
			for j, v := range x.RawRowView(i) {
				mean[j] += v
			}
		}
		for j := range mean {
			mean[j] /= float64(batch)
		}
		for i := 0; i < batch; i++ {
			for j, v := range x.RawRowView(i) {
				d := v - mean[j]
				variance[j] += d * d
			}
		}
		for j := range variance {
			variance[j] /= float64(batch)
		}
		mm := b.movingMean.Value.RawRowView(0)
		mv := b.movingVar.Value.RawRowView(0)
		for j := range mm {
			mm[j] = mm[j]*b.Momentum + mean[j]*(1-b.Momentum)
			mv[j] = mv[j]*b.Momentum + variance[j]*(1-b.Momentum)
		}
	} else {
		copy(mean, b.movingMean.Value.RawRowView(0))
		copy(variance, b.movingVar.Value.RawRowView(0))
	}

	invStd := make([]float64, b.size)
	for j := range invStd {
		invStd[j] = 1 / math.Sqrt(variance[j]+b.Eps)
	}

	gamma := b.gamma.Value.RawRowView(0)
	beta := b.beta.Value.RawRowView(0)
	xhat := mat.NewDense(batch, b.size, nil)
	y := mat.NewDense(batch, b.size, nil)
	for i := 0; i < batch; i++ {
		xr := x.RawRowView(i)
		hr := xhat.RawRowView(i)
		yr := y.RawRowView(i)
		for j := range xr {
			hr[j] = (xr[j] - mean[j]) * invStd[j]
			yr[j] = gamma[j]*hr[j] + beta[j]
		}
	}

	b.xhat = xhat
	b.invStd = invStd
	b.train = train
	return y
}

func (b *BatchNorm) Backward(grad *mat.Dense) *mat.Dense {
	mustCached(b.xhat, b.name)
	mustCols(grad, b.size, b.name)
	batch, _ := grad.Dims()
	n := float64(batch)

	gamma := b.gamma.Value.RawRowView(0)
	dGamma := b.gamma.Grad.RawRowView(0)
	dBeta := b.beta.Grad.RawRowView(0)

	sumG := make([]float64, b.size)
	sumGX := make([]float64, b.size)
	for i := 0; i < batch; i++ {
		hr := b.xhat.RawRowView(i)
		for j, g := range grad.RawRowView(i) {
			sumG[j] += g
			sumGX[j] += g * hr[j]
		}
	}
	for j := range dGamma {
		dGamma[j] += sumGX[j]
		dBeta[j] += sumG[j]
	}

	dx := mat.NewDense(batch, b.size, nil)
	for i := 0; i < batch; i++ {
		hr := b.xhat.RawRowView(i)
		gr := grad.RawRowView(i)
		dr := dx.RawRowView(i)
		for j := range dr {
			if !b.train {
				dr[j] = gr[j] * gamma[j] * b.invStd[j]
				continue
			}
			dr[j] = gamma[j] * b.invStd[j] / n * (n*gr[j] - sumG[j] - hr[j]*sumGX[j])
		}
	}
	return dx
}
