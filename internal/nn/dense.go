package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dense computes y = x W^T + b for a batch x of shape [batch, in].
//
// Weight shape is [out, in]; bias is a single row [1, out].
type Dense struct {
	name   string
	in     int
	out    int
	weight *Param
	bias   *Param
	input  *mat.Dense
}

// NewDense creates a fully connected layer with Glorot-uniform weights and
// zero bias.
func NewDense(name string, in, out int, rng *rand.Rand) *Dense {
	limit := math.Sqrt(6.0 / float64(in+out))
	w := make([]float64, out*in)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return &Dense{
		name:   name,
		in:     in,
		out:    out,
		weight: newParam(name+"/kernel", out, in, w),
		bias:   newParam(name+"/bias", 1, out, nil),
	}
}

func (d *Dense) Name() string { return d.name }

func (d *Dense) OutputSize(int) int { return d.out }

func (d *Dense) Params() []*Param { return []*Param{d.weight, d.bias} }

func (d *Dense) Forward(x *mat.Dense, _ bool) *mat.Dense {
	mustCols(x, d.in, d.name)
	d.input = x
	batch, _ := x.Dims()
	y := mat.NewDense(batch, d.out, nil)
	y.Mul(x, d.weight.Value.T())
	b := d.bias.Value.RawRowView(0)
	for i := 0; i < batch; i++ {
		row := y.RawRowView(i)
		for j := range row {
			row[j] += b[j]
		}
	}
	return y
}

// Backward accumulates dW = g^T x and db = sum(g) and returns dx = g W.
func (d *Dense) Backward(grad *mat.Dense) *mat.Dense {
	mustCached(d.input, d.name)
	mustCols(grad, d.out, d.name)
	batch, _ := grad.Dims()

	var dW mat.Dense
	dW.Mul(grad.T(), d.input)
	d.weight.Grad.Add(d.weight.Grad, &dW)

	db := d.bias.Grad.RawRowView(0)
	for i := 0; i < batch; i++ {
		for j, g := range grad.RawRowView(i) {
			db[j] += g
		}
	}

	dx := mat.NewDense(batch, d.in, nil)
	dx.Mul(grad, d.weight.Value)
	return dx
}
