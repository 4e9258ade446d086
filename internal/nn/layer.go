package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Layer is a differentiable stage of a network. Forward caches whatever
// Backward needs, so Backward must follow the Forward it differentiates.
type Layer interface {
	Name() string
	Forward(x *mat.Dense, train bool) *mat.Dense
	Backward(grad *mat.Dense) *mat.Dense
	Params() []*Param
	OutputSize(in int) int
}

// Buffered is implemented by layers that carry non-trainable state which
// still has to survive a checkpoint (BatchNorm running statistics).
type Buffered interface {
	Buffers() []*Param
}

// Param is a named tensor together with its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, rows, cols int, data []float64) *Param {
	return &Param{
		Name:  name,
		Value: mat.NewDense(rows, cols, data),
		Grad:  mat.NewDense(rows, cols, nil),
	}
}

// ZeroGrad clears the accumulated gradient.
func (p *Param) ZeroGrad() {
	p.Grad.Zero()
}

// Size returns the number of scalars held by the parameter.
func (p *Param) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

func mustCols(x mat.Matrix, want int, layer string) {
	if _, c := x.Dims(); c != want {
		panic(fmt.Sprintf("nn: %s expects %d columns, got %d", layer, want, c))
	}
}

func mustCached(x *mat.Dense, layer string) {
	if x == nil {
		panic(fmt.Sprintf("nn: %s backward called before forward", layer))
	}
}
