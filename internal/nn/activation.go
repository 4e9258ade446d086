package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// LeakyReLU passes positive values through and scales negative ones by Alpha.
type LeakyReLU struct {
	name  string
	Alpha float64
	input *mat.Dense
}

func NewLeakyReLU(name string, alpha float64) *LeakyReLU {
	return &LeakyReLU{name: name, Alpha: alpha}
}

func (l *LeakyReLU) Name() string { return l.name }
func (l *LeakyReLU) OutputSize(n int) int { return n }
func (l *LeakyReLU) Params() []*Param { return nil }

func (l *LeakyReLU) Forward(x *mat.Dense, _ bool) *mat.Dense {
	l.input = x
	y := mat.DenseCopyOf(x)
	y.Apply(func(_, _ int, v float64) float64 {
		if v > 0 {
			return v
		}
		return l.Alpha * v
	}, y)
	return y
}

func (l *LeakyReLU) Backward(grad *mat.Dense) *mat.Dense {
	mustCached(l.input, l.name)
	dx := mat.DenseCopyOf(grad)
	dx.Apply(func(i, j int, g float64) float64 {
		if l.input.At(i, j) > 0 {
			return g
		}
		return l.Alpha * g
	}, dx)
	return dx
}

// Tanh squashes values into (-1, 1).
type Tanh struct {
	name   string
	output *mat.Dense
}

func NewTanh(name string) *Tanh { return &Tanh{name: name} }

func (t *Tanh) Name() string { return t.name }
func (t *Tanh) OutputSize(n int) int { return n }
func (t *Tanh) Params() []*Param { return nil }

func (t *Tanh) Forward(x *mat.Dense, _ bool) *mat.Dense {
	y := mat.DenseCopyOf(x)
	y.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, y)
	t.output = y
	return y
}

func (t *Tanh) Backward(grad *mat.Dense) *mat.Dense {
	mustCached(t.output, t.name)
	dx := mat.DenseCopyOf(grad)
	dx.Apply(func(i, j int, g float64) float64 {
		y := t.output.At(i, j)
		return g * (1 - y*y)
	}, dx)
	return dx
}

// Sigmoid maps values into (0, 1).
type Sigmoid struct {
	name   string
	output *mat.Dense
}

func NewSigmoid(name string) *Sigmoid { return &Sigmoid{name: name} }

func (s *Sigmoid) Name() string { return s.name }
func (s *Sigmoid) OutputSize(n int) int { return n }
func (s *Sigmoid) Params() []*Param { return nil }

func (s *Sigmoid) Forward(x *mat.Dense, _ bool) *mat.Dense {
	y := mat.DenseCopyOf(x)
	y.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, y)
	s.output = y
	return y
}

func (s *Sigmoid) Backward(grad *mat.Dense) *mat.Dense {
	mustCached(s.output, s.name)
	dx := mat.DenseCopyOf(grad)
	dx.Apply(func(i, j int, g float64) float64 {
		y := s.output.At(i, j)
		return g * y * (1 - y)
	}, dx)
	return dx
}

func sigmoid(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}
