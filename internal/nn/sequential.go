package nn

import "gonum.org/v1/gonum/mat"

// Sequential runs its layers in order. A frozen Sequential still
// propagates gradients to its input but is skipped by optimisers.
type Sequential struct {
	name   string
	input  int
	layers []Layer
	Frozen bool
}

func NewSequential(name string, inputSize int, layers ...Layer) *Sequential {
	return &Sequential{name: name, input: inputSize, layers: layers}
}

func (s *Sequential) Name() string { return s.name }

// InputSize is the number of features a sample must have.
func (s *Sequential) InputSize() int { return s.input }

// OutputSize is the number of features produced per sample.
func (s *Sequential) OutputSize() int {
	n := s.input
	for _, l := range s.layers {
		n = l.OutputSize(n)
	}
	return n
}

func (s *Sequential) Layers() []Layer { return s.layers }

func (s *Sequential) Forward(x *mat.Dense, train bool) *mat.Dense {
	mustCols(x, s.input, s.name)
	for _, l := range s.layers {
		x = l.Forward(x, train)
	}
	return x
}

func (s *Sequential) Backward(grad *mat.Dense) *mat.Dense {
	for i := len(s.layers) - 1; i >= 0; i-- {
		grad = s.layers[i].Backward(grad)
	}
	return grad
}

// Params returns the trainable parameters in layer order.
func (s *Sequential) Params() []*Param {
	var out []*Param
	for _, l := range s.layers {
		out = append(out, l.Params()...)
	}
	return out
}

// Tensors returns every tensor that defines the network's behaviour:
// trainable parameters followed, per layer, by any buffers.
func (s *Sequential) Tensors() []*Param {
	var out []*Param
	for _, l := range s.layers {
		out = append(out, l.Params()...)
		if b, ok := l.(Buffered); ok {
			out = append(out, b.Buffers()...)
		}
	}
	return out
}

// TrainableParams is Params, or nothing when the network is frozen.
func (s *Sequential) TrainableParams() []*Param {
	if s.Frozen {
		return nil
	}
	return s.Params()
}

func (s *Sequential) ZeroGrad() {
	for _, p := range s.Params() {
		p.ZeroGrad()
	}
}

// SummaryRow describes one layer for display.
type SummaryRow struct {
	Layer  string
	Output int
	Params int
}

// Summary lists each layer's output width and parameter count, including
// non-trainable buffers in the count.
func (s *Sequential) Summary() (rows []SummaryRow, trainable, total int) {
	n := s.input
	for _, l := range s.layers {
		n = l.OutputSize(n)
		count := 0
		for _, p := range l.Params() {
			count += p.Size()
		}
		trainable += count
		if b, ok := l.(Buffered); ok {
			for _, p := range b.Buffers() {
				count += p.Size()
			}
		}
		total += count
		rows = append(rows, SummaryRow{Layer: l.Name(), Output: n, Params: count})
	}
	return rows, trainable, total
}
