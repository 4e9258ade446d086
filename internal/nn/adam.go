package nn

import "math"

// Adam is the Adam optimiser with bias correction folded into the step size:
//
//	lr_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	p   -= lr_t * m / (sqrt(v) + eps)
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	t      int
	moment map[*Param]*adamState
}

type adamState struct {
	m []float64
	v []float64
}

func NewAdam(lr, beta1 float64) *Adam {
	return &Adam{
		LR:     lr,
		Beta1:  beta1,
		Beta2:  0.999,
		Eps:    1e-7,
		moment: make(map[*Param]*adamState),
	}
}

// Iterations returns how many updates have been applied.
func (a *Adam) Iterations() int { return a.t }

// Step applies one update to params using their accumulated gradients.
func (a *Adam) Step(params []*Param) {
	a.t++
	t := float64(a.t)
	lr := a.LR * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		st, ok := a.moment[p]
		if !ok {
			st = &adamState{m: make([]float64, p.Size()), v: make([]float64, p.Size())}
			a.moment[p] = st
		}
		w := p.Value.RawMatrix().Data
		g := p.Grad.RawMatrix().Data
		for i := range w {
			st.m[i] = a.Beta1*st.m[i] + (1-a.Beta1)*g[i]
			st.v[i] = a.Beta2*st.v[i] + (1-a.Beta2)*g[i]*g[i]
			w[i] -= lr * st.m[i] / (math.Sqrt(st.v[i]) + a.Eps)
		}
	}
}
