package dataset

import (
	"errors"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Sampler draws random minibatches and latent noise from one seeded source,
// so a run is reproducible from its seed.
type Sampler struct {
	set *Set
	rng *rand.Rand
}

// NewSampler returns a sampler over set. A zero seed selects 42.
func NewSampler(set *Set, seed int64) (*Sampler, error) {
	if set.Len() == 0 {
		return nil, errors.New("sampler: empty dataset")
	}
	if seed == 0 {
		seed = 42
	}
	return &Sampler{set: set, rng: rand.New(rand.NewSource(seed))}, nil
}

// Batch returns n images picked uniformly with replacement, one per row.
func (s *Sampler) Batch(n int) *mat.Dense {
	out := mat.NewDense(n, ImageSize, nil)
	for i := 0; i < n; i++ {
		copy(out.RawRowView(i), s.set.Image(s.rng.Intn(s.set.Len())))
	}
	return out
}

// Noise returns n standard normal latent vectors of width dim.
func (s *Sampler) Noise(n, dim int) *mat.Dense {
	return Noise(s.rng, n, dim)
}

// Noise draws an n x dim matrix of N(0, 1) values from rng.
func Noise(rng *rand.Rand, n, dim int) *mat.Dense {
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(n, dim, data)
}
