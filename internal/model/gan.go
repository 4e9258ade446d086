package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"digitgan/internal/logging"
	"digitgan/internal/nn"
)

const (
	leakAlpha  = 0.2
	bnMomentum = 0.8
	bnEps      = 1e-3
)

// Options configures a GAN.
type Options struct {
	ZDim         int
	LearningRate float64
	Beta1        float64
	Seed         int64
}

// GAN bundles the generator, the discriminator and their optimisers. The
// combined graph is the generator followed by the frozen discriminator.
type GAN struct {
	zDim          int
	Generator     *nn.Sequential
	Discriminator *nn.Sequential

	dOpt *nn.Adam
	gOpt *nn.Adam
}

// NewGenerator maps a zDim latent vector to a flattened 28x28 image in [-1, 1].
func NewGenerator(zDim int, rng *rand.Rand) *nn.Sequential {
	return nn.NewSequential("generator", zDim,
		nn.NewDense("dense_1", zDim, 256, rng),
		nn.NewLeakyReLU("leaky_re_lu_1", leakAlpha),
		nn.NewBatchNorm("batch_normalization_1", 256, bnMomentum, bnEps),
		nn.NewDense("dense_2", 256, 512, rng),
		nn.NewLeakyReLU("leaky_re_lu_2", leakAlpha),
		nn.NewBatchNorm("batch_normalization_2", 512, bnMomentum, bnEps),
		nn.NewDense("dense_3", 512, 1024, rng),
		nn.NewLeakyReLU("leaky_re_lu_3", leakAlpha),
		nn.NewBatchNorm("batch_normalization_3", 1024, bnMomentum, bnEps),
		nn.NewDense("dense_4", 1024, ImageSize, rng),
		nn.NewTanh("tanh_1"),
	)
}

// NewDiscriminator maps a flattened image to the probability that it is real.
func NewDiscriminator(rng *rand.Rand) *nn.Sequential {
	return nn.NewSequential("discriminator", ImageSize,
		nn.NewDense("dense_5", ImageSize, 512, rng),
		nn.NewLeakyReLU("leaky_re_lu_4", leakAlpha),
		nn.NewDense("dense_6", 512, 256, rng),
		nn.NewLeakyReLU("leaky_re_lu_5", leakAlpha),
		nn.NewDense("dense_7", 256, 1, rng),
		nn.NewSigmoid("sigmoid_1"),
	)
}

// New builds both networks from opts.Seed.
func New(opts Options) (*GAN, error) {
	if opts.ZDim <= 0 {
		return nil, fmt.Errorf("model: z_dim must be > 0 (got %d)", opts.ZDim)
	}
	if opts.LearningRate <= 0 {
		return nil, fmt.Errorf("model: learning rate must be > 0 (got %g)", opts.LearningRate)
	}
	rng := rand.New(rand.NewSource(opts.Seed))
	// Each network has its own Adam, so bias correction counts only that
	// network's updates. A single shared optimiser would advance three times
	// per training iteration.
	g := &GAN{
		zDim:          opts.ZDim,
		Discriminator: NewDiscriminator(rng),
		Generator:     NewGenerator(opts.ZDim, rng),
		dOpt:          nn.NewAdam(opts.LearningRate, opts.Beta1),
		gOpt:          nn.NewAdam(opts.LearningRate, opts.Beta1),
	}
	return g, nil
}

func (g *GAN) LatentDim() int { return g.zDim }

// Generate runs the generator in inference mode.
func (g *GAN) Generate(noise *mat.Dense) *mat.Dense {
	return g.Generator.Forward(noise, false)
}

// TrainDiscriminator performs one update of the discriminator on images that
// all carry the same label (1 for real, 0 for generated).
func (g *GAN) TrainDiscriminator(images *mat.Dense, label float64) StepResult {
	g.Discriminator.ZeroGrad()
	pred := g.Discriminator.Forward(images, true)
	loss, grad := nn.BinaryCrossEntropy(pred, label)
	acc := nn.BinaryAccuracy(pred, label)
	g.Discriminator.Backward(grad)
	g.dOpt.Step(g.Discriminator.Params())
	return StepResult{Loss: loss, Accuracy: acc}
}

// TrainGenerator performs one update of the combined graph, asking the
// discriminator to call every generated image real. Only generator weights
// change.
func (g *GAN) TrainGenerator(noise *mat.Dense) float64 {
	frozen := g.Discriminator.Frozen
	g.Discriminator.Frozen = true
	defer func() { g.Discriminator.Frozen = frozen }()

	g.Generator.ZeroGrad()
	g.Discriminator.ZeroGrad()
	fake := g.Generator.Forward(noise, true)
	pred := g.Discriminator.Forward(fake, true)
	loss, grad := nn.BinaryCrossEntropy(pred, 1)
	g.Generator.Backward(g.Discriminator.Backward(grad))
	g.gOpt.Step(g.combinedParams())
	g.Discriminator.ZeroGrad()
	return loss
}

// combinedParams is what the combined graph may update: the generator and,
// unless it is frozen, the discriminator.
func (g *GAN) combinedParams() []*nn.Param {
	return append(g.Generator.TrainableParams(), g.Discriminator.TrainableParams()...)
}

// Summary logs each network's layer table.
func (g *GAN) Summary() {
	for _, net := range []*nn.Sequential{g.Generator, g.Discriminator} {
		rows, trainable, total := net.Summary()
		logging.Info("model summary", logging.Model, "model", net.Name(), "input", net.InputSize())
		for _, r := range rows {
			logging.Info("layer", logging.Model, "model", net.Name(), "layer", r.Layer, "output", r.Output, "params", r.Params)
		}
		logging.Info("parameters", logging.Model, "model", net.Name(),
			"total", total, "trainable", trainable, "non_trainable", total-trainable)
	}
}
