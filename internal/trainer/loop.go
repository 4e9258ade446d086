package trainer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digitgan/internal/dataset"
	"digitgan/internal/logging"
	"digitgan/internal/metrics"
	"digitgan/internal/model"
	"digitgan/internal/render"
)

// Checkpointer is implemented by models that can persist themselves.
type Checkpointer interface {
	SaveCheckpoint(path string, iteration int) error
}

// RunConfig captures the knobs required by the training loop.
type RunConfig struct {
	Train *dataset.Set
	Model model.Adversarial

	// Epochs is the number of iterations; each one trains the discriminator
	// on half a batch of real and half a batch of generated images, then the
	// generator on a full batch.
	Epochs       int
	BatchSize    int
	SaveInterval int
	LogEvery     int
	Seed         int64
	ImagesDir    string

	CheckpointPath  string
	CheckpointEvery int
	// StartIteration is the first iteration to run, non-zero when resuming.
	StartIteration int
}

// Run executes the adversarial training loop.
func Run(ctx context.Context, cfg RunConfig) error {
	if cfg.Model == nil {
		return errors.New("trainer: model is nil")
	}
	if cfg.Epochs <= 0 {
		return errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize < 2 {
		return fmt.Errorf("trainer: batch size must be >= 2 (got %d)", cfg.BatchSize)
	}
	if cfg.SaveInterval <= 0 {
		return errors.New("trainer: save interval must be > 0")
	}
	if cfg.LogEvery <= 0 {
		cfg.LogEvery = 1
	}
	if cfg.StartIteration < 0 || cfg.StartIteration >= cfg.Epochs {
		return fmt.Errorf("trainer: start iteration %d outside [0, %d)", cfg.StartIteration, cfg.Epochs)
	}

	sampler, err := dataset.NewSampler(cfg.Train, samplerSeed(cfg.Seed, cfg.StartIteration))
	if err != nil {
		return err
	}

	mdl := cfg.Model
	zDim := mdl.LatentDim()
	half := cfg.BatchSize / 2
	var window metrics.Window

	logging.Info("training", logging.Trainer,
		"images", cfg.Train.Len(),
		"epochs", cfg.Epochs,
		"batch_size", cfg.BatchSize,
		"start", cfg.StartIteration,
	)

	last := cfg.StartIteration - 1
	saved := last
	for it := cfg.StartIteration; it < cfg.Epochs; it++ {
		if err := ctx.Err(); err != nil {
			if last > saved {
				if cerr := checkpoint(cfg, last); cerr != nil {
					logging.Error("checkpoint on shutdown failed", logging.Trainer, "error", cerr)
				}
			}
			return err
		}

		startData := time.Now()
		noise := sampler.Noise(half, zDim)
		imgs := sampler.Batch(half)
		genNoise := sampler.Noise(cfg.BatchSize, zDim)
		dataTime := time.Since(startData)

		startCompute := time.Now()
		fake := mdl.Generate(noise)
		dReal := mdl.TrainDiscriminator(imgs, 1)
		dFake := mdl.TrainDiscriminator(fake, 0)
		gLoss := mdl.TrainGenerator(genNoise)
		computeTime := time.Since(startCompute)

		step := metrics.Step{
			DLoss: 0.5 * (dReal.Loss + dFake.Loss),
			DAcc:  0.5 * (dReal.Accuracy + dFake.Accuracy),
			GLoss: gLoss,
		}
		window.Record(cfg.BatchSize, dataTime, computeTime, step)
		last = it

		if (it-cfg.StartIteration+1)%cfg.LogEvery == 0 {
			snap := window.Snapshot()
			logging.Info("progress", logging.Trainer,
				"iteration", it,
				"d_loss", snap.Mean.DLoss,
				"d_acc", fmt.Sprintf("%.2f%%", 100*snap.Mean.DAcc),
				"g_loss", snap.Mean.GLoss,
				"images_per_sec", fmt.Sprintf("%.1f", snap.ImagesPerSec),
				"compute_ms", fmt.Sprintf("%.2f", snap.AvgComputeMS),
			)
		}

		if it%cfg.SaveInterval == 0 {
			if err := saveImages(cfg.ImagesDir, it, mdl, sampler); err != nil {
				return err
			}
		}

		if cfg.CheckpointEvery > 0 && it > cfg.StartIteration && it%cfg.CheckpointEvery == 0 {
			if err := checkpoint(cfg, it); err != nil {
				return err
			}
			saved = it
		}
	}

	if last == saved {
		return nil
	}
	return checkpoint(cfg, last)
}

// samplerSeed gives a resumed run a stream of batches and noise distinct
// from the one the run started with.
func samplerSeed(seed int64, start int) int64 {
	if start == 0 {
		return seed
	}
	return int64(uint64(seed) ^ uint64(start)*0x9E3779B97F4A7C15)
}

func saveImages(dir string, iteration int, mdl model.Adversarial, sampler *dataset.Sampler) error {
	noise := sampler.Noise(render.Rows*render.Cols, mdl.LatentDim())
	path, err := render.SaveGrid(dir, iteration, mdl.Generate(noise))
	if err != nil {
		return fmt.Errorf("save images: %w", err)
	}
	logging.Debug("wrote samples", logging.Render, "path", path)
	return nil
}

func checkpoint(cfg RunConfig, iteration int) error {
	if cfg.CheckpointPath == "" {
		return nil
	}
	ck, ok := cfg.Model.(Checkpointer)
	if !ok {
		return nil
	}
	if err := ck.SaveCheckpoint(cfg.CheckpointPath, iteration); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	logging.Info("checkpoint saved", logging.Trainer, "path", cfg.CheckpointPath, "iteration", iteration)
	return nil
}
