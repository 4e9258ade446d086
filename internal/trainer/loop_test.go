package trainer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"digitgan/internal/dataset"
	"digitgan/internal/model"
)

type call struct {
	kind  string
	rows  int
	label float64
}

type fakeModel struct {
	zDim  int
	calls []call
	saved []int
	noise []float64

	// cancel is called once the generator has been trained cancelAfter times.
	cancel      context.CancelFunc
	cancelAfter int
	gSteps      int
}

func (f *fakeModel) LatentDim() int { return f.zDim }

func (f *fakeModel) Generate(noise *mat.Dense) *mat.Dense {
	rows, _ := noise.Dims()
	f.calls = append(f.calls, call{kind: "generate", rows: rows})
	f.noise = append(f.noise, noise.At(0, 0))
	return mat.NewDense(rows, model.ImageSize, nil)
}

func (f *fakeModel) TrainDiscriminator(images *mat.Dense, label float64) model.StepResult {
	rows, _ := images.Dims()
	f.calls = append(f.calls, call{kind: "d", rows: rows, label: label})
	return model.StepResult{Loss: label + 1, Accuracy: label}
}

func (f *fakeModel) TrainGenerator(noise *mat.Dense) float64 {
	rows, _ := noise.Dims()
	f.calls = append(f.calls, call{kind: "g", rows: rows})
	f.gSteps++
	if f.cancel != nil && f.gSteps == f.cancelAfter {
		f.cancel()
	}
	return 0.5
}

func (f *fakeModel) SaveCheckpoint(path string, iteration int) error {
	f.saved = append(f.saved, iteration)
	return os.WriteFile(path, []byte("ok"), 0o644)
}

func tinySet(t *testing.T) *dataset.Set {
	t.Helper()
	set, err := dataset.NewSet(make([]byte, 4*dataset.ImageSize), []uint8{0, 1, 2, 3})
	require.NoError(t, err)
	return set
}

func TestRunAlternatesUpdates(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeModel{zDim: 8}
	err := Run(context.Background(), RunConfig{
		Train:        tinySet(t),
		Model:        fm,
		Epochs:       3,
		BatchSize:    6,
		SaveInterval: 2,
		ImagesDir:    filepath.Join(dir, "images"),
	})
	require.NoError(t, err)

	// iteration 0: generate half, D real, D fake, G full, then a 25 sample grid
	require.GreaterOrEqual(t, len(fm.calls), 5)
	assert.Equal(t, []call{
		{kind: "generate", rows: 3},
		{kind: "d", rows: 3, label: 1},
		{kind: "d", rows: 3, label: 0},
		{kind: "g", rows: 6},
		{kind: "generate", rows: 25},
	}, fm.calls[:5])

	assert.FileExists(t, filepath.Join(dir, "images", "mnist_0.png"))
	assert.FileExists(t, filepath.Join(dir, "images", "mnist_2.png"))
	assert.NoFileExists(t, filepath.Join(dir, "images", "mnist_1.png"))
	assert.Empty(t, fm.saved, "no checkpoint path configured")
}

func TestRunCheckpointsAndResumes(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeModel{zDim: 4}
	err := Run(context.Background(), RunConfig{
		Train:           tinySet(t),
		Model:           fm,
		Epochs:          7,
		BatchSize:       2,
		SaveInterval:    100,
		ImagesDir:       dir,
		CheckpointPath:  filepath.Join(dir, "gan.ckpt"),
		CheckpointEvery: 2,
		StartIteration:  3,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 6}, fm.saved)
	assert.NoFileExists(t, filepath.Join(dir, "mnist_0.png"))
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fm := &fakeModel{zDim: 4}
	err := Run(ctx, RunConfig{
		Train:          tinySet(t),
		Model:          fm,
		Epochs:         10,
		BatchSize:      2,
		SaveInterval:   1,
		ImagesDir:      t.TempDir(),
		CheckpointPath: filepath.Join(t.TempDir(), "gan.ckpt"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fm.calls)
	assert.Empty(t, fm.saved)
}

func TestRunCheckpointsLastIterationOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fm := &fakeModel{zDim: 4, cancel: cancel, cancelAfter: 3}
	err := Run(ctx, RunConfig{
		Train:          tinySet(t),
		Model:          fm,
		Epochs:         10,
		BatchSize:      2,
		SaveInterval:   100,
		ImagesDir:      t.TempDir(),
		CheckpointPath: filepath.Join(t.TempDir(), "gan.ckpt"),
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, fm.gSteps)
	assert.Equal(t, []int{2}, fm.saved)
}

func TestRunFinalCheckpointWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	fm := &fakeModel{zDim: 4}
	err := Run(context.Background(), RunConfig{
		Train:           tinySet(t),
		Model:           fm,
		Epochs:          5,
		BatchSize:       2,
		SaveInterval:    100,
		ImagesDir:       dir,
		CheckpointPath:  filepath.Join(dir, "gan.ckpt"),
		CheckpointEvery: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, fm.saved)
}

func TestResumedRunDrawsFreshNoise(t *testing.T) {
	run := func(start int) float64 {
		fm := &fakeModel{zDim: 4}
		err := Run(context.Background(), RunConfig{
			Train:          tinySet(t),
			Model:          fm,
			Epochs:         start + 1,
			BatchSize:      2,
			SaveInterval:   100,
			Seed:           7,
			ImagesDir:      t.TempDir(),
			StartIteration: start,
		})
		require.NoError(t, err)
		require.NotEmpty(t, fm.noise)
		return fm.noise[0]
	}

	assert.Equal(t, run(0), run(0))
	assert.NotEqual(t, run(0), run(3))
	assert.Equal(t, int64(7), samplerSeed(7, 0))
	assert.NotEqual(t, samplerSeed(7, 3), samplerSeed(7, 4))
}

func TestRunValidatesConfig(t *testing.T) {
	base := RunConfig{Train: tinySet(t), Model: &fakeModel{zDim: 2}, Epochs: 1, BatchSize: 2, SaveInterval: 1}
	for name, mutate := range map[string]func(*RunConfig){
		"nil model":    func(c *RunConfig) { c.Model = nil },
		"no epochs":    func(c *RunConfig) { c.Epochs = 0 },
		"tiny batch":   func(c *RunConfig) { c.BatchSize = 1 },
		"no interval":  func(c *RunConfig) { c.SaveInterval = 0 },
		"resume past":  func(c *RunConfig) { c.StartIteration = 1 },
		"empty images": func(c *RunConfig) { c.Train = &dataset.Set{} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := base
			cfg.ImagesDir = t.TempDir()
			mutate(&cfg)
			require.Error(t, Run(context.Background(), cfg))
		})
	}
}

func TestRunWithRealGAN(t *testing.T) {
	gan, err := model.New(model.Options{ZDim: 10, LearningRate: 0.0002, Beta1: 0.5, Seed: 1})
	require.NoError(t, err)
	dir := t.TempDir()
	ckpt := filepath.Join(dir, "gan.ckpt")

	err = Run(context.Background(), RunConfig{
		Train:          tinySet(t),
		Model:          gan,
		Epochs:         2,
		BatchSize:      4,
		SaveInterval:   1,
		ImagesDir:      dir,
		CheckpointPath: ckpt,
	})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "mnist_1.png"))

	restored, iter, err := model.LoadGAN(ckpt, model.Options{ZDim: 10, LearningRate: 0.0002, Beta1: 0.5, Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, iter)
	z := dataset.Noise(rand.New(rand.NewSource(3)), 2, 10)
	assert.True(t, mat.Equal(gan.Generate(z), restored.Generate(z)))
}
