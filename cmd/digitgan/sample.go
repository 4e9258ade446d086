package main

import (
	"errors"
	"math/rand"

	"github.com/spf13/cobra"

	"digitgan/internal/config"
	"digitgan/internal/dataset"
	"digitgan/internal/logging"
	"digitgan/internal/model"
	"digitgan/internal/render"
)

func newSampleCmd() *cobra.Command {
	var (
		checkpoint string
		outDir     string
		iteration  int
		seed       int64
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Render a 5x5 grid of digits from a trained checkpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, config.Overrides{ImagesDir: outDir})
			if err != nil {
				return err
			}
			if checkpoint == "" {
				checkpoint = cfg.Train.CheckpointPath
			}
			if checkpoint == "" {
				return errors.New("sample: --checkpoint is required")
			}
			gan, iter, err := model.LoadGAN(checkpoint, model.Options{
				ZDim:         cfg.Model.ZDim,
				LearningRate: cfg.Model.LearningRate,
				Beta1:        cfg.Model.Beta1,
			})
			if err != nil {
				return err
			}
			if iteration < 0 {
				iteration = iter
			}
			rng := rand.New(rand.NewSource(seed))
			noise := dataset.Noise(rng, render.Rows*render.Cols, gan.LatentDim())
			path, err := render.SaveGrid(cfg.Output.ImagesDir, iteration, gan.Generate(noise))
			if err != nil {
				return err
			}
			logging.Info("wrote samples", logging.Render, "path", path, "checkpoint_iteration", iter)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&checkpoint, "checkpoint", "", "Checkpoint to load (defaults to train.checkpoint_path)")
	f.StringVar(&outDir, "out-dir", "", "Directory the grid is written to (defaults to output.images_dir)")
	f.IntVar(&iteration, "iteration", -1, "Number used in the file name (defaults to the checkpoint iteration)")
	f.Int64Var(&seed, "seed", 1, "Seed for the latent vectors")
	return cmd
}
