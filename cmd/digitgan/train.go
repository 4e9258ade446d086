package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"digitgan/internal/config"
	"digitgan/internal/dataset"
	"digitgan/internal/logging"
	"digitgan/internal/model"
	"digitgan/internal/trainer"
)

func newTrainCmd() *cobra.Command {
	var o config.Overrides
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run adversarial training",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, o)
			if err != nil {
				return err
			}
			return runTrain(cmd.Context(), cfg)
		},
	}
	addTrainFlags(cmd.Flags(), &o)
	return cmd
}

func addTrainFlags(f *pflag.FlagSet, o *config.Overrides) {
	f.StringSliceVar(&o.DataDirs, "data-dir", nil, "Directories searched for the MNIST idx files")
	f.StringVar(&o.ShardRoot, "shard-root", "", "Train on WebDataset shards under this root instead of MNIST idx files")
	f.IntVar(&o.Epochs, "epochs", 0, "Number of training iterations")
	f.IntVar(&o.BatchSize, "batch-size", 0, "Batch size")
	f.IntVar(&o.SaveInterval, "save-interval", 0, "Write a sample grid every N iterations")
	f.Int64Var(&o.Seed, "seed", 0, "PRNG seed")
	f.IntVar(&o.LogEvery, "log-every", 0, "Log every N iterations")
	f.StringVar(&o.ImagesDir, "images-dir", "", "Directory sample grids are written to")
	f.StringVar(&o.Checkpoint, "checkpoint", "", "Checkpoint file written during and after training")
	f.StringVar(&o.ResumeFrom, "resume", "", "Checkpoint to resume from")
}

func runTrain(ctx context.Context, cfg *config.Config) error {
	logging.Banner(logging.Trainer, "seed", cfg.Train.Seed)

	train, err := loadTrainSet(ctx, cfg)
	if err != nil {
		return err
	}

	opts := model.Options{
		ZDim:         cfg.Model.ZDim,
		LearningRate: cfg.Model.LearningRate,
		Beta1:        cfg.Model.Beta1,
		Seed:         cfg.Train.Seed,
	}
	gan, err := model.New(opts)
	if err != nil {
		return err
	}
	start := 0
	if cfg.Train.ResumeFrom != "" {
		iter, err := gan.LoadCheckpoint(cfg.Train.ResumeFrom)
		if err != nil {
			return fmt.Errorf("resume: %w", err)
		}
		start = iter + 1
		logging.Info("resumed", logging.Model, "path", cfg.Train.ResumeFrom, "iteration", iter)
		if start >= cfg.Train.Epochs {
			logging.Warn("checkpoint already reached the configured epochs", logging.Trainer,
				"iteration", iter, "epochs", cfg.Train.Epochs)
			return nil
		}
	}
	gan.Summary()

	runCfg := trainer.RunConfig{
		Train:           train,
		Model:           gan,
		Epochs:          cfg.Train.Epochs,
		BatchSize:       cfg.Train.BatchSize,
		SaveInterval:    cfg.Train.SaveInterval,
		LogEvery:        cfg.Train.LogEvery,
		Seed:            cfg.Train.Seed,
		ImagesDir:       cfg.Output.ImagesDir,
		CheckpointPath:  cfg.Train.CheckpointPath,
		CheckpointEvery: cfg.Train.CheckpointEvery,
		StartIteration:  start,
	}
	if err := trainer.Run(ctx, runCfg); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	return nil
}

func loadTrainSet(ctx context.Context, cfg *config.Config) (*dataset.Set, error) {
	switch cfg.Data.Source {
	case config.SourceWebDataset:
		set, err := dataset.LoadShards(ctx, cfg.Data.ShardRoot)
		if err != nil {
			return nil, fmt.Errorf("load shards under %s: %w", cfg.Data.ShardRoot, err)
		}
		logging.Info("dataset loaded", logging.Dataset, "root", cfg.Data.ShardRoot, "train", set.Len())
		return set, nil
	default:
		ds, err := dataset.LoadMNIST(ctx, dataset.MNISTOptions{
			Dirs:        cfg.Data.Dirs,
			Verify:      cfg.Data.Verify,
			DownloadURL: cfg.Data.DownloadURL,
		})
		if err != nil {
			return nil, fmt.Errorf("load mnist: %w", err)
		}
		logging.Info("dataset loaded", logging.Dataset, "dir", ds.Dir, "train", ds.Train.Len(), "test", ds.Test.Len())
		return ds.Train, nil
	}
}
