package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override the config file.
// Nested keys use a double underscore: DIGITGAN_TRAIN__BATCH_SIZE=64.
const EnvPrefix = "DIGITGAN_"

// Config captures the runtime knobs for a training run.
type Config struct {
	Data   DataConfig   `koanf:"data"`
	Train  TrainConfig  `koanf:"train"`
	Model  ModelConfig  `koanf:"model"`
	Output OutputConfig `koanf:"output"`
	Log    LogConfig    `koanf:"log"`
}

type DataConfig struct {
	Source      string   `koanf:"source"`
	Dirs        []string `koanf:"dirs"`
	ShardRoot   string   `koanf:"shard_root"`
	DownloadURL string   `koanf:"download_url"`
	Verify      bool     `koanf:"verify"`
}

type TrainConfig struct {
	Epochs          int    `koanf:"epochs"`
	BatchSize       int    `koanf:"batch_size"`
	SaveInterval    int    `koanf:"save_interval"`
	Seed            int64  `koanf:"seed"`
	LogEvery        int    `koanf:"log_every"`
	CheckpointPath  string `koanf:"checkpoint_path"`
	CheckpointEvery int    `koanf:"checkpoint_every"`
	ResumeFrom      string `koanf:"resume_from"`
}

type ModelConfig struct {
	ZDim         int     `koanf:"z_dim"`
	LearningRate float64 `koanf:"learning_rate"`
	Beta1        float64 `koanf:"beta1"`
}

type OutputConfig struct {
	ImagesDir string `koanf:"images_dir"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

const (
	SourceMNIST      = "mnist"
	SourceWebDataset = "webdataset"
)

// Default returns the settings of the reference run: 30000 iterations of
// batch 32, a sample grid every 100 iterations.
func Default() Config {
	return Config{
		Data: DataConfig{
			Source: SourceMNIST,
			Dirs:   []string{"data/mnist", "/tmp/mnist"},
			Verify: true,
		},
		Train: TrainConfig{
			Epochs:       30000,
			BatchSize:    32,
			SaveInterval: 100,
			Seed:         42,
			LogEvery:     1,
		},
		Model: ModelConfig{
			ZDim:         100,
			LearningRate: 0.0002,
			Beta1:        0.5,
		},
		Output: OutputConfig{ImagesDir: "images"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataDirs     []string
	ShardRoot    string
	Epochs       int
	BatchSize    int
	SaveInterval int
	Seed         int64
	LogEvery     int
	ImagesDir    string
	Checkpoint   string
	ResumeFrom   string
}

// Load reads a Config: defaults, then the YAML file at path (skipped when
// path is empty), then DIGITGAN_ environment variables.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadProvider(nil)
	}
	return LoadProvider(file.Provider(path))
}

// LoadProvider is Load with an arbitrary YAML provider.
func LoadProvider(p koanf.Provider) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if p != nil {
		fk := koanf.New(".")
		if err := fk.Load(p, yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if err := checkKeys(k, fk); err != nil {
			return nil, err
		}
		if err := k.Merge(fk); err != nil {
			return nil, fmt.Errorf("merge config: %w", err)
		}
	}

	// Empty variables are skipped rather than zeroing the setting.
	err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, interface{}) {
		if value == "" {
			return "", nil
		}
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(key, EnvPrefix)), "__", ".", -1), value
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func checkKeys(defaults, loaded *koanf.Koanf) error {
	var unknown []string
	for _, key := range loaded.Keys() {
		if !defaults.Exists(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown config keys: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(*cfg, "koanf"), nil); err != nil {
		return nil, err
	}
	return k.Marshal(yaml.Parser())
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if len(o.DataDirs) > 0 {
		c.Data.Dirs = o.DataDirs
	}
	if o.ShardRoot != "" {
		c.Data.Source = SourceWebDataset
		c.Data.ShardRoot = o.ShardRoot
	}
	if o.Epochs > 0 {
		c.Train.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.Train.BatchSize = o.BatchSize
	}
	if o.SaveInterval > 0 {
		c.Train.SaveInterval = o.SaveInterval
	}
	if o.Seed != 0 {
		c.Train.Seed = o.Seed
	}
	if o.LogEvery > 0 {
		c.Train.LogEvery = o.LogEvery
	}
	if o.ImagesDir != "" {
		c.Output.ImagesDir = o.ImagesDir
	}
	if o.Checkpoint != "" {
		c.Train.CheckpointPath = o.Checkpoint
	}
	if o.ResumeFrom != "" {
		c.Train.ResumeFrom = o.ResumeFrom
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Data.Source {
	case SourceMNIST:
		if len(c.Data.Dirs) == 0 {
			return errors.New("data.dirs must list at least one directory")
		}
	case SourceWebDataset:
		if c.Data.ShardRoot == "" {
			return errors.New("data.shard_root must be set for the webdataset source")
		}
	default:
		return fmt.Errorf("data.source must be %q or %q (got %q)", SourceMNIST, SourceWebDataset, c.Data.Source)
	}
	if c.Train.Epochs <= 0 {
		return fmt.Errorf("train.epochs must be > 0 (got %d)", c.Train.Epochs)
	}
	if c.Train.BatchSize < 2 {
		return fmt.Errorf("train.batch_size must be >= 2 (got %d)", c.Train.BatchSize)
	}
	if c.Train.SaveInterval <= 0 {
		return fmt.Errorf("train.save_interval must be > 0 (got %d)", c.Train.SaveInterval)
	}
	if c.Train.CheckpointEvery < 0 {
		return fmt.Errorf("train.checkpoint_every must be >= 0 (got %d)", c.Train.CheckpointEvery)
	}
	if c.Model.ZDim <= 0 {
		return fmt.Errorf("model.z_dim must be > 0 (got %d)", c.Model.ZDim)
	}
	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("model.learning_rate must be > 0 (got %g)", c.Model.LearningRate)
	}
	if c.Model.Beta1 < 0 || c.Model.Beta1 >= 1 {
		return fmt.Errorf("model.beta1 must be in [0, 1) (got %g)", c.Model.Beta1)
	}
	if c.Output.ImagesDir == "" {
		return errors.New("output.images_dir must be set")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", c.Log.Format)
	}
	if c.Train.LogEvery <= 0 {
		c.Train.LogEvery = 1
	}
	return nil
}
