package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

type Config struct {
	InputDir  string `yaml:"input_dir"`
	TrainDir  string `yaml:"train_dir"`
	DottedDir string `yaml:"dotted_dir"`
	File      string `yaml:"file"` // пусто: первый файл после сортировки
	OutputDir string `yaml:"output_dir"`

	Detector      string  `yaml:"detector"`
	MaskThreshold uint8   `yaml:"mask_threshold"`
	MinSigma      float64 `yaml:"min_sigma"`
	MaxSigma      float64 `yaml:"max_sigma"`
	NumSigma      int     `yaml:"num_sigma"`
	Threshold     float64 `yaml:"threshold"`
	Overlap       float64 `yaml:"overlap"`

	PatchSize       int     `yaml:"patch_size"`
	ExamplesPerRow  int     `yaml:"examples_per_row"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split"`
	LearningRate    float64 `yaml:"learning_rate"`
	DropoutRate     float64 `yaml:"dropout_rate"`
	Seed            int64   `yaml:"seed"`

	Workers      int    `yaml:"workers"`
	LogLevel     string `yaml:"log_level"`
	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

// Default returns the settings the experiment was tuned with.
func Default() *Config {
	return &Config{
		InputDir:        "input",
		TrainDir:        "Train",
		DottedDir:       "TrainDotted",
		OutputDir:       "output",
		Detector:        "log",
		MaskThreshold:   20,
		MinSigma:        3,
		MaxSigma:        4,
		NumSigma:        1,
		Threshold:       0.02,
		Overlap:         0.5,
		PatchSize:       32,
		ExamplesPerRow:  10,
		Epochs:          20,
		BatchSize:       32,
		ValidationSplit: 0.2,
		LearningRate:    0.001,
		DropoutRate:     0.5,
		Seed:            42,
		Workers:         runtime.NumCPU(),
		LogLevel:        "info",
	}
}

// Load reads a YAML file on top of Default. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Write stores the effective configuration next to the run outputs.
func Write(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	switch {
	case c.InputDir == "":
		return fmt.Errorf("input_dir is empty")
	case c.OutputDir == "":
		return fmt.Errorf("output_dir is empty")
	case c.ExamplesPerRow < 1:
		return fmt.Errorf("examples_per_row must be >= 1, got %d", c.ExamplesPerRow)
	case c.MinSigma <= 0 || c.MaxSigma < c.MinSigma:
		return fmt.Errorf("invalid sigma range [%g, %g]", c.MinSigma, c.MaxSigma)
	case c.NumSigma < 1:
		return fmt.Errorf("num_sigma must be >= 1, got %d", c.NumSigma)
	case c.Threshold <= 0:
		return fmt.Errorf("threshold must be positive, got %g", c.Threshold)
	case c.Overlap <= 0 || c.Overlap > 1:
		return fmt.Errorf("overlap must be in (0, 1], got %g", c.Overlap)
	case c.PatchSize < 4 || c.PatchSize%2 != 0:
		return fmt.Errorf("patch_size must be an even number >= 4, got %d", c.PatchSize)
	case c.Epochs < 1:
		return fmt.Errorf("epochs must be >= 1, got %d", c.Epochs)
	case c.BatchSize < 1:
		return fmt.Errorf("batch_size must be >= 1, got %d", c.BatchSize)
	case c.ValidationSplit < 0 || c.ValidationSplit >= 1:
		return fmt.Errorf("validation_split must be in [0, 1), got %g", c.ValidationSplit)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	case c.DropoutRate < 0 || c.DropoutRate >= 1:
		return fmt.Errorf("dropout_rate must be in [0, 1), got %g", c.DropoutRate)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}
