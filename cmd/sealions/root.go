package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ivlev/sealions/internal/config"
)

// options collects flag values. Only flags the user set override the config file.
type options struct {
	configPath string
	flags      *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{flags: config.Default()}

	root := &cobra.Command{
		Use:           "sealions",
		Short:         "Find annotation dots on sea lion photographs and train a patch classifier",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&opts.flags.LogLevel, "log-level", opts.flags.LogLevel, "debug, info, warn or error")

	root.AddCommand(
		newRunCmd(opts, true),
		newRunCmd(opts, false),
		newSynthCmd(),
		newVersionCmd(),
	)
	return root
}

// overrides copies a flag value from the flag-bound config onto the effective one.
var overrides = map[string]func(dst, src *config.Config){
	"log-level":        func(d, s *config.Config) { d.LogLevel = s.LogLevel },
	"input":            func(d, s *config.Config) { d.InputDir = s.InputDir },
	"file":             func(d, s *config.Config) { d.File = s.File },
	"output":           func(d, s *config.Config) { d.OutputDir = s.OutputDir },
	"detector":         func(d, s *config.Config) { d.Detector = s.Detector },
	"threshold":        func(d, s *config.Config) { d.Threshold = s.Threshold },
	"patch-size":       func(d, s *config.Config) { d.PatchSize = s.PatchSize },
	"epochs":           func(d, s *config.Config) { d.Epochs = s.Epochs },
	"batch-size":       func(d, s *config.Config) { d.BatchSize = s.BatchSize },
	"validation-split": func(d, s *config.Config) { d.ValidationSplit = s.ValidationSplit },
	"seed":             func(d, s *config.Config) { d.Seed = s.Seed },
	"workers":          func(d, s *config.Config) { d.Workers = s.Workers },
	"stats":            func(d, s *config.Config) { d.ShowStats = s.ShowStats },
}

// load reads the config file and applies the flags that were set on cmd.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	apply := func(f *pflag.Flag) {
		if set, ok := overrides[f.Name]; ok {
			set(cfg, o.flags)
		}
	}
	cmd.Flags().Visit(apply)
	cmd.InheritedFlags().Visit(apply)

	cfg.BuildVersion = buildVersion
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a colored text logger tagged with a fresh run id.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	h := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
	})
	return slog.New(h).With("run", uuid.NewString()[:8]), nil
}
