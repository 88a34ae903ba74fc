package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/sealions/internal/analyzer"
	"github.com/ivlev/sealions/internal/engine"
	"github.com/ivlev/sealions/internal/source"
)

// newRunCmd builds "run" (train is true) or "extract".
func newRunCmd(opts *options, train bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect dots, extract patches, train the classifier and plot its history",
		Args:  cobra.NoArgs,
	}
	if !train {
		cmd.Use = "extract"
		cmd.Short = "Detect dots and write the coordinate table and example sheet"
	}

	f := opts.flags
	flags := cmd.Flags()
	flags.StringVarP(&f.InputDir, "input", "i", f.InputDir, "directory holding the Train and TrainDotted folders")
	flags.StringVarP(&f.File, "file", "f", f.File, "image file name (default: first file in numeric order)")
	flags.StringVarP(&f.OutputDir, "output", "o", f.OutputDir, "output directory")
	flags.StringVar(&f.Detector, "detector", f.Detector, "blob detector variant")
	flags.Float64Var(&f.Threshold, "threshold", f.Threshold, "blob response threshold")
	flags.IntVar(&f.PatchSize, "patch-size", f.PatchSize, "patch side in pixels")
	flags.IntVarP(&f.Workers, "workers", "w", f.Workers, "worker goroutines")
	flags.BoolVar(&f.ShowStats, "stats", f.ShowStats, "print a performance report and append it to benchmark.log")
	if train {
		flags.IntVarP(&f.Epochs, "epochs", "e", f.Epochs, "training epochs")
		flags.IntVar(&f.BatchSize, "batch-size", f.BatchSize, "mini-batch size")
		flags.Float64Var(&f.ValidationSplit, "validation-split", f.ValidationSplit, "share of samples held out for validation")
		flags.Int64Var(&f.Seed, "seed", f.Seed, "seed for weights, shuffling and dropout")
	}

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := opts.load(cmd)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
		if err != nil {
			return err
		}

		src, err := source.NewPairSource(cfg.InputDir, cfg.TrainDir, cfg.DottedDir)
		if err != nil {
			return err
		}
		det, err := analyzer.NewDetector(cfg.Detector, analyzer.Params{
			MinSigma:  cfg.MinSigma,
			MaxSigma:  cfg.MaxSigma,
			NumSigma:  cfg.NumSigma,
			Threshold: cfg.Threshold,
			Overlap:   cfg.Overlap,
			Workers:   cfg.Workers,
		})
		if err != nil {
			return err
		}

		project := engine.NewProject(cfg, src, det, logger)
		project.Out = cmd.OutOrStdout()

		run := project.Extract
		if train {
			run = project.Run
		}
		res, err := run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "[+++] %s: %d patches, results in %s\n", res.File, res.Dataset.Len(), cfg.OutputDir)
		if res.History != nil {
			last := res.History.Epochs() - 1
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] accuracy %.4f, loss %.4f", res.History.Accuracy[last], res.History.Loss[last])
			if len(res.History.ValAccuracy) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", val_accuracy %.4f, val_loss %.4f", res.History.ValAccuracy[last], res.History.ValLoss[last])
			}
			fmt.Fprintln(cmd.OutOrStdout())
		}
		return nil
	}
	return cmd
}
