package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ivlev/sealions/internal/synth"
)

func newSynthCmd() *cobra.Command {
	opts := synth.DefaultOptions()
	var (
		out    string
		count  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic Train/TrainDotted pairs for a smoke run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("count must be >= 1, got %d", count)
			}
			seed := opts.Seed
			for i := 0; i < count; i++ {
				o := opts
				o.Seed = seed + int64(i)
				scene, err := synth.Generate(o)
				if err != nil {
					return err
				}
				name := fmt.Sprintf("%d.%s", i, format)
				if err := scene.WritePair(out, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[+] %s: %d dots\n", name, len(scene.Dots))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&out, "output", "o", "input", "directory to create Train and TrainDotted in")
	flags.IntVarP(&count, "count", "n", 1, "number of pairs")
	flags.StringVar(&format, "format", "png", "png or jpg")
	flags.IntVar(&opts.Width, "width", opts.Width, "image width")
	flags.IntVar(&opts.Height, "height", opts.Height, "image height")
	flags.IntVar(&opts.PerClass, "per-class", opts.PerClass, "animals per class")
	flags.Int64Var(&opts.Seed, "seed", opts.Seed, "seed of the first pair")
	return cmd
}
