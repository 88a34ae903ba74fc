package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/sealions/internal/analyzer"
	"github.com/ivlev/sealions/internal/config"
	"github.com/ivlev/sealions/internal/labels"
	"github.com/ivlev/sealions/internal/nn"
	"github.com/ivlev/sealions/internal/patch"
	"github.com/ivlev/sealions/internal/renderer"
	"github.com/ivlev/sealions/internal/source"
	"github.com/ivlev/sealions/internal/system"
)

// Output file names inside Config.OutputDir.
const (
	CoordinatesFile = "coordinates.yaml"
	ExamplesFile    = "examples.png"
	HistoryFile     = "history.yaml"
	AccuracyFile    = "accuracy.png"
	LossFile        = "loss.png"
	ConfigFile      = "config.yaml"
	BenchmarkFile   = "benchmark.log"
)

// sheetScale enlarges example patches on the sheet.
const sheetScale = 3

// Project runs the pipeline over one annotated photograph.
type Project struct {
	Config   *config.Config
	Source   *source.PairSource
	Detector analyzer.Detector
	Logger   *slog.Logger
	// Out receives the performance report. Defaults to stdout.
	Out io.Writer

	stages []system.Stage
}

// Result is what a run produced.
type Result struct {
	File    string
	Table   *labels.Table
	Dataset *patch.Dataset
	Classes []labels.Class // binarizer column order, empty for Extract
	Model   *nn.Model
	History *nn.History
	Outputs []string
}

func NewProject(cfg *config.Config, src *source.PairSource, det analyzer.Detector, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Project{
		Config:   cfg,
		Source:   src,
		Detector: det,
		Logger:   logger,
		Out:      os.Stdout,
	}
}

// Run executes every stage, training included.
func (p *Project) Run(ctx context.Context) (*Result, error) {
	return p.run(ctx, true)
}

// Extract stops after the coordinate table and the example sheet.
func (p *Project) Extract(ctx context.Context) (*Result, error) {
	return p.run(ctx, false)
}

// Stages returns the timings of the last run.
func (p *Project) Stages() []system.Stage {
	return p.stages
}

func (p *Project) run(ctx context.Context, train bool) (*Result, error) {
	start := time.Now()
	p.stages = p.stages[:0]
	cfg := p.Config

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}

	res := &Result{File: cfg.File}
	if res.File == "" {
		name, err := p.Source.First()
		if err != nil {
			return nil, err
		}
		res.File = name
	}

	p.Logger.Info("--- [PROJECT: SEA LIONS] ---",
		"file", res.File, "input", cfg.InputDir, "output", cfg.OutputDir, "workers", cfg.Workers)

	var pair *source.Pair
	if err := p.stage("load", func() (err error) {
		pair, err = p.Source.Load(ctx, res.File)
		return err
	}); err != nil {
		return nil, err
	}
	defer pair.Release()
	p.Logger.Info("[*] pair loaded", "size", pair.Train.Rect.Size())

	var blobs []analyzer.Blob
	if err := p.stage("detect", func() (err error) {
		gray := analyzer.Prepare(pair.Train, pair.Dotted, cfg.MaskThreshold)
		blobs, err = p.Detector.Detect(ctx, gray)
		return err
	}); err != nil {
		return nil, err
	}
	p.Logger.Info("[*] blobs detected", "count", len(blobs))

	if err := p.stage("classify", func() error {
		res.Table = p.classify(res.File, pair.Dotted, blobs)
		return p.write(res, CoordinatesFile, func(path string) error {
			return labels.WriteTable(res.Table, path)
		})
	}); err != nil {
		return nil, err
	}

	if err := p.stage("extract", func() error {
		res.Dataset = patch.Extract(pair.Train, res.Table, res.File, cfg.PatchSize)
		if res.Dataset.Len() == 0 {
			return patch.ErrEmpty
		}
		return nil
	}); err != nil {
		return nil, err
	}
	p.Logger.Info("[*] patches extracted", "count", res.Dataset.Len(), "size", cfg.PatchSize)
	for _, c := range labels.All {
		p.Logger.Debug("class", "name", c, "patches", res.Dataset.Counts()[c])
	}

	if err := p.stage("examples", func() error {
		return p.examples(res)
	}); err != nil {
		return nil, err
	}

	if train {
		if err := p.train(ctx, res); err != nil {
			return nil, err
		}
	}

	if err := p.write(res, ConfigFile, func(path string) error {
		return config.Write(cfg, path)
	}); err != nil {
		return nil, err
	}

	total := time.Since(start)
	p.Logger.Info("[+++] done", "took", total.Round(time.Millisecond), "outputs", len(res.Outputs))
	if cfg.ShowStats {
		p.report(res.File, total)
	}
	return res, nil
}

// classify looks up the dot color under every blob center. Blobs on colors that are not
// annotation dots are dropped.
func (p *Project) classify(file string, dotted *image.RGBA, blobs []analyzer.Blob) *labels.Table {
	table := labels.NewTable()
	table.Ensure(file)

	skipped := 0
	for _, b := range blobs {
		c, ok := labels.Classify(dotted.RGBAAt(b.X, b.Y))
		if !ok {
			skipped++
			continue
		}
		table.Add(file, c, labels.Point{X: b.X, Y: b.Y})
	}
	if skipped > 0 {
		p.Logger.Warn("[!] blobs on unknown colors skipped", "count", skipped)
	}
	for _, c := range labels.All {
		p.Logger.Info("[*] dots", "class", c, "count", len(table.Points(file, c)))
	}
	return table
}

func (p *Project) examples(res *Result) error {
	rows := make([]renderer.SheetRow, 0, len(labels.All))
	for _, c := range labels.All {
		rows = append(rows, renderer.SheetRow{
			Title:  fmt.Sprintf("%s (%d)", c, res.Dataset.Counts()[c]),
			Images: res.Dataset.ByClass(c, p.Config.ExamplesPerRow),
		})
	}
	sheet, err := renderer.ExampleSheet(rows, p.Config.ExamplesPerRow, sheetScale)
	if err != nil {
		return err
	}
	return p.write(res, ExamplesFile, func(path string) error {
		return renderer.WritePNG(path, sheet)
	})
}

func (p *Project) train(ctx context.Context, res *Result) error {
	cfg := p.Config

	var x, y [][]float32
	if err := p.stage("encode", func() error {
		var b labels.Binarizer
		b.Fit(res.Dataset.Labels)
		res.Classes = b.Classes()

		var err error
		y, err = b.Transform(res.Dataset.Labels)
		x = res.Dataset.Tensors()
		return err
	}); err != nil {
		return err
	}
	p.Logger.Info("[*] labels encoded", "classes", res.Classes)

	if err := p.stage("build", func() (err error) {
		in := nn.Shape{H: cfg.PatchSize, W: cfg.PatchSize, C: 3}
		res.Model, err = nn.NewClassifier(in, len(res.Classes), cfg.DropoutRate, cfg.Seed)
		return err
	}); err != nil {
		return err
	}
	for _, l := range res.Model.Summary() {
		p.Logger.Debug("layer", "name", l.Name, "output", l.Output.String(), "params", l.Params)
	}
	p.Logger.Info("[*] model built", "params", res.Model.ParamCount())

	if err := p.stage("fit", func() (err error) {
		res.History, err = nn.Fit(ctx, res.Model, x, y, nn.FitConfig{
			Epochs:          cfg.Epochs,
			BatchSize:       cfg.BatchSize,
			ValidationSplit: cfg.ValidationSplit,
			LearningRate:    cfg.LearningRate,
			Seed:            cfg.Seed,
			Workers:         cfg.Workers,
			OnEpoch:         p.logEpoch,
		})
		if errors.Is(err, nn.ErrNoTrainingData) {
			return fmt.Errorf("%d patches leave nothing to train on with validation_split %g: %w",
				len(x), cfg.ValidationSplit, err)
		}
		return err
	}); err != nil {
		return err
	}

	return p.stage("charts", func() error {
		if err := p.write(res, HistoryFile, func(path string) error {
			data, err := yaml.Marshal(res.History)
			if err != nil {
				return err
			}
			return os.WriteFile(path, data, 0644)
		}); err != nil {
			return err
		}
		h := res.History
		if err := p.chart(res, AccuracyFile, "model accuracy", "accuracy", h.Accuracy, h.ValAccuracy); err != nil {
			return err
		}
		return p.chart(res, LossFile, "model loss", "loss", h.Loss, h.ValLoss)
	})
}

func (p *Project) logEpoch(epoch int, h *nn.History) {
	i := epoch - 1
	attrs := []any{
		"epoch", fmt.Sprintf("%d/%d", epoch, p.Config.Epochs),
		"loss", round4(h.Loss[i]),
		"accuracy", round4(h.Accuracy[i]),
	}
	if len(h.ValLoss) > i {
		attrs = append(attrs, "val_loss", round4(h.ValLoss[i]), "val_accuracy", round4(h.ValAccuracy[i]))
	}
	p.Logger.Info("[>] epoch", attrs...)
}

// chart plots train against held-out values. The held-out line is omitted when nothing
// was held out.
func (p *Project) chart(res *Result, name, title, metric string, train, test []float64) error {
	series := []renderer.Series{{Name: "train", Values: train, Color: renderer.Blue}}
	if len(test) > 0 {
		series = append(series, renderer.Series{Name: "test", Values: test, Color: renderer.Orange})
	}
	c := &renderer.LineChart{Title: title, XLabel: "epoch", YLabel: metric, Series: series}
	img, err := c.Render()
	if err != nil {
		return err
	}
	return p.write(res, name, func(path string) error {
		return renderer.WritePNG(path, img)
	})
}

// stage times fn and records it under name.
func (p *Project) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	p.stages = append(p.stages, system.Stage{Name: name, Duration: d})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	p.Logger.Debug("stage", "name", name, "took", d.Round(time.Millisecond))
	return nil
}

// write creates an output file through fn and records its path.
func (p *Project) write(res *Result, name string, fn func(path string) error) error {
	path := filepath.Join(p.Config.OutputDir, name)
	if err := fn(path); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	res.Outputs = append(res.Outputs, path)
	p.Logger.Info("[+] written", "path", path)
	return nil
}

func (p *Project) report(file string, total time.Duration) {
	u, err := system.Snapshot()
	if err != nil {
		p.Logger.Warn("[!] resource stats unavailable", "err", err)
	}
	fmt.Fprint(p.Out, system.Report(p.Config.BuildVersion, total, p.stages, u))

	line := system.LogLine(p.Config.BuildVersion, file, total, p.stages, u)
	if err := system.AppendLog(filepath.Join(p.Config.OutputDir, BenchmarkFile), line); err != nil {
		p.Logger.Warn("[!] benchmark.log not written", "err", err)
	}
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
