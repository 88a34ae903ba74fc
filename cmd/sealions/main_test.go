package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/sealions/internal/config"
	"github.com/ivlev/sealions/internal/engine"
	"github.com/ivlev/sealions/internal/nn"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestSynthThenExtract(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output")

	out, err := execute(t, "synth", "-o", input, "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "0.png: 15 dots")
	assert.FileExists(t, filepath.Join(input, "TrainDotted", "1.png"))

	out, err = execute(t, "extract", "-i", input, "-o", output, "--log-level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "0.png: 15 patches")
	assert.FileExists(t, filepath.Join(output, engine.CoordinatesFile))
	assert.FileExists(t, filepath.Join(output, engine.ExamplesFile))
	assert.NoFileExists(t, filepath.Join(output, engine.HistoryFile))
}

func TestRunFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output")
	_, err := execute(t, "synth", "-o", input)
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("epochs: 5\npatch_size: 24\nbatch_size: 4\n"), 0644))

	out, err := execute(t, "run", "--config", cfgPath, "-i", input, "-o", output, "--epochs", "1", "-w", "2", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "val_accuracy")

	effective, err := config.Load(filepath.Join(output, engine.ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, 1, effective.Epochs)
	assert.Equal(t, 24, effective.PatchSize)
	assert.Equal(t, 4, effective.BatchSize)
	assert.Equal(t, 2, effective.Workers)

	data, err := os.ReadFile(filepath.Join(output, engine.HistoryFile))
	require.NoError(t, err)
	var h nn.History
	require.NoError(t, yaml.Unmarshal(data, &h))
	assert.Len(t, h.Loss, 1)
}

func TestRunInvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "-i", t.TempDir(), "--patch-size", "7")
	assert.ErrorContains(t, err, "patch_size")
}

func TestRunBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, "extract", "-i", dir, "--log-level", "loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "sealions dev")
}
