// Package training drives the ultralytics CLI to train and export a YOLOv8
// model and records the result for the detector app.
package training

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"yoloface/internal/config"
	"yoloface/internal/log"
	"yoloface/internal/registry"
)

// CommandRunner runs an external command to completion.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming their output.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	log.Debug("running", "cmd", cmd.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

type Trainer struct {
	cfg          config.TrainingConfig
	runsDir      string
	manifestPath string
	runner       CommandRunner
}

func NewTrainer(cfg config.TrainingConfig, runsDir, manifestPath string, runner CommandRunner) *Trainer {
	return &Trainer{
		cfg:          cfg,
		runsDir:      runsDir,
		manifestPath: manifestPath,
		runner:       runner,
	}
}

// RunDir is where the training run writes its results.
func (t *Trainer) RunDir() string {
	return filepath.Join(t.runsDir, t.cfg.RunName)
}

func (t *Trainer) trainArgs(data string) []string {
	return []string{
		"detect", "train",
		"data=" + data,
		"model=" + t.cfg.BaseWeights,
		"epochs=" + strconv.Itoa(t.cfg.Epochs),
		"imgsz=" + strconv.Itoa(t.cfg.ImageSize),
		"batch=" + strconv.Itoa(t.cfg.Batch),
		"name=" + t.cfg.RunName,
		"project=" + t.runsDir,
		"exist_ok=True",
	}
}

func (t *Trainer) exportArgs(weights string) []string {
	return []string{
		"export",
		"model=" + weights,
		"format=onnx",
		"imgsz=" + strconv.Itoa(t.cfg.ImageSize),
	}
}

// Train trains on the dataset in datasetDir, exports the best weights to
// ONNX and writes the manifest naming them.
func (t *Trainer) Train(ctx context.Context, datasetDir string) (*registry.Manifest, error) {
	ds, err := LoadDataset(filepath.Join(datasetDir, DatasetFile))
	if err != nil {
		return nil, err
	}

	data, err := filepath.Abs(ds.Path)
	if err != nil {
		return nil, err
	}

	logger := log.With("run", t.cfg.RunName)
	logger.Info("training", "data", data, "classes", len(ds.Names), "epochs", t.cfg.Epochs)

	if err := t.runner.Run(ctx, t.cfg.YoloBin, t.trainArgs(data)...); err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	best := filepath.Join(t.RunDir(), "weights", "best.pt")
	if _, err := os.Stat(best); err != nil {
		return nil, fmt.Errorf("train produced no weights: %w", err)
	}

	logger.Info("exporting", "weights", best)
	if err := t.runner.Run(ctx, t.cfg.YoloBin, t.exportArgs(best)...); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	onnx := filepath.Join(t.RunDir(), "weights", registry.WeightsFile)
	if _, err := os.Stat(onnx); err != nil {
		return nil, fmt.Errorf("export produced no model: %w", err)
	}

	m := registry.Manifest{
		Name:      t.cfg.RunName,
		Weights:   onnx,
		Source:    best,
		Classes:   ds.Names,
		ImageSize: t.cfg.ImageSize,
		Dataset:   datasetDir,
		CreatedAt: time.Now().UTC(),
	}
	if err := registry.Write(t.manifestPath, m); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	logger.Info("manifest written", "path", t.manifestPath)
	return &m, nil
}
