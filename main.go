package main

import (
	"fmt"
	"image"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"

	"yoloface/internal/config"
	"yoloface/internal/log"
	"yoloface/internal/registry"
	"yoloface/internal/ui"
	"yoloface/processing/capture"
	"yoloface/processing/capture/opencv"
	"yoloface/processing/detector"
	"yoloface/processing/detector/onnx"
	"yoloface/processing/display"
	"yoloface/processing/job"
)

func main() {
	cfg := config.Load(config.DefaultConfigPath)
	log.Init(cfg.LogLevel)

	a := app.NewWithID("com.yoloface.detector")

	manifest, err := registry.Resolve(cfg.Model.Manifest, cfg.Model.RunsDir)
	if err != nil {
		log.Error("no trained model available, run cmd/train first", "err", err)
		ui.ShowFatal(a, "Model Not Found", fmt.Errorf("No trained YOLOv8 model found.\nPlease train first.\n\n%w", err))
		os.Exit(1)
	}
	log.Info("using model", "weights", manifest.Weights, "name", manifest.Name)

	det, err := newDetector(cfg, manifest)
	if err != nil {
		log.Error("could not load detector", "err", err)
		ui.ShowFatal(a, "Model Not Loaded", fmt.Errorf("Cannot load %s.\n\n%w", manifest.Weights, err))
		os.Exit(1)
	}
	defer det.Close()

	shell := ui.NewShell(a, cfg)

	runner := job.NewRunner(
		det,
		newOpener(cfg),
		newDisplay(a, cfg),
		shell,
		image.Pt(cfg.GetWidth(), cfg.GetHeight()),
		cfg.WindowTitle,
	)
	shell.SetLauncher(job.NewManager(runner))

	shell.Run()
}

func newDetector(cfg *config.Config, m *registry.Manifest) (detector.Detector, error) {
	if cfg.Detector.Backend == config.DetectorRemote {
		log.Info("using remote detector", "host", cfg.Detector.RemoteHost)
		return detector.NewRemoteDetector(cfg.Detector.RemoteHost), nil
	}

	oc := onnx.DefaultConfig(m.Weights)
	oc.Classes = m.Classes
	oc.ConfidenceThresh = cfg.Detector.Confidence
	oc.NMSThresh = cfg.Detector.NMS
	if m.ImageSize > 0 {
		oc.InputSize = m.ImageSize
	}
	det, err := onnx.New(oc)
	if err != nil {
		return nil, err
	}
	return det, nil
}

func newOpener(cfg *config.Config) capture.Opener {
	if cfg.CaptureBackend == config.CaptureFFmpeg {
		return capture.NewFFmpegOpener(cfg.GetWidth(), cfg.GetHeight())
	}
	return opencv.Open
}

func newDisplay(a fyne.App, cfg *config.Config) job.DisplayFactory {
	if cfg.DisplayBackend == config.DisplayHighGUI {
		return display.Open
	}
	return ui.NewWindowFactory(a, fyne.NewSize(float32(cfg.GetWidth())/2, float32(cfg.GetHeight())/2))
}
