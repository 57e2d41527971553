// Command train downloads the face dataset from Roboflow, trains a YOLOv8
// model on it and exports the weights for the detector app.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"yoloface/internal/config"
	"yoloface/internal/log"
	"yoloface/internal/roboflow"
	"yoloface/internal/training"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "config file")
	datasetRoot := flag.String("datasets", ".", "directory the dataset is downloaded into")
	flag.Parse()

	cfg := config.Load(*configPath)
	log.Init(cfg.LogLevel)

	if cfg.APIKey == "" {
		log.Error("missing API key", "env", config.APIKeyEnv)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *datasetRoot); err != nil {
		log.Error("training failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, datasetRoot string) error {
	tc := cfg.Training
	rf := roboflow.NewClient(cfg.APIKey)

	workspace, err := rf.Authenticate(ctx)
	if err != nil {
		return err
	}
	log.Info("authenticated", "workspace", workspace)

	dir, err := rf.Download(ctx, roboflow.Dataset{
		Workspace: tc.Workspace,
		Project:   tc.Project,
		Version:   tc.Version,
		Format:    tc.Format,
	}, datasetRoot)
	if err != nil {
		return err
	}

	trainer := training.NewTrainer(tc, cfg.Model.RunsDir, cfg.Model.Manifest, training.ExecRunner{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})

	m, err := trainer.Train(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Printf("Training complete! The best model is saved at: %s\n", m.Weights)
	return nil
}
