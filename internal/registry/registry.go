// Package registry is the handoff between the training command and the
// detector app. Training writes a manifest naming the active model; the app
// reads it at startup.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"yoloface/internal/log"
)

var (
	// ErrNoWeights means no trained model could be located.
	ErrNoWeights = errors.New("registry: no trained model found")

	// ErrInvalidManifest means the manifest exists but cannot be used.
	ErrInvalidManifest = errors.New("registry: invalid manifest")
)

// WeightsFile is the exported model file the detector loads.
const WeightsFile = "best.onnx"

type Manifest struct {
	Name      string    `json:"name"`
	Weights   string    `json:"weights"`
	Source    string    `json:"source,omitempty"`
	Classes   []string  `json:"classes,omitempty"`
	ImageSize int       `json:"image_size,omitempty"`
	Dataset   string    `json:"dataset,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Write stores m at path. Weights and Source are stored relative to the
// manifest directory when possible so the runs tree can be moved as a whole.
func Write(path string, m Manifest) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	m.Weights = relativeTo(dir, m.Weights)
	if m.Source != "" {
		m.Source = relativeTo(dir, m.Source)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads the manifest at path and resolves its paths against the
// manifest directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidManifest, path, err)
	}
	if m.Weights == "" {
		return nil, fmt.Errorf("%w: %s: weights not set", ErrInvalidManifest, path)
	}

	dir := filepath.Dir(path)
	m.Weights = resolve(dir, m.Weights)
	if m.Source != "" {
		m.Source = resolve(dir, m.Source)
	}

	return &m, nil
}

// Resolve finds the model to run. The manifest wins; without one the runs
// directory is scanned for <run>/weights/best.onnx and the lexically last
// run is taken.
func Resolve(manifestPath, runsDir string) (*Manifest, error) {
	m, err := Load(manifestPath)
	switch {
	case err == nil:
		if _, statErr := os.Stat(m.Weights); statErr != nil {
			return nil, fmt.Errorf("%w: manifest %s points to %s: %v", ErrNoWeights, manifestPath, m.Weights, statErr)
		}
		return m, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	log.Warn("no model manifest, scanning runs directory", "manifest", manifestPath, "runs_dir", runsDir)

	weights, err := Scan(runsDir)
	if err != nil {
		return nil, err
	}
	latest := weights[len(weights)-1]

	return &Manifest{
		Name:    filepath.Base(filepath.Dir(filepath.Dir(latest))),
		Weights: latest,
	}, nil
}

// Scan lists every <run>/weights/best.onnx under runsDir in lexical order.
func Scan(runsDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(runsDir, "*", "weights", WeightsFile))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoWeights, runsDir)
	}
	sort.Strings(matches)
	return matches, nil
}

func relativeTo(dir, path string) string {
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return path
		}
		path = abs
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absDir, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

func resolve(dir, path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
