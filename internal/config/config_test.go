package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFile_MissingReturnsDefaults(t *testing.T) {
	cfg := LoadConfigFile(filepath.Join(t.TempDir(), "nope.json"))

	assert.Equal(t, DefaultWindowTitle, cfg.WindowTitle)
	assert.Equal(t, 1280, cfg.GetWidth())
	assert.Equal(t, 720, cfg.GetHeight())
	assert.Equal(t, CaptureOpenCV, cfg.CaptureBackend)
	assert.Equal(t, DetectorONNX, cfg.Detector.Backend)
	assert.Equal(t, 50, cfg.Training.Epochs)
	assert.Equal(t, 320, cfg.Training.ImageSize)
	assert.Equal(t, 8, cfg.Training.Batch)
}

func TestLoadConfigFile_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"camera_index": 2, "detector": {"backend": "remote"}}`), 0o644))

	cfg := LoadConfigFile(path)

	assert.Equal(t, 2, cfg.GetCameraIndex())
	assert.Equal(t, DetectorRemote, cfg.Detector.Backend)
	assert.Equal(t, 1280, cfg.FrameWidth)
	assert.Equal(t, DefaultManifestPath, cfg.Model.Manifest)
}

func TestLoadConfigFile_BrokenFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"camera_index": `), 0o644))

	cfg := LoadConfigFile(path)
	assert.Equal(t, 0, cfg.GetCameraIndex())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("YOLOFACE_CAMERA", "3")
	t.Setenv("YOLOFACE_MANIFEST", "elsewhere/model.json")
	t.Setenv("YOLOFACE_DETECTOR", "remote")
	t.Setenv(APIKeyEnv, "secret")

	cfg := Load(filepath.Join(t.TempDir(), "config.json"))

	assert.Equal(t, 3, cfg.GetCameraIndex())
	assert.Equal(t, "elsewhere/model.json", cfg.Model.Manifest)
	assert.Equal(t, DetectorRemote, cfg.Detector.Backend)
	assert.Equal(t, "secret", cfg.APIKey)
}

func TestSave_DoesNotWriteAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := NewDefaultConfig()
	cfg.APIKey = "secret"
	cfg.SetCameraIndex(1)

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")

	loaded := LoadConfigFile(path)
	assert.Equal(t, 1, loaded.GetCameraIndex())
	assert.Empty(t, loaded.APIKey)
}
