package config

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

type CaptureBackend string

const (
	CaptureOpenCV CaptureBackend = "opencv"
	CaptureFFmpeg CaptureBackend = "ffmpeg"
)

type DisplayBackend string

const (
	DisplayFyne    DisplayBackend = "fyne"
	DisplayHighGUI DisplayBackend = "highgui"
)

type DetectorBackend string

const (
	DetectorONNX   DetectorBackend = "onnx"
	DetectorRemote DetectorBackend = "remote"
)

const (
	DefaultConfigPath         string = "config.json"
	DefaultManifestPath       string = "runs/active_model.json"
	DefaultRunsDir            string = "runs/detect"
	DefaultRemoteDetectorHost string = "localhost:8080"
	DefaultWindowTitle        string = "YOLO Face Recognition"

	// APIKeyEnv holds the dataset service key; it is never written to the config file.
	APIKeyEnv string = "ROBOFLOW_API_KEY"
)

type DetectorConfig struct {
	Backend    DetectorBackend `json:"backend"`
	RemoteHost string          `json:"remote_host"`
	Confidence float32         `json:"confidence"`
	NMS        float32         `json:"nms"`
}

type ModelConfig struct {
	Manifest string `json:"manifest"`
	RunsDir  string `json:"runs_dir"`
}

type TrainingConfig struct {
	Workspace   string `json:"workspace"`
	Project     string `json:"project"`
	Version     int    `json:"version"`
	Format      string `json:"format"`
	BaseWeights string `json:"base_weights"`
	Epochs      int    `json:"epochs"`
	ImageSize   int    `json:"image_size"`
	Batch       int    `json:"batch"`
	RunName     string `json:"run_name"`
	YoloBin     string `json:"yolo_bin"`
}

type Config struct {
	mu sync.RWMutex

	WindowTitle    string         `json:"window_title"`
	CameraIndex    int            `json:"camera_index"`
	FrameWidth     int            `json:"frame_width"`
	FrameHeight    int            `json:"frame_height"`
	CaptureBackend CaptureBackend `json:"capture_backend"`
	DisplayBackend DisplayBackend `json:"display_backend"`
	LogLevel       string         `json:"log_level"`

	Detector DetectorConfig `json:"detector"`
	Model    ModelConfig    `json:"model"`
	Training TrainingConfig `json:"training"`

	APIKey string `json:"-"`
}

func (c *Config) GetCameraIndex() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CameraIndex
}

func (c *Config) SetCameraIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CameraIndex = index
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.FrameWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FrameWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.FrameHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FrameHeight = height
}

func (c *Config) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	c.mu.RLock()
	defer c.mu.RUnlock()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

func (c *Config) SaveByDefault() error {
	return c.Save(DefaultConfigPath)
}

// Load reads the config file at path (defaults when it is missing or broken)
// and then applies environment overrides, including values from a .env file.
func Load(path string) *Config {
	// .env is optional
	_ = godotenv.Load()

	cfg := LoadConfigFile(path)
	cfg.applyEnv()
	return cfg
}

func LoadConfigFile(path string) *Config {
	var cfg *Config = NewDefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return cfg
	}
	defer f.Close()

	loaded := NewDefaultConfig()
	if err := json.NewDecoder(f).Decode(loaded); err != nil {
		return cfg
	}

	return loaded
}

func (c *Config) applyEnv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.CameraIndex = getEnvAsInt("YOLOFACE_CAMERA", c.CameraIndex)
	c.Model.Manifest = getEnv("YOLOFACE_MANIFEST", c.Model.Manifest)
	c.Detector.Backend = DetectorBackend(getEnv("YOLOFACE_DETECTOR", string(c.Detector.Backend)))
	c.LogLevel = getEnv("YOLOFACE_LOG_LEVEL", c.LogLevel)
	c.APIKey = getEnv(APIKeyEnv, c.APIKey)
}

func NewDefaultConfig() *Config {
	return &Config{
		WindowTitle:    DefaultWindowTitle,
		CameraIndex:    0,
		FrameWidth:     1280,
		FrameHeight:    720,
		CaptureBackend: CaptureOpenCV,
		DisplayBackend: DisplayFyne,
		LogLevel:       "info",
		Detector: DetectorConfig{
			Backend:    DetectorONNX,
			RemoteHost: DefaultRemoteDetectorHost,
			Confidence: 0.25,
			NMS:        0.45,
		},
		Model: ModelConfig{
			Manifest: DefaultManifestPath,
			RunsDir:  DefaultRunsDir,
		},
		Training: TrainingConfig{
			Workspace:   "charls-lab",
			Project:     "face-recognition-lrmfu",
			Version:     5,
			Format:      "yolov8",
			BaseWeights: "yolov8n.pt",
			Epochs:      50,
			ImageSize:   320,
			Batch:       8,
			RunName:     "face_recognition_run",
			YoloBin:     "yolo",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
