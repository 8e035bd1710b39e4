// Package config assembles runtime settings from defaults, an optional YAML
// file and HANDSOFF_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Embedding backends.
const (
	BackendDNN        = "dnn"
	BackendHTTP       = "http"
	BackendSubprocess = "subprocess"
	BackendMock       = "mock"
)

type Config struct {
	DataDir   string          `yaml:"data_dir"`
	PluginDir string          `yaml:"plugin_dir"`
	StaticDir string          `yaml:"static_dir"`
	Camera    CameraConfig    `yaml:"camera"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Face      FaceConfig      `yaml:"face"`
	Training  TrainingConfig  `yaml:"training"`
	Inference InferenceConfig `yaml:"inference"`
	Alert     AlertConfig     `yaml:"alert"`
	Server    ServerConfig    `yaml:"server"`
}

type CameraConfig struct {
	DeviceID int  `yaml:"device_id"`
	Width    int  `yaml:"width"`
	Height   int  `yaml:"height"`
	FPS      int  `yaml:"fps"`
	Mock     bool `yaml:"mock"` // serve a synthetic frame instead of a device
}

type EmbeddingConfig struct {
	Backend   string `yaml:"backend"`    // dnn, http, subprocess or mock
	ModelPath string `yaml:"model_path"` // ONNX model for the dnn backend
	URL       string `yaml:"url"`        // embedding server for the http backend
	Dim       int    `yaml:"dim"`
}

type FaceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	CascadePath string `yaml:"cascade_path"`
}

type TrainingConfig struct {
	Iterations int           `yaml:"iterations"`
	Delay      time.Duration `yaml:"delay"`
}

type InferenceConfig struct {
	K         int           `yaml:"k"`
	Threshold float64       `yaml:"threshold"`
	Interval  time.Duration `yaml:"interval"`
}

type AlertConfig struct {
	SoundFile     string        `yaml:"sound_file"`
	Cooldown      time.Duration `yaml:"cooldown"`
	PluginTimeout time.Duration `yaml:"plugin_timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultDataDir returns ~/.handsoff, or .handsoff if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".handsoff"
	}
	return filepath.Join(home, ".handsoff")
}

// Default returns the built-in settings.
func Default() *Config {
	dataDir := DefaultDataDir()
	return &Config{
		DataDir:   dataDir,
		PluginDir: filepath.Join(dataDir, "plugins"),
		StaticDir: "web",
		Camera: CameraConfig{
			DeviceID: 0,
			Width:    640,
			Height:   480,
			FPS:      15,
		},
		Embedding: EmbeddingConfig{
			Backend:   BackendDNN,
			ModelPath: filepath.Join(dataDir, "models", "mobilenet_v1_feature.onnx"),
			URL:       "http://localhost:8000",
			Dim:       1024,
		},
		Face: FaceConfig{
			Enabled:     true,
			CascadePath: "haarcascade_frontalface_default.xml",
		},
		Training: TrainingConfig{
			Iterations: 50,
			Delay:      100 * time.Millisecond,
		},
		Inference: InferenceConfig{
			K:         3,
			Threshold: 0.8,
			Interval:  200 * time.Millisecond,
		},
		Alert: AlertConfig{
			Cooldown:      3 * time.Second,
			PluginTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8080",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if path is
// not empty) and then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HANDSOFF_DATA_DIR"); v != "" {
		// Paths under the old data dir follow it unless set explicitly.
		oldPlugins := filepath.Join(c.DataDir, "plugins")
		oldModel := filepath.Join(c.DataDir, "models", "mobilenet_v1_feature.onnx")
		c.DataDir = v
		if c.PluginDir == oldPlugins {
			c.PluginDir = filepath.Join(v, "plugins")
		}
		if c.Embedding.ModelPath == oldModel {
			c.Embedding.ModelPath = filepath.Join(v, "models", "mobilenet_v1_feature.onnx")
		}
	}
	c.PluginDir = envString("HANDSOFF_PLUGIN_DIR", c.PluginDir)
	c.StaticDir = envString("HANDSOFF_STATIC_DIR", c.StaticDir)

	c.Camera.DeviceID = envInt("HANDSOFF_CAMERA_ID", c.Camera.DeviceID)
	c.Camera.Mock = envBool("HANDSOFF_MOCK_CAMERA", c.Camera.Mock)

	c.Embedding.Backend = envString("HANDSOFF_EMBEDDING_BACKEND", c.Embedding.Backend)
	c.Embedding.ModelPath = envString("HANDSOFF_EMBEDDING_MODEL", c.Embedding.ModelPath)
	c.Embedding.URL = envString("HANDSOFF_EMBEDDING_URL", c.Embedding.URL)
	c.Embedding.Dim = envInt("HANDSOFF_EMBEDDING_DIM", c.Embedding.Dim)

	c.Face.Enabled = envBool("HANDSOFF_FACE_CHECK", c.Face.Enabled)
	c.Face.CascadePath = envString("HANDSOFF_CASCADE_PATH", c.Face.CascadePath)

	c.Inference.Threshold = envFloat("HANDSOFF_THRESHOLD", c.Inference.Threshold)

	c.Alert.SoundFile = envString("HANDSOFF_SOUND_FILE", c.Alert.SoundFile)

	c.Server.Addr = envString("HANDSOFF_ADDR", c.Server.Addr)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Embedding.Backend {
	case BackendDNN, BackendHTTP, BackendSubprocess, BackendMock:
	default:
		return fmt.Errorf("unknown embedding backend %q", c.Embedding.Backend)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Embedding.Dim <= 0 {
		return fmt.Errorf("embedding dim must be positive, got %d", c.Embedding.Dim)
	}
	if c.Training.Iterations <= 0 {
		return fmt.Errorf("training iterations must be positive, got %d", c.Training.Iterations)
	}
	if c.Inference.K <= 0 {
		return fmt.Errorf("inference k must be positive, got %d", c.Inference.K)
	}
	if c.Inference.Threshold < 0 || c.Inference.Threshold >= 1 {
		return fmt.Errorf("inference threshold must be in [0, 1), got %v", c.Inference.Threshold)
	}
	if c.Inference.Interval <= 0 {
		return fmt.Errorf("inference interval must be positive, got %s", c.Inference.Interval)
	}
	return nil
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "handsoff.db")
}

// EnsureDirs creates the data and plugin directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.PluginDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envInt reads an environment variable as a non-negative integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}
