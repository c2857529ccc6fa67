package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/facelapse/internal/facealign"
)

// Config defines engine configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Alignment AlignmentConfig `yaml:"alignment"`
	Detector  DetectorConfig  `yaml:"detector"`
	Video     VideoConfig     `yaml:"video"`
	Watch     WatchConfig     `yaml:"watch"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig locates the blob root holding originals, aligned frames and
// videos.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Path enables file logging. The file is truncated once it exceeds
	// MaxBytes.
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// AlignmentConfig holds the output canvas geometry and detection thresholds.
type AlignmentConfig struct {
	OutputWidth        int     `yaml:"output_width"`
	OutputHeight       int     `yaml:"output_height"`
	TargetEyeDistance  float64 `yaml:"target_eye_distance"`
	EyeLineFraction    float64 `yaml:"eye_line_fraction"`
	MaxDetectDimension int     `yaml:"max_detect_dimension"`
	MinConfidence      float64 `yaml:"min_confidence"`
	RetryConfidence    float64 `yaml:"retry_confidence"`
	JPEGQuality        int     `yaml:"jpeg_quality"`
}

type DetectorConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type VideoConfig struct {
	FFmpegPath    string        `yaml:"ffmpeg_path"`
	Timeout       time.Duration `yaml:"timeout"`
	FrameDuration time.Duration `yaml:"frame_duration"`
}

type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	p := facealign.DefaultParams()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "facelapse.db",
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Log: LogConfig{
			Level:    "info",
			MaxBytes: 10 << 20,
		},
		Alignment: AlignmentConfig{
			OutputWidth:        p.OutputWidth,
			OutputHeight:       p.OutputHeight,
			TargetEyeDistance:  p.TargetEyeDistance,
			EyeLineFraction:    p.EyeLineFraction,
			MaxDetectDimension: p.MaxDetectDimension,
			MinConfidence:      p.MinConfidence,
			RetryConfidence:    p.RetryConfidence,
			JPEGQuality:        p.JPEGQuality,
		},
		Detector: DetectorConfig{
			URL:     "http://127.0.0.1:8765",
			Timeout: 60 * time.Second,
		},
		Video: VideoConfig{
			Timeout:       600 * time.Second,
			FrameDuration: 100 * time.Millisecond,
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file and environment
// variables. path takes precedence over FACELAPSE_CONFIG_PATH.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FACELAPSE_CONFIG_PATH")
	}
	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("FACELAPSE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("FACELAPSE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid FACELAPSE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("FACELAPSE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if dir := os.Getenv("FACELAPSE_DATA_DIR"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	if level := os.Getenv("FACELAPSE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if logPath := os.Getenv("FACELAPSE_LOG_PATH"); logPath != "" {
		cfg.Log.Path = logPath
	}
	if url := os.Getenv("FACELAPSE_DETECTOR_URL"); url != "" {
		cfg.Detector.URL = url
	}
	if ffmpeg := os.Getenv("FACELAPSE_FFMPEG_PATH"); ffmpeg != "" {
		cfg.Video.FFmpegPath = ffmpeg
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate rejects settings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}
	if err := c.Alignment.Params().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("alignment: %w", err))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, errors.New("watch.debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// Params builds the aligner parameters. Landmark indices and fill colour
// always come from the defaults.
func (a AlignmentConfig) Params() facealign.Params {
	p := facealign.DefaultParams()
	p.OutputWidth = a.OutputWidth
	p.OutputHeight = a.OutputHeight
	p.TargetEyeDistance = a.TargetEyeDistance
	p.EyeLineFraction = a.EyeLineFraction
	p.MaxDetectDimension = a.MaxDetectDimension
	p.MinConfidence = a.MinConfidence
	p.RetryConfidence = a.RetryConfidence
	p.JPEGQuality = a.JPEGQuality
	return p
}
