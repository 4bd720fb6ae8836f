package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	FFmpeg     FFmpegConfig     `yaml:"ffmpeg"`
	Mix        MixConfig        `yaml:"mix"`
	Output     OutputConfig     `yaml:"output"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	// Dir is the flat asset area holding intermediates and outputs
	Dir             string        `yaml:"dir"`
	MaxAge          time.Duration `yaml:"max_age"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	PurgeOnShutdown bool          `yaml:"purge_on_shutdown"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`

	// CallTimeout bounds every single ffmpeg/ffprobe invocation
	CallTimeout time.Duration `yaml:"call_timeout"`
}

type MixConfig struct {
	BackgroundVolume float64 `yaml:"background_volume"`
	FadeoutSeconds   float64 `yaml:"fadeout_seconds"`
	SampleRate       int     `yaml:"sample_rate"`
	Channels         int     `yaml:"channels"`
}

type OutputConfig struct {
	Codec      string `yaml:"codec"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Bitrate    string `yaml:"bitrate"`
}

type TranscribeConfig struct {
	Backend  string `yaml:"backend"` // none|openai
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
}

type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
	JSON    bool `yaml:"json"`
}

// Load reads configuration from file or returns defaults. A .env file in
// the working directory is loaded first so environment overrides can live
// next to the binary.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxBodyBytes:    512 << 20,
			DownloadTimeout: 5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Dir:             filepath.Join(os.TempDir(), "audio_extractor"),
			MaxAge:          time.Hour,
			SweepInterval:   10 * time.Minute,
			PurgeOnShutdown: true,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath:  "ffmpeg",
			ProbePath:   "ffprobe",
			Threads:     0,
			CallTimeout: 5 * time.Minute,
		},
		Mix: MixConfig{
			BackgroundVolume: 0.3,
			FadeoutSeconds:   3.0,
			SampleRate:       44100,
			Channels:         2,
		},
		Output: OutputConfig{
			Codec:      "libmp3lame",
			SampleRate: 44100,
			Channels:   2,
			Bitrate:    "192k",
		},
		Transcribe: TranscribeConfig{
			Backend: "none",
			Model:   "whisper-1",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".soundbed", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return DefaultConfig()
}
