package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "SOUNDBED_ADDR", "SOUNDBED_TEMP_DIR", "SOUNDBED_FFMPEG", "SOUNDBED_FFPROBE",
		"SOUNDBED_CALL_TIMEOUT", "SOUNDBED_TRANSCRIBE", "SOUNDBED_LOG_JSON",
		"OPENAI_API_KEY", "OPENAI_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mix.BackgroundVolume != 0.3 {
		t.Errorf("Expected background volume 0.3, got %g", cfg.Mix.BackgroundVolume)
	}
	if cfg.Mix.FadeoutSeconds != 3.0 {
		t.Errorf("Expected fadeout 3.0, got %g", cfg.Mix.FadeoutSeconds)
	}
	if cfg.Mix.SampleRate != 44100 || cfg.Mix.Channels != 2 {
		t.Errorf("Expected 44100 Hz stereo, got %d Hz %d ch", cfg.Mix.SampleRate, cfg.Mix.Channels)
	}
	if cfg.Output.Codec != "libmp3lame" {
		t.Errorf("Expected libmp3lame, got %s", cfg.Output.Codec)
	}
	if filepath.Base(cfg.Storage.Dir) != "audio_extractor" {
		t.Errorf("Expected audio_extractor temp dir, got %s", cfg.Storage.Dir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  addr: ":9090"
ffmpeg:
  call_timeout: 30s
mix:
  background_volume: 0.25
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Expected :9090, got %s", cfg.Server.Addr)
	}
	if cfg.FFmpeg.CallTimeout != 30*time.Second {
		t.Errorf("Expected 30s, got %v", cfg.FFmpeg.CallTimeout)
	}
	if cfg.Mix.BackgroundVolume != 0.25 {
		t.Errorf("Expected 0.25, got %g", cfg.Mix.BackgroundVolume)
	}
	// untouched sections keep defaults
	if cfg.Mix.FadeoutSeconds != 3.0 {
		t.Errorf("Expected default fadeout, got %g", cfg.Mix.FadeoutSeconds)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Expected default addr, got %s", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("SOUNDBED_TEMP_DIR", "/tmp/sb-test")
	t.Setenv("SOUNDBED_CALL_TIMEOUT", "90s")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := DefaultConfig()
	cfg.applyEnv()

	if cfg.Server.Addr != ":7000" {
		t.Errorf("Expected :7000, got %s", cfg.Server.Addr)
	}
	if cfg.Storage.Dir != "/tmp/sb-test" {
		t.Errorf("Expected /tmp/sb-test, got %s", cfg.Storage.Dir)
	}
	if cfg.FFmpeg.CallTimeout != 90*time.Second {
		t.Errorf("Expected 90s, got %v", cfg.FFmpeg.CallTimeout)
	}
	if cfg.Transcribe.Backend != "openai" || cfg.Transcribe.APIKey != "sk-test" {
		t.Errorf("Expected openai backend with key, got %q/%q", cfg.Transcribe.Backend, cfg.Transcribe.APIKey)
	}

	t.Setenv("SOUNDBED_TRANSCRIBE", "none")
	cfg.applyEnv()
	if cfg.Transcribe.Backend != "none" {
		t.Errorf("explicit backend should win, got %s", cfg.Transcribe.Backend)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errorText string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero volume", func(c *Config) { c.Mix.BackgroundVolume = 0 }, "background_volume"},
		{"no timeout", func(c *Config) { c.FFmpeg.CallTimeout = 0 }, "call_timeout"},
		{"bad channels", func(c *Config) { c.Output.Channels = 6 }, "channels"},
		{"openai without key", func(c *Config) { c.Transcribe.Backend = "openai" }, "API key"},
		{"unknown backend", func(c *Config) { c.Transcribe.Backend = "vosk" }, "invalid transcribe.backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorText == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorText) {
				t.Errorf("expected error containing %q, got %v", tt.errorText, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := DefaultConfig()
	cfg.Server.Addr = ":1234"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Server.Addr != ":1234" {
		t.Errorf("Expected :1234, got %s", loaded.Server.Addr)
	}
}

func TestContextCarry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Addr = ":4242"
	ctx := WithConfig(context.Background(), cfg)
	if got := FromContext(ctx); got.Server.Addr != ":4242" {
		t.Errorf("Expected :4242 from context, got %s", got.Server.Addr)
	}
	if got := FromContext(context.Background()); got.Server.Addr != ":8000" {
		t.Errorf("Expected defaults without config, got %s", got.Server.Addr)
	}
}
