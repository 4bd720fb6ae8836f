package config

import (
	"fmt"
	"strings"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Server.Addr == "" {
		errors = append(errors, "server.addr is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		errors = append(errors, "server.max_body_bytes must be positive")
	}
	if c.Storage.Dir == "" {
		errors = append(errors, "storage.dir is required")
	}
	if c.Storage.MaxAge < 0 || c.Storage.SweepInterval < 0 {
		errors = append(errors, "storage.max_age and storage.sweep_interval cannot be negative")
	}
	if c.FFmpeg.Threads < 0 {
		errors = append(errors, "ffmpeg.threads cannot be negative (use 0 for auto)")
	}
	if c.FFmpeg.CallTimeout <= 0 {
		errors = append(errors, "ffmpeg.call_timeout must be positive")
	}
	if c.Mix.BackgroundVolume <= 0 || c.Mix.BackgroundVolume > 1 {
		errors = append(errors, fmt.Sprintf("mix.background_volume must be in (0, 1], got %g", c.Mix.BackgroundVolume))
	}
	if c.Mix.FadeoutSeconds <= 0 {
		errors = append(errors, "mix.fadeout_seconds must be positive")
	}
	if c.Mix.SampleRate <= 0 || c.Output.SampleRate <= 0 {
		errors = append(errors, "sample rates must be positive")
	}
	if c.Mix.Channels < 1 || c.Mix.Channels > 2 || c.Output.Channels < 1 || c.Output.Channels > 2 {
		errors = append(errors, "channels must be 1 or 2")
	}
	if c.Output.Codec == "" {
		errors = append(errors, "output.codec is required")
	}

	switch c.Transcribe.Backend {
	case "", "none":
	case "openai":
		if c.Transcribe.APIKey == "" {
			errors = append(errors, "transcribe.backend openai requires an API key (transcribe.api_key or OPENAI_API_KEY)")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid transcribe.backend '%s', must be one of: none, openai", c.Transcribe.Backend))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}
