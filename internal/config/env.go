package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv overlays environment variables on top of file configuration.
//
//	PORT                      server listen port (":<port>")
//	SOUNDBED_ADDR             full listen address, wins over PORT
//	SOUNDBED_TEMP_DIR         asset directory
//	SOUNDBED_FFMPEG           ffmpeg binary
//	SOUNDBED_FFPROBE          ffprobe binary
//	SOUNDBED_CALL_TIMEOUT     per toolkit call deadline (Go duration)
//	SOUNDBED_TRANSCRIBE       transcription backend: none|openai
//	SOUNDBED_LOG_JSON         "true" for JSON logs
//	OPENAI_API_KEY            OpenAI key, also enables the openai backend when unset
//	OPENAI_BASE_URL           alternate OpenAI compatible endpoint
func (c *Config) applyEnv() {
	if v := env("PORT"); v != "" {
		c.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := env("SOUNDBED_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := env("SOUNDBED_TEMP_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := env("SOUNDBED_FFMPEG"); v != "" {
		c.FFmpeg.BinaryPath = v
	}
	if v := env("SOUNDBED_FFPROBE"); v != "" {
		c.FFmpeg.ProbePath = v
	}
	if v := env("SOUNDBED_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.FFmpeg.CallTimeout = d
		}
	}
	if v := env("SOUNDBED_LOG_JSON"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.JSON = b
		}
	}
	if v := env("OPENAI_API_KEY"); v != "" {
		c.Transcribe.APIKey = v
		if c.Transcribe.Backend == "" || c.Transcribe.Backend == "none" {
			c.Transcribe.Backend = "openai"
		}
	}
	if v := env("OPENAI_BASE_URL"); v != "" {
		c.Transcribe.BaseURL = v
	}
	// explicit backend selection wins over the key heuristic above
	if v := env("SOUNDBED_TRANSCRIBE"); v != "" {
		c.Transcribe.Backend = strings.ToLower(v)
	}
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
