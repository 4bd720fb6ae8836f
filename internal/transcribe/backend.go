// Package transcribe converts extracted audio to text.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable is returned when no speech recognizer is configured
var ErrUnavailable = errors.New("transcription unavailable")

// Segment is a timed portion of transcribed audio
type Segment struct {
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
	Text     string  `json:"text"`
}

// Transcript bundles the segments of one recording
type Transcript struct {
	Language string        `json:"language,omitempty"`
	Text     string        `json:"text"`
	Segments []Segment     `json:"segments,omitempty"`
	Duration time.Duration `json:"-"`
}

// Backend is a pluggable transcription backend
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (Transcript, error)
}

// Options selects and configures a backend
type Options struct {
	Backend  string
	Model    string
	APIKey   string
	BaseURL  string
	Language string
}

// NewBackend builds the named backend. "none" (or empty) yields nil.
func NewBackend(opts Options) (Backend, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "none":
		return nil, nil
	case "openai":
		if opts.APIKey == "" {
			return nil, errors.New("openai backend needs an api key")
		}
		return NewOpenAIBackend(opts), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", opts.Backend)
	}
}
