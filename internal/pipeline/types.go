package pipeline

import (
	"github.com/keagan/soundbed/internal/transcribe"
)

// MixRequest asks for narration mixed over a music bed. Each track is given
// either as the name of a stored file or as inline base64.
type MixRequest struct {
	Audio       string
	AudioBase64 string
	Music       string
	MusicBase64 string

	// WaitMusic is the lead-in, in seconds, before the narration starts
	WaitMusic int
	// FadeEndAt is how long the bed keeps playing after the narration
	// ends before the fade starts
	FadeEndAt int
}

// ExtractRequest asks for the audio track of a video
type ExtractRequest struct {
	URL        string
	Base64Data string
	// Filename seeds the output name; defaults to "video"
	Filename   string
	Transcribe bool
}

// Result is a finished, downloadable file
type Result struct {
	ID       string
	Filename string
	Path     string
	// Duration of the produced audio, when known
	Duration   float64
	Transcript *transcribe.Transcript
}
