package ffmpeg

import "time"

// MediaInfo contains metadata about a media file
type MediaInfo struct {
	FilePath     string
	Duration     time.Duration
	FormatName   string
	HasVideo     bool
	HasAudio     bool
	AudioCodec   string
	SampleRate   int
	Channels     int
	AudioBitrate int64
}

// Seconds returns the duration as fractional seconds
func (m *MediaInfo) Seconds() float64 {
	return m.Duration.Seconds()
}

// Progress represents ffmpeg progress data for audio jobs
type Progress struct {
	OutTime time.Duration
	Size    int64
	Bitrate string
	Speed   string
	Done    bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	// Operation names the toolkit operation for errors and logs
	Operation       string
	Args            []string
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called once per progress block emitted on -progress pipe:2.
type ProgressFunc func(*Progress)

// AudioFormat defines audio encoding format options
type AudioFormat struct {
	Codec      string
	SampleRate int
	Channels   int
	Bitrate    string
}

// Default encoding settings
const (
	DefaultSampleRate    = 44100
	DefaultChannels      = 2
	DefaultOutputCodec   = "libmp3lame"
	DefaultOutputBitrate = "192k"
	WorkingCodec         = "pcm_s16le"
)

// WorkingFormat is the lossless format every intermediate is written in
func WorkingFormat() AudioFormat {
	return AudioFormat{
		Codec:      WorkingCodec,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
	}
}

// DefaultOutputFormat is the mp3 delivered to clients
func DefaultOutputFormat() AudioFormat {
	return AudioFormat{
		Codec:      DefaultOutputCodec,
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
		Bitrate:    DefaultOutputBitrate,
	}
}

// DefaultWhisperFormat returns optimal format for Whisper transcription
func DefaultWhisperFormat() AudioFormat {
	return AudioFormat{
		Codec:      "pcm_s16le",
		SampleRate: 16000,
		Channels:   1, // mono
	}
}
