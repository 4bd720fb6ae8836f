package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/keagan/soundbed/pkg/util"
)

// ProbeMedia extracts metadata from an audio or video file
func (e *Executor) ProbeMedia(ctx context.Context, filePath string) (*MediaInfo, error) {
	if filePath == "" {
		return nil, &ToolkitError{Operation: "probe", Message: "file path is required"}
	}

	output, err := e.probe(ctx, "probe",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)
	if err != nil {
		return nil, err
	}

	return parseProbeOutput(filePath, output)
}

// ProbeDuration returns the playable length of a media file in seconds
func (e *Executor) ProbeDuration(ctx context.Context, filePath string) (float64, error) {
	info, err := e.ProbeMedia(ctx, filePath)
	if err != nil {
		return 0, err
	}
	if !info.HasAudio {
		return 0, &ToolkitError{Operation: "probe", Message: fmt.Sprintf("no audio stream in %s", filePath)}
	}
	return info.Seconds(), nil
}

func parseProbeOutput(filePath string, output []byte) (*MediaInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, &ToolkitError{Operation: "probe", Message: "failed to parse ffprobe output", Err: err}
	}

	info := &MediaInfo{
		FilePath:   filePath,
		FormatName: probe.Format.FormatName,
	}

	// Format duration first, audio stream duration as fallback
	dur, derr := util.ParseSeconds(probe.Format.Duration)

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			info.HasVideo = true
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			info.Channels = stream.Channels
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
			if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				info.AudioBitrate = br
			}
			if derr != nil {
				dur, derr = util.ParseSeconds(stream.Duration)
			}
		}
	}

	if derr == nil && dur > 0 {
		info.Duration = util.Seconds(dur)
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
		BitRate    string `json:"bit_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
}
