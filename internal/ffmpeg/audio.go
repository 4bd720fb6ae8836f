package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keagan/soundbed/pkg/util"
)

// ExtractAudio demuxes the first audio stream of a container into output
func (e *Executor) ExtractAudio(ctx context.Context, input, output string, format AudioFormat, progressFunc ProgressFunc) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Int("sample_rate", format.SampleRate).
		Msg("extracting audio")

	return e.run(ctx, "extract", extractArgs(input, output, format), progressFunc)
}

// Encode re-encodes input into the delivery format
func (e *Executor) Encode(ctx context.Context, input, output string, format AudioFormat) error {
	e.logger.Info().
		Str("input", input).
		Str("output", output).
		Str("codec", format.Codec).
		Msg("encoding audio")

	return e.run(ctx, "encode", extractArgs(input, output, format), nil)
}

// LoopConcatenate plays input extraRepeats additional times back to back.
// The demuxer loops the stream so the source is decoded once per pass and
// never re-encoded in between.
func (e *Executor) LoopConcatenate(ctx context.Context, input, output string, extraRepeats int) error {
	if extraRepeats < 0 {
		return &ToolkitError{Operation: "loop", Message: fmt.Sprintf("negative repeat count %d", extraRepeats)}
	}
	e.logger.Debug().Str("input", input).Int("repeats", extraRepeats).Msg("looping audio")
	return e.run(ctx, "loop", loopArgs(input, output, extraRepeats, e.working), nil)
}

// ApplyGain scales the volume of input by factor
func (e *Executor) ApplyGain(ctx context.Context, input, output string, factor float64) error {
	if factor < 0 {
		return &ToolkitError{Operation: "gain", Message: fmt.Sprintf("negative gain %g", factor)}
	}
	e.logger.Debug().Str("input", input).Float64("factor", factor).Msg("applying gain")
	return e.run(ctx, "gain", filterArgs(input, output, NewFilterBuilder().Volume(factor).Build(), -1, e.working), nil)
}

// Trim keeps the first endSeconds of input
func (e *Executor) Trim(ctx context.Context, input, output string, endSeconds float64) error {
	if endSeconds <= 0 {
		return &ToolkitError{Operation: "trim", Message: fmt.Sprintf("invalid trim end %g", endSeconds)}
	}
	e.logger.Debug().Str("input", input).Float64("end", endSeconds).Msg("trimming audio")
	return e.run(ctx, "trim", filterArgs(input, output, "", endSeconds, e.working), nil)
}

// SynthesizeSilence writes seconds of digital silence
func (e *Executor) SynthesizeSilence(ctx context.Context, output string, seconds float64, sampleRate, channels int) error {
	if seconds <= 0 {
		return &ToolkitError{Operation: "silence", Message: fmt.Sprintf("invalid silence length %g", seconds)}
	}
	e.logger.Debug().Float64("seconds", seconds).Int("sample_rate", sampleRate).Int("channels", channels).Msg("synthesizing silence")
	return e.run(ctx, "silence", silenceArgs(output, seconds, sampleRate, channels, e.working), nil)
}

// Concatenate places b directly after a
func (e *Executor) Concatenate(ctx context.Context, a, b, output string) error {
	e.logger.Debug().Str("first", a).Str("second", b).Msg("concatenating audio")
	return e.run(ctx, "concatenate", concatArgs([]string{a, b}, output, e.working), nil)
}

// ApplyFadeout fades input to silence from start over duration seconds
func (e *Executor) ApplyFadeout(ctx context.Context, input, output string, start, duration float64) error {
	if start < 0 || duration <= 0 {
		return &ToolkitError{Operation: "fadeout", Message: fmt.Sprintf("invalid fade window start=%g duration=%g", start, duration)}
	}
	e.logger.Debug().Str("input", input).Float64("start", start).Float64("duration", duration).Msg("applying fadeout")
	return e.run(ctx, "fadeout", filterArgs(input, output, NewFilterBuilder().FadeOut(start, duration).Build(), -1, e.working), nil)
}

// OverlayMix sums the inputs into one track lasting as long as the longest
func (e *Executor) OverlayMix(ctx context.Context, inputs []string, output string) error {
	if len(inputs) < 2 {
		return &ToolkitError{Operation: "mix", Message: fmt.Sprintf("need at least two inputs, got %d", len(inputs))}
	}
	e.logger.Debug().Strs("inputs", inputs).Msg("mixing audio")
	return e.run(ctx, "mix", mixArgs(inputs, output, e.working), nil)
}

// SetDuration pads or cuts input so it lasts exactly seconds
func (e *Executor) SetDuration(ctx context.Context, input, output string, seconds float64) error {
	if seconds <= 0 {
		return &ToolkitError{Operation: "duration", Message: fmt.Sprintf("invalid duration %g", seconds)}
	}
	e.logger.Debug().Str("input", input).Float64("seconds", seconds).Msg("setting duration")
	return e.run(ctx, "duration", filterArgs(input, output, NewFilterBuilder().Pad().Build(), seconds, e.working), nil)
}

func (e *Executor) run(ctx context.Context, op string, args []string, progressFunc ProgressFunc) error {
	return e.Run(ctx, RunOptions{
		Operation:       op,
		Args:            args,
		ProgressHandler: progressFunc,
		LogHandler: func(line string) {
			e.logger.Debug().Str("op", op).Str("ffmpeg", line).Msg("ffmpeg output")
		},
	})
}

func encodeArgs(format AudioFormat) []string {
	args := []string{"-c:a", format.Codec}
	if format.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(format.SampleRate))
	}
	if format.Channels > 0 {
		args = append(args, "-ac", strconv.Itoa(format.Channels))
	}
	if format.Bitrate != "" {
		args = append(args, "-b:a", format.Bitrate)
	}
	return args
}

func extractArgs(input, output string, format AudioFormat) []string {
	args := []string{"-i", input, "-vn", "-map", "0:a:0"}
	args = append(args, encodeArgs(format)...)
	return append(args, output)
}

func loopArgs(input, output string, extraRepeats int, format AudioFormat) []string {
	args := []string{"-stream_loop", strconv.Itoa(extraRepeats), "-i", input, "-vn"}
	args = append(args, encodeArgs(format)...)
	return append(args, output)
}

// filterArgs runs a single -af chain; a non-negative limit caps output length
func filterArgs(input, output, filter string, limit float64, format AudioFormat) []string {
	args := []string{"-i", input, "-vn"}
	if filter != "" {
		args = append(args, "-af", filter)
	}
	if limit >= 0 {
		args = append(args, "-t", util.FormatSeconds(limit))
	}
	args = append(args, encodeArgs(format)...)
	return append(args, output)
}

func silenceArgs(output string, seconds float64, sampleRate, channels int, format AudioFormat) []string {
	src := fmt.Sprintf("anullsrc=r=%d:cl=%s", sampleRate, channelLayout(channels))
	format.SampleRate = sampleRate
	format.Channels = channels
	args := []string{"-f", "lavfi", "-i", src, "-t", util.FormatSeconds(seconds)}
	args = append(args, encodeArgs(format)...)
	return append(args, output)
}

func concatArgs(inputs []string, output string, format AudioFormat) []string {
	labels, graph := conformInputs(len(inputs), format)
	graph += fmt.Sprintf("%sconcat=n=%d:v=0:a=1[out]", strings.Join(labels, ""), len(inputs))
	return graphArgs(inputs, output, graph, format)
}

func mixArgs(inputs []string, output string, format AudioFormat) []string {
	labels, graph := conformInputs(len(inputs), format)
	// normalize=0 sums the waveforms instead of averaging them
	graph += fmt.Sprintf("%samix=inputs=%d:duration=longest:dropout_transition=0:normalize=0[out]", strings.Join(labels, ""), len(inputs))
	return graphArgs(inputs, output, graph, format)
}

func graphArgs(inputs []string, output, graph string, format AudioFormat) []string {
	var args []string
	for _, in := range inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", graph, "-map", "[out]")
	args = append(args, encodeArgs(format)...)
	return append(args, output)
}
