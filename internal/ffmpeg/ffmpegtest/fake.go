// Package ffmpegtest provides an in-process stand-in for the ffmpeg toolkit.
package ffmpegtest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/pkg/util"
)

// Fake mimics the toolkit by writing placeholder files and tracking the
// playable length of every file it knows about.
type Fake struct {
	mu      sync.Mutex
	calls   []string
	lengths map[string]float64
	noAudio map[string]bool

	// FailOn makes the named operation return the error
	FailOn map[string]error
	// Block makes the named operation wait for its context to end
	Block map[string]bool

	// DefaultLength is reported for existing files the fake did not write
	DefaultLength float64
	// DefaultNoAudio marks every such file as having no audio stream
	DefaultNoAudio bool
}

// New returns an empty fake
func New() *Fake {
	return &Fake{
		lengths: make(map[string]float64),
		noAudio: make(map[string]bool),
		FailOn:  make(map[string]error),
		Block:   make(map[string]bool),
	}
}

// SetLength declares the playable length of path
func (f *Fake) SetLength(path string, seconds float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lengths[abs(path)] = seconds
}

// SetNoAudio marks path as a container without an audio stream
func (f *Fake) SetNoAudio(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noAudio[abs(path)] = true
}

// Length returns the recorded length of path
func (f *Fake) Length(path string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.lengths[abs(path)]
	return d, ok
}

// Calls returns the operations invoked so far, in order
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// WriteInput creates a placeholder input file of the given length
func (f *Fake) WriteInput(path string, seconds float64) error {
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		return err
	}
	f.SetLength(path, seconds)
	return nil
}

func (f *Fake) begin(ctx context.Context, op string, inputs ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	failErr := f.FailOn[op]
	block := f.Block[op]
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return &ffmpeg.ToolkitError{Operation: op, Message: "interrupted", Err: ctx.Err()}
	}
	if err := ctx.Err(); err != nil {
		return &ffmpeg.ToolkitError{Operation: op, Message: "interrupted", Err: err}
	}
	if failErr != nil {
		return failErr
	}
	for _, in := range inputs {
		if !util.FileExists(in) {
			return &ffmpeg.ToolkitError{Operation: op, Message: fmt.Sprintf("%s: No such file or directory", in)}
		}
	}
	return nil
}

func (f *Fake) input(path string) float64 {
	d, _ := f.known(path)
	return d
}

// known falls back to the defaults for files created outside the fake
func (f *Fake) known(path string) (float64, bool) {
	if d, ok := f.Length(path); ok {
		return d, true
	}
	if f.DefaultLength > 0 && util.FileExists(path) {
		return f.DefaultLength, true
	}
	return 0, false
}

func (f *Fake) silent(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noAudio[abs(path)] {
		return true
	}
	_, tracked := f.lengths[abs(path)]
	return !tracked && f.DefaultNoAudio
}

func (f *Fake) write(op, output string, seconds float64) error {
	if err := os.WriteFile(output, []byte(op), 0644); err != nil {
		return &ffmpeg.ToolkitError{Operation: op, Err: err}
	}
	f.SetLength(output, seconds)
	return nil
}

func (f *Fake) ProbeMedia(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	if err := f.begin(ctx, "probe", path); err != nil {
		return nil, err
	}
	d, ok := f.known(path)
	if !ok {
		return nil, &ffmpeg.ToolkitError{Operation: "probe", Message: path + ": Invalid data found when processing input"}
	}
	silent := f.silent(path)
	return &ffmpeg.MediaInfo{
		FilePath:   path,
		Duration:   util.Seconds(d),
		HasAudio:   !silent,
		SampleRate: ffmpeg.DefaultSampleRate,
		Channels:   ffmpeg.DefaultChannels,
	}, nil
}

func (f *Fake) ProbeDuration(ctx context.Context, path string) (float64, error) {
	info, err := f.ProbeMedia(ctx, path)
	if err != nil {
		return 0, err
	}
	if !info.HasAudio {
		return 0, &ffmpeg.ToolkitError{Operation: "probe", Message: "no audio stream in " + path}
	}
	return info.Seconds(), nil
}

func (f *Fake) ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat, progress ffmpeg.ProgressFunc) error {
	if err := f.begin(ctx, "extract", input); err != nil {
		return err
	}
	if f.silent(input) {
		return &ffmpeg.ToolkitError{Operation: "extract", Message: "Stream map '0:a:0' matches no streams."}
	}
	if progress != nil {
		progress(&ffmpeg.Progress{OutTime: util.Seconds(f.input(input)), Done: true})
	}
	return f.write("extract", output, f.input(input))
}

func (f *Fake) Encode(ctx context.Context, input, output string, format ffmpeg.AudioFormat) error {
	if err := f.begin(ctx, "encode", input); err != nil {
		return err
	}
	return f.write("encode", output, f.input(input))
}

func (f *Fake) LoopConcatenate(ctx context.Context, input, output string, extraRepeats int) error {
	if err := f.begin(ctx, "loop", input); err != nil {
		return err
	}
	return f.write("loop", output, f.input(input)*float64(extraRepeats+1))
}

func (f *Fake) ApplyGain(ctx context.Context, input, output string, factor float64) error {
	if err := f.begin(ctx, "gain", input); err != nil {
		return err
	}
	return f.write("gain", output, f.input(input))
}

func (f *Fake) Trim(ctx context.Context, input, output string, endSeconds float64) error {
	if err := f.begin(ctx, "trim", input); err != nil {
		return err
	}
	return f.write("trim", output, math.Min(f.input(input), endSeconds))
}

func (f *Fake) SynthesizeSilence(ctx context.Context, output string, seconds float64, sampleRate, channels int) error {
	if err := f.begin(ctx, "silence"); err != nil {
		return err
	}
	return f.write("silence", output, seconds)
}

func (f *Fake) Concatenate(ctx context.Context, a, b, output string) error {
	if err := f.begin(ctx, "concatenate", a, b); err != nil {
		return err
	}
	return f.write("concatenate", output, f.input(a)+f.input(b))
}

func (f *Fake) ApplyFadeout(ctx context.Context, input, output string, start, duration float64) error {
	if err := f.begin(ctx, "fadeout", input); err != nil {
		return err
	}
	return f.write("fadeout", output, f.input(input))
}

func (f *Fake) OverlayMix(ctx context.Context, inputs []string, output string) error {
	if err := f.begin(ctx, "mix", inputs...); err != nil {
		return err
	}
	longest := 0.0
	for _, in := range inputs {
		longest = math.Max(longest, f.input(in))
	}
	return f.write("mix", output, longest)
}

func (f *Fake) SetDuration(ctx context.Context, input, output string, seconds float64) error {
	if err := f.begin(ctx, "duration", input); err != nil {
		return err
	}
	return f.write("duration", output, seconds)
}

func abs(path string) string {
	if p, err := filepath.Abs(path); err == nil {
		return p
	}
	return path
}
