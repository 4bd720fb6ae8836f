// Package mix plans and executes narration-over-music mixes.
package mix

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/ffmpeg"
)

// Toolkit is the media engine the executor drives. Output paths are chosen
// by the caller so every file a step produces is tracked before it exists.
type Toolkit interface {
	LoopConcatenate(ctx context.Context, input, output string, extraRepeats int) error
	ApplyGain(ctx context.Context, input, output string, factor float64) error
	Trim(ctx context.Context, input, output string, endSeconds float64) error
	SynthesizeSilence(ctx context.Context, output string, seconds float64, sampleRate, channels int) error
	Concatenate(ctx context.Context, a, b, output string) error
	ApplyFadeout(ctx context.Context, input, output string, start, duration float64) error
	OverlayMix(ctx context.Context, inputs []string, output string) error
	SetDuration(ctx context.Context, input, output string, seconds float64) error
	Encode(ctx context.Context, input, output string, format ffmpeg.AudioFormat) error
}

// AssetStore allocates, registers and deletes files in the asset area
type AssetStore interface {
	Allocate(prefix, ext string) string
	Register(name, path string) error
	Remove(paths ...string) error
}

// StageObserver is told how long each stage took and whether it failed
type StageObserver interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
}

// Asset is a resolved input file
type Asset struct {
	Path     string
	Duration float64
}

// OutputAsset is a finished mix registered for download
type OutputAsset struct {
	Path     string
	Filename string
	// ID is the generated token the filename starts with
	ID string
}

// Options configures an Executor
type Options struct {
	// CallTimeout bounds each toolkit call; zero disables the deadline
	CallTimeout time.Duration
	Output      ffmpeg.AudioFormat
	SampleRate  int
	Channels    int
	Observer    StageObserver
}

// Executor turns a plan and two inputs into one registered output file
type Executor struct {
	logger  zerolog.Logger
	toolkit Toolkit
	store   AssetStore
	opts    Options
}

// NewExecutor creates a mix executor
func NewExecutor(logger zerolog.Logger, toolkit Toolkit, store AssetStore, opts Options) *Executor {
	if opts.Output.Codec == "" {
		opts.Output = ffmpeg.DefaultOutputFormat()
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = SilenceSampleRate
	}
	if opts.Channels <= 0 {
		opts.Channels = SilenceChannels
	}
	return &Executor{
		logger:  logger.With().Str("component", "mix").Logger(),
		toolkit: toolkit,
		store:   store,
		opts:    opts,
	}
}

// Execute runs the mix steps in order. The caller's cancellation is not
// propagated: once started, a mix runs to completion or failure, and its
// intermediates are removed on every exit path.
func (e *Executor) Execute(ctx context.Context, narration, music Asset, plan Plan) (*OutputAsset, error) {
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	logger := e.logger.With().
		Float64("total", plan.TotalDuration).
		Float64("fadeout_start", plan.FadeoutStart).
		Int("loops", plan.LoopCount).
		Logger()
	logger.Info().
		Str("narration", filepath.Base(narration.Path)).
		Str("music", filepath.Base(music.Path)).
		Msg("starting mix")

	sc := newScope(e.store, logger)
	defer sc.release()

	// 1. extend a short bed
	musicTrack := music.Path
	if plan.LoopCount > 0 {
		extended := sc.allocate("extended", ".wav")
		err := e.step(ctx, StageLoop, func(ctx context.Context) error {
			return e.toolkit.LoopConcatenate(ctx, music.Path, extended, plan.LoopCount)
		})
		if err != nil {
			return nil, err
		}
		musicTrack = extended
	}

	// 2. duck the bed
	gained := sc.allocate("gained", ".wav")
	if err := e.step(ctx, StageGain, func(ctx context.Context) error {
		return e.toolkit.ApplyGain(ctx, musicTrack, gained, plan.BackgroundVolume)
	}); err != nil {
		return nil, err
	}

	// 3. cut it to the mix length
	trimmed := sc.allocate("trimmed", ".wav")
	if err := e.step(ctx, StageTrim, func(ctx context.Context) error {
		return e.toolkit.Trim(ctx, gained, trimmed, plan.TotalDuration)
	}); err != nil {
		return nil, err
	}

	// 4+5. delay the narration behind leading silence
	narrationTrack := narration.Path
	if plan.WaitBeforeMusic > 0 {
		silence := sc.allocate("silence", ".wav")
		if err := e.step(ctx, StageSilence, func(ctx context.Context) error {
			return e.toolkit.SynthesizeSilence(ctx, silence, plan.WaitBeforeMusic, e.opts.SampleRate, e.opts.Channels)
		}); err != nil {
			return nil, err
		}

		delayed := sc.allocate("delayed", ".wav")
		if err := e.step(ctx, StageConcatenate, func(ctx context.Context) error {
			return e.toolkit.Concatenate(ctx, silence, narration.Path, delayed)
		}); err != nil {
			return nil, err
		}
		narrationTrack = delayed
	}

	// 6. fade the bed only; narration stays untouched
	faded := sc.allocate("faded", ".wav")
	if err := e.step(ctx, StageFadeout, func(ctx context.Context) error {
		return e.toolkit.ApplyFadeout(ctx, trimmed, faded, plan.FadeoutStart, plan.FadeoutDuration)
	}); err != nil {
		return nil, err
	}

	// 7. overlay, then pin the length
	mixed := sc.allocate("mixed", ".wav")
	if err := e.step(ctx, StageMix, func(ctx context.Context) error {
		return e.toolkit.OverlayMix(ctx, []string{narrationTrack, faded}, mixed)
	}); err != nil {
		return nil, err
	}

	fitted := sc.allocate("fitted", ".wav")
	if err := e.step(ctx, StageDuration, func(ctx context.Context) error {
		return e.toolkit.SetDuration(ctx, mixed, fitted, plan.TotalDuration)
	}); err != nil {
		return nil, err
	}

	// 8. encode and publish
	output := e.store.Allocate("mix", "."+extension(e.opts.Output))
	if err := e.step(ctx, StageEncode, func(ctx context.Context) error {
		return e.toolkit.Encode(ctx, fitted, output, e.opts.Output)
	}); err != nil {
		e.discard(output)
		return nil, err
	}

	filename := filepath.Base(output)
	if err := e.store.Register(filename, output); err != nil {
		e.discard(output)
		return nil, &MixExecutionError{Stage: StageRegister, Cause: err}
	}

	logger.Info().
		Str("output", filename).
		Dur("elapsed", time.Since(started)).
		Msg("mix complete")

	id, _, _ := strings.Cut(filename, "_")
	return &OutputAsset{Path: output, Filename: filename, ID: id}, nil
}

// step runs one toolkit call under the per-call deadline
func (e *Executor) step(ctx context.Context, stage string, call func(context.Context) error) error {
	callCtx := ctx
	if e.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	err := call(callCtx)
	elapsed := time.Since(start)

	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		e.logger.Error().Err(err).Str("stage", stage).Dur("timeout", e.opts.CallTimeout).Msg("toolkit call timed out")
		e.observe(StageTimeout, elapsed, err)
		return &MixExecutionError{Stage: StageTimeout, Cause: err}
	}

	e.observe(stage, elapsed, err)
	if err != nil {
		e.logger.Error().Err(err).Str("stage", stage).Msg("mix stage failed")
		return &MixExecutionError{Stage: stage, Cause: err}
	}

	e.logger.Debug().Str("stage", stage).Dur("elapsed", elapsed).Msg("mix stage done")
	return nil
}

func (e *Executor) observe(stage string, elapsed time.Duration, err error) {
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveStage(stage, elapsed, err)
	}
}

// discard removes a partially written output
func (e *Executor) discard(path string) {
	if err := e.store.Remove(path); err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("failed to remove partial output")
	}
}

func extension(format ffmpeg.AudioFormat) string {
	switch format.Codec {
	case "libmp3lame", "mp3":
		return "mp3"
	case "aac":
		return "m4a"
	case "libopus", "opus":
		return "ogg"
	case "flac":
		return "flac"
	case "pcm_s16le":
		return "wav"
	default:
		return "mp3"
	}
}
