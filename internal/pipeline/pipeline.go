// Package pipeline validates requests, resolves their inputs and drives
// the mix executor and the extractor.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/internal/mix"
	"github.com/keagan/soundbed/internal/source"
	"github.com/keagan/soundbed/internal/transcribe"
	"github.com/keagan/soundbed/pkg/util"
)

// ErrInvalidInput marks requests rejected before any processing
var ErrInvalidInput = source.ErrInvalidInput

// Outcomes reported to the OutcomeObserver
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Toolkit is everything the pipeline asks of the media engine
type Toolkit interface {
	mix.Toolkit
	ProbeMedia(ctx context.Context, path string) (*ffmpeg.MediaInfo, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
	ExtractAudio(ctx context.Context, input, output string, format ffmpeg.AudioFormat, progress ffmpeg.ProgressFunc) error
}

// OutcomeObserver is told how each request ended
type OutcomeObserver interface {
	mix.StageObserver
	ObserveOutcome(operation, outcome string, elapsed time.Duration)
}

// Pipeline orchestrates extraction and mixing requests
type Pipeline struct {
	logger      zerolog.Logger
	toolkit     Toolkit
	store       *assets.Store
	resolver    *source.Resolver
	executor    *mix.Executor
	planner     mix.Planner
	transcriber *transcribe.Service
	observer    OutcomeObserver
	output      ffmpeg.AudioFormat
	callTimeout time.Duration
}

// Deps are the collaborators a pipeline is built from
type Deps struct {
	Toolkit     Toolkit
	Store       *assets.Store
	Transcriber *transcribe.Service
	// Observer may be nil
	Observer OutcomeObserver
}

// New creates a pipeline from configuration and its collaborators
func New(logger zerolog.Logger, cfg *config.Config, deps Deps) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if deps.Toolkit == nil || deps.Store == nil {
		return nil, errors.New("pipeline needs a toolkit and an asset store")
	}
	if deps.Transcriber == nil {
		deps.Transcriber = transcribe.NewService(logger, nil)
	}

	output := ffmpeg.AudioFormat{
		Codec:      cfg.Output.Codec,
		SampleRate: cfg.Output.SampleRate,
		Channels:   cfg.Output.Channels,
		Bitrate:    cfg.Output.Bitrate,
	}

	execOpts := mix.Options{
		CallTimeout: cfg.FFmpeg.CallTimeout,
		Output:      output,
		SampleRate:  cfg.Mix.SampleRate,
		Channels:    cfg.Mix.Channels,
	}
	if deps.Observer != nil {
		execOpts.Observer = deps.Observer
	}

	downloader := source.NewDownloader(cfg.Server.DownloadTimeout, cfg.Server.MaxBodyBytes)

	return &Pipeline{
		logger:      logger.With().Str("component", "pipeline").Logger(),
		toolkit:     deps.Toolkit,
		store:       deps.Store,
		resolver:    source.NewResolver(logger, deps.Store, downloader),
		executor:    mix.NewExecutor(logger, deps.Toolkit, deps.Store, execOpts),
		planner:     mix.Planner{FadeoutDuration: cfg.Mix.FadeoutSeconds, BackgroundVolume: cfg.Mix.BackgroundVolume},
		transcriber: deps.Transcriber,
		observer:    deps.Observer,
		output:      output,
		callTimeout: cfg.FFmpeg.CallTimeout,
	}, nil
}

// TranscriberReady reports whether extraction can also transcribe
func (p *Pipeline) TranscriberReady() bool {
	return p.transcriber.Ready()
}

// Mix validates req, resolves both tracks and runs the mix. Field errors
// are reported before any file is touched.
func (p *Pipeline) Mix(ctx context.Context, req MixRequest) (res *Result, err error) {
	start := time.Now()
	defer func() { p.outcome("mix", err, start) }()

	narrationIn := source.Input{Field: "audio", Ref: req.Audio, Base64: req.AudioBase64, Name: "narration"}
	musicIn := source.Input{Field: "music", Ref: req.Music, Base64: req.MusicBase64, Name: "music"}
	if err := validateMix(req, narrationIn, musicIn); err != nil {
		return nil, err
	}

	narration, err := p.resolver.Resolve(ctx, narrationIn)
	if err != nil {
		return nil, err
	}
	defer p.resolver.Release(narration)

	music, err := p.resolver.Resolve(ctx, musicIn)
	if err != nil {
		return nil, err
	}
	defer p.resolver.Release(music)

	return p.mixPaths(ctx, narration.Path, music.Path, req.WaitMusic, req.FadeEndAt)
}

// MixFiles mixes two local files. The inputs are only read.
func (p *Pipeline) MixFiles(ctx context.Context, narrationPath, musicPath string, waitMusic, fadeEndAt int) (res *Result, err error) {
	start := time.Now()
	defer func() { p.outcome("mix", err, start) }()

	if err := validateMix(MixRequest{WaitMusic: waitMusic, FadeEndAt: fadeEndAt}); err != nil {
		return nil, err
	}
	for _, path := range []string{narrationPath, musicPath} {
		if !util.FileExists(path) {
			return nil, fmt.Errorf("%w: %s", assets.ErrNotFound, path)
		}
	}
	return p.mixPaths(ctx, narrationPath, musicPath, waitMusic, fadeEndAt)
}

// mixPaths runs detached from the caller once the inputs are local
func (p *Pipeline) mixPaths(ctx context.Context, narrationPath, musicPath string, waitMusic, fadeEndAt int) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	narrationLen, err := p.probe(ctx, narrationPath)
	if err != nil {
		return nil, err
	}
	musicLen, err := p.probe(ctx, musicPath)
	if err != nil {
		return nil, err
	}

	plan, err := p.planner.Plan(narrationLen, musicLen, waitMusic, fadeEndAt)
	if err != nil {
		if errors.Is(err, mix.ErrInvalidTiming) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	p.logger.Info().
		Float64("narration", narrationLen).
		Float64("music", musicLen).
		Int("wait_music", waitMusic).
		Int("fade_end_at", fadeEndAt).
		Float64("total", plan.TotalDuration).
		Msg("mix planned")

	out, err := p.executor.Execute(ctx, mix.Asset{Path: narrationPath, Duration: narrationLen}, mix.Asset{Path: musicPath, Duration: musicLen}, plan)
	if err != nil {
		return nil, err
	}

	return &Result{
		ID:       out.ID,
		Filename: out.Filename,
		Path:     out.Path,
		Duration: plan.TotalDuration,
	}, nil
}

// Extract pulls the audio track out of a video given by URL or inline
// data. The video is deleted once the audio is written. When both a URL
// and inline data are present the URL is used.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest) (res *Result, err error) {
	start := time.Now()
	defer func() { p.outcome("extract", err, start) }()

	name := req.Filename
	if name == "" {
		name = "video"
	}
	in := source.Input{Field: "video", URL: req.URL, Base64: req.Base64Data, Name: name}
	if in.URL != "" {
		in.Base64 = ""
	}
	if in.Given() == 0 {
		return nil, fmt.Errorf("%w: either url or base64_data must be provided", ErrInvalidInput)
	}
	if req.Transcribe && !p.transcriber.Ready() {
		return nil, transcribe.ErrUnavailable
	}

	video, err := p.resolver.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	defer p.resolver.Release(video)

	return p.extractPath(ctx, video.Path, name, req.Transcribe)
}

// ExtractFile extracts the audio of a local video, which is left in place
func (p *Pipeline) ExtractFile(ctx context.Context, videoPath string, withTranscript bool) (res *Result, err error) {
	start := time.Now()
	defer func() { p.outcome("extract", err, start) }()

	if !util.FileExists(videoPath) {
		return nil, fmt.Errorf("%w: %s", assets.ErrNotFound, videoPath)
	}
	if withTranscript && !p.transcriber.Ready() {
		return nil, transcribe.ErrUnavailable
	}
	return p.extractPath(ctx, videoPath, filepath.Base(videoPath), withTranscript)
}

func (p *Pipeline) extractPath(ctx context.Context, videoPath, name string, withTranscript bool) (*Result, error) {
	start := time.Now()
	info, err := p.probeMedia(ctx, videoPath)
	if err != nil {
		return nil, err
	}
	if !info.HasAudio {
		return nil, &ffmpeg.ToolkitError{Operation: "extract", Message: "video has no audio track"}
	}

	output := p.store.Allocate(util.BaseName(util.SafeName(name)), ".mp3")
	logger := p.logger.With().Str("video", filepath.Base(videoPath)).Logger()
	err = p.call(ctx, func(ctx context.Context) error {
		return p.toolkit.ExtractAudio(ctx, videoPath, output, p.output, func(pr *ffmpeg.Progress) {
			logger.Debug().Str("out_time", util.FormatDuration(pr.OutTime)).Str("speed", pr.Speed).Msg("extract progress")
		})
	})
	if err != nil {
		p.discard(output)
		return nil, err
	}

	filename := filepath.Base(output)
	if err := p.store.Register(filename, output); err != nil {
		p.discard(output)
		return nil, err
	}

	res := &Result{
		ID:       filename[:assets.IDLength],
		Filename: filename,
		Path:     output,
		Duration: info.Seconds(),
	}

	if withTranscript {
		t, err := p.transcribe(ctx, videoPath)
		if err != nil {
			p.discard(output)
			return nil, err
		}
		res.Transcript = &t
	}

	logger.Info().Str("output", filename).Dur("elapsed", time.Since(start)).Msg("extraction complete")
	return res, nil
}

// Transcribe runs speech recognition on a stored audio file
func (p *Pipeline) Transcribe(ctx context.Context, name string) (*transcribe.Transcript, error) {
	if !p.transcriber.Ready() {
		return nil, transcribe.ErrUnavailable
	}
	path, err := p.lookup(name)
	if err != nil {
		return nil, err
	}
	t, err := p.transcribe(ctx, path)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Open returns the path of a downloadable file
func (p *Pipeline) Open(name string) (string, error) {
	return p.lookup(name)
}

func (p *Pipeline) lookup(name string) (string, error) {
	path, err := p.store.Lookup(name)
	if errors.Is(err, assets.ErrInvalidName) {
		return "", fmt.Errorf("%w: %v", assets.ErrNotFound, err)
	}
	return path, err
}

// transcribe converts input to the recognizer's preferred format first
func (p *Pipeline) transcribe(ctx context.Context, input string) (transcribe.Transcript, error) {
	speech := p.store.Allocate("speech", ".wav")
	defer p.discard(speech)

	if err := p.call(ctx, func(ctx context.Context) error {
		return p.toolkit.ExtractAudio(ctx, input, speech, ffmpeg.DefaultWhisperFormat(), nil)
	}); err != nil {
		return transcribe.Transcript{}, err
	}
	return p.transcriber.Transcribe(ctx, speech)
}

func validateMix(req MixRequest, inputs ...source.Input) error {
	for _, in := range inputs {
		if err := in.Check(); err != nil {
			return err
		}
	}
	if req.WaitMusic < 0 {
		return fmt.Errorf("%w: wait_music must not be negative", ErrInvalidInput)
	}
	if req.FadeEndAt < 0 {
		return fmt.Errorf("%w: fade_end_at must not be negative", ErrInvalidInput)
	}
	return nil
}

// probe measures one input as the "probe" stage of a mix
func (p *Pipeline) probe(ctx context.Context, path string) (float64, error) {
	var seconds float64
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		seconds, err = p.toolkit.ProbeDuration(ctx, path)
		return err
	})
	if err != nil {
		stage := mix.StageProbe
		if errors.Is(err, context.DeadlineExceeded) {
			stage = mix.StageTimeout
		}
		return 0, &mix.MixExecutionError{Stage: stage, Cause: err}
	}
	return seconds, nil
}

func (p *Pipeline) probeMedia(ctx context.Context, path string) (*ffmpeg.MediaInfo, error) {
	var info *ffmpeg.MediaInfo
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		info, err = p.toolkit.ProbeMedia(ctx, path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// call applies the per-call deadline
func (p *Pipeline) call(ctx context.Context, fn func(context.Context) error) error {
	if p.callTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return fn(ctx)
}

func (p *Pipeline) discard(path string) {
	if err := p.store.Remove(path); err != nil {
		p.logger.Warn().Err(err).Str("path", path).Msg("failed to remove file")
	}
}

func (p *Pipeline) outcome(operation string, err error, start time.Time) {
	if p.observer == nil {
		return
	}
	outcome := OutcomeSuccess
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidInput), errors.Is(err, mix.ErrInvalidAudioAsset),
		errors.Is(err, assets.ErrNotFound), errors.Is(err, transcribe.ErrUnavailable):
		outcome = OutcomeInvalid
	default:
		outcome = OutcomeFailed
	}
	p.observer.ObserveOutcome(operation, outcome, time.Since(start))
}
