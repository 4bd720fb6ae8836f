package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/internal/config"
	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/internal/metrics"
	"github.com/keagan/soundbed/internal/pipeline"
	"github.com/keagan/soundbed/internal/transcribe"
)

type app struct {
	store       *assets.Store
	transcriber *transcribe.Service
	pipeline    *pipeline.Pipeline
}

// build wires the shared collaborators; m may be nil
func build(cfg *config.Config, m *metrics.Metrics) (*app, error) {
	toolkit, err := ffmpeg.New(log.Logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
		Working: ffmpeg.AudioFormat{
			Codec:      ffmpeg.WorkingCodec,
			SampleRate: cfg.Mix.SampleRate,
			Channels:   cfg.Mix.Channels,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	store, err := assets.New(log.Logger, cfg.Storage.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare asset area: %w", err)
	}

	backend, err := transcribe.NewBackend(transcribe.Options{
		Backend:  cfg.Transcribe.Backend,
		Model:    cfg.Transcribe.Model,
		APIKey:   cfg.Transcribe.APIKey,
		BaseURL:  cfg.Transcribe.BaseURL,
		Language: cfg.Transcribe.Language,
	})
	if err != nil {
		return nil, err
	}
	transcriber := transcribe.NewService(log.Logger, backend)

	deps := pipeline.Deps{Toolkit: toolkit, Store: store, Transcriber: transcriber}
	if m != nil {
		deps.Observer = m
	}
	pipe, err := pipeline.New(log.Logger, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &app{store: store, transcriber: transcriber, pipeline: pipe}, nil
}
