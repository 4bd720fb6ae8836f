package transcribe

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Service owns the configured backend. It is built once at startup and
// passed to whatever needs it.
type Service struct {
	backend Backend
	logger  zerolog.Logger
}

// NewService wraps backend; a nil backend produces a service that is never ready
func NewService(logger zerolog.Logger, backend Backend) *Service {
	return &Service{
		backend: backend,
		logger:  logger.With().Str("component", "transcribe").Logger(),
	}
}

// Ready reports whether transcription requests can be served
func (s *Service) Ready() bool {
	return s != nil && s.backend != nil
}

// Backend names the active backend, or "none"
func (s *Service) Backend() string {
	if !s.Ready() {
		return "none"
	}
	return s.backend.Name()
}

// Transcribe runs the backend on audioPath
func (s *Service) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	if !s.Ready() {
		return Transcript{}, ErrUnavailable
	}

	start := time.Now()
	t, err := s.backend.Transcribe(ctx, audioPath)
	if err != nil {
		s.logger.Error().Err(err).Str("backend", s.backend.Name()).Msg("transcription failed")
		return Transcript{}, err
	}
	s.logger.Info().
		Str("backend", s.backend.Name()).
		Str("language", t.Language).
		Int("segments", len(t.Segments)).
		Dur("elapsed", time.Since(start)).
		Msg("transcription complete")
	return t, nil
}
