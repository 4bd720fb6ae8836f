package mix

import "github.com/rs/zerolog"

// scope owns the intermediates of one pipeline run. Every path is recorded
// when it is allocated, before any tool writes to it, and release deletes
// them all.
type scope struct {
	store  AssetStore
	logger zerolog.Logger
	paths  []string
}

func newScope(store AssetStore, logger zerolog.Logger) *scope {
	return &scope{store: store, logger: logger}
}

func (s *scope) allocate(prefix, ext string) string {
	path := s.store.Allocate(prefix, ext)
	s.paths = append(s.paths, path)
	return path
}

// release is safe to call more than once; cleanup errors are only logged
func (s *scope) release() {
	if len(s.paths) == 0 {
		return
	}
	if err := s.store.Remove(s.paths...); err != nil {
		s.logger.Warn().Err(err).Int("files", len(s.paths)).Msg("intermediate cleanup incomplete")
	} else {
		s.logger.Debug().Int("files", len(s.paths)).Msg("intermediates removed")
	}
	s.paths = nil
}
