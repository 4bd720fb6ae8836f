// Package assets manages the flat temporary directory holding every
// intermediate and output media file.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/pkg/util"
)

// IDLength is the length of generated retrieval identifiers
const IDLength = 8

var (
	// ErrNotFound is returned when a name has no file in the asset area
	ErrNotFound = errors.New("asset not found")
	// ErrInvalidName is returned for names that would escape the asset area
	ErrInvalidName = errors.New("invalid asset name")
)

// Store is a process-local registry of media files. Names are unique for
// the lifetime of the process; there is no durability.
type Store struct {
	dir    string
	logger zerolog.Logger

	mu       sync.Mutex
	issued   map[string]struct{}
	registry map[string]string
}

// New prepares dir and returns a store rooted in it
func New(logger zerolog.Logger, dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("asset directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := util.EnsureDir(abs); err != nil {
		return nil, fmt.Errorf("create asset directory: %w", err)
	}
	return &Store{
		dir:      abs,
		logger:   logger.With().Str("component", "assets").Logger(),
		issued:   make(map[string]struct{}),
		registry: make(map[string]string),
	}, nil
}

// Dir returns the asset directory
func (s *Store) Dir() string { return s.dir }

// NewID returns a fresh 8 character token never handed out before by this store
func (s *Store) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:IDLength]
		if _, taken := s.issued[id]; taken {
			continue
		}
		s.issued[id] = struct{}{}
		return id
	}
}

// Allocate reserves a unique path "<id>_<prefix><ext>" in the asset area.
// The file itself is not created.
func (s *Store) Allocate(prefix, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name := s.NewID()
	if prefix != "" {
		name += "_" + util.SafeName(prefix)
	}
	return filepath.Join(s.dir, name+ext)
}

// Register makes path retrievable under name
func (s *Store) Register(name, path string) error {
	if err := checkName(name); err != nil {
		return err
	}
	s.mu.Lock()
	s.registry[name] = path
	s.mu.Unlock()
	s.logger.Debug().Str("name", name).Str("path", path).Msg("asset registered")
	return nil
}

// Lookup resolves a retrieval identifier or stored file name to a path.
// Registered outputs win; otherwise any regular file directly inside the
// asset area matches.
func (s *Store) Lookup(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}

	s.mu.Lock()
	path, ok := s.registry[name]
	s.mu.Unlock()
	if !ok {
		path = filepath.Join(s.dir, name)
	}

	if !util.FileExists(path) {
		if ok {
			s.forget(name)
		}
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return path, nil
}

// Remove deletes files that belong to the asset area. Missing files are
// ignored so the call is safe to repeat.
func (s *Store) Remove(paths ...string) error {
	var errs []error
	for _, path := range paths {
		if path == "" {
			continue
		}
		if !s.owns(path) {
			errs = append(errs, fmt.Errorf("%w: %s is outside %s", ErrInvalidName, path, s.dir))
			continue
		}
		if err := util.RemoveFile(path); err != nil {
			errs = append(errs, err)
			continue
		}
		s.forget(filepath.Base(path))
	}
	return errors.Join(errs...)
}

// Sweep removes files older than maxAge and returns how many were deleted
func (s *Store) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// RunJanitor sweeps every interval until ctx is done
func (s *Store) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(maxAge)
			if err != nil {
				s.logger.Warn().Err(err).Msg("sweep incomplete")
			}
			if n > 0 {
				s.logger.Info().Int("removed", n).Dur("max_age", maxAge).Msg("swept expired assets")
			}
		}
	}
}

// Purge empties the asset area, keeping the directory itself
func (s *Store) Purge() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return err
	}
	s.mu.Lock()
	s.registry = make(map[string]string)
	s.mu.Unlock()
	return util.EnsureDir(s.dir)
}

func (s *Store) owns(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == s.dir
}

func (s *Store) forget(name string) {
	s.mu.Lock()
	delete(s.registry, name)
	s.mu.Unlock()
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
