package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/pkg/util"
)

// Store is the part of the asset store the resolver needs
type Store interface {
	Allocate(prefix, ext string) string
	Lookup(name string) (string, error)
	Remove(paths ...string) error
}

// Input names one file a request refers to. Exactly one of Ref, Base64 or
// URL must be set.
type Input struct {
	// Field is the request field, used in error messages
	Field string
	// Ref is the name of a file already in the asset area
	Ref    string
	Base64 string
	URL    string
	// Name seeds the generated filename for inline and remote data
	Name string
}

// Given reports how many sources the input carries
func (in Input) Given() int {
	n := 0
	for _, s := range []string{in.Ref, in.Base64, in.URL} {
		if s != "" {
			n++
		}
	}
	return n
}

// Check fails when the input has no source or more than one
func (in Input) Check() error {
	switch in.Given() {
	case 0:
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, in.Field)
	case 1:
		return nil
	default:
		return fmt.Errorf("%w: %s must be given exactly one way", ErrInvalidInput, in.Field)
	}
}

// Resolved is a local file ready for the toolkit
type Resolved struct {
	Path string
	// Owned files were created for this request and are deleted after it
	Owned bool
}

// Resolver materialises inputs
type Resolver struct {
	store      Store
	downloader *Downloader
	logger     zerolog.Logger
}

// NewResolver creates a resolver; downloader may be nil when URLs are not accepted
func NewResolver(logger zerolog.Logger, store Store, downloader *Downloader) *Resolver {
	return &Resolver{
		store:      store,
		downloader: downloader,
		logger:     logger.With().Str("component", "source").Logger(),
	}
}

// Resolve returns the local path for in. Stored references are borrowed
// and never owned.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Resolved, error) {
	if err := in.Check(); err != nil {
		return Resolved{}, err
	}

	switch {
	case in.Ref != "":
		path, err := r.store.Lookup(in.Ref)
		if errors.Is(err, assets.ErrInvalidName) {
			return Resolved{}, fmt.Errorf("%w: %s: %v", ErrInvalidInput, in.Field, err)
		}
		if err != nil {
			return Resolved{}, fmt.Errorf("%s %q: %w", in.Field, in.Ref, err)
		}
		return Resolved{Path: path}, nil

	case in.Base64 != "":
		data, err := DecodeBase64(in.Base64)
		if err != nil {
			return Resolved{}, fmt.Errorf("%s: %w", in.Field, err)
		}
		path := r.allocate(in)
		if err := os.WriteFile(path, data, 0644); err != nil {
			r.store.Remove(path)
			return Resolved{}, fmt.Errorf("failed to write %s: %w", in.Field, err)
		}
		r.logger.Debug().Str("field", in.Field).Int("bytes", len(data)).Str("path", filepath.Base(path)).Msg("decoded inline data")
		return Resolved{Path: path, Owned: true}, nil

	default:
		if r.downloader == nil {
			return Resolved{}, fmt.Errorf("%w: %s: urls are not accepted", ErrInvalidInput, in.Field)
		}
		path := r.allocate(in)
		if err := r.downloader.Download(ctx, in.URL, path); err != nil {
			return Resolved{}, fmt.Errorf("%s: %w", in.Field, err)
		}
		r.logger.Debug().Str("field", in.Field).Str("url", in.URL).Str("path", filepath.Base(path)).Msg("downloaded input")
		return Resolved{Path: path, Owned: true}, nil
	}
}

// Release deletes the owned files among resolved
func (r *Resolver) Release(resolved ...Resolved) {
	var owned []string
	for _, res := range resolved {
		if res.Owned && res.Path != "" {
			owned = append(owned, res.Path)
		}
	}
	if len(owned) == 0 {
		return
	}
	if err := r.store.Remove(owned...); err != nil {
		r.logger.Warn().Err(err).Msg("failed to remove request inputs")
	}
}

func (r *Resolver) allocate(in Input) string {
	name := in.Name
	if name == "" {
		name = in.Field
	}
	safe := util.SafeName(name)
	ext := filepath.Ext(safe)
	return r.store.Allocate(strings.TrimSuffix(safe, ext), ext)
}
