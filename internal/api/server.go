// Package api serves the HTTP endpoints on gin.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/keagan/soundbed/internal/metrics"
	"github.com/keagan/soundbed/internal/pipeline"
	"github.com/keagan/soundbed/internal/transcribe"
)

// MimeType is what every produced file is served as
const MimeType = "audio/mp3"

// Service is the work behind the endpoints
type Service interface {
	Mix(ctx context.Context, req pipeline.MixRequest) (*pipeline.Result, error)
	Extract(ctx context.Context, req pipeline.ExtractRequest) (*pipeline.Result, error)
	Transcribe(ctx context.Context, name string) (*transcribe.Transcript, error)
	Open(name string) (string, error)
	TranscriberReady() bool
}

// Options configures the HTTP layer
type Options struct {
	// MaxBodyBytes caps request bodies; zero means unlimited
	MaxBodyBytes int64
	// Metrics may be nil, which also disables /metrics
	Metrics *metrics.Metrics
	// AssetDir is removed from error details
	AssetDir string
}

// Server routes requests to the service
type Server struct {
	router  *gin.Engine
	service Service
	logger  zerolog.Logger
	opts    Options
}

// New builds the router
func New(logger zerolog.Logger, service Service, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:  gin.New(),
		service: service,
		logger:  logger.With().Str("component", "api").Logger(),
		opts:    opts,
	}

	s.router.Use(gin.Recovery(), s.requestLogger(), s.limitBody())

	s.router.GET("/health", s.handleHealth)
	s.router.POST("/extract-audio", s.handleExtract)
	s.router.POST("/mix-audio", s.handleMix)
	s.router.POST("/transcribe", s.handleTranscribe)
	s.router.GET("/download/:filename", s.handleDownload)
	if opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})
	return s
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler { return s.router }
