package api

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/keagan/soundbed/internal/assets"
	"github.com/keagan/soundbed/internal/ffmpeg"
	"github.com/keagan/soundbed/internal/mix"
	"github.com/keagan/soundbed/internal/pipeline"
	"github.com/keagan/soundbed/internal/transcribe"
)

// writeError maps the error taxonomy onto status codes. Bodies use a
// "detail" field; processing failures add the failing "stage".
func (s *Server) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	var (
		maxErr   *http.MaxBytesError
		mixErr   *mix.MixExecutionError
		toolErr  *ffmpeg.ToolkitError
		assetErr *mix.InvalidAudioAssetError
	)

	switch {
	case errors.As(err, &maxErr):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": s.detail(err.Error())})
	case errors.As(err, &assetErr):
		c.JSON(http.StatusBadRequest, gin.H{"detail": s.detail(assetErr.Error())})
	case errors.Is(err, pipeline.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"detail": s.detail(err.Error())})
	case errors.Is(err, assets.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
	case errors.Is(err, transcribe.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Speech recognition is not configured"})
	case errors.As(err, &mixErr):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": s.detail(mixErr.Error()), "stage": mixErr.Stage})
	case errors.As(err, &toolErr):
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Audio extraction failed: " + s.detail(toolErr.Error()), "stage": toolErr.Operation})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Server error: " + s.detail(err.Error())})
	}
}

// detail strips the asset directory so clients only see file names
func (s *Server) detail(msg string) string {
	if s.opts.AssetDir == "" {
		return msg
	}
	return strings.ReplaceAll(msg, filepath.Clean(s.opts.AssetDir)+string(filepath.Separator), "")
}
