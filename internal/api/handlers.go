package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/keagan/soundbed/internal/pipeline"
	"github.com/keagan/soundbed/internal/transcribe"
)

type extractRequest struct {
	URL        string `json:"url"`
	Base64Data string `json:"base64_data"`
	Filename   string `json:"filename"`
	Transcribe bool   `json:"transcribe"`
}

type mixRequest struct {
	Audio       string `json:"audio"`
	AudioBase64 string `json:"audio_base64"`
	WaitMusic   int    `json:"wait_music"`
	Music       string `json:"music"`
	MusicBase64 string `json:"music_base64"`
	FadeEndAt   int    `json:"fade_end_at"`
}

type transcribeRequest struct {
	Filename string `json:"filename" binding:"required"`
}

type audioResponse struct {
	DownloadURL string                 `json:"download_url"`
	Base64Data  string                 `json:"base64_data"`
	MimeType    string                 `json:"mimetype"`
	Filename    string                 `json:"filename"`
	Transcript  *transcribe.Transcript `json:"transcript,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"transcriber_ready": s.service.TranscriberReady(),
	})
}

func (s *Server) handleMix(c *gin.Context) {
	var req mixRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.service.Mix(c.Request.Context(), pipeline.MixRequest{
		Audio:       req.Audio,
		AudioBase64: req.AudioBase64,
		Music:       req.Music,
		MusicBase64: req.MusicBase64,
		WaitMusic:   req.WaitMusic,
		FadeEndAt:   req.FadeEndAt,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleExtract(c *gin.Context) {
	var req extractRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.service.Extract(c.Request.Context(), pipeline.ExtractRequest{
		URL:        req.URL,
		Base64Data: req.Base64Data,
		Filename:   req.Filename,
		Transcribe: req.Transcribe,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	s.respond(c, res)
}

func (s *Server) handleTranscribe(c *gin.Context) {
	var req transcribeRequest
	if !s.bind(c, &req) {
		return
	}

	t, err := s.service.Transcribe(c.Request.Context(), req.Filename)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDownload(c *gin.Context) {
	filename := c.Param("filename")
	path, err := s.service.Open(filename)
	if err != nil {
		s.writeError(c, err)
		return
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "File not found"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, info.Size(), MimeType, f, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, filename),
	})
}

// bind decodes the JSON body, answering 400 (or 413) itself on failure
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(c, err)
			return false
		}
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request: " + err.Error()})
		return false
	}
	return true
}

// respond returns the produced file both as a link and inline
func (s *Server) respond(c *gin.Context, res *pipeline.Result) {
	data, err := os.ReadFile(res.Path)
	if err != nil {
		s.writeError(c, fmt.Errorf("failed to read %s: %w", res.Filename, err))
		return
	}
	c.JSON(http.StatusOK, audioResponse{
		DownloadURL: "/download/" + res.Filename,
		Base64Data:  base64.StdEncoding.EncodeToString(data),
		MimeType:    MimeType,
		Filename:    res.Filename,
		Transcript:  res.Transcript,
	})
}
