package transcribe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

type openAIBackend struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAIBackend transcribes through the OpenAI audio API, or any server
// speaking it when BaseURL is set
func NewOpenAIBackend(opts Options) Backend {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &openAIBackend{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: opts.Language,
	}
}

func (o *openAIBackend) Name() string { return "openai" }

func (o *openAIBackend) Transcribe(ctx context.Context, audioPath string) (Transcript, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: o.language,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("openai transcription: %w", err)
	}

	t := Transcript{
		Language: resp.Language,
		Text:     strings.TrimSpace(resp.Text),
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}
	for _, seg := range resp.Segments {
		t.Segments = append(t.Segments, Segment{
			StartSec: seg.Start,
			EndSec:   seg.End,
			Text:     strings.TrimSpace(seg.Text),
		})
	}
	// no timings came back; keep the text as one segment
	if len(t.Segments) == 0 && t.Text != "" {
		t.Segments = []Segment{{StartSec: 0, EndSec: resp.Duration, Text: t.Text}}
	}
	return t, nil
}
