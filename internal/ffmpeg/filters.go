package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/keagan/soundbed/pkg/util"
)

// FilterBuilder helps construct ffmpeg audio filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Volume scales amplitude by a linear factor
func (fb *FilterBuilder) Volume(factor float64) *FilterBuilder {
	if factor < 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("volume=%g", factor))
	return fb
}

// FadeOut fades to silence starting at start seconds for duration seconds
func (fb *FilterBuilder) FadeOut(start, duration float64) *FilterBuilder {
	if duration <= 0 || start < 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("afade=t=out:st=%s:d=%s", util.FormatSeconds(start), util.FormatSeconds(duration)))
	return fb
}

// Format pins sample rate and channel layout
func (fb *FilterBuilder) Format(sampleRate, channels int) *FilterBuilder {
	if sampleRate <= 0 || channels <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("aformat=sample_rates=%d:channel_layouts=%s", sampleRate, channelLayout(channels)))
	return fb
}

// Pad appends silence indefinitely; pair with an output duration
func (fb *FilterBuilder) Pad() *FilterBuilder {
	fb.filters = append(fb.filters, "apad")
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

func channelLayout(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

// conformInputs labels every input stream as [aN] after forcing a common
// format; concat and amix both need matching inputs.
func conformInputs(n int, format AudioFormat) ([]string, string) {
	labels := make([]string, n)
	var graph strings.Builder
	for i := 0; i < n; i++ {
		labels[i] = fmt.Sprintf("[a%d]", i)
		chain := NewFilterBuilder().Format(format.SampleRate, format.Channels).Build()
		fmt.Fprintf(&graph, "[%d:a]%s%s;", i, chain, labels[i])
	}
	return labels, graph.String()
}
