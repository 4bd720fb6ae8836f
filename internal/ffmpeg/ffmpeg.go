package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// stderrTail is how many non-progress stderr lines are kept for error reports
const stderrTail = 12

// Options selects the binaries and defaults an Executor runs with
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Threads     int

	// Working is the format intermediates are written in
	Working AudioFormat
}

// Executor handles all ffmpeg operations with progress streaming.
// It is the media toolkit adapter: every method takes typed parameters
// and builds the command line itself.
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	threads     int
	working     AudioFormat
}

// New creates a new ffmpeg executor
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}

	ffmpegPath, err := exec.LookPath(opts.FFmpegPath)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath(opts.FFprobePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	working := opts.Working
	if working.Codec == "" {
		working.Codec = WorkingCodec
	}
	if working.SampleRate <= 0 {
		working.SampleRate = DefaultSampleRate
	}
	if working.Channels <= 0 {
		working.Channels = DefaultChannels
	}

	return &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		threads:     opts.Threads,
		working:     working,
	}, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	op := opts.Operation
	if op == "" {
		op = "ffmpeg"
	}
	if len(opts.Args) == 0 {
		return &ToolkitError{Operation: op, Message: "no arguments provided"}
	}

	// Build args with threads BEFORE other arguments
	baseArgs := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "error"}

	if e.threads > 0 {
		baseArgs = append(baseArgs, "-threads", strconv.Itoa(e.threads))
	}

	baseArgs = append(baseArgs, "-progress", "pipe:2")
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Str("op", op).
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &ToolkitError{Operation: op, Message: "failed to create stderr pipe", Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &ToolkitError{Operation: op, Message: "failed to create stdout pipe", Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &ToolkitError{Operation: op, Message: "failed to start ffmpeg", Err: err}
	}

	var (
		wg   sync.WaitGroup
		tail []string
	)
	wg.Add(2)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		tail = e.streamOutput(stderr, opts.ProgressHandler, opts.LogHandler)
	}()

	// Stream stdout
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return &ToolkitError{Operation: op, Message: "interrupted", Err: ctxErr}
		}
		return &ToolkitError{Operation: op, Message: strings.Join(tail, "; "), Err: err}
	}

	e.logger.Debug().Str("op", op).Msg("ffmpeg execution completed")
	return nil
}

// progressKeys are the key=value lines ffmpeg writes for -progress
var progressKeys = map[string]bool{
	"frame": true, "fps": true, "stream_0_0_q": true, "bitrate": true,
	"total_size": true, "out_time_us": true, "out_time_ms": true, "out_time": true,
	"dup_frames": true, "drop_frames": true, "speed": true, "progress": true,
}

// streamOutput parses ffmpeg output, calls handlers and returns the last
// non-progress lines for error reporting
func (e *Executor) streamOutput(r io.Reader, progressHandler func(*Progress), logHandler func(string)) []string {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}
	var tail []string

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok || !progressKeys[key] {
			if strings.TrimSpace(line) != "" {
				tail = append(tail, strings.TrimSpace(line))
				if len(tail) > stderrTail {
					tail = tail[1:]
				}
			}
			continue
		}

		value = strings.TrimSpace(value)
		switch key {
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil && us > 0 {
				progressData.OutTime = time.Duration(us) * time.Microsecond
			}
		case "total_size":
			if n, err := strconv.ParseInt(value, 10, 64); err == nil {
				progressData.Size = n
			}
		case "bitrate":
			progressData.Bitrate = value
		case "speed":
			progressData.Speed = value
		case "progress":
			// End of progress block
			progressData.Done = value == "end"
			if progressHandler != nil {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}

	return tail
}

// probe runs ffprobe and returns stdout
func (e *Executor) probe(ctx context.Context, op string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ToolkitError{Operation: op, Message: "interrupted", Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ToolkitError{Operation: op, Message: strings.TrimSpace(string(exitErr.Stderr)), Err: err}
		}
		return nil, &ToolkitError{Operation: op, Err: err}
	}
	return out, nil
}
