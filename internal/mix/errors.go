package mix

import (
	"errors"
	"fmt"
)

// Pipeline stages, in execution order
const (
	StageProbe       = "probe"
	StageLoop        = "loop"
	StageGain        = "gain"
	StageTrim        = "trim"
	StageSilence     = "silence"
	StageConcatenate = "concatenate"
	StageFadeout     = "fadeout"
	StageMix         = "mix"
	StageDuration    = "duration"
	StageEncode      = "encode"
	StageRegister    = "register"

	// StageTimeout replaces the stage name when a call ran out of time
	StageTimeout = "timeout"
)

var (
	// ErrInvalidAudioAsset marks inputs whose duration makes a plan impossible
	ErrInvalidAudioAsset = errors.New("invalid audio asset")
	// ErrInvalidTiming marks negative wait or fade delays
	ErrInvalidTiming = errors.New("invalid mix timing")
)

// InvalidAudioAssetError reports a degenerate input duration
type InvalidAudioAssetError struct {
	Asset    string
	Duration float64
}

func (e *InvalidAudioAssetError) Error() string {
	return fmt.Sprintf("invalid audio asset: %s duration %g", e.Asset, e.Duration)
}

func (e *InvalidAudioAssetError) Is(target error) bool { return target == ErrInvalidAudioAsset }

// MixExecutionError names the pipeline stage that failed
type MixExecutionError struct {
	Stage string
	Cause error
}

func (e *MixExecutionError) Error() string {
	return fmt.Sprintf("mix failed at %s: %v", e.Stage, e.Cause)
}

func (e *MixExecutionError) Unwrap() error { return e.Cause }
