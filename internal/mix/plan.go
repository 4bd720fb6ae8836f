package mix

import (
	"fmt"
	"math"
)

// Fixed mix parameters
const (
	DefaultFadeoutDuration  = 3.0
	DefaultBackgroundVolume = 0.3
	SilenceSampleRate       = 44100
	SilenceChannels         = 2
)

// Plan is the timing of one narration-over-music mix. All values are seconds.
type Plan struct {
	// WaitBeforeMusic is the silence placed before the narration enters
	WaitBeforeMusic float64

	TotalDuration    float64
	FadeoutStart     float64
	FadeoutDuration  float64
	BackgroundVolume float64

	// LoopCount is how many extra copies of the music are appended
	LoopCount int
}

// ExtendedMusicDuration is the music length after looping
func (p Plan) ExtendedMusicDuration(musicDuration float64) float64 {
	return musicDuration * float64(p.LoopCount+1)
}

// Planner derives mix plans. The zero value is not usable; use DefaultPlanner
// or set both fields.
type Planner struct {
	FadeoutDuration  float64
	BackgroundVolume float64
}

// DefaultPlanner uses the 3 second fade and 0.3 bed volume
var DefaultPlanner = Planner{
	FadeoutDuration:  DefaultFadeoutDuration,
	BackgroundVolume: DefaultBackgroundVolume,
}

// ComputePlan plans a mix with the default fade and bed volume
func ComputePlan(narrationDuration, musicDuration float64, waitBeforeMusic, fadeStartDelay int) (Plan, error) {
	return DefaultPlanner.Plan(narrationDuration, musicDuration, waitBeforeMusic, fadeStartDelay)
}

// Plan computes the timeline:
//
//	total        = wait + narration + fadeDelay + fadeout
//	fadeoutStart = wait + narration + fadeDelay
//	loops        = ceil(total/music) - 1 when music is shorter than total
func (p Planner) Plan(narrationDuration, musicDuration float64, waitBeforeMusic, fadeStartDelay int) (Plan, error) {
	if math.IsNaN(narrationDuration) || math.IsInf(narrationDuration, 0) || narrationDuration < 0 {
		return Plan{}, &InvalidAudioAssetError{Asset: "narration", Duration: narrationDuration}
	}
	if math.IsNaN(musicDuration) || math.IsInf(musicDuration, 0) || musicDuration <= 0 {
		return Plan{}, &InvalidAudioAssetError{Asset: "music", Duration: musicDuration}
	}
	if waitBeforeMusic < 0 {
		return Plan{}, fmt.Errorf("%w: wait_music must not be negative, got %d", ErrInvalidTiming, waitBeforeMusic)
	}
	if fadeStartDelay < 0 {
		return Plan{}, fmt.Errorf("%w: fade_end_at must not be negative, got %d", ErrInvalidTiming, fadeStartDelay)
	}
	if p.FadeoutDuration <= 0 || p.BackgroundVolume <= 0 {
		return Plan{}, fmt.Errorf("planner needs a positive fadeout and volume, got %g and %g", p.FadeoutDuration, p.BackgroundVolume)
	}

	wait := float64(waitBeforeMusic)
	fadeoutStart := wait + narrationDuration + float64(fadeStartDelay)
	total := fadeoutStart + p.FadeoutDuration

	loops := 0
	if musicDuration < total {
		loops = int(math.Ceil(total/musicDuration)) - 1
	}

	return Plan{
		WaitBeforeMusic:  wait,
		TotalDuration:    total,
		FadeoutStart:     fadeoutStart,
		FadeoutDuration:  p.FadeoutDuration,
		BackgroundVolume: p.BackgroundVolume,
		LoopCount:        loops,
	}, nil
}
