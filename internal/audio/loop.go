package audio

import (
	"errors"
	"fmt"
	"math"
)

// Epsilon is the tolerance for the looped-audio length matching the
// video length.
const Epsilon = 0.05

// ErrInvalidAudio marks a track whose probed duration is zero or
// negative; such a track cannot be looped.
var ErrInvalidAudio = errors.New("audio track has no usable duration")

// LoopPlan describes how a track covers a video: the track is played
// Repeat times in a row and the final repetition is cut after Trim
// seconds. Total length is (Repeat-1)*audio + Trim == video duration.
type LoopPlan struct {
	Repeat int
	Trim   float64
}

// PlanLoop computes the loop plan for a video of videoDur seconds and a
// track of audioDur seconds. The plan never comes up shorter than the
// video: a long track is truncated, a short one repeated with the
// remainder taken from the last pass.
func PlanLoop(videoDur, audioDur float64) (LoopPlan, error) {
	if audioDur <= 0 {
		return LoopPlan{}, fmt.Errorf("duration %.3fs: %w", audioDur, ErrInvalidAudio)
	}
	if videoDur <= 0 {
		return LoopPlan{}, fmt.Errorf("video duration %.3fs is not positive", videoDur)
	}

	if audioDur >= videoDur {
		return LoopPlan{Repeat: 1, Trim: videoDur}, nil
	}

	repeat := int(math.Ceil(videoDur / audioDur))
	trim := videoDur - float64(repeat-1)*audioDur
	return LoopPlan{Repeat: repeat, Trim: trim}, nil
}
