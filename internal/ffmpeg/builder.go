// Package ffmpeg assembles and runs the external binary invocations:
// argument construction, child-process execution with timeout, stderr
// classification, and the escaping-strategy retry loop.
package ffmpeg

import (
	"fmt"

	"watermarkd/internal/audio"
)

// Request describes one transformation of a single input file. The
// overlay filter is supplied separately because it is the only part
// rebuilt between escaping-strategy attempts.
type Request struct {
	InputPath  string
	OutputPath string
	IsImage    bool

	// Video-only fields.
	VideoDur  float64
	AudioPath string // empty keeps the original audio track
	Loop      audio.LoopPlan
}

// Build constructs the full argument slice for one invocation, with
// overlayFilter as the drawtext chain for the current strategy.
//
// For a video with replacement audio the track is concatenated via
// -stream_loop and the concatenation trimmed back to the exact video
// duration, so the looped audio never comes up short. The original
// audio stream is dropped by mapping only [vout] and [aout]. Source
// resolution is preserved; the encode targets a fixed quality.
func Build(binPath string, req Request, overlayFilter string) []string {
	args := []string{binPath, "-hide_banner", "-loglevel", "error", "-y"}

	if req.IsImage {
		args = append(args,
			"-i", req.InputPath,
			"-vf", overlayFilter,
			"-q:v", "2",
			req.OutputPath,
		)
		return args
	}

	args = append(args, "-i", req.InputPath)

	if req.AudioPath != "" {
		if req.Loop.Repeat > 1 {
			args = append(args, "-stream_loop", fmt.Sprintf("%d", req.Loop.Repeat-1))
		}
		args = append(args, "-i", req.AudioPath)

		filterComplex := fmt.Sprintf("[0:v]%s[vout];[1:a]atrim=duration=%.3f[aout]",
			overlayFilter, req.VideoDur)
		args = append(args,
			"-filter_complex", filterComplex,
			"-map", "[vout]",
			"-map", "[aout]",
			"-c:v", "libx264", "-preset", "medium", "-crf", "18",
			"-c:a", "aac", "-b:a", "192k",
		)
	} else {
		args = append(args,
			"-vf", overlayFilter,
			"-c:v", "libx264", "-preset", "medium", "-crf", "18",
			"-c:a", "copy",
		)
	}

	args = append(args, req.OutputPath)
	return args
}
