package watermark

import (
	"fmt"
	"strings"
)

// Vertical gap between stacked lines, matching the still-image layout.
const lineSpacing = 5

// Text is rendered at 70% opacity regardless of the configured color.
const fontOpacity = 0.7

// TextParam is one line of watermark text after an escaping strategy
// has been applied. When Sidecar is set, Value is a path to a file
// holding the raw line and the filter references it via textfile=
// instead of inlining it.
type TextParam struct {
	Value   string
	Sidecar bool
}

// lineHeight is the vertical step between consecutive line origins.
func (s Spec) lineHeight() int { return s.FontSize + lineSpacing }

// blockHeight is the height of the whole watermark block: stacked text
// plus inner padding. The block moves as one rigid shape.
func (s Spec) blockHeight() int {
	n := len(s.Lines)
	return n*s.FontSize + (n-1)*lineSpacing + 2*s.Padding
}

// BuildVideoFilter emits the drawtext chain for a video of videoDur
// seconds: one drawtext per line, every line offset from a shared block
// origin so the block tracks a single y(t).
//
// For top-to-bottom the block's top edge is the parametric expression
//
//	y(t) = margin + (t/V)*(h - 2*margin - blockH)
//
// evaluated by ffmpeg per frame, so the motion is continuous and
// independent of the frame size. static-center pins the block to the
// frame center for all t.
func BuildVideoFilter(spec Spec, videoDur float64, lines []TextParam) string {
	frags := make([]string, len(lines))
	for i, line := range lines {
		frags[i] = drawtext(spec, line, "(w-tw)/2", videoY(spec, videoDur, i))
	}
	return strings.Join(frags, ",")
}

// BuildImageFilter emits the drawtext chain for a still image: the same
// stacked block, fixed at the bottom-right corner.
func BuildImageFilter(spec Spec, lines []TextParam) string {
	frags := make([]string, len(lines))
	for i, line := range lines {
		x := fmt.Sprintf("w-tw-%d", spec.Margin+spec.Padding)
		y := fmt.Sprintf("h-%d+%d", spec.Margin+spec.blockHeight(), spec.Padding+i*spec.lineHeight())
		frags[i] = drawtext(spec, line, x, y)
	}
	return strings.Join(frags, ",")
}

func videoY(spec Spec, videoDur float64, lineIdx int) string {
	offset := spec.Padding + lineIdx*spec.lineHeight()
	switch spec.Style {
	case StyleTopToBottom:
		// margin + (t/V)*(h - 2*margin - blockH) + per-line offset
		travel := 2*spec.Margin + spec.blockHeight()
		return fmt.Sprintf("%d+(t/%.6f)*(h-%d)+%d", spec.Margin, videoDur, travel, offset)
	default: // StyleStaticCenter
		return fmt.Sprintf("(h-%d)/2+%d", spec.blockHeight(), offset)
	}
}

func drawtext(spec Spec, line TextParam, x, y string) string {
	parts := make([]string, 0, 8)

	if line.Sidecar {
		parts = append(parts, "textfile="+escapePath(line.Value))
	} else {
		parts = append(parts, "text="+line.Value)
	}

	parts = append(parts,
		fmt.Sprintf("fontsize=%d", spec.FontSize),
		fmt.Sprintf("fontcolor=0x%02X%02X%02X@%.2f", spec.FontColor.R, spec.FontColor.G, spec.FontColor.B, fontOpacity),
		"x="+x,
		"y="+y,
	)

	if bg := spec.Background; bg != nil {
		parts = append(parts,
			"box=1",
			fmt.Sprintf("boxcolor=0x%02X%02X%02X@%.2f", bg.R, bg.G, bg.B, float64(bg.A)/255),
			fmt.Sprintf("boxborderw=%d", spec.Padding),
		)
	}

	return "drawtext=" + strings.Join(parts, ":")
}

// blockTopAt mirrors the emitted top-to-bottom expression numerically:
// the block's top edge at time t in a frame of height frameH.
func blockTopAt(spec Spec, videoDur, frameH, t float64) float64 {
	m := float64(spec.Margin)
	return m + (t/videoDur)*(frameH-2*m-float64(spec.blockHeight()))
}

func escapePath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	return strings.ReplaceAll(p, ":", `\:`)
}
