// Package watermark lays out the watermark block and renders it as
// ffmpeg drawtext filter fragments, with an ordered set of escaping
// strategies that make arbitrary watermark text safe for the filter
// syntax.
package watermark

import (
	"fmt"
	"strconv"
	"strings"
)

// Animation styles. Only these two are supported.
const (
	StyleStaticCenter = "static-center"
	StyleTopToBottom  = "top-to-bottom"
)

type RGB struct {
	R, G, B uint8
}

type RGBA struct {
	R, G, B, A uint8
}

// Spec is the watermark configuration, loaded once per run and
// read-only for the pipeline's lifetime.
type Spec struct {
	Lines      []string
	Style      string
	FontSize   int
	FontColor  RGB
	Background *RGBA // nil disables the background box
	Padding    int
	Margin     int
}

// NewSpec builds a Spec from raw configuration values. text may contain
// embedded line breaks; fontColor is "R,G,B" and background "R,G,B,A"
// (empty background disables the box).
func NewSpec(text, style string, fontSize int, fontColor, background string, padding, margin int) (Spec, error) {
	spec := Spec{
		Lines:    strings.Split(text, "\n"),
		Style:    style,
		FontSize: fontSize,
		Padding:  padding,
		Margin:   margin,
	}

	if style != StyleStaticCenter && style != StyleTopToBottom {
		return Spec{}, fmt.Errorf("unknown animation style %q", style)
	}

	fc, err := parseChannels(fontColor, 3)
	if err != nil {
		return Spec{}, fmt.Errorf("font color: %w", err)
	}
	spec.FontColor = RGB{fc[0], fc[1], fc[2]}

	if background != "" {
		bc, err := parseChannels(background, 4)
		if err != nil {
			return Spec{}, fmt.Errorf("background color: %w", err)
		}
		spec.Background = &RGBA{bc[0], bc[1], bc[2], bc[3]}
	}

	return spec, nil
}

func parseChannels(s string, n int) ([]uint8, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%q: want %d comma-separated channels", s, n)
	}
	out := make([]uint8, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 || v > 255 {
			return nil, fmt.Errorf("%q: channel %d out of range", s, i)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
