package watermark

import (
	"fmt"
	"math"
	"strings"
	"testing"
)

func testSpec(t *testing.T, text, style string) Spec {
	t.Helper()
	spec, err := NewSpec(text, style, 36, "0,0,0", "255,255,255,128", 10, 20)
	if err != nil {
		t.Fatalf("NewSpec() error: %v", err)
	}
	return spec
}

func inlineLines(spec Spec) []TextParam {
	chain := Chain()
	lines := make([]TextParam, len(spec.Lines))
	for i, l := range spec.Lines {
		lines[i] = TextParam{Value: chain[0].Encode(l)}
	}
	return lines
}

func TestTopToBottomMotion(t *testing.T) {
	spec := testSpec(t, "Sample\nWatermark", StyleTopToBottom)
	const (
		videoDur = 30.0
		frameH   = 1080.0
	)

	y0 := blockTopAt(spec, videoDur, frameH, 0)
	if y0 != float64(spec.Margin) {
		t.Errorf("y(0) = %v, want margin %d", y0, spec.Margin)
	}

	yEnd := blockTopAt(spec, videoDur, frameH, videoDur)
	want := frameH - float64(spec.Margin) - float64(spec.blockHeight())
	if math.Abs(yEnd-want) > 1e-9 {
		t.Errorf("y(V) = %v, want %v", yEnd, want)
	}

	prev := math.Inf(-1)
	for step := 0; step <= 300; step++ {
		y := blockTopAt(spec, videoDur, frameH, videoDur*float64(step)/300)
		if y < prev {
			t.Fatalf("y(t) decreased at step %d: %v < %v", step, y, prev)
		}
		prev = y
	}
}

func TestBuildVideoFilterTopToBottom(t *testing.T) {
	spec := testSpec(t, "one\ntwo", StyleTopToBottom)
	filter := BuildVideoFilter(spec, 30, inlineLines(spec))

	if got := strings.Count(filter, "drawtext="); got != 2 {
		t.Fatalf("filter has %d drawtext fragments, want 2: %s", got, filter)
	}
	if !strings.Contains(filter, "t/30.000000") {
		t.Errorf("filter is not parametric in t: %s", filter)
	}

	// Both lines share one block origin, offset by line index.
	travel := 2*spec.Margin + spec.blockHeight()
	base := fmt.Sprintf("%d+(t/30.000000)*(h-%d)", spec.Margin, travel)
	first := fmt.Sprintf("y=%s+%d", base, spec.Padding)
	second := fmt.Sprintf("y=%s+%d", base, spec.Padding+spec.FontSize+lineSpacing)
	if !strings.Contains(filter, first) {
		t.Errorf("missing first-line y %q in %s", first, filter)
	}
	if !strings.Contains(filter, second) {
		t.Errorf("missing second-line y %q in %s", second, filter)
	}
}

func TestBuildVideoFilterStaticCenter(t *testing.T) {
	spec := testSpec(t, "centered", StyleStaticCenter)
	filter := BuildVideoFilter(spec, 12.5, inlineLines(spec))

	if strings.Contains(filter, "t/") {
		t.Errorf("static style must not depend on t: %s", filter)
	}
	if !strings.Contains(filter, "x=(w-tw)/2") {
		t.Errorf("missing horizontal centering: %s", filter)
	}
	wantY := fmt.Sprintf("y=(h-%d)/2+%d", spec.blockHeight(), spec.Padding)
	if !strings.Contains(filter, wantY) {
		t.Errorf("missing vertical centering %q: %s", wantY, filter)
	}
}

func TestBuildVideoFilterStyling(t *testing.T) {
	spec := testSpec(t, "styled", StyleStaticCenter)
	filter := BuildVideoFilter(spec, 10, inlineLines(spec))

	for _, want := range []string{
		"fontsize=36",
		"fontcolor=0x000000@0.70",
		"box=1",
		"boxcolor=0xFFFFFF@0.50",
		"boxborderw=10",
	} {
		if !strings.Contains(filter, want) {
			t.Errorf("filter missing %q: %s", want, filter)
		}
	}
}

func TestBuildVideoFilterNoBackground(t *testing.T) {
	spec, err := NewSpec("plain", StyleStaticCenter, 24, "255,255,255", "", 10, 20)
	if err != nil {
		t.Fatalf("NewSpec() error: %v", err)
	}
	filter := BuildVideoFilter(spec, 10, inlineLines(spec))
	if strings.Contains(filter, "box") {
		t.Errorf("filter must not draw a box without a background color: %s", filter)
	}
}

func TestBuildImageFilter(t *testing.T) {
	spec := testSpec(t, "img\nmark", StyleStaticCenter)
	filter := BuildImageFilter(spec, inlineLines(spec))

	if got := strings.Count(filter, "drawtext="); got != 2 {
		t.Fatalf("filter has %d drawtext fragments, want 2: %s", got, filter)
	}
	if strings.Contains(filter, "t/") {
		t.Errorf("image filter must be time-independent: %s", filter)
	}
	if !strings.Contains(filter, fmt.Sprintf("x=w-tw-%d", spec.Margin+spec.Padding)) {
		t.Errorf("image filter is not bottom-right anchored: %s", filter)
	}
}

func TestBuildVideoFilterSidecar(t *testing.T) {
	spec := testSpec(t, "sidecar", StyleStaticCenter)
	lines := []TextParam{{Value: `/tmp/wm-0.txt`, Sidecar: true}}
	filter := BuildVideoFilter(spec, 10, lines)

	if !strings.Contains(filter, "textfile=/tmp/wm-0.txt") {
		t.Errorf("sidecar line must use textfile=: %s", filter)
	}
	if strings.Contains(filter, "text=/tmp") {
		t.Errorf("sidecar line must not inline the path as text: %s", filter)
	}
}

func TestNewSpecValidation(t *testing.T) {
	if _, err := NewSpec("x", "diagonal", 36, "0,0,0", "", 10, 20); err == nil {
		t.Error("unknown style accepted")
	}
	if _, err := NewSpec("x", StyleStaticCenter, 36, "0,0", "", 10, 20); err == nil {
		t.Error("short font color accepted")
	}
	if _, err := NewSpec("x", StyleStaticCenter, 36, "0,0,300", "", 10, 20); err == nil {
		t.Error("out-of-range channel accepted")
	}
	if _, err := NewSpec("x", StyleStaticCenter, 36, "0,0,0", "1,2,3", 10, 20); err == nil {
		t.Error("RGB background accepted where RGBA required")
	}
}
