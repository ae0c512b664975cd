// Package probe queries ffprobe for media metadata without decoding.
package probe

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/tidwall/gjson"
)

// Error is a per-file probe failure: unreadable file, missing duration
// field, or an unavailable ffprobe binary. It never aborts a batch.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type Prober struct {
	binPath string
	timeout time.Duration
}

func New(binPath string, timeout time.Duration) *Prober {
	if binPath == "" {
		binPath = "ffprobe"
	}
	return &Prober{binPath: binPath, timeout: timeout}
}

// Duration returns the container duration of path in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, p.binPath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, &Error{Path: path, Err: err}
	}

	d, err := ParseDuration(out)
	if err != nil {
		return 0, &Error{Path: path, Err: err}
	}
	return d, nil
}

// ParseDuration extracts format.duration from raw ffprobe JSON.
// Exported for testing without a real ffprobe binary.
func ParseDuration(out []byte) (float64, error) {
	res := gjson.GetBytes(out, "format.duration")
	if !res.Exists() {
		return 0, fmt.Errorf("no duration field in ffprobe output")
	}
	d := res.Float()
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q in ffprobe output", res.String())
	}
	return d, nil
}
