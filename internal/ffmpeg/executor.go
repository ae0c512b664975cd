package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"watermarkd/internal/logging"
	"watermarkd/internal/watermark"
)

// Outcome records how one file's invocation ended: which escaping
// strategy was in effect, the exit status, and a diagnostic excerpt.
type Outcome struct {
	Success      bool
	ExitCode     int
	Stderr       string
	Strategy     int // index into watermark.Chain()
	StrategyName string
}

type Executor struct {
	binPath string
	timeout time.Duration
	log     *logging.Logger
}

func NewExecutor(binPath string, timeout time.Duration, log *logging.Logger) *Executor {
	if binPath == "" {
		binPath = "ffmpeg"
	}
	return &Executor{binPath: binPath, timeout: timeout, log: log}
}

// Available reports whether the binary can be invoked at all. Used for
// the one-time startup check; absence later is a per-file failure.
func (e *Executor) Available(ctx context.Context) bool {
	return exec.CommandContext(ctx, e.binPath, "-version").Run() == nil
}

// Run executes the request, walking the escaping strategies in order.
// Only the overlay filter is rebuilt between attempts; the audio and
// encoding arguments stay fixed. A strategy is advanced past exactly
// when stderr matches a filter-syntax rejection — any other failure is
// final for this file. No strategy is ever tried twice.
func (e *Executor) Run(ctx context.Context, spec watermark.Spec, req Request) (Outcome, error) {
	var last runResult
	chain := watermark.Chain()

	for i, strat := range chain {
		lines, cleanup, err := e.encodeLines(spec.Lines, strat)
		if err != nil {
			return Outcome{Strategy: i, StrategyName: strat.Name}, err
		}

		var filter string
		if req.IsImage {
			filter = watermark.BuildImageFilter(spec, lines)
		} else {
			filter = watermark.BuildVideoFilter(spec, req.VideoDur, lines)
		}

		args := Build(e.binPath, req, filter)
		e.log.Infof("ffmpeg: %s (strategy %s)", filepath.Base(req.InputPath), strat.Name)

		res := e.execute(ctx, args)
		cleanup()

		if res.err == nil {
			return Outcome{Success: true, Strategy: i, StrategyName: strat.Name}, nil
		}

		// Never leave a partial output behind a failed attempt.
		os.Remove(req.OutputPath)

		out := Outcome{
			ExitCode:     res.exitCode,
			Stderr:       stderrTail(res.stderr),
			Strategy:     i,
			StrategyName: strat.Name,
		}

		if res.timedOut {
			return out, fmt.Errorf("%s: %w", req.InputPath, ErrTimeout)
		}
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if !MatchFilterSyntax(res.stderr) {
			return out, &ExecError{Path: req.InputPath, Stderr: out.Stderr, Err: res.err}
		}

		e.log.Warnf("ffmpeg: filter rejected with strategy %s, advancing", strat.Name)
		last = res
	}

	out := Outcome{
		ExitCode:     last.exitCode,
		Stderr:       stderrTail(last.stderr),
		Strategy:     len(chain) - 1,
		StrategyName: chain[len(chain)-1].Name,
	}
	return out, &ExhaustedError{Path: req.InputPath, Stderr: out.Stderr}
}

type runResult struct {
	err      error
	exitCode int
	stderr   string
	timedOut bool
}

func (e *Executor) execute(ctx context.Context, args []string) runResult {
	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := runResult{err: err, stderr: stderr.String(), exitCode: exitCode(err)}
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		res.timedOut = true
	}
	return res
}

// encodeLines applies one strategy to every line. Sidecar strategies
// write each line to a temporary file referenced by the filter; the
// returned cleanup removes them after the invocation.
func (e *Executor) encodeLines(lines []string, strat watermark.Strategy) ([]watermark.TextParam, func(), error) {
	params := make([]watermark.TextParam, len(lines))
	var files []string
	cleanup := func() {
		for _, f := range files {
			os.Remove(f)
		}
	}

	for i, line := range lines {
		if !strat.Sidecar {
			params[i] = watermark.TextParam{Value: strat.Encode(line)}
			continue
		}

		f, err := os.CreateTemp("", "wmtext-*.txt")
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("create sidecar text file: %w", err)
		}
		files = append(files, f.Name())
		if _, err := f.WriteString(strat.Encode(line)); err != nil {
			f.Close()
			cleanup()
			return nil, nil, fmt.Errorf("write sidecar text file: %w", err)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return nil, nil, err
		}
		params[i] = watermark.TextParam{Value: f.Name(), Sidecar: true}
	}

	return params, cleanup, nil
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// stderrTail keeps the last lines of a diagnostic stream, which is
// where ffmpeg reports the actual failure.
func stderrTail(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	if len(lines) > 20 {
		lines = lines[len(lines)-20:]
	}
	return strings.Join(lines, "\n")
}
