// Package pipeline wires the watched folders to the ffmpeg invocations:
// periodic input sweeps, per-file classification and dispatch to a
// bounded worker pool, and per-sweep accounting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/samber/lo"

	"watermarkd/internal"
	"watermarkd/internal/audio"
	"watermarkd/internal/ffmpeg"
	"watermarkd/internal/logging"
	"watermarkd/internal/notify"
	"watermarkd/internal/probe"
	"watermarkd/internal/s3"
	"watermarkd/internal/watermark"
)

// UnsupportedFormatError marks a file whose extension belongs to
// neither the image nor the video set. The file is skipped, the sweep
// continues.
type UnsupportedFormatError struct {
	Path string
	Ext  string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q: %s", e.Ext, e.Path)
}

// Stats are one sweep's totals.
type Stats struct {
	Processed int
	Failed    int
	Skipped   int
}

type kind int

const (
	kindImage kind = iota
	kindVideo
)

type task struct {
	name string
	kind kind
}

type Service struct {
	cfg    internal.Config
	spec   watermark.Spec
	log    *logging.Logger
	prober *probe.Prober
	exec   *ffmpeg.Executor

	arch     s3.Archiver      // nil disables archiving
	notifier *notify.Notifier // nil disables notifications

	sem chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}

	binMissing bool
	fatalOnce  sync.Once
	fatal      chan error
	sweepMu    sync.Mutex
}

func New(cfg internal.Config, log *logging.Logger) (*Service, error) {
	spec, err := watermark.NewSpec(cfg.WatermarkText, cfg.Style, cfg.FontSize,
		cfg.FontColor, cfg.BackgroundColor, cfg.Padding, cfg.Margin)
	if err != nil {
		return nil, err
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	if cfg.MaxWorkers > runtime.NumCPU() {
		cfg.MaxWorkers = runtime.NumCPU()
	}

	s := &Service{
		cfg:      cfg,
		spec:     spec,
		log:      log,
		prober:   probe.New(cfg.FFprobePath, 30*time.Second),
		exec:     ffmpeg.NewExecutor(cfg.FFmpegPath, cfg.ExecTimeout, log),
		sem:      make(chan struct{}, cfg.MaxWorkers),
		inflight: make(map[string]struct{}),
		fatal:    make(chan error, 1),
	}

	if cfg.ArchiveEnabled() {
		arch, err := s3.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("s3 archive: %w", err)
		}
		s.arch = arch
		log.Infof("archiving outputs to s3://%s/%s", cfg.S3Bucket, cfg.S3Prefix)
	}
	if cfg.NotifyEnabled() {
		n, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		s.notifier = n
	}

	return s, nil
}

// Run processes whatever already sits in the input folder, then sweeps
// it periodically until ctx is cancelled. The only mid-run fatal is a
// missing ffmpeg binary with video work queued.
func (s *Service) Run(ctx context.Context) error {
	for _, dir := range []string{s.cfg.InputDir, s.cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	if !s.exec.Available(ctx) {
		s.binMissing = true
		s.log.Warnf("ffmpeg not found at %q, videos cannot be processed", s.cfg.FFmpegPath)
	}

	s.Sweep(ctx)

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.cfg.SweepInterval), func() {
		s.Sweep(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	s.log.Infof("watching %s every %s", s.cfg.InputDir, s.cfg.SweepInterval)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-s.fatal:
	}

	ctxStop := c.Stop()
	select {
	case <-ctxStop.Done():
	case <-time.After(10 * time.Second):
		s.log.Errorf("cron stop timeout")
	}
	return runErr
}

// Sweep lists the input folder once and processes every new file,
// blocking until the batch drains. Sweeps never overlap.
func (s *Service) Sweep(ctx context.Context) Stats {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	entries, err := os.ReadDir(s.cfg.InputDir)
	if err != nil {
		s.log.Errorf("list %s: %v", s.cfg.InputDir, err)
		return Stats{}
	}

	tracks, err := audio.ScanDir(s.cfg.AudioDir, s.cfg.AudioExts)
	if err != nil {
		s.log.Warnf("list %s: %v, replacing no audio this sweep", s.cfg.AudioDir, err)
	}

	var (
		wg      sync.WaitGroup
		statsMu sync.Mutex
		stats   Stats
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		t, err := s.classify(name)
		if err != nil {
			s.log.Warnf("%v", err)
			stats.Skipped++
			continue
		}

		if _, statErr := os.Stat(filepath.Join(s.cfg.OutputDir, name)); statErr == nil {
			stats.Skipped++
			continue
		}
		if !s.claim(name) {
			stats.Skipped++
			continue
		}

		if t.kind == kindVideo && s.binMissing {
			s.release(name)
			s.fatalOnce.Do(func() {
				s.fatal <- fmt.Errorf("ffmpeg not found at %q and video %s is queued", s.cfg.FFmpegPath, name)
			})
			stats.Skipped++
			continue
		}

		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			defer s.release(t.name)

			s.sem <- struct{}{}
			defer func() { <-s.sem }()

			err := s.process(ctx, t, tracks)
			statsMu.Lock()
			if err != nil {
				stats.Failed++
			} else {
				stats.Processed++
			}
			statsMu.Unlock()
		}(t)
	}

	wg.Wait()

	if stats.Processed > 0 || stats.Failed > 0 {
		s.log.Infof("sweep done: %d processed, %d failed, %d skipped",
			stats.Processed, stats.Failed, stats.Skipped)
	}
	if s.notifier != nil {
		if err := s.notifier.SweepDone(stats.Processed, stats.Failed); err != nil {
			s.log.Warnf("telegram notify: %v", err)
		}
	}
	return stats
}

func (s *Service) classify(name string) (task, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case lo.Contains(s.cfg.ImageExts, ext):
		return task{name: name, kind: kindImage}, nil
	case lo.Contains(s.cfg.VideoExts, ext):
		return task{name: name, kind: kindVideo}, nil
	default:
		return task{}, &UnsupportedFormatError{Path: filepath.Join(s.cfg.InputDir, name), Ext: ext}
	}
}

func (s *Service) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[name]; busy {
		return false
	}
	s.inflight[name] = struct{}{}
	return true
}

func (s *Service) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, name)
}

// process transforms one file. Failures are logged here with enough
// context to diagnose from the errors file alone; the sweep only counts
// them.
func (s *Service) process(ctx context.Context, t task, tracks []audio.Track) error {
	inPath := filepath.Join(s.cfg.InputDir, t.name)
	req := ffmpeg.Request{
		InputPath:  inPath,
		OutputPath: filepath.Join(s.cfg.OutputDir, t.name),
		IsImage:    t.kind == kindImage,
	}

	if t.kind == kindVideo {
		vdur, err := s.prober.Duration(ctx, inPath)
		if err != nil {
			s.log.Errorf("probe %s: %v", inPath, err)
			return err
		}
		req.VideoDur = vdur

		if track, ok := audio.Match(t.name, tracks); ok {
			adur, err := s.prober.Duration(ctx, track.Path)
			if err != nil {
				s.log.Errorf("probe audio %s for %s: %v", track.Path, inPath, err)
				return err
			}
			plan, err := audio.PlanLoop(vdur, adur)
			if err != nil {
				s.log.Errorf("audio %s for %s: %v", track.Path, inPath, err)
				return err
			}
			req.AudioPath = track.Path
			req.Loop = plan
			s.log.Infof("%s: audio %s x%d trim %.2fs", t.name, track.Name, plan.Repeat, plan.Trim)
		} else {
			s.log.Infof("%s: no audio tracks, keeping original audio", t.name)
		}
	}

	out, err := s.exec.Run(ctx, s.spec, req)
	if err != nil {
		s.logRunFailure(inPath, out, err)
		return err
	}

	s.log.Infof("done %s (strategy %s)", t.name, out.StrategyName)
	if s.arch != nil {
		if key, err := s.arch.PutFile(ctx, req.OutputPath); err != nil {
			s.log.Warnf("archive %s: %v", t.name, err)
		} else {
			s.log.Infof("archived %s", key)
		}
	}
	return nil
}

func (s *Service) logRunFailure(inPath string, out ffmpeg.Outcome, err error) {
	switch {
	case errors.Is(err, context.Canceled):
		s.log.Warnf("cancelled %s", inPath)
	case errors.Is(err, ffmpeg.ErrTimeout):
		s.log.Errorf("timeout %s after %s (strategy %s)", inPath, s.cfg.ExecTimeout, out.StrategyName)
	default:
		s.log.Errorf("ffmpeg %s (strategy %s, exit %d): %v\n%s",
			inPath, out.StrategyName, out.ExitCode, err, out.Stderr)
	}
}
