package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"watermarkd/internal"
	"watermarkd/internal/logging"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

// stubFFprobe answers 30s for video files and 12s for audio tracks.
func stubFFprobe(t *testing.T, dir string) string {
	return writeScript(t, dir, "ffprobe", `p=""
for a in "$@"; do p="$a"; done
case "$p" in
  (*.mp4|*.mov) d=30.0;;
  (*) d=12.0;;
esac
printf '{"format":{"duration":"%s"}}' "$d"
`)
}

// stubFFmpeg records its argument vector and touches the output.
func stubFFmpeg(t *testing.T, dir, argLog string) string {
	return writeScript(t, dir, "ffmpeg", fmt.Sprintf(`printf '%%s\n' "$@" >> %s
out=""
for a in "$@"; do out="$a"; done
case "$out" in
  (-version) exit 0;;
esac
: > "$out"
`, argLog))
}

func testService(t *testing.T) (*Service, internal.Config) {
	t.Helper()
	root := t.TempDir()
	bins := filepath.Join(root, "bin")
	for _, d := range []string{"bin", "in", "out", "audio"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	cfg := internal.Config{
		InputDir:  filepath.Join(root, "in"),
		OutputDir: filepath.Join(root, "out"),
		AudioDir:  filepath.Join(root, "audio"),

		WatermarkText: "Contact: 555-1234",
		Style:         "static-center",
		FontSize:      36,
		FontColor:     "0,0,0",
		Padding:       10,
		Margin:        20,

		ImageExts: []string{".jpg", ".png"},
		VideoExts: []string{".mp4", ".mov"},
		AudioExts: []string{".mp3", ".wav"},

		FFmpegPath:  stubFFmpeg(t, bins, filepath.Join(root, "ffmpeg.args")),
		FFprobePath: stubFFprobe(t, bins),
		ExecTimeout: 10 * time.Second,

		MaxWorkers:    2,
		SweepInterval: time.Second,
	}

	log, err := logging.New(filepath.Join(root, "errors.log"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { log.Close() })

	svc, err := New(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	return svc, cfg
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSweepProcessesNewImages(t *testing.T) {
	svc, cfg := testService(t)
	touch(t, filepath.Join(cfg.InputDir, "a.jpg"))
	touch(t, filepath.Join(cfg.InputDir, "b.png"))
	// b already has an output, it must not be redone.
	touch(t, filepath.Join(cfg.OutputDir, "b.png"))

	stats := svc.Sweep(context.Background())
	if stats.Processed != 1 || stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 1 processed / 1 skipped", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "a.jpg")); err != nil {
		t.Errorf("output for a.jpg missing: %v", err)
	}
}

func TestSweepSkipsUnsupportedFormats(t *testing.T) {
	svc, cfg := testService(t)
	touch(t, filepath.Join(cfg.InputDir, "notes.txt"))

	stats := svc.Sweep(context.Background())
	if stats.Skipped != 1 || stats.Processed != 0 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want everything skipped", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "notes.txt")); !os.IsNotExist(err) {
		t.Error("unsupported file produced an output")
	}
}

func TestSweepVideoLoopsMatchedAudio(t *testing.T) {
	svc, cfg := testService(t)
	// clip.mp4 probes 30s, clip.wav probes 12s: three passes, trimmed to 30.
	touch(t, filepath.Join(cfg.InputDir, "clip.mp4"))
	touch(t, filepath.Join(cfg.AudioDir, "clip.wav"))
	touch(t, filepath.Join(cfg.AudioDir, "ambient.mp3"))

	stats := svc.Sweep(context.Background())
	if stats.Processed != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v, want 1 processed", stats)
	}

	args, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.InputDir), "ffmpeg.args"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(args)
	if !strings.Contains(got, "clip.wav") {
		t.Errorf("basename match not used, args:\n%s", got)
	}
	if !strings.Contains(got, "-stream_loop\n2\n") {
		t.Errorf("audio not looped 3x, args:\n%s", got)
	}
	if !strings.Contains(got, "atrim=duration=30.000") {
		t.Errorf("audio not trimmed to the video duration, args:\n%s", got)
	}
}

func TestSweepVideoWithoutAudioKeepsOriginalTrack(t *testing.T) {
	svc, cfg := testService(t)
	touch(t, filepath.Join(cfg.InputDir, "clip.mp4"))

	stats := svc.Sweep(context.Background())
	if stats.Processed != 1 {
		t.Fatalf("stats = %+v, want 1 processed", stats)
	}

	args, err := os.ReadFile(filepath.Join(filepath.Dir(cfg.InputDir), "ffmpeg.args"))
	if err != nil {
		t.Fatal(err)
	}
	got := string(args)
	if !strings.Contains(got, "-c:a\ncopy\n") {
		t.Errorf("original audio track not kept, args:\n%s", got)
	}
	if strings.Contains(got, "-filter_complex") {
		t.Errorf("unexpected replacement-audio graph, args:\n%s", got)
	}
}

func TestSweepQueuedVideoWithoutBinaryIsFatal(t *testing.T) {
	svc, cfg := testService(t)
	svc.binMissing = true
	touch(t, filepath.Join(cfg.InputDir, "clip.mp4"))
	touch(t, filepath.Join(cfg.InputDir, "a.jpg"))

	stats := svc.Sweep(context.Background())
	select {
	case err := <-svc.fatal:
		if err == nil {
			t.Fatal("nil fatal error")
		}
	default:
		t.Fatal("queued video with missing binary did not surface a fatal error")
	}
	// Images still run against the configured binary path.
	if stats.Processed != 1 {
		t.Errorf("stats = %+v, want the image processed", stats)
	}
}

func TestSweepReportsFailures(t *testing.T) {
	svc, cfg := testService(t)
	writeScript(t, filepath.Dir(cfg.FFmpegPath), "ffmpeg", `echo "Invalid data found when processing input" >&2
exit 1
`)
	touch(t, filepath.Join(cfg.InputDir, "a.jpg"))
	touch(t, filepath.Join(cfg.InputDir, "b.jpg"))

	stats := svc.Sweep(context.Background())
	if stats.Failed != 2 || stats.Processed != 0 {
		t.Fatalf("stats = %+v, want 2 failed", stats)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "a.jpg")); !os.IsNotExist(err) {
		t.Error("failed invocation left an output behind")
	}
}

func TestClassify(t *testing.T) {
	svc, _ := testService(t)

	if tk, err := svc.classify("Photo.JPG"); err != nil || tk.kind != kindImage {
		t.Errorf("classify(Photo.JPG) = %+v, %v", tk, err)
	}
	if tk, err := svc.classify("clip.mov"); err != nil || tk.kind != kindVideo {
		t.Errorf("classify(clip.mov) = %+v, %v", tk, err)
	}
	if _, err := svc.classify("readme.md"); err == nil {
		t.Error("classify(readme.md) succeeded, want UnsupportedFormatError")
	}
}
