package internal

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	InputDir  string
	OutputDir string
	AudioDir  string

	WatermarkText   string
	Style           string // "static-center" or "top-to-bottom"
	FontSize        int
	FontColor       string // "R,G,B"
	BackgroundColor string // "R,G,B,A", empty disables the box
	Padding         int
	Margin          int

	ImageExts []string
	VideoExts []string
	AudioExts []string

	FFmpegPath  string
	FFprobePath string
	ExecTimeout time.Duration

	MaxWorkers    int
	SweepInterval time.Duration

	ErrorsLog string

	// Optional output archive (enabled when S3Bucket is set).
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	// Optional sweep-summary notifications (enabled when both are set).
	TelegramToken  string
	TelegramChatID int64
}

func LoadConfig() (Config, error) {
	cfg := Config{
		InputDir:  envOr("INPUT_DIR", "INPUT"),
		OutputDir: envOr("OUTPUT_DIR", "OUTPUT"),
		AudioDir:  envOr("AUDIO_DIR", "AUDIO"),

		WatermarkText:   os.Getenv("WATERMARK_TEXT"),
		Style:           envOr("WATERMARK_STYLE", "static-center"),
		FontSize:        36,
		FontColor:       envOr("WATERMARK_FONT_COLOR", "0,0,0"),
		BackgroundColor: os.Getenv("WATERMARK_BACKGROUND_COLOR"),
		Padding:         10,
		Margin:          20,

		ImageExts: splitExts(envOr("IMAGE_EXTS", ".jpg,.jpeg,.png,.bmp,.tiff")),
		VideoExts: splitExts(envOr("VIDEO_EXTS", ".mp4,.avi,.mov,.mkv,.wmv")),
		AudioExts: splitExts(envOr("AUDIO_EXTS", ".mp3,.wav,.aac,.m4a,.ogg,.flac")),

		FFmpegPath:  envOr("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: envOr("FFPROBE_PATH", "ffprobe"),
		ExecTimeout: 5 * time.Minute,

		MaxWorkers:    runtime.NumCPU(),
		SweepInterval: 15 * time.Second,

		ErrorsLog: envOr("ERRORS_LOG", "errors.log"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    os.Getenv("S3_REGION"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3AccessKey: firstNonEmpty(os.Getenv("S3_ACCESS_KEY"), os.Getenv("S3_ACCESS_KEY_ID")),
		S3SecretKey: firstNonEmpty(os.Getenv("S3_SECRET_ACCESS_KEY"), os.Getenv("S3_SECRET_KEY")),
		S3Prefix:    envOr("S3_PREFIX", "watermarked/"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if v := os.Getenv("WATERMARK_FONT_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.FontSize = n
		}
	}
	if v := os.Getenv("WATERMARK_PADDING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Padding = n
		}
	}
	if v := os.Getenv("WATERMARK_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Margin = n
		}
	}
	if v := os.Getenv("MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("FFMPEG_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ExecTimeout = d
		}
	}
	if v := os.Getenv("SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.TelegramChatID = n
		}
	}

	// WATERMARK_TEXT may carry embedded line breaks as literal "\n".
	cfg.WatermarkText = strings.ReplaceAll(cfg.WatermarkText, `\n`, "\n")

	if cfg.WatermarkText == "" {
		return cfg, errors.New("WATERMARK_TEXT is required")
	}
	if cfg.Style != "static-center" && cfg.Style != "top-to-bottom" {
		return cfg, fmt.Errorf("WATERMARK_STYLE %q is not supported (use static-center or top-to-bottom)", cfg.Style)
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Endpoint == "" || cfg.S3Region == "" || cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
			return cfg, errors.New("S3_BUCKET is set but S3_ENDPOINT, S3_REGION and credentials are incomplete")
		}
	}
	return cfg, nil
}

// ArchiveEnabled reports whether processed outputs should be mirrored to S3.
func (c Config) ArchiveEnabled() bool { return c.S3Bucket != "" }

// NotifyEnabled reports whether sweep summaries should be sent to Telegram.
func (c Config) NotifyEnabled() bool { return c.TelegramToken != "" && c.TelegramChatID != 0 }

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitExts(s string) []string {
	var exts []string
	for _, e := range strings.Split(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s != "" {
			return s
		}
	}
	return ""
}
