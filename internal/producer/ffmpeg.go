package producer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"lightbox/internal/imaging"
	"lightbox/internal/logging"
	"lightbox/internal/thumbcache"
)

var commandContext = exec.CommandContext

// Option configures the FFmpeg producer.
type Option func(*FFmpeg)

// WithFFmpegBinary overrides the ffmpeg executable name.
func WithFFmpegBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.ffmpeg = binary
		}
	}
}

// WithFFprobeBinary overrides the ffprobe executable name.
func WithFFprobeBinary(binary string) Option {
	return func(f *FFmpeg) {
		if binary != "" {
			f.ffprobe = binary
		}
	}
}

// WithLogger attaches a logger for per-frame debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *FFmpeg) {
		if logger != nil {
			f.logger = logging.NewComponentLogger(logger, "producer")
		}
	}
}

// FFmpeg produces thumbnails by running ffprobe and ffmpeg. Frames are
// extracted one at a time, in timestamp order, inside a single goroutine;
// the producer itself adds no parallelism.
type FFmpeg struct {
	ffmpeg  string
	ffprobe string
	logger  *slog.Logger
}

// NewFFmpeg constructs an FFmpeg producer using defaults.
func NewFFmpeg(opts ...Option) *FFmpeg {
	f := &FFmpeg{
		ffmpeg:  "ffmpeg",
		ffprobe: "ffprobe",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Generate starts thumbnail extraction for req and returns the completion
// channel. Exactly one Completion is sent, for failures included.
func (f *FFmpeg) Generate(ctx context.Context, req Request) <-chan Completion {
	done := make(chan Completion, 1)
	go func() {
		thumbs, err := f.generate(ctx, req)
		done <- Completion{Thumbnails: thumbs, Err: err}
	}()
	return done
}

func (f *FFmpeg) generate(ctx context.Context, req Request) ([]thumbcache.Thumbnail, error) {
	if strings.TrimSpace(req.Path) == "" {
		return nil, errors.New("producer: source path required")
	}
	if req.Width <= 0 {
		return nil, fmt.Errorf("producer: width must be positive, got %d", req.Width)
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("producer: count must be positive, got %d", req.Count)
	}

	duration, err := probeDuration(ctx, f.ffprobe, req.Path)
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("producer: %s reports no duration", req.Path)
	}

	stamps := sampleTimestamps(duration, req.Count)
	thumbs := make([]thumbcache.Thumbnail, 0, len(stamps))
	for i, stamp := range stamps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := f.extractFrame(ctx, req.Path, stamp, req.Width)
		if err != nil {
			return nil, fmt.Errorf("producer: frame at %ss: %w", formatSeconds(stamp), err)
		}
		thumbs = append(thumbs, thumbcache.Thumbnail{RealTime: stamp, Image: img})
		f.logger.Debug("extracted frame",
			logging.String(logging.FieldSourceFile, req.Path),
			logging.Float64("timestamp", stamp),
			logging.Int("index", i))
		if req.OnProgress != nil {
			req.OnProgress(Progress{Index: i, Total: len(stamps), Timestamp: stamp})
		}
	}
	return thumbs, nil
}

// sampleTimestamps spreads count midpoints evenly across duration, so a
// 60s video with count 3 samples at 10s, 30s, and 50s.
func sampleTimestamps(duration float64, count int) []float64 {
	stamps := make([]float64, count)
	for i := range stamps {
		stamps[i] = duration * (float64(i) + 0.5) / float64(count)
	}
	return stamps
}

// extractFrame decodes one frame at the given timestamp, scaled to width
// with the height following the source aspect ratio.
func (f *FFmpeg) extractFrame(ctx context.Context, path string, timestamp float64, width int) (image.Image, error) {
	args := []string{
		"-v", "error",
		"-ss", formatSeconds(timestamp),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-2", width),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1",
	}
	cmd := commandContext(ctx, f.ffmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("ffmpeg: %w", err)
		}
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, detail)
	}
	img, err := imaging.Decode(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}

func formatSeconds(timestamp float64) string {
	return strconv.FormatFloat(timestamp, 'f', 3, 64)
}

var _ Producer = (*FFmpeg)(nil)
