// Package media prepares uploaded media for analysis: still images are
// cropped, downscaled and re-encoded, and videos are sampled into frames
// with ffmpeg.
package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// DefaultFrameCount is how many frames are sampled from a video.
const DefaultFrameCount = 5

// Sampler turns a video into still images.
type Sampler interface {
	Sample(ctx context.Context, video []byte, count int) ([][]byte, error)
}

// FFmpegSampler samples frames by shelling out to ffprobe and ffmpeg.
type FFmpegSampler struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpegSampler returns a sampler using the given binaries, or the ones
// on PATH when empty.
func NewFFmpegSampler(ffmpegPath, ffprobePath string) *FFmpegSampler {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegSampler{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

// Sample grabs up to count JPEG frames spread across the video, in time
// order. Frames ffmpeg cannot produce are skipped, so fewer than count may
// be returned.
func (s *FFmpegSampler) Sample(ctx context.Context, video []byte, count int) ([][]byte, error) {
	if count <= 0 {
		count = DefaultFrameCount
	}

	// ffmpeg needs a seekable input for -ss.
	f, err := os.CreateTemp("", "mediadata-*.video")
	if err != nil {
		return nil, fmt.Errorf("sample frames: create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(video); err != nil {
		f.Close()
		return nil, fmt.Errorf("sample frames: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("sample frames: close temp file: %w", err)
	}

	duration, err := s.probeDuration(ctx, f.Name())
	if err != nil {
		slog.Debug("ffprobe could not read duration", "error", err)
	}

	frames := make([][]byte, 0, count)
	for i, t := range SampleTimes(duration, count) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := s.grab(ctx, f.Name(), t)
		if err != nil {
			slog.Debug("frame skipped", "index", i, "at", t, "error", err)
			continue
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *FFmpegSampler) probeDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || math.IsNaN(d) || d < 0 {
		return 0, fmt.Errorf("ffprobe duration %q: not a number", strings.TrimSpace(string(out)))
	}
	return d, nil
}

func (s *FFmpegSampler) grab(ctx context.Context, path string, at float64) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.FFmpegPath,
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, stderr.String())
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no frame at %.3fs", at)
	}
	return stdout.Bytes(), nil
}

// SampleTimes returns count timestamps, in seconds, evenly spread over a
// video of the given duration. The first frame is taken slightly after the
// start and the last slightly before the end to avoid black frames. An
// unknown (zero) duration samples the first half second.
func SampleTimes(duration float64, count int) []float64 {
	if count <= 0 {
		return nil
	}
	if duration < 0 || math.IsNaN(duration) {
		duration = 0
	}

	start := math.Min(0.15, duration*0.01)
	end := start + 0.5
	if duration > 0 {
		end = math.Max(duration-0.15, start)
	}

	steps := float64(max(count-1, 1))
	times := make([]float64, count)
	for i := range times {
		times[i] = start + float64(i)*(end-start)/steps
	}
	return times
}
