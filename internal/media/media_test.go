package media

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestSampleTimes(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		count    int
		want     []float64
	}{
		{"ten second clip", 10, 5, []float64{0.1, 2.5375, 4.975, 7.4125, 9.85}},
		{"unknown duration", 0, 3, []float64{0, 0.25, 0.5}},
		{"single frame", 10, 1, []float64{0.1}},
		{"very short clip", 0.2, 2, []float64{0.002, 0.05}},
		{"no frames", 10, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleTimes(tt.duration, tt.count)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d (%v)", len(got), len(tt.want), got)
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("times[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error = %v", err)
	}
	return buf.Bytes()
}

func TestPrepareImage_Downscales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	data := encodePNG(t, src)

	out, mimeType := PrepareImage(data, "image/png", ImageOptions{})
	if mimeType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mimeType)
	}

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 768 || cfg.Height != 384 {
		t.Errorf("size = %dx%d, want 768x384", cfg.Width, cfg.Height)
	}
}

func TestPrepareImage_KeepsSmallImages(t *testing.T) {
	data := encodePNG(t, image.NewRGBA(image.Rect(0, 0, 200, 100)))

	out, _ := PrepareImage(data, "image/png", ImageOptions{MaxWidth: 768})
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Errorf("size = %dx%d, want 200x100", cfg.Width, cfg.Height)
	}
}

func TestPrepareImage_Undecodable(t *testing.T) {
	data := []byte("not an image")
	out, mimeType := PrepareImage(data, "image/heic", ImageOptions{})
	if !bytes.Equal(out, data) || mimeType != "image/heic" {
		t.Errorf("PrepareImage changed undecodable input: %q %q", out, mimeType)
	}
}

func TestPrepareImage_AutoCrop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			src.Set(x, y, color.White)
		}
	}
	for y := 20; y < 40; y++ {
		for x := 10; x < 50; x++ {
			src.Set(x, y, color.Black)
		}
	}

	out, _ := PrepareImage(encodePNG(t, src), "image/png", ImageOptions{AutoCrop: true})
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 20 {
		t.Errorf("size = %dx%d, want 40x20", cfg.Width, cfg.Height)
	}
}

func TestContentBounds(t *testing.T) {
	blank := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			blank.Set(x, y, color.RGBA{250, 250, 250, 255})
		}
	}
	if got := ContentBounds(blank); got != image.Rect(0, 0, 1, 1) {
		t.Errorf("blank bounds = %v, want 1x1 at origin", got)
	}

	blank.Set(7, 3, color.RGBA{200, 250, 250, 255})
	if got := ContentBounds(blank); got != image.Rect(7, 3, 8, 4) {
		t.Errorf("single pixel bounds = %v, want (7,3)-(8,4)", got)
	}
}

func TestIsImageIsVideo(t *testing.T) {
	if !IsImage("image/png") || IsImage("video/mp4") {
		t.Error("IsImage misclassified")
	}
	if !IsVideo("video/quicktime") || IsVideo("image/gif") {
		t.Error("IsVideo misclassified")
	}
}

func TestFFmpegSampler(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	gen := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi", "-i", "testsrc=duration=2:size=160x120:rate=10", path)
	if out, err := gen.CombinedOutput(); err != nil {
		t.Skipf("cannot generate test clip: %v %s", err, out)
	}
	video, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}

	frames, err := NewFFmpegSampler("", "").Sample(context.Background(), video, 3)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(frames) == 0 || len(frames) > 3 {
		t.Fatalf("len(frames) = %d, want 1..3", len(frames))
	}
	for i, f := range frames {
		if _, err := jpeg.DecodeConfig(bytes.NewReader(f)); err != nil {
			t.Errorf("frame %d is not JPEG: %v", i, err)
		}
	}
}

func TestFFmpegSampler_GarbageInput(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}

	frames, err := NewFFmpegSampler("", "").Sample(context.Background(), []byte("not a video"), 2)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("len(frames) = %d, want 0", len(frames))
	}
}
