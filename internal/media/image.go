package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"

	// Decoders registered for image.Decode.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxWidth = 768
	DefaultQuality  = 60

	// whiteThreshold is the channel value above which a pixel counts as
	// background for auto-crop.
	whiteThreshold = 240
)

// ImageOptions controls PrepareImage.
type ImageOptions struct {
	MaxWidth int  // images wider than this are scaled down
	Quality  int  // JPEG quality, 1-100
	AutoCrop bool // trim near-white borders first
}

// IsImage reports whether mimeType is an image type.
func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// IsVideo reports whether mimeType is a video type.
func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}

// PrepareImage shrinks an image for upload to the model and re-encodes it
// as JPEG. It returns the new bytes and MIME type. Images that cannot be
// decoded are returned unchanged with their original type.
func PrepareImage(data []byte, mimeType string, opts ImageOptions) ([]byte, string) {
	out, err := prepareImage(data, opts)
	if err != nil {
		return data, mimeType
	}
	return out, "image/jpeg"
}

func prepareImage(data []byte, opts ImageOptions) ([]byte, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = DefaultMaxWidth
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if opts.AutoCrop {
		bounds = ContentBounds(src)
	}

	w, h := bounds.Dx(), bounds.Dy()
	if w > opts.MaxWidth {
		h = max(1, h*opts.MaxWidth/w)
		w = opts.MaxWidth
	}

	// JPEG has no alpha; flatten onto white.
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentBounds returns the smallest rectangle holding every pixel that is
// not near-white. A blank image keeps a 1x1 rectangle at its origin.
func ContentBounds(img image.Image) image.Rectangle {
	b := img.Bounds()
	if b.Empty() {
		return b
	}

	rowHasContent := func(y int) bool {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isBackground(img.At(x, y)) {
				return true
			}
		}
		return false
	}
	colHasContent := func(x, top, bottom int) bool {
		for y := top; y <= bottom; y++ {
			if !isBackground(img.At(x, y)) {
				return true
			}
		}
		return false
	}

	top := b.Min.Y
	for top < b.Max.Y && !rowHasContent(top) {
		top++
	}
	if top == b.Max.Y {
		return image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Min.Y+1)
	}
	bottom := b.Max.Y - 1
	for bottom > top && !rowHasContent(bottom) {
		bottom--
	}
	left := b.Min.X
	for left < b.Max.X-1 && !colHasContent(left, top, bottom) {
		left++
	}
	right := b.Max.X - 1
	for right > left && !colHasContent(right, top, bottom) {
		right--
	}
	return image.Rect(left, top, right+1, bottom+1)
}

func isBackground(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r>>8 > whiteThreshold && g>>8 > whiteThreshold && b>>8 > whiteThreshold
}
