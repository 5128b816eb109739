package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"mime"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	// ErrUnsupportedFormat reports a declared content type outside the
	// supported set.
	ErrUnsupportedFormat = errors.New("raster: unsupported image format")
	// ErrCorruptImage reports bytes that do not parse as a valid image of the
	// declared kind.
	ErrCorruptImage = errors.New("raster: corrupt image data")
	// ErrTooLarge reports dimensions above the configured cap.
	ErrTooLarge = errors.New("raster: image dimensions exceed limit")
)

// Limits bounds accepted image dimensions. Zero values disable a bound.
type Limits struct {
	// MaxDimension caps the larger of width and height, in pixels.
	MaxDimension int
	// MaxPixels caps width*height.
	MaxPixels int64
}

// formatNames maps supported content types to the names the registered
// decoders report from image.DecodeConfig.
var formatNames = map[string]string{
	"image/png":      "png",
	"image/jpeg":     "jpeg",
	"image/jpg":      "jpeg",
	"image/tiff":     "tiff",
	"image/webp":     "webp",
	"image/bmp":      "bmp",
	"image/x-ms-bmp": "bmp",
}

// SupportedFormats lists the accepted content types.
func SupportedFormats() []string {
	return []string{"image/png", "image/jpeg", "image/tiff", "image/webp", "image/bmp"}
}

// Decode validates and decodes an uploaded byte stream. The declared content
// type must name a supported format and match the actual encoding; the
// dimension check runs on the header alone so oversized inputs never allocate
// a pixel grid.
func Decode(data []byte, contentType string, limits Limits) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCorruptImage)
	}
	want, err := lookupFormat(contentType)
	if err != nil {
		return nil, err
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if name != want {
		return nil, fmt.Errorf("%w: declared %s but data is %s", ErrCorruptImage, want, name)
	}
	if err := checkLimits(cfg.Width, cfg.Height, limits); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	return FromImage(img), nil
}

func lookupFormat(contentType string) (string, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	name, ok := formatNames[strings.ToLower(strings.TrimSpace(mediaType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, contentType)
	}
	return name, nil
}

func checkLimits(width, height int, limits Limits) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: non-positive dimensions %dx%d", ErrCorruptImage, width, height)
	}
	if limits.MaxDimension > 0 && (width > limits.MaxDimension || height > limits.MaxDimension) {
		return fmt.Errorf("%w: %dx%d exceeds max dimension %d", ErrTooLarge, width, height, limits.MaxDimension)
	}
	if limits.MaxPixels > 0 && int64(width)*int64(height) > limits.MaxPixels {
		return fmt.Errorf("%w: %dx%d exceeds max pixel count %d", ErrTooLarge, width, height, limits.MaxPixels)
	}
	return nil
}
