// Package raster holds decoded request-scoped images and the upload decoder.
// Decoding is the only entry point; preprocessing derives new values instead
// of mutating, so every stage of the pipeline can be tested in isolation.
package raster

import "image"

// Mode identifies the color layout of a decoded image.
type Mode string

const (
	ModeGray Mode = "gray"
	ModeRGB  Mode = "rgb"
)

// Image is a decoded pixel grid scoped to a single request.
type Image struct {
	Data   image.Image
	Width  int
	Height int
	Mode   Mode
}

// FromImage wraps a decoded image.Image, deriving dimensions and color mode.
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	return &Image{
		Data:   img,
		Width:  b.Dx(),
		Height: b.Dy(),
		Mode:   modeOf(img),
	}
}

func modeOf(img image.Image) Mode {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return ModeGray
	default:
		return ModeRGB
	}
}
