// Package preprocess normalizes decoded rasters before recognition. Every
// step returns a new raster; a step whose preconditions are not met is
// skipped rather than failed, so Apply never errors on well-formed input.
package preprocess

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/wudi/ocrkit/raster"
)

// Options selects the normalization steps.
type Options struct {
	// Grayscale converts the raster to a luminance-weighted gray image.
	Grayscale bool
	// Binarize thresholds the grayscale raster into pure black/white.
	Binarize bool
	// Threshold is the binarization cutoff in 1..255. Zero selects an
	// automatic threshold computed with Otsu's method.
	Threshold int
	// Deskew estimates the dominant text-line angle and rotates to correct it.
	Deskew bool
	// MaxDimension downscales the raster, preserving aspect ratio, when its
	// larger side exceeds this many pixels. Zero disables the cap.
	MaxDimension int
}

// Apply runs the configured steps in a fixed order: downscale, grayscale,
// deskew, binarize. Binarize and deskew operate on luminance, so either one
// implies the grayscale conversion.
func Apply(img *raster.Image, opts Options) *raster.Image {
	out := img
	if opts.MaxDimension > 0 && (out.Width > opts.MaxDimension || out.Height > opts.MaxDimension) {
		fitted := imaging.Fit(out.Data, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
		out = raster.FromImage(fitted)
	}
	if opts.Grayscale || opts.Binarize || opts.Deskew {
		out = toGray(out)
	}
	if opts.Deskew {
		out = deskew(out)
	}
	if opts.Binarize {
		gray := grayPixels(out)
		threshold := opts.Threshold
		if threshold <= 0 || threshold > 255 {
			threshold = otsuThreshold(histogram(gray))
		}
		out = raster.FromImage(binarize(gray, uint8(threshold)))
	}
	return out
}

// toGray reduces the raster to an 8-bit gray image. Already-gray rasters are
// returned unchanged, which keeps repeated application bit-identical.
func toGray(img *raster.Image) *raster.Image {
	if img.Mode == raster.ModeGray {
		if _, ok := img.Data.(*image.Gray); ok {
			return img
		}
	}
	return raster.FromImage(grayPixels(img))
}

func grayPixels(img *raster.Image) *image.Gray {
	if g, ok := img.Data.(*image.Gray); ok {
		return g
	}
	flat := imaging.Grayscale(img.Data)
	b := flat.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := flat.Pix[y*flat.Stride:]
		dst := gray.Pix[y*gray.Stride:]
		for x := 0; x < b.Dx(); x++ {
			// Grayscale output carries the luminance in every channel.
			dst[x] = src[x*4]
		}
	}
	return gray
}

func histogram(gray *image.Gray) [256]int {
	var hist [256]int
	b := gray.Bounds()
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// otsuThreshold finds the split that maximizes between-class variance.
func otsuThreshold(hist [256]int) int {
	total := 0
	for _, c := range hist {
		total += c
	}
	if total == 0 {
		return 128
	}
	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}
	var sumBack, weightBack float64
	best, bestVariance := 128, -1.0
	for i, c := range hist {
		weightBack += float64(c)
		if weightBack == 0 {
			continue
		}
		weightFore := float64(total) - weightBack
		if weightFore == 0 {
			break
		}
		sumBack += float64(i) * float64(c)
		meanBack := sumBack / weightBack
		meanFore := (sum - sumBack) / weightFore
		variance := weightBack * weightFore * (meanBack - meanFore) * (meanBack - meanFore)
		if variance > bestVariance {
			bestVariance = variance
			best = i
		}
	}
	return best
}

func binarize(gray *image.Gray, threshold uint8) *image.Gray {
	b := gray.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x, v := range src {
			if v > threshold {
				dst[x] = 255
			} else {
				dst[x] = 0
			}
		}
	}
	return out
}
