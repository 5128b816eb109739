package preprocess

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"

	"github.com/wudi/ocrkit/raster"
)

const (
	// deskewMaxAngle bounds the searched rotation in degrees either way.
	deskewMaxAngle = 5.0
	deskewStep     = 0.25
	// deskewProbeSize caps the raster used for angle estimation; the chosen
	// angle is then applied to the full raster.
	deskewProbeSize = 512
	// deskewMinGain is the factor by which the best angle's projection
	// variance must beat the unrotated raster, otherwise deskew is a no-op.
	deskewMinGain = 1.05
)

func deskew(img *raster.Image) *raster.Image {
	gray := grayPixels(img)
	angle := estimateSkew(gray)
	if angle == 0 {
		return img
	}
	rotated := imaging.Rotate(gray, angle, color.White)
	return raster.FromImage(grayPixels(raster.FromImage(rotated)))
}

// estimateSkew searches +-deskewMaxAngle for the rotation that maximizes the
// variance of per-row dark-pixel counts. Text lines produce a strongly peaked
// profile when horizontal; a flat profile means there is no reliable signal
// and zero is returned.
func estimateSkew(gray *image.Gray) float64 {
	probe := gray
	if b := gray.Bounds(); b.Dx() > deskewProbeSize || b.Dy() > deskewProbeSize {
		fitted := imaging.Fit(gray, deskewProbeSize, deskewProbeSize, imaging.Linear)
		probe = grayPixels(raster.FromImage(fitted))
	}
	base := profileVariance(probe)
	if base == 0 {
		return 0
	}
	bestAngle, bestScore := 0.0, base
	for a := -deskewMaxAngle; a <= deskewMaxAngle; a += deskewStep {
		if a == 0 {
			continue
		}
		rotated := imaging.Rotate(probe, a, color.White)
		score := profileVariance(grayPixels(raster.FromImage(rotated)))
		if score > bestScore {
			bestScore = score
			bestAngle = a
		}
	}
	if bestScore < base*deskewMinGain {
		return 0
	}
	return bestAngle
}

func profileVariance(gray *image.Gray) float64 {
	b := gray.Bounds()
	if b.Dy() == 0 {
		return 0
	}
	counts := make([]float64, b.Dy())
	var total float64
	for y := 0; y < b.Dy(); y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+b.Dx()]
		var dark float64
		for _, v := range row {
			if v < 128 {
				dark++
			}
		}
		counts[y] = dark
		total += dark
	}
	if total == 0 {
		return 0
	}
	mean := total / float64(len(counts))
	var variance float64
	for _, c := range counts {
		d := c - mean
		variance += d * d
	}
	return variance / float64(len(counts))
}
