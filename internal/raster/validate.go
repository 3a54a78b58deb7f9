package raster

import (
	"fmt"
	"image"
	"math"
)

const (
	// minPageDimension is the smallest usable page edge in pixels.
	minPageDimension = 100

	// blankStdDevThreshold marks near-uniform pages. A blank scan has a
	// grayscale standard deviation close to zero.
	blankStdDevThreshold = 5.0
)

// ValidatePage checks that a page image is worth sending to any engine.
// It returns a human-readable reason when the page must be skipped.
func ValidatePage(img image.Image) (ok bool, reason string) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < minPageDimension || h < minPageDimension {
		return false, fmt.Sprintf("page too small (%dx%d, minimum %dpx per side)", w, h, minPageDimension)
	}

	if std := grayStdDev(img); std < blankStdDevThreshold {
		return false, fmt.Sprintf("page appears blank (pixel stddev %.2f)", std)
	}

	return true, ""
}

// grayStdDev computes the standard deviation of the 8-bit grayscale
// projection of the image.
func grayStdDev(img image.Image) float64 {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma, scaled from 16-bit channels to 8-bit.
			gray := (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257.0
			sum += gray
			sumSq += gray * gray
		}
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
