package raster

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"image"
	"image/color"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
)

const (
	// maxUploadDimension is the largest edge sent to the remote engine;
	// anything bigger only burns tokens without improving extraction.
	maxUploadDimension = 2048

	// fingerprintDimension is the thumbnail edge used for cache keys. Small
	// enough to hash fast, large enough that different bills never collide.
	fingerprintDimension = 512
	fingerprintQuality   = 75
)

// Fingerprint derives the cache key for a page image: an MD5 digest of a
// quality-reduced JPEG thumbnail. Hashing the reduced encoding rather than
// the raw pixels makes perceptually identical renders of the same bill hash
// identically across documents.
func Fingerprint(img image.Image) (string, error) {
	thumb := scaleDown(img, fingerprintDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: fingerprintQuality}); err != nil {
		return "", WrapRasterError("Fingerprint", err, "encode thumbnail")
	}

	digest := md5.Sum(buf.Bytes())
	return hex.EncodeToString(digest[:]), nil
}

// OptimizeForUpload prepares a page image for the remote engine: downscale
// to the upload ceiling, lift contrast slightly, and encode as JPEG with
// adaptive quality (small pages keep more detail).
func OptimizeForUpload(img image.Image) ([]byte, error) {
	scaled := scaleDown(img, maxUploadDimension)
	enhanced := enhanceContrast(scaled, 1.1)

	quality := 85
	if maxEdge(enhanced) < 1000 {
		quality = 95
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, enhanced, &jpeg.Options{Quality: quality}); err != nil {
		return nil, WrapRasterError("OptimizeForUpload", err, "encode JPEG")
	}
	return buf.Bytes(), nil
}

// scaleDown resizes img so its longest edge is at most maxDim, preserving
// aspect ratio. Images already within bounds are returned unchanged.
func scaleDown(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return img
	}

	ratio := float64(maxDim) / float64(longest)
	nw := int(float64(w) * ratio)
	nh := int(float64(h) * ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}

// enhanceContrast scales each channel's distance from mid-gray by factor.
func enhanceContrast(img image.Image, factor float64) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			dst.Set(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{
				R: adjustChannel(r, factor),
				G: adjustChannel(g, factor),
				B: adjustChannel(b, factor),
				A: uint8(a >> 8),
			})
		}
	}
	return dst
}

func adjustChannel(c uint32, factor float64) uint8 {
	v := float64(c>>8)/255.0 - 0.5
	v = v*factor + 0.5
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

func maxEdge(img image.Image) int {
	b := img.Bounds()
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}
