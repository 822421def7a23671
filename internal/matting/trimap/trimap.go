// Package trimap converts a soft segmentation probability map into a
// 3-valued trimap (definite background / definite foreground / unknown)
// with a guaranteed uncertainty band around every fg/bg boundary. Two
// modes are supported: threshold mode for an 8-bit segmenter mask (the
// rembg alpha_matting_cutout convention, original_source/rembg/bg.go) and
// entropy mode for a continuous probability map
// (original_source/src/python/process_matting.go: entropy_trimap).
package trimap

import (
	"image"
	"math"

	"gocv.io/x/gocv"

	"matting-core/internal/matting"
)

// Values used by the 3-valued trimap.
const (
	Background = 0.0
	Unknown    = 0.5
	Foreground = 1.0
)

// ThresholdOptions configures threshold-mode construction.
type ThresholdOptions struct {
	ForegroundThreshold uint8 // config.Default uses 240; zero is used as is
	BackgroundThreshold uint8 // config.Default uses 10; zero is used as is
	ErodeStructureSize  int   // config.Default uses 10; zero or less skips erosion
}

// BuildThreshold builds a trimap from an 8-bit-scale probability plane
// (mask values in [0,1], compared against thresholds divided by 255) using
// binary erosion of the foreground and background sets. Erosion of the
// background set treats out-of-image pixels as background (border value
// true), matching rembg's `binary_erosion(is_background, border_value=1)`;
// erosion of the foreground set treats out-of-image pixels as
// non-foreground (the scipy default), so foreground touching the image
// edge erodes inward. This asymmetry is implemented as a direct Go loop
// rather than through gocv's erode (gocv's ErodeWithParams has no
// border-value parameter; OpenCV's built-in erode default border
// convention is the opposite of what rembg's asymmetric convention needs).
func BuildThreshold(mask *matting.Plane, opts ThresholdOptions) *matting.Plane {
	fgT := float64(opts.ForegroundThreshold) / 255.0
	bgT := float64(opts.BackgroundThreshold) / 255.0
	k := opts.ErodeStructureSize

	isFg := make([]bool, len(mask.Data))
	isBg := make([]bool, len(mask.Data))
	for i, v := range mask.Data {
		isFg[i] = v > fgT
		isBg[i] = v < bgT
	}

	if k > 0 {
		isFg = erode(isFg, mask.H, mask.W, k, false)
		isBg = erode(isBg, mask.H, mask.W, k, true)
	}

	out := matting.NewPlane(mask.H, mask.W)
	for i := range out.Data {
		switch {
		case isFg[i]:
			out.Data[i] = Foreground
		case isBg[i]:
			out.Data[i] = Background
		default:
			out.Data[i] = Unknown
		}
	}
	return out
}

// erode performs binary erosion of a boolean H*W plane with a k*k
// all-ones structuring element, treating out-of-bounds neighbors as
// borderValue. A pixel survives iff every neighbor under the structuring
// element (including out-of-bounds ones, substituted with borderValue) is
// true.
func erode(plane []bool, h, w, k int, borderValue bool) []bool {
	half := k / 2
	out := make([]bool, len(plane))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			survive := true
			for dy := -half; dy <= half && survive; dy++ {
				ny := y + dy
				for dx := -half; dx <= half; dx++ {
					nx := x + dx
					var v bool
					if ny < 0 || ny >= h || nx < 0 || nx >= w {
						v = borderValue
					} else {
						v = plane[ny*w+nx]
					}
					if !v {
						survive = false
						break
					}
				}
			}
			out[y*w+x] = survive
		}
	}
	return out
}

// EntropyOptions configures entropy-mode construction.
type EntropyOptions struct {
	BandRatio float64 // minimum band width as fraction of min(H,W) (config.Default: 0.01); the band is at least 1 pixel
	MidBand   float64 // half-width of probability mid-band (config.Default: 0.2); zero is used as is
}

// BuildEntropy builds a trimap from a continuous probability plane,
// widening the unknown region to guarantee a geometric band around every
// fg/bg boundary: every boundary passes through at least one unknown
// pixel. Edge detection and band dilation use gocv.Canny and an
// elliptical structuring element via
// gocv.GetStructuringElement/gocv.Dilate, matching
// original_source/src/python/process_matting.go's `entropy_trimap`.
func BuildEntropy(prob *matting.Plane, opts EntropyOptions) *matting.Plane {
	h, w := prob.H, prob.W
	fg := make([]bool, h*w)
	bg := make([]bool, h*w)
	for i, p := range prob.Data {
		fg[i] = p >= 0.5+opts.MidBand
		bg[i] = p <= 0.5-opts.MidBand
	}

	// mask = 2*fg + bg, a 3-valued label image Canny can find edges in.
	label := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer label.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			var v byte
			switch {
			case fg[i]:
				v = 2 * 100
			case bg[i]:
				v = 1 * 100
			}
			label.SetUCharAt(y, x, v)
		}
	}

	edges := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer edges.Close()
	gocv.Canny(label, &edges, 0, 100)

	bandPx := int(math.Round(float64(min(h, w)) * opts.BandRatio))
	if bandPx < 1 {
		bandPx = 1
	}
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 2*bandPx + 1, Y: 2*bandPx + 1})
	defer kernel.Close()

	dilated := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer dilated.Close()
	gocv.Dilate(edges, &dilated, kernel)

	out := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			unknown := !(fg[i] || bg[i]) || dilated.GetUCharAt(y, x) > 0
			switch {
			case unknown:
				out.Data[i] = Unknown
			case fg[i]:
				out.Data[i] = Foreground
			default:
				out.Data[i] = Background
			}
		}
	}
	return out
}

// KnownMask returns the boolean plane of "known" pixels (trimap value
// outside [0.1, 0.9]), used both to build the solver's confidence term and
// to restrict the Laplacian builder's refinement mask to the unknown
// region.
func KnownMask(t *matting.Plane) []bool {
	out := make([]bool, len(t.Data))
	for i, v := range t.Data {
		out[i] = v < 0.1 || v > 0.9
	}
	return out
}
