package trimap

import (
	"testing"

	"matting-core/internal/matting"
)

func TestBuildThresholdPureForeground(t *testing.T) {
	mask := matting.NewPlane(6, 6)
	for i := range mask.Data {
		mask.Data[i] = 1.0
	}
	out := BuildThreshold(mask, ThresholdOptions{ForegroundThreshold: 240, BackgroundThreshold: 10})
	for i, v := range out.Data {
		if v != Foreground {
			t.Fatalf("pixel %d = %v, want Foreground (an all-foreground mask without erosion must not create background/unknown)", i, v)
		}
	}
}

func TestBuildThresholdPureBackground(t *testing.T) {
	mask := matting.NewPlane(6, 6)
	out := BuildThreshold(mask, ThresholdOptions{ForegroundThreshold: 240, BackgroundThreshold: 10})
	for i, v := range out.Data {
		if v != Background {
			t.Fatalf("pixel %d = %v, want Background", i, v)
		}
	}
}

func TestBuildThresholdBipartiteNoErosion(t *testing.T) {
	h, w := 4, 8
	mask := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 4 {
				mask.Set(y, x, 1.0)
			}
		}
	}
	out := BuildThreshold(mask, ThresholdOptions{ForegroundThreshold: 240, BackgroundThreshold: 10, ErodeStructureSize: 0})
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := Background
			if x < 4 {
				want = Foreground
			}
			if got := out.At(y, x); got != want {
				t.Fatalf("(%d,%d) = %v, want %v", y, x, got, want)
			}
		}
	}
}

func TestErodeBorderValueAsymmetry(t *testing.T) {
	// A single interior true pixel surrounded by false: with a 3x3
	// structuring element and borderValue=false, it cannot survive erosion
	// (its in-image neighbors are all false already).
	plane := make([]bool, 9)
	plane[4] = true // center of 3x3
	out := erode(plane, 3, 3, 3, false)
	for i, v := range out {
		if v {
			t.Fatalf("pixel %d survived erosion unexpectedly", i)
		}
	}

	// An all-true plane erodes to all-true under borderValue=true (every
	// out-of-bounds neighbor counts as present), but to all-false under
	// borderValue=false for border pixels.
	allTrue := make([]bool, 9)
	for i := range allTrue {
		allTrue[i] = true
	}
	withTrueBorder := erode(allTrue, 3, 3, 3, true)
	for i, v := range withTrueBorder {
		if !v {
			t.Fatalf("pixel %d = false with border_value=true, want true", i)
		}
	}
	withFalseBorder := erode(allTrue, 3, 3, 3, false)
	if !withFalseBorder[4] {
		t.Fatal("center pixel should survive erosion regardless of border value")
	}
	if withFalseBorder[0] {
		t.Fatal("corner pixel should not survive erosion when border_value=false")
	}
}

func TestBuildEntropyWidensNarrowTransition(t *testing.T) {
	h, w := 64, 64
	prob := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				prob.Set(y, x, 1.0)
			}
		}
	}
	out := BuildEntropy(prob, EntropyOptions{BandRatio: 0.01, MidBand: 0.2})

	foundUnknown := false
	for y := 0; y < h; y++ {
		if out.At(y, w/2) == Unknown || out.At(y, w/2-1) == Unknown {
			foundUnknown = true
			break
		}
	}
	if !foundUnknown {
		t.Fatal("expected an unknown band around the fg/bg transition")
	}
}

func TestKnownMask(t *testing.T) {
	p := matting.NewPlane(1, 3)
	p.Data[0] = 0.0
	p.Data[1] = 0.5
	p.Data[2] = 1.0
	known := KnownMask(p)
	if !known[0] || known[1] || !known[2] {
		t.Fatalf("KnownMask = %v, want [true false true]", known)
	}
}
