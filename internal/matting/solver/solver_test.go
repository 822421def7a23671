package solver

import (
	"math"
	"testing"

	"matting-core/internal/matting"
	"matting-core/internal/matting/cache"
)

func flatImage(h, w int, r, g, b float64) *matting.Image {
	img := matting.NewImage(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(y, x, r, g, b)
		}
	}
	return img
}

func TestSolvePureForeground(t *testing.T) {
	img := flatImage(4, 4, 0.5, 0.5, 0.5)
	trimap := matting.NewPlane(4, 4)
	for i := range trimap.Data {
		trimap.Data[i] = 1.0
	}
	res, err := Solve(img, trimap, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, a := range res.Alpha.Data {
		if a != 1.0 {
			t.Fatalf("alpha[%d] = %v, want 1.0 (all-known trimap must be reproduced exactly)", i, a)
		}
	}
}

func TestSolvePureBackground(t *testing.T) {
	img := flatImage(4, 4, 0.1, 0.1, 0.1)
	trimap := matting.NewPlane(4, 4)
	res, err := Solve(img, trimap, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, a := range res.Alpha.Data {
		if a != 0.0 {
			t.Fatalf("alpha[%d] = %v, want 0.0", i, a)
		}
	}
}

func TestSolveBipartiteNoUnknown(t *testing.T) {
	h, w := 8, 8
	img := matting.NewImage(h, w)
	trimap := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 4 {
				img.Set(y, x, 1, 0, 0)
				trimap.Set(y, x, 1.0)
			} else {
				img.Set(y, x, 0, 1, 0)
				trimap.Set(y, x, 0.0)
			}
		}
	}
	res, err := Solve(img, trimap, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := 0.0
			if x < 4 {
				want = 1.0
			}
			if got := res.Alpha.At(y, x); got != want {
				t.Fatalf("alpha(%d,%d) = %v, want %v", y, x, got, want)
			}
		}
	}
}

func TestSolveSoftEdgeMonotone(t *testing.T) {
	h, w := 8, 8
	img := matting.NewImage(h, w)
	trimap := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < 3 {
				img.Set(y, x, 1, 0, 0)
				trimap.Set(y, x, 1.0)
			} else if x >= 5 {
				img.Set(y, x, 0, 1, 0)
				trimap.Set(y, x, 0.0)
			} else {
				t := float64(x-2) / 3.0
				img.Set(y, x, 1-t, t, 0)
				trimap.Set(y, x, 0.5)
			}
		}
	}
	res, err := Solve(img, trimap, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if res.Fallback {
		t.Fatal("solver unexpectedly fell back to the prior trimap")
	}
	for y := 0; y < h; y++ {
		a3 := res.Alpha.At(y, 3)
		a4 := res.Alpha.At(y, 4)
		if !(a3 > 0.2 && a3 < 0.8) {
			t.Fatalf("alpha(%d,3) = %v, want strictly between 0.2 and 0.8", y, a3)
		}
		if !(a4 > 0.2 && a4 < 0.8) {
			t.Fatalf("alpha(%d,4) = %v, want strictly between 0.2 and 0.8", y, a4)
		}
		for x := 1; x < w; x++ {
			if res.Alpha.At(y, x) > res.Alpha.At(y, x-1)+1e-9 {
				t.Fatalf("alpha not monotone nonincreasing at row %d, x=%d", y, x)
			}
		}
	}
}

func TestSolveAllInRange(t *testing.T) {
	h, w := 16, 16
	img := matting.NewImage(h, w)
	trimap := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			t := float64(x) / float64(w-1)
			img.Set(y, x, 1-t, t, 0)
			switch {
			case x == 0:
				trimap.Set(y, x, 1.0)
			case x == w-1:
				trimap.Set(y, x, 0.0)
			default:
				trimap.Set(y, x, 0.5)
			}
		}
	}
	res, err := Solve(img, trimap, Options{})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for i, a := range res.Alpha.Data {
		if a < 0 || a > 1 || math.IsNaN(a) {
			t.Fatalf("alpha[%d] = %v, out of [0,1]", i, a)
		}
	}
}

func TestSolveUsesCache(t *testing.T) {
	img := flatImage(6, 6, 0.3, 0.4, 0.5)
	trimap := matting.NewPlane(6, 6)
	for i := range trimap.Data {
		if i%2 == 0 {
			trimap.Data[i] = 1.0
		}
	}
	c := cache.New(nil)
	if _, err := Solve(img, trimap, Options{Cache: c}); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("cache has %d entries after one solve, want 1", c.Len())
	}
	if _, err := Solve(img, trimap, Options{Cache: c}); err != nil {
		t.Fatalf("Solve (second call): %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("cache has %d entries after a repeat solve, want 1 (no duplicate insert)", c.Len())
	}
}
