// Package foreground recovers the unmixed foreground (and background)
// color layers from an image and its alpha matte, using a multi-level
// pyramid scheme: downsample to a coarse base, initialize F = B = image,
// then refine level by level with local normal-equation updates weighted
// by alpha and a small gradient penalty. Per-pixel-row updates within one
// level are independent and fan out with golang.org/x/sync/errgroup,
// mirroring LaplacianBuilder's chunk concurrency.
package foreground

import (
	"image"
	"runtime"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"matting-core/internal/matting"
	"matting-core/internal/matting/matteerr"
)

const component = "foreground.Solver"

// Options configures one foreground/background solve.
type Options struct {
	Regularization float64 // gradient penalty lambda, default 1e-5
	FinestIters    int     // iterations at the finest pyramid level, default 10
	CoarseIters    int     // iterations at every coarser level, default 2
}

// Result carries the recovered foreground and background layers.
type Result struct {
	Foreground *matting.Image
	Background *matting.Image
}

// Solve recovers foreground and background layers for img under alpha.
func Solve(img *matting.Image, alpha *matting.Plane, opts Options) (*Result, error) {
	if img.H != alpha.H || img.W != alpha.W {
		return nil, matteerr.New(component, matteerr.InvalidDimensions,
			"image %dx%d and alpha %dx%d size mismatch", img.H, img.W, alpha.H, alpha.W)
	}
	lambda := opts.Regularization
	if lambda == 0 {
		lambda = 1e-5
	}
	finestIters := opts.FinestIters
	if finestIters == 0 {
		finestIters = 10
	}
	coarseIters := opts.CoarseIters
	if coarseIters == 0 {
		coarseIters = 2
	}

	imgLevels, alphaLevels := buildPyramids(img, alpha)
	top := len(imgLevels) - 1

	f := cloneImage(imgLevels[top])
	b := cloneImage(imgLevels[top])

	for level := top; level >= 0; level-- {
		if level != top {
			size := image.Point{X: imgLevels[level].W, Y: imgLevels[level].H}
			f = resizeImage(f, size, gocv.InterpolationLinear)
			b = resizeImage(b, size, gocv.InterpolationLinear)
		}

		iters := coarseIters
		if level == 0 {
			iters = finestIters
		}
		for it := 0; it < iters; it++ {
			var err error
			f, b, err = iterate(imgLevels[level], alphaLevels[level], f, b, lambda)
			if err != nil {
				return nil, err
			}
		}
	}

	return &Result{Foreground: f, Background: b}, nil
}

// buildPyramids downsamples img and alpha by 2x (area-weighted) until the
// smaller dimension is <= 2, returning levels finest-first.
func buildPyramids(img *matting.Image, alpha *matting.Plane) ([]*matting.Image, []*matting.Plane) {
	imgLevels := []*matting.Image{img}
	alphaLevels := []*matting.Plane{alpha}

	h, w := img.H, img.W
	cur, curA := img, alpha
	for h > 2 && w > 2 {
		h = (h + 1) / 2
		w = (w + 1) / 2
		cur = resizeImage(cur, image.Point{X: w, Y: h}, gocv.InterpolationArea)
		curA = resizePlane(curA, image.Point{X: w, Y: h}, gocv.InterpolationArea)
		imgLevels = append(imgLevels, cur)
		alphaLevels = append(alphaLevels, curA)
	}
	return imgLevels, alphaLevels
}

func resizeImage(img *matting.Image, size image.Point, interp gocv.InterpolationFlags) *matting.Image {
	src := gocv.NewMatWithSize(img.H, img.W, gocv.MatTypeCV32FC3)
	defer src.Close()
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			r, g, bch := img.At(y, x)
			src.SetFloatAt3(y, x, 0, float32(r))
			src.SetFloatAt3(y, x, 1, float32(g))
			src.SetFloatAt3(y, x, 2, float32(bch))
		}
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, size, 0, 0, interp)

	out := matting.NewImage(size.Y, size.X)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			out.Set(y, x,
				float64(dst.GetFloatAt3(y, x, 0)),
				float64(dst.GetFloatAt3(y, x, 1)),
				float64(dst.GetFloatAt3(y, x, 2)))
		}
	}
	return out
}

func resizePlane(p *matting.Plane, size image.Point, interp gocv.InterpolationFlags) *matting.Plane {
	src := gocv.NewMatWithSize(p.H, p.W, gocv.MatTypeCV32FC1)
	defer src.Close()
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			src.SetFloatAt(y, x, float32(p.At(y, x)))
		}
	}
	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Resize(src, &dst, size, 0, 0, interp)

	out := matting.NewPlane(size.Y, size.X)
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			out.Set(y, x, float64(dst.GetFloatAt(y, x)))
		}
	}
	return out
}

func cloneImage(img *matting.Image) *matting.Image {
	out := matting.NewImage(img.H, img.W)
	copy(out.Data, img.Data)
	return out
}

// iterate runs one Jacobi sweep of the local normal-equation update over
// every pixel, reading neighbor values from the previous sweep's f/b so
// that rows are independent and can be split across goroutines.
func iterate(img *matting.Image, alpha *matting.Plane, f, b *matting.Image, lambda float64) (*matting.Image, *matting.Image, error) {
	h, w := img.H, img.W
	newF := matting.NewImage(h, w)
	newB := matting.NewImage(h, w)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := 0; y < h; y++ {
		y := y
		g.Go(func() error {
			updateRow(img, alpha, f, b, newF, newB, y, lambda)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, matteerr.Wrap(component, matteerr.Internal, err)
	}
	return newF, newB, nil
}

// updateRow solves the per-channel 2x2 normal equations at every pixel of
// row y: minimize (a*F+(1-a)*B-I)^2 + lambda*(a*sum(F-Fq)^2 + (1-a)*sum(B-Bq)^2)
// over 4-connected neighbors q, using f/b (the previous sweep) as the
// neighbor values.
func updateRow(img *matting.Image, alpha *matting.Plane, f, b, newF, newB *matting.Image, y int, lambda float64) {
	w := img.W
	for x := 0; x < w; x++ {
		a := alpha.At(y, x)
		neighbors := neighborCoords(y, x, img.H, w)
		nCount := float64(len(neighbors))

		ir, ig, ib := img.At(y, x)
		iCh := [3]float64{ir, ig, ib}

		var fSum, bSum [3]float64
		for _, nb := range neighbors {
			fr, fg, fb := f.At(nb[0], nb[1])
			br, bg, bb := b.At(nb[0], nb[1])
			fSum[0] += fr
			fSum[1] += fg
			fSum[2] += fb
			bSum[0] += br
			bSum[1] += bg
			bSum[2] += bb
		}

		var fOut, bOut [3]float64
		for c := 0; c < 3; c++ {
			fOut[c], bOut[c] = solve2x2(a, iCh[c], fSum[c], bSum[c], nCount, lambda)
		}
		newF.Set(y, x, clamp01(fOut[0]), clamp01(fOut[1]), clamp01(fOut[2]))
		newB.Set(y, x, clamp01(bOut[0]), clamp01(bOut[1]), clamp01(bOut[2]))
	}
}

// solve2x2 solves the 2x2 system
//
//	[a^2+lambda*a*n      a*(1-a)        ] [F]   [a*i + lambda*a*fSum]
//	[a*(1-a)             (1-a)^2+lambda*(1-a)*n] [B] = [(1-a)*i + lambda*(1-a)*bSum]
//
// for one color channel. The determinant is a*(1-a)*lambda*n*(1+lambda*n),
// so the system is singular when a is exactly 0 or 1, or when n is 0; in
// that case (determinant below 1e-12) both F and B are set to the observed
// value i.
func solve2x2(a, i, fSum, bSum, n, lambda float64) (f, b float64) {
	oneMinusA := 1 - a
	a11 := a*a + lambda*a*n
	a12 := a * oneMinusA
	a22 := oneMinusA*oneMinusA + lambda*oneMinusA*n
	b1 := a*i + lambda*a*fSum
	b2 := oneMinusA*i + lambda*oneMinusA*bSum

	det := a11*a22 - a12*a12
	if det < 1e-12 {
		return i, i
	}
	f = (a22*b1 - a12*b2) / det
	b = (a11*b2 - a12*b1) / det
	return f, b
}

func neighborCoords(y, x, h, w int) [][2]int {
	var out [][2]int
	if y > 0 {
		out = append(out, [2]int{y - 1, x})
	}
	if y < h-1 {
		out = append(out, [2]int{y + 1, x})
	}
	if x > 0 {
		out = append(out, [2]int{y, x - 1})
	}
	if x < w-1 {
		out = append(out, [2]int{y, x + 1})
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
