// Package laplacian assembles the matting Laplacian: a sparse symmetric
// operator built from 3x3 (or (2r+1)^2) window statistics of the image,
// following Levin/Lischinski/Weiss closed-form matting. Per-window normal
// equations are solved with gonum's dense linear algebra
// (gonum.org/v1/gonum/mat), and the chunked window loop fans out across
// goroutines with golang.org/x/sync/errgroup, mirroring the corpus's
// errgroup-based concurrency (internal/debug/eventbus, internal/app) and
// pymatting's vectorized-but-chunkable window loop
// (original_source/src/python/laplacian.py: compute_laplacian).
package laplacian

import (
	"image"
	"runtime"

	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"matting-core/internal/matting"
	"matting-core/internal/matting/matteerr"
	"matting-core/internal/matting/sparse"
	"matting-core/internal/matting/window"
)

const component = "laplacian.Builder"

// defaultChunkWindows bounds peak working memory to O(chunk*n^2) rather
// than O(H*W*n^2).
const defaultChunkWindows = 10000

// Options configures one Laplacian assembly.
type Options struct {
	Eps    float64 // regularizer, default 1e-7
	WinRad int     // window radius, default 1
	// Mask, when non-nil, restricts window contributions to windows that
	// intersect it after dilation by an n x n structuring element: only
	// windows touching the unknown region of the trimap need to contribute.
	Mask []bool
	// ChunkWindows overrides the default chunk size; zero uses the default.
	ChunkWindows int
}

// Build assembles the N x N (N = H*W) matting Laplacian for image img under
// opts, returning it in CSR form.
func Build(img *matting.Image, opts Options) (*sparse.CSR, error) {
	eps := opts.Eps
	if eps == 0 {
		eps = 1e-7
	}
	r := opts.WinRad
	if r == 0 {
		r = 1
	}
	chunkSize := opts.ChunkWindows
	if chunkSize == 0 {
		chunkSize = defaultChunkWindows
	}

	rw, err := window.New(img.H, img.W, r)
	if err != nil {
		return nil, err
	}

	var dilated []bool
	if opts.Mask != nil {
		dilated = dilateMask(opts.Mask, img.H, img.W, rw.Diam)
	}

	positions := selectWindowPositions(rw, dilated)
	n := img.H * img.W

	if len(positions) == 0 {
		coo := sparse.NewCOO(n, 0)
		return coo.ToCSR()
	}

	numChunks := (len(positions) + chunkSize - 1) / chunkSize
	chunkResults := make([]*sparse.COO, numChunks)

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c := 0; c < numChunks; c++ {
		c := c
		start := c * chunkSize
		end := start + chunkSize
		if end > len(positions) {
			end = len(positions)
		}
		g.Go(func() error {
			chunkResults[c] = buildChunk(img, rw, positions[start:end], eps)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, matteerr.Wrap(component, matteerr.Internal, err)
	}

	total := 0
	for _, cr := range chunkResults {
		total += len(cr.Val)
	}
	coo := sparse.NewCOO(n, total)
	for _, cr := range chunkResults {
		coo.AppendChunk(cr)
	}
	return coo.ToCSR()
}

// selectWindowPositions returns the flat window positions to process: all
// of them when no mask is given, else only those whose dilated mask sum is
// nonzero.
func selectWindowPositions(rw *window.Rolling, dilated []bool) []int {
	total := rw.Count()
	if dilated == nil {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}

	idx := make([]int, rw.Size)
	var out []int
	for pos := 0; pos < total; pos++ {
		cy, cx := pos/rw.CW, pos%rw.CW
		rw.At(cy, cx, idx)
		keep := false
		for _, px := range idx {
			if dilated[px] {
				keep = true
				break
			}
		}
		if keep {
			out = append(out, pos)
		}
	}
	return out
}

// dilateMask dilates a boolean H*W plane by a diam x diam all-ones
// structuring element, matching pymatting's
// `cv2.dilate(mask, np.ones((win_diam, win_diam)))`.
func dilateMask(mask []bool, h, w, diam int) []bool {
	src := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer src.Close()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] {
				src.SetUCharAt(y, x, 255)
			}
		}
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: diam, Y: diam})
	defer kernel.Close()

	dst := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	defer dst.Close()
	gocv.Dilate(src, &dst, kernel)

	out := make([]bool, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = dst.GetUCharAt(y, x) > 0
		}
	}
	return out
}

// buildChunk computes the (row,col,val) triplets for one contiguous slice
// of window positions, independent of every other chunk.
func buildChunk(img *matting.Image, rw *window.Rolling, positions []int, eps float64) *sparse.COO {
	coo := sparse.NewCOO(img.H*img.W, len(positions)*rw.Size*rw.Size)
	idx := make([]int, rw.Size)
	n := rw.Size

	iw := mat.NewDense(n, 3, nil)
	centered := mat.NewDense(n, 3, nil)
	a := mat.NewDense(3, 3, nil)
	bT := mat.NewDense(3, n, nil)
	xT := mat.NewDense(3, n, nil)
	v := mat.NewDense(n, n, nil)

	for _, pos := range positions {
		cy, cx := pos/rw.CW, pos%rw.CW
		rw.At(cy, cx, idx)

		var mu [3]float64
		for k, px := range idx {
			y, x := px/img.W, px%img.W
			r, g, b := img.At(y, x)
			iw.Set(k, 0, r)
			iw.Set(k, 1, g)
			iw.Set(k, 2, b)
			mu[0] += r
			mu[1] += g
			mu[2] += b
		}
		mu[0] /= float64(n)
		mu[1] /= float64(n)
		mu[2] /= float64(n)

		for k := 0; k < n; k++ {
			centered.Set(k, 0, iw.At(k, 0)-mu[0])
			centered.Set(k, 1, iw.At(k, 1)-mu[1])
			centered.Set(k, 2, iw.At(k, 2)-mu[2])
		}

		// Sigma = (Iw^T Iw)/n - mu^T mu ; A = Sigma + (eps/n) I3
		var sigma mat.Dense
		sigma.Mul(iw.T(), iw)
		sigma.Scale(1.0/float64(n), &sigma)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				sigma.Set(i, j, sigma.At(i, j)-mu[i]*mu[j])
			}
		}
		reg := eps / float64(n)
		for i := 0; i < 3; i++ {
			a.Set(i, i, sigma.At(i, i)+reg)
			for j := i + 1; j < 3; j++ {
				a.Set(i, j, sigma.At(i, j))
				a.Set(j, i, sigma.At(j, i))
			}
		}

		bT.Copy(centered.T())
		solve3x3(a, bT, xT)

		// V = I_n - (1/n)*(1 + X^T B) where X^T B has shape n x n via
		// (centered * X): vals[i,j] = delta(i,j) - (1/n)*(1 + centered_i . x_j)
		var xb mat.Dense
		xb.Mul(centered, xT) // n x n : row i = centered[i,:] . X[:,j]
		invN := 1.0 / float64(n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				val := -invN * (1 + xb.At(i, j))
				if i == j {
					val += 1
				}
				v.Set(i, j, val)
			}
		}

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				coo.Add(idx[i], idx[j], v.At(i, j))
			}
		}
	}
	return coo
}

// solve3x3 solves A*X = B for X (3xn) via Cholesky, falling back to a
// Moore-Penrose pseudo-inverse computed from the SVD when A is singular.
// The fallback is silent: this per-window numeric sub-step never surfaces
// an error to the caller.
func solve3x3(a, b *mat.Dense, x *mat.Dense) {
	var chol mat.Cholesky
	sym := mat.NewSymDense(3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sym.SetSym(i, j, a.At(i, j))
		}
	}
	if chol.Factorize(sym) {
		var xDense mat.Dense
		if err := chol.SolveTo(&xDense, b); err == nil {
			x.Copy(&xDense)
			return
		}
	}

	// Pseudo-inverse fallback via SVD: A+ = V * Sigma+ * U^T.
	var svd mat.SVD
	svd.Factorize(a, mat.SVDFull)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	sv := svd.Values(nil)

	var sigmaPlus mat.Dense
	sigmaPlus.ReuseAs(3, 3)
	sigmaPlus.Zero()
	for i, s := range sv {
		if s > 1e-12 {
			sigmaPlus.Set(i, i, 1.0/s)
		}
	}

	var aPlus mat.Dense
	aPlus.Mul(&v, &sigmaPlus)
	aPlus.Mul(&aPlus, u.T())
	x.Mul(&aPlus, b)
}
