// Package window produces the flat pixel indices of each interior pixel's
// square neighborhood, matching pymatting's `_rolling_block` stride trick
// (original_source/src/python/laplacian.py) but expressed as an explicit
// index generator rather than a strided view, since Go has no ndarray
// stride facility to borrow.
package window

import "matting-core/internal/matting/matteerr"

// Rolling holds, for an H x W index plane, the raveled index of every
// pixel's (2r+1)^2 neighborhood at every interior window position. Indices
// are produced in row-major scan order within each window, matching the
// scan order LaplacianBuilder uses when it scatters window contributions
// back into the sparse Laplacian.
type Rolling struct {
	R       int // window radius
	Diam    int // 2r+1
	Size    int // (2r+1)^2
	CH, CW  int // interior height/width: H-2r, W-2r
	H, W    int // source plane dimensions
}

// New validates dimensions and returns a Rolling descriptor for an H x W
// plane and window radius r. It does not materialize any index array; call
// At to fetch one window's indices on demand (as the Laplacian's chunked
// assembly does), or All to materialize every window.
func New(h, w, r int) (*Rolling, error) {
	diam := 2*r + 1
	if h < diam || w < diam {
		return nil, errInvalidDimensions(h, w, r)
	}
	return &Rolling{
		R:    r,
		Diam: diam,
		Size: diam * diam,
		CH:   h - 2*r,
		CW:   w - 2*r,
		H:    h,
		W:    w,
	}, nil
}

// Count returns the total number of interior windows.
func (rw *Rolling) Count() int { return rw.CH * rw.CW }

// CenterOf maps a flat window position (0-based, row-major over the
// CH x CW interior grid) to its center pixel coordinates in the source
// plane.
func (rw *Rolling) CenterOf(pos int) (y, x int) {
	cy, cx := pos/rw.CW, pos%rw.CW
	return cy + rw.R, cx + rw.R
}

// At fills dst (len == Size) with the flat source-plane indices of the
// window whose top-left interior position is (cy,cx) in the CH x CW grid,
// in row-major scan order.
func (rw *Rolling) At(cy, cx int, dst []int) {
	k := 0
	for dy := 0; dy < rw.Diam; dy++ {
		rowBase := (cy+dy)*rw.W + cx
		for dx := 0; dx < rw.Diam; dx++ {
			dst[k] = rowBase + dx
			k++
		}
	}
}

// All materializes the full (CH*CW, Size) index array, for callers that can
// afford the memory and prefer it to windowing on the fly with At.
func (rw *Rolling) All() [][]int {
	out := make([][]int, rw.Count())
	for pos := range out {
		cy, cx := pos/rw.CW, pos%rw.CW
		row := make([]int, rw.Size)
		rw.At(cy, cx, row)
		out[pos] = row
	}
	return out
}

func errInvalidDimensions(h, w, r int) error {
	return matteerr.New("window.Rolling", matteerr.InvalidDimensions,
		"image %dx%d too small for window radius %d (need >= %dx%d)", h, w, r, 2*r+1, 2*r+1)
}
