// Package matting implements closed-form alpha matting (Levin, Lischinski,
// Weiss): trimap construction, matting Laplacian assembly, a constrained
// sparse linear solve for alpha, and a follow-on solve for the unmixed
// foreground color layer.
package matting

// Plane is a dense H*W row-major float64 scalar field: a probability map,
// a trimap, a confidence map, or the alpha channel.
type Plane struct {
	H, W int
	Data []float64
}

// NewPlane allocates a zeroed H*W plane.
func NewPlane(h, w int) *Plane {
	return &Plane{H: h, W: w, Data: make([]float64, h*w)}
}

// At returns the value at (y,x).
func (p *Plane) At(y, x int) float64 { return p.Data[y*p.W+x] }

// Set writes the value at (y,x).
func (p *Plane) Set(y, x int, v float64) { p.Data[y*p.W+x] = v }

// Clamp01 clips every sample into [0,1] in place.
func (p *Plane) Clamp01() {
	for i, v := range p.Data {
		switch {
		case v < 0:
			p.Data[i] = 0
		case v > 1:
			p.Data[i] = 1
		}
	}
}

// Image is a dense H*W*3 row-major float64 RGB color field in [0,1].
// Reference-implementation precision: color math runs in float64
// end-to-end; only the external buffer is 8-bit.
type Image struct {
	H, W int
	Data []float64 // len == H*W*3, channel order RGB
}

// NewImage allocates a zeroed H*W*3 image.
func NewImage(h, w int) *Image {
	return &Image{H: h, W: w, Data: make([]float64, h*w*3)}
}

// At returns the RGB triple at (y,x).
func (img *Image) At(y, x int) (r, g, b float64) {
	i := (y*img.W + x) * 3
	return img.Data[i], img.Data[i+1], img.Data[i+2]
}

// Set writes the RGB triple at (y,x).
func (img *Image) Set(y, x int, r, g, b float64) {
	i := (y*img.W + x) * 3
	img.Data[i], img.Data[i+1], img.Data[i+2] = r, g, b
}

// Pixel returns the flat pixel index y*W+x, matching the raveled index
// convention used by RollingWindow and the Laplacian's sparse indices.
func (img *Image) Pixel(y, x int) int { return y*img.W + x }
