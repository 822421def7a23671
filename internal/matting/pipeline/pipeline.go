// Package pipeline orchestrates the matting stages end to end: decode an
// RGBA buffer whose alpha channel carries a soft trimap, build the trimap,
// assemble the Laplacian, solve for alpha, recover the foreground layer,
// and encode the RGBA result. It owns the progress/cancellation contract
// modeled on pipeline.ImagePipeline's progress/status callbacks and
// internal/pipeline/common.go's Logger interface, generalized from a
// single-algorithm Otsu run to the five-stage matting sequence.
package pipeline

import (
	"matting-core/internal/config"
	"matting-core/internal/logger"
	"matting-core/internal/matting"
	"matting-core/internal/matting/cache"
	"matting-core/internal/matting/foreground"
	"matting-core/internal/matting/matteerr"
	"matting-core/internal/matting/solver"
	"matting-core/internal/matting/trimap"
)

const component = "pipeline.Matting"

// Request bundles one image's input and run-time collaborators.
type Request struct {
	// RGBA is the input buffer, row-major, H*W*4 bytes, 8-bit per channel.
	// RGB carries the image; the alpha byte carries the trimap probability
	// (0 = background-like, 255 = foreground-like).
	RGBA   []byte
	H, W   int
	Params config.Parameters

	// Progress, when non-nil, receives the ticks named in the pipeline's
	// contract: 5, 10, 30, 70, 90, 100.
	Progress func(percent int, message string)
	// Cancel, when non-nil, is polled at each stage boundary; returning
	// true aborts the run with a Cancelled status.
	Cancel func() bool
}

// Status enumerates a run's terminal condition.
type Status int

const (
	// OK is a full, converged solve.
	OK Status = iota
	// Fallback indicates the alpha solve did not converge and the prior
	// trimap was returned as a degraded alpha (matteerr.SolverFallback).
	Fallback
	// Cancelled indicates the caller's cancel function returned true at a
	// stage boundary.
	Cancelled
)

// Response carries the pipeline's output buffer plus the raw intermediate
// planes, for callers that want them.
type Response struct {
	RGBA       []byte
	Alpha      *matting.Plane
	Foreground *matting.Image
	Status     Status
}

// Pipeline runs the matting sequence for one image at a time; the only
// state it keeps across calls is an optional Laplacian cache and its
// per-stage timing record.
type Pipeline struct {
	cache  *cache.Cache
	log    logger.Logger
	timing *StageTimer
}

// New returns a Pipeline. A nil cache disables Laplacian memoization; a
// nil logger discards log output. Every Pipeline tracks its own per-stage
// timing; read it back with Timing().
func New(c *cache.Cache, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop{}
	}
	return &Pipeline{cache: c, log: log, timing: NewStageTimer()}
}

// Timing returns the pipeline's accumulated per-stage duration tracker.
func (p *Pipeline) Timing() *StageTimer { return p.timing }

// Run executes the full trimap -> Laplacian -> alpha -> foreground
// sequence for req.
func (p *Pipeline) Run(req Request) (*Response, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if len(req.RGBA) != req.H*req.W*4 {
		return nil, matteerr.New(component, matteerr.InvalidDimensions,
			"RGBA buffer length %d does not match %dx%dx4", len(req.RGBA), req.H, req.W)
	}

	var img *matting.Image
	var probe *matting.Plane
	p.timing.track("decode", func() { img, probe = decode(req.RGBA, req.H, req.W) })
	p.tick(req, 5, "decoded input buffer")

	if p.cancelled(req) {
		return &Response{Status: Cancelled}, nil
	}

	var t *matting.Plane
	p.timing.track("trimap", func() {
		if req.Params.UseEntropy {
			t = trimap.BuildEntropy(probe, trimap.EntropyOptions{
				BandRatio: req.Params.BandRatio,
				MidBand:   req.Params.MidBand,
			})
		} else {
			t = trimap.BuildThreshold(probe, trimap.ThresholdOptions{
				ForegroundThreshold: req.Params.ForegroundThreshold,
				BackgroundThreshold: req.Params.BackgroundThreshold,
				ErodeStructureSize:  req.Params.ErodeStructureSize,
			})
		}
	})
	p.tick(req, 10, "trimap constructed")

	if p.cancelled(req) {
		return &Response{Status: Cancelled}, nil
	}
	p.tick(req, 30, "computing alpha matte")

	var result *solver.Result
	var err error
	p.timing.track("solve", func() {
		result, err = solver.Solve(img, t, solver.Options{
			Eps:              req.Params.Eps,
			WinRad:           req.Params.WinRad,
			TrimapConfidence: req.Params.TrimapConfidence,
			Cache:            p.cache,
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Fallback {
		p.log.Warning(component, "alpha solve did not converge, returning clamped trimap", map[string]interface{}{
			"iterations": result.Iterations,
			"residual":   result.Residual,
		})
	}

	if p.cancelled(req) {
		return &Response{Status: Cancelled}, nil
	}
	p.tick(req, 70, "computing foreground estimation")

	var fg *foreground.Result
	p.timing.track("foreground", func() {
		fg, err = foreground.Solve(img, result.Alpha, foreground.Options{})
	})
	if err != nil {
		return nil, err
	}

	if p.cancelled(req) {
		return &Response{Status: Cancelled}, nil
	}
	p.tick(req, 90, "preparing results")

	var out []byte
	p.timing.track("encode", func() { out = encode(fg.Foreground, result.Alpha) })
	p.tick(req, 100, "processing complete")

	status := OK
	if result.Fallback {
		status = Fallback
	}
	return &Response{RGBA: out, Alpha: result.Alpha, Foreground: fg.Foreground, Status: status}, nil
}

func (p *Pipeline) tick(req Request, percent int, message string) {
	if req.Progress != nil {
		req.Progress(percent, message)
	}
}

func (p *Pipeline) cancelled(req Request) bool {
	return req.Cancel != nil && req.Cancel()
}

// decode splits an RGBA buffer into a float64 RGB image in [0,1] and a
// float64 probability plane in [0,1] taken from the alpha channel.
func decode(rgba []byte, h, w int) (*matting.Image, *matting.Plane) {
	img := matting.NewImage(h, w)
	probe := matting.NewPlane(h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			img.Set(y, x,
				float64(rgba[i])/255.0,
				float64(rgba[i+1])/255.0,
				float64(rgba[i+2])/255.0,
			)
			probe.Set(y, x, float64(rgba[i+3])/255.0)
		}
	}
	return img, probe
}

// encode packs a foreground layer and alpha plane into an 8-bit RGBA
// buffer, clamped to [0,255].
func encode(fg *matting.Image, alpha *matting.Plane) []byte {
	h, w := alpha.H, alpha.W
	out := make([]byte, h*w*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			r, g, b := fg.At(y, x)
			out[i] = to8(r)
			out[i+1] = to8(g)
			out[i+2] = to8(b)
			out[i+3] = to8(alpha.At(y, x))
		}
	}
	return out
}

func to8(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	default:
		return byte(v*255.0 + 0.5)
	}
}
