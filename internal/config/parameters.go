// Package config holds the tunable parameter table for the matting
// pipeline.
package config

import "matting-core/internal/matting/matteerr"

// Parameters collects every tunable the matting pipeline accepts, as a
// typed struct rather than a map[string]interface{} bag: this module has
// no parameter-editor UI binding field names dynamically to widgets, so a
// struct with a single Validate method is the better fit.
type Parameters struct {
	// ForegroundThreshold: mask value above which a pixel is definite
	// foreground in threshold mode, in [0,255].
	ForegroundThreshold uint8
	// BackgroundThreshold: mask value below which a pixel is definite
	// background in threshold mode, in [0,255].
	BackgroundThreshold uint8
	// ErodeStructureSize is the side of the square structuring element used
	// to erode the foreground/background sets in threshold mode.
	ErodeStructureSize int
	// BandRatio is the minimum uncertainty band width as a fraction of
	// min(H,W) in entropy mode.
	BandRatio float64
	// MidBand is the half-width of the probability mid-band forced to
	// unknown in entropy mode.
	MidBand float64
	// Eps is the Laplacian regularizer.
	Eps float64
	// WinRad is the window radius (r=1 -> 3x3 windows).
	WinRad int
	// TrimapConfidence is kappa in the matting solver's confidence term.
	TrimapConfidence float64
	// UseEntropy selects entropy-mode trimap refinement over threshold mode.
	UseEntropy bool
}

// Default returns the parameter table with its documented defaults.
func Default() Parameters {
	return Parameters{
		ForegroundThreshold: 240,
		BackgroundThreshold: 10,
		ErodeStructureSize:  10,
		BandRatio:           0.01,
		MidBand:             0.2,
		Eps:                 1e-7,
		WinRad:              1,
		TrimapConfidence:    100.0,
		UseEntropy:          false,
	}
}

// Validate rejects out-of-range parameters before any stage runs.
func (p Parameters) Validate() error {
	const component = "config.Parameters"

	if p.BackgroundThreshold >= p.ForegroundThreshold {
		return matteerr.New(component, matteerr.InvalidParameter,
			"background_threshold (%d) must be less than foreground_threshold (%d)",
			p.BackgroundThreshold, p.ForegroundThreshold)
	}
	if p.ErodeStructureSize < 0 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"erode_structure_size must be >= 0, got %d", p.ErodeStructureSize)
	}
	if p.BandRatio < 0 || p.BandRatio > 1 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"band_ratio must be in [0,1], got %f", p.BandRatio)
	}
	if p.MidBand < 0 || p.MidBand > 0.5 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"mid_band must be in [0,0.5], got %f", p.MidBand)
	}
	if p.Eps <= 0 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"eps must be > 0, got %f", p.Eps)
	}
	if p.WinRad <= 0 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"win_rad must be > 0, got %d", p.WinRad)
	}
	if p.TrimapConfidence <= 0 {
		return matteerr.New(component, matteerr.InvalidParameter,
			"trimap_confidence must be > 0, got %f", p.TrimapConfidence)
	}
	return nil
}
