package header

import (
	"math"
)

// Standard atmosphere used to turn pressures into heights.
const (
	GasConstant   = 287.04   // J/(kg K), dry air
	SurfaceTemp   = 288.15   // K
	Gravity       = 9.81     // m/s^2
	SurfacePress  = 100000.0 // Pa
	ScaleHeight   = GasConstant * SurfaceTemp / Gravity
	pressureFloor = 1e-3
)

// VerticalCoordinate returns the height in meters of each level boundary,
// or of each layer middle when atBoundaries is false. Sigma and pressure
// levels go through a hydrostatic log-pressure profile; height levels are
// already meters; files without a vertical coordinate get zeros.
func VerticalCoordinate(h *Header, atBoundaries bool) []float64 {
	z := make([]float64, len(h.VGLevels))
	top := float64(h.VGTop)
	for i, lv := range h.VGLevels {
		v := float64(lv)
		switch {
		case h.VertType.IsSigmaPressure():
			z[i] = pressureHeight(v*(SurfacePress-top) + top)
		case h.VertType == VGPressure:
			z[i] = pressureHeight(v)
		case h.VertType == VGSigmaZ:
			z[i] = (1 - v) * top
		case h.VertType == VGHeight, h.VertType == VGHeightAG:
			z[i] = v
		}
	}
	if atBoundaries || len(z) == 0 {
		return z
	}
	mid := make([]float64, len(z)-1)
	for i := range mid {
		mid[i] = (z[i] + z[i+1]) / 2
	}
	return mid
}

func pressureHeight(p float64) float64 {
	return ScaleHeight * math.Log(SurfacePress/math.Max(p, pressureFloor))
}
