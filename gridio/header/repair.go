package header

import (
	"errors"
	"fmt"
	"slices"

	"github.com/batchatco/go-native-gridio/internal"
	"github.com/sirupsen/logrus"
)

// Default pressure thresholds of the unit repair: 0 < v < 150 is read as
// kilopascals, 150 <= v < 1500 as millibars.
const (
	DefaultKPaMax = 150
	DefaultMbMax  = 1500
)

// ParamNames are the projection parameters an override may replace.
var ParamNames = []string{"P_ALP", "P_BET", "P_GAM", "XCENT", "YCENT", "XORIG", "YORIG", "XCELL", "YCELL"}

var ErrUnknownParam = errors.New("unknown projection parameter")

// Overrides adjust headers as they are opened. The zero value changes
// nothing and repairs units with the default thresholds.
type Overrides struct {
	Params            map[string]float64
	KPaMax            float64
	MbMax             float64
	DisableUnitRepair bool
	Logger            *internal.Logger
}

func (o *Overrides) logger() *internal.Logger {
	if o == nil || o.Logger == nil {
		return logger
	}
	return o.Logger
}

func (o *Overrides) thresholds() (kpa, mb float64) {
	kpa, mb = DefaultKPaMax, DefaultMbMax
	if o != nil && o.KPaMax > 0 {
		kpa = o.KPaMax
	}
	if o != nil && o.MbMax > 0 {
		mb = o.MbMax
	}
	return kpa, mb
}

func (h *Header) param(name string) *float64 {
	switch name {
	case "P_ALP":
		return &h.PAlp
	case "P_BET":
		return &h.PBet
	case "P_GAM":
		return &h.PGam
	case "XCENT":
		return &h.XCent
	case "YCENT":
		return &h.YCent
	case "XORIG":
		return &h.XOrig
	case "YORIG":
		return &h.YOrig
	case "XCELL":
		return &h.XCell
	case "YCELL":
		return &h.YCell
	}
	return nil
}

// ApplyOverrides replaces the projection parameters named in o.Params.
func ApplyOverrides(h *Header, o *Overrides) error {
	if o == nil {
		return nil
	}
	for name := range o.Params {
		if h.param(name) == nil {
			return fmt.Errorf("%w: %s", ErrUnknownParam, name)
		}
	}
	for _, name := range ParamNames {
		if v, ok := o.Params[name]; ok {
			p := h.param(name)
			o.logger().Infof("override %s: %g -> %g", name, *p, v)
			*p = v
		}
	}
	return nil
}

// Repair fixes two kinds of legacy header in place, logging a warning for
// each change, then returns Validate(h).
//
// Lambert and Albers grids with P_ALP > P_BET have the two swapped.
// Pressures that look like kilopascals or millibars are rescaled to
// pascals: the model top of the sigma-pressure and pressure families, and
// the levels of pressure files. A value is only rescaled when the result
// reaches the millibar threshold, so a second Repair changes nothing.
func Repair(h *Header, o *Overrides) bool {
	log := o.logger()
	if (h.GridType == Lambert || h.GridType == Albers) && h.PAlp > h.PBet {
		log.WithFields(logrus.Fields{"grid": h.GridName, "P_ALP": h.PAlp, "P_BET": h.PBet}).
			Warn("swapping P_ALP and P_BET")
		h.PAlp, h.PBet = h.PBet, h.PAlp
	}
	if o == nil || !o.DisableUnitRepair {
		kpa, mb := o.thresholds()
		if h.VertType.IsSigmaPressure() || h.VertType == VGPressure {
			if f := pascalFactor(float64(h.VGTop), kpa, mb); f != 1 {
				log.WithFields(logrus.Fields{"grid": h.GridName, "VGTOP": h.VGTop, "factor": f}).
					Warn("rescaling model top to pascals")
				h.VGTop *= float32(f)
			}
		}
		if h.VertType == VGPressure && len(h.VGLevels) > 0 {
			// the largest level decides for the whole column
			f := pascalFactor(float64(slices.Max(h.VGLevels)), kpa, mb)
			if f != 1 {
				log.WithFields(logrus.Fields{"grid": h.GridName, "levels": len(h.VGLevels), "factor": f}).
					Warn("rescaling pressure levels to pascals")
				for i := range h.VGLevels {
					h.VGLevels[i] *= float32(f)
				}
			}
		}
	}
	return Validate(h)
}

// pascalFactor guesses the unit of a pressure from its magnitude.
func pascalFactor(v, kpa, mb float64) float64 {
	switch {
	case v > 0 && v < kpa && v*1000 >= mb:
		return 1000
	case v >= kpa && v < mb && v*100 >= mb:
		return 100
	}
	return 1
}
