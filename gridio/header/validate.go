package header

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/batchatco/go-native-gridio/gridio/calendar"
	"github.com/batchatco/go-native-gridio/internal"
)

var ErrInvalid = errors.New("invalid header")

// ValidationError lists every problem Check found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalid, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalid
}

// Validate reports whether h satisfies every header invariant.
func Validate(h *Header) bool {
	return Check(h) == nil
}

// Check returns a *ValidationError naming each violated invariant, or nil.
// Text fields may not end in blanks and description lists may not end in
// an empty line, since neither survives a fixed-width field.
func Check(h *Header) error {
	c := checker{}
	c.checkShape(h)
	c.checkProjection(h)
	c.checkVertical(h)
	c.checkTime(h)
	c.checkText(h)
	c.checkVars(h)
	if len(c.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: c.problems}
}

type checker struct {
	problems []string
}

func (c *checker) require(ok bool, format string, args ...any) {
	if !ok {
		c.problems = append(c.problems, fmt.Sprintf(format, args...))
	}
}

func within(v, limit float64) bool {
	return v >= -limit && v <= limit
}

func (c *checker) checkShape(h *Header) {
	c.require(h.FileType == Gridded || h.FileType == IDData,
		"file type %d (%v) is not gridded or id-data", h.FileType, h.FileType)
	c.require(h.NCols > 0, "NCOLS %d must be positive", h.NCols)
	c.require(h.NRows > 0, "NROWS %d must be positive", h.NRows)
	c.require(h.NThik >= 0, "NTHIK %d is negative", h.NThik)
	if h.FileType == IDData {
		c.require(h.NCols == 1, "id-data files have one column, not %d", h.NCols)
	}
	c.require(h.XCell > 0, "XCELL %g must be positive", h.XCell)
	c.require(h.YCell > 0, "YCELL %g must be positive", h.YCell)
}

// checkProjection applies the legality rules of each grid type.
func (c *checker) checkProjection(h *Header) {
	center := func() {
		c.require(within(h.XCent, 180), "XCENT %g outside [-180, 180]", h.XCent)
		c.require(within(h.YCent, 90), "YCENT %g outside [-90, 90]", h.YCent)
	}
	switch h.GridType {
	case LatLon:
		c.require(within(h.XOrig, 180), "XORIG %g outside [-180, 180]", h.XOrig)
		c.require(within(h.YOrig, 90), "YORIG %g outside [-90, 90]", h.YOrig)
		c.require(h.XCell <= 360, "XCELL %g exceeds 360 degrees", h.XCell)
		c.require(h.YCell <= 180, "YCELL %g exceeds 180 degrees", h.YCell)
		c.require(h.YOrig+float64(h.NRows)*h.YCell <= 90+h.YCell,
			"grid extends past the pole: YORIG %g + %d rows of %g", h.YOrig, h.NRows, h.YCell)
	case Lambert, Albers:
		c.require(within(h.PAlp, 90), "P_ALP %g outside [-90, 90]", h.PAlp)
		c.require(within(h.PBet, 90), "P_BET %g outside [-90, 90]", h.PBet)
		c.require(within(h.PGam, 180), "P_GAM %g outside [-180, 180]", h.PGam)
		c.require(h.PAlp <= h.PBet, "P_ALP %g exceeds P_BET %g", h.PAlp, h.PBet)
		center()
	case Mercator, Stereographic, LambertAzimuthal:
		c.require(within(h.PAlp, 90), "P_ALP %g outside [-90, 90]", h.PAlp)
		c.require(within(h.PBet, 180), "P_BET %g outside [-180, 180]", h.PBet)
		c.require(within(h.PGam, 180), "P_GAM %g outside [-180, 180]", h.PGam)
		center()
	case Polar:
		c.require(h.PAlp == 1 || h.PAlp == -1, "polar P_ALP %g must be 1 or -1", h.PAlp)
		c.require(within(h.PBet, 90), "P_BET %g outside [-90, 90]", h.PBet)
		c.require(within(h.PGam, 180), "P_GAM %g outside [-180, 180]", h.PGam)
		center()
	case EquatorialMercator, TransverseMercator:
		c.require(within(h.PAlp, 90), "P_ALP %g outside [-90, 90]", h.PAlp)
		c.require(within(h.PGam, 180), "P_GAM %g outside [-180, 180]", h.PGam)
		center()
	case UTM:
		c.require(h.PAlp == math.Trunc(h.PAlp) && h.PAlp >= 1 && h.PAlp <= 60,
			"UTM zone %g is not an integer in [1, 60]", h.PAlp)
	default:
		c.require(false, "grid type %d unknown", h.GridType)
	}
}

func (c *checker) checkVertical(h *Header) {
	if !h.VertType.valid() {
		c.require(false, "vertical type %d unknown", h.VertType)
		return
	}
	if h.VertType == VGNone {
		c.require(h.NLays == 1, "no vertical coordinate requires 1 layer, not %d", h.NLays)
	} else {
		c.require(h.NLays >= 1 && h.NLays <= MaxLayers, "NLAYS %d not in [1, %d]", h.NLays, MaxLayers)
	}
	if len(h.VGLevels) != int(h.NLays)+1 {
		c.require(false, "%d level boundaries for %d layers", len(h.VGLevels), h.NLays)
		return
	}
	levels := h.VGLevels
	switch {
	case h.VertType == VGNone:
	case h.VertType.IsSigma():
		for i, v := range levels {
			c.require(v >= 0 && v <= 1, "sigma level %d = %g outside [0, 1]", i, v)
		}
		c.require(monotonic(levels, -1), "sigma levels must decrease")
		c.require(h.VGTop >= 0, "VGTOP %g is negative", h.VGTop)
	case h.VertType == VGPressure:
		for i, v := range levels {
			c.require(v > 0, "pressure level %d = %g must be positive", i, v)
		}
		c.require(monotonic(levels, -1), "pressure levels must decrease")
	default:
		c.require(monotonic(levels, 1), "height levels must increase")
	}
}

// monotonic checks strict order; sign is 1 for increasing, -1 for decreasing.
func monotonic(v []float32, sign float32) bool {
	for i := 1; i < len(v); i++ {
		if sign*(v[i]-v[i-1]) <= 0 {
			return false
		}
	}
	return true
}

func (c *checker) checkTime(h *Header) {
	c.require(calendar.ValidStep(int(h.TStep)), "TSTEP %d is not a valid hhmmss step", h.TStep)
	// time independent files may leave the start unset
	if h.TStep != 0 || h.SDate != 0 || h.STime != 0 {
		c.require(calendar.ValidDate(int(h.SDate)), "SDATE %d is not a valid yyyyddd date", h.SDate)
		c.require(calendar.ValidTime(int(h.STime)), "STIME %d is not a valid hhmmss time", h.STime)
	}
	c.require(h.MxRec >= 1, "MXREC %d must be positive", h.MxRec)
	if h.TStep == 0 {
		c.require(h.MxRec == 1, "time independent files hold 1 record, not %d", h.MxRec)
	}
}

// padded is true when s ends in blanks or NULs. Fixed-width fields are
// padded on disk and on the wire, so such text would not read back as
// written.
func padded(s string) bool {
	return internal.Unpad(s) != s
}

func (c *checker) checkText(h *Header) {
	c.require(len(h.GridName) <= NameLen, "GDNAM %q longer than %d", h.GridName, NameLen)
	c.require(len(h.UpdateName) <= NameLen, "UPNAM %q longer than %d", h.UpdateName, NameLen)
	c.require(len(h.ExecID) <= DescLen, "EXEC_ID longer than %d", DescLen)
	c.require(!padded(h.GridName), "GDNAM %q has trailing blanks", h.GridName)
	c.require(!padded(h.UpdateName), "UPNAM %q has trailing blanks", h.UpdateName)
	c.require(!padded(h.ExecID), "EXEC_ID %q has trailing blanks", h.ExecID)
	for _, d := range []struct {
		name  string
		lines []string
	}{{"FILEDESC", h.FileDesc}, {"HISTORY", h.UpdateDesc}} {
		name, lines := d.name, d.lines
		c.require(len(lines) <= MaxDescLines, "%s has %d lines, limit %d", name, len(lines), MaxDescLines)
		for i, l := range lines {
			c.require(len(l) <= DescLen, "%s line %d longer than %d", name, i, DescLen)
			c.require(!padded(l), "%s line %d has trailing blanks", name, i)
		}
		if n := len(lines); n > 0 {
			c.require(lines[n-1] != "", "%s ends with an empty line", name)
		}
	}
}

func (c *checker) checkVars(h *Header) {
	n := len(h.Vars)
	c.require(n > 0 && n <= MaxVars, "variable count %d not in [1, %d]", n, MaxVars)
	for i, v := range h.Vars {
		c.require(v.Type == Int || v.Type == Real, "variable %d %q has type %d, not int or real", i, v.Name, v.Type)
		c.require(internal.IsValidVariableName(strings.TrimSpace(v.Name)), "variable %d name %q is invalid", i, v.Name)
		c.require(!internal.IsBlank(v.Units), "variable %d %q has blank units", i, v.Name)
		c.require(len(v.Units) <= NameLen, "variable %d %q units longer than %d", i, v.Name, NameLen)
		c.require(len(v.Desc) <= DescLen, "variable %d %q description longer than %d", i, v.Name, DescLen)
		c.require(!padded(v.Name) && !padded(v.Units) && !padded(v.Desc),
			"variable %d %q has trailing blanks in its name, units or description", i, v.Name)
		for j := 0; j < i; j++ {
			if internal.SameName(h.Vars[j].Name, v.Name) {
				c.require(false, "variable %d duplicates name %q", i, v.Name)
				break
			}
		}
	}
}
