// Package header describes grid file headers: map projection, grid shape,
// vertical coordinate, time axis and per-variable metadata. It validates
// and repairs headers, derives the header of a subset, and exchanges
// headers over a stream in a fixed binary layout.
package header

import (
	"slices"

	"github.com/batchatco/go-native-gridio/internal"
)

// Fixed limits of the header layout.
const (
	MaxVars      = 2048
	MaxLayers    = 100
	MaxDescLines = 60
	NameLen      = 16
	DescLen      = 80
)

// Values at or below these are missing and take no part in statistics.
const (
	MissingReal float32 = -9e36
	MissingInt  int32   = -9999
)

// FileType is the layout of the data records (FTYPE).
type FileType int32

const (
	Custom     FileType = -1
	Dictionary FileType = 0
	Gridded    FileType = 1
	Boundary   FileType = 2
	IDData     FileType = 3
	Profile    FileType = 4
	GridNest   FileType = 5
	SMatrix    FileType = 6
	TSeries    FileType = 7
	PTFly      FileType = 8
)

func (f FileType) String() string {
	switch f {
	case Custom:
		return "custom"
	case Dictionary:
		return "dictionary"
	case Gridded:
		return "gridded"
	case Boundary:
		return "boundary"
	case IDData:
		return "id-data"
	case Profile:
		return "profile"
	case GridNest:
		return "grid-nest"
	case SMatrix:
		return "sparse-matrix"
	case TSeries:
		return "time-series"
	case PTFly:
		return "trajectory"
	}
	return "unknown"
}

// GridType is the map projection (GDTYP).
type GridType int32

const (
	LatLon             GridType = 1
	Lambert            GridType = 2
	Mercator           GridType = 3
	Stereographic      GridType = 4
	UTM                GridType = 5
	Polar              GridType = 6
	EquatorialMercator GridType = 7
	TransverseMercator GridType = 8
	Albers             GridType = 9
	LambertAzimuthal   GridType = 10
)

// VertType is the vertical coordinate (VGTYP).
type VertType int32

const (
	VGSigmaPH  VertType = 1 // hydrostatic sigma-P
	VGSigmaPN  VertType = 2 // non-hydrostatic sigma-P
	VGSigmaZ   VertType = 3
	VGPressure VertType = 4
	VGHeight   VertType = 5 // meters above sea level
	VGHeightAG VertType = 6 // meters above ground
	VGWRFMass  VertType = 7
	VGWRFNMM   VertType = 8
	VGNone     VertType = -9999
)

// IsSigmaPressure reports whether levels are sigma values over a pressure
// column topped at VGTop.
func (v VertType) IsSigmaPressure() bool {
	switch v {
	case VGSigmaPH, VGSigmaPN, VGWRFMass, VGWRFNMM:
		return true
	}
	return false
}

// IsSigma covers every family whose levels run from 1 at the surface to 0.
func (v VertType) IsSigma() bool {
	return v.IsSigmaPressure() || v == VGSigmaZ
}

func (v VertType) valid() bool {
	return v == VGNone || (v >= VGSigmaPH && v <= VGWRFNMM)
}

// NumericType is the stored type of a variable.
type NumericType int32

const (
	Int  NumericType = 4
	Real NumericType = 5
)

func (n NumericType) String() string {
	switch n {
	case Int:
		return "int"
	case Real:
		return "real"
	}
	return "unknown"
}

type Variable struct {
	Name  string      `toml:"name"`
	Units string      `toml:"units"`
	Desc  string      `toml:"desc"`
	Type  NumericType `toml:"type"`
}

// Header is the binary and text header of a grid file. The variable count
// is len(Vars) and the level boundaries number NLays+1.
type Header struct {
	FileType FileType `toml:"FTYPE"`
	CDate    int32    `toml:"CDATE"`
	CTime    int32    `toml:"CTIME"`
	WDate    int32    `toml:"WDATE"`
	WTime    int32    `toml:"WTIME"`
	NCols    int32    `toml:"NCOLS"`
	NRows    int32    `toml:"NROWS"`
	NLays    int32    `toml:"NLAYS"`
	NThik    int32    `toml:"NTHIK"`
	GridType GridType `toml:"GDTYP"`
	VertType VertType `toml:"VGTYP"`
	SDate    int32    `toml:"SDATE"`
	STime    int32    `toml:"STIME"`
	TStep    int32    `toml:"TSTEP"`
	MxRec    int32    `toml:"MXREC"`

	PAlp  float64 `toml:"P_ALP"`
	PBet  float64 `toml:"P_BET"`
	PGam  float64 `toml:"P_GAM"`
	XCent float64 `toml:"XCENT"`
	YCent float64 `toml:"YCENT"`
	XOrig float64 `toml:"XORIG"`
	YOrig float64 `toml:"YORIG"`
	XCell float64 `toml:"XCELL"`
	YCell float64 `toml:"YCELL"`

	VGTop    float32   `toml:"VGTOP"`
	VGLevels []float32 `toml:"VGLVLS"`

	GridName   string     `toml:"GDNAM"`
	UpdateName string     `toml:"UPNAM"`
	ExecID     string     `toml:"EXEC_ID"`
	FileDesc   []string   `toml:"FILEDESC"`
	UpdateDesc []string   `toml:"HISTORY"`
	Vars       []Variable `toml:"variables"`
}

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level, from 0 (fatal only) to 3 (info), and
// returns the old level.
func SetLogLevel(level int) int {
	old := logger.LogLevel()
	switch level {
	case 0:
		logger.SetLogLevel(internal.LevelFatal)
	case 1:
		logger.SetLogLevel(internal.LevelError)
	case 2:
		logger.SetLogLevel(internal.LevelWarn)
	default:
		logger.SetLogLevel(internal.LevelInfo)
	}
	return int(old)
}

// NVars is the number of variables.
func (h *Header) NVars() int {
	return len(h.Vars)
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	c := *h
	c.VGLevels = slices.Clone(h.VGLevels)
	c.FileDesc = slices.Clone(h.FileDesc)
	c.UpdateDesc = slices.Clone(h.UpdateDesc)
	c.Vars = slices.Clone(h.Vars)
	return &c
}

// VarNames lists the variable names in file order.
func (h *Header) VarNames() []string {
	names := make([]string, len(h.Vars))
	for i, v := range h.Vars {
		names[i] = v.Name
	}
	return names
}

// Steps is the number of timesteps the file may hold.
func (h *Header) Steps() int {
	if h.TStep == 0 {
		return 1
	}
	return int(h.MxRec)
}

// Missing is the sentinel of a numeric type, widened to float32.
func Missing(t NumericType) float32 {
	if t == Int {
		return float32(MissingInt)
	}
	return MissingReal
}
