// Package container stores grid files as netCDF classic files with 64-bit
// offsets (CDF-2). The time axis is the record dimension TSTEP; every
// variable is a record variable shaped [TSTEP][LAY][ROW][COL], and TFLAG
// records the date and time each variable was written for each step. The
// header lives in global attributes named after the Models-3 I/O API
// conventions, so files can be inspected with ordinary netCDF tools.
//
// Reading accepts classic (version 1), 64-bit offset (version 2) and 64-bit
// data (version 5) files. Writing always produces version 2.
package container

import (
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/batchatco/go-native-gridio/internal"
	"github.com/batchatco/go-thrower"
)

const (
	fieldDimension = 0x0000000a
	fieldVariable  = 0x0000000b
	fieldAttribute = 0x0000000c
)

const (
	typeNone = iota // never stored in a file
	typeByte
	typeChar
	typeShort
	typeInt
	typeFloat
	typeDouble

	// v5
	typeUByte
	typeUShort
	typeUInt
	typeInt64
	typeUInt64
)

// Dimension and variable names fixed by the layout.
const (
	DimStep     = "TSTEP"
	DimDateTime = "DATE-TIME"
	DimLayer    = "LAY"
	DimVar      = "VAR"
	DimRow      = "ROW"
	DimCol      = "COL"

	VarTFlag   = "TFLAG"
	VarIDCount = "ID-COUNT"
	VarID      = "ID"
)

const maxDimensions = 1024

var (
	ErrNotCDF               = errors.New("not a CDF file")
	ErrUnknownVersion       = errors.New("unknown CDF version")
	ErrUnknownType          = errors.New("unknown type")
	ErrCorruptedFile        = errors.New("corrupted file")
	ErrNotFound             = errors.New("variable not found")
	ErrNoStreaming          = errors.New("streaming records not supported")
	ErrInternal             = errors.New("internal error")
	ErrDuplicateVariable    = errors.New("duplicate variable")
	ErrTooManyDimensions    = errors.New("too many dimensions")
	ErrNotGridFile          = errors.New("not a grid file")
	ErrStepNotAvailable     = errors.New("timestep not available")
	ErrBadWindow            = errors.New("window outside the grid")
	ErrShortBuffer          = errors.New("buffer too small")
	ErrExists               = errors.New("file already exists")
	ErrClosed               = errors.New("file is closed")
	ErrNotIDData            = errors.New("not an id-data file")
	ErrTooManyStations      = errors.New("station count exceeds rows")
	ErrInvalidHeader        = errors.New("header is not valid")
	ErrUnlimitedMustBeFirst = errors.New("unlimited dimension must be first")
)

var (
	logger = internal.NewLogger()
)

// SetLogLevel sets the logging level to the given level, and returns
// the old level. The lowest level is 0 (no error logs at all) and the
// highest level is 3 (errors, warnings and debug messages).
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

func fail(message string, err error) {
	logger.Error(message)
	thrower.Throw(err)
}

func assert(condition bool, message string, err error) {
	if condition {
		return
	}
	fail(message, err)
}

// Rounds up to next int boundary
func roundInt32(i uint64) uint64 {
	return (i + 3) & ^uint64(0x3)
}

func typeSize(vType uint32) int64 {
	switch vType {
	case typeByte, typeUByte, typeChar:
		return 1
	case typeShort, typeUShort:
		return 2
	case typeInt, typeUInt, typeFloat:
		return 4
	case typeDouble, typeInt64, typeUInt64:
		return 8
	}
	thrower.Throw(ErrUnknownType)
	return 0
}

func seekTo(f io.Seeker, offset int64) {
	_, err := f.Seek(offset, io.SeekStart)
	thrower.ThrowIfError(err)
}

// decodeFloats converts big-endian values of any numeric type to float32.
func decodeFloats(vType uint32, raw []byte, out []float32) {
	n := len(out)
	be := binary.BigEndian
	switch vType {
	case typeFloat:
		for i := 0; i < n; i++ {
			out[i] = math.Float32frombits(be.Uint32(raw[i*4:]))
		}
	case typeInt:
		for i := 0; i < n; i++ {
			out[i] = float32(int32(be.Uint32(raw[i*4:])))
		}
	case typeDouble:
		for i := 0; i < n; i++ {
			out[i] = float32(math.Float64frombits(be.Uint64(raw[i*8:])))
		}
	case typeShort:
		for i := 0; i < n; i++ {
			out[i] = float32(int16(be.Uint16(raw[i*2:])))
		}
	case typeByte:
		for i := 0; i < n; i++ {
			out[i] = float32(int8(raw[i]))
		}
	default:
		thrower.Throw(ErrUnknownType)
	}
}

// decodeInts converts big-endian values to int32; reals are truncated.
func decodeInts(vType uint32, raw []byte, out []int32) {
	n := len(out)
	be := binary.BigEndian
	switch vType {
	case typeInt:
		for i := 0; i < n; i++ {
			out[i] = int32(be.Uint32(raw[i*4:]))
		}
	case typeShort:
		for i := 0; i < n; i++ {
			out[i] = int32(int16(be.Uint16(raw[i*2:])))
		}
	case typeByte:
		for i := 0; i < n; i++ {
			out[i] = int32(int8(raw[i]))
		}
	case typeFloat, typeDouble:
		tmp := make([]float32, n)
		decodeFloats(vType, raw, tmp)
		for i, v := range tmp {
			out[i] = int32(v)
		}
	default:
		thrower.Throw(ErrUnknownType)
	}
}
