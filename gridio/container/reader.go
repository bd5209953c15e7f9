package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/batchatco/go-native-gridio/gridio/api"
	"github.com/batchatco/go-native-gridio/gridio/calendar"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/util"
	"github.com/batchatco/go-native-gridio/internal"
	"github.com/batchatco/go-thrower"
)

type dimension struct {
	name      string
	dimLength uint64
}

type variable struct {
	name   string
	dimids []uint64
	attrs  *util.OrderedMap
	vType  uint32
	vsize  int64 // bytes in one record, without padding
	begin  uint64
}

// Window selects layers, rows and columns. Bounds are 1-based and
// inclusive, the way grid files number cells.
type Window struct {
	Layers [2]int
	Rows   [2]int
	Cols   [2]int
}

func (w Window) count() int {
	return (w.Layers[1] - w.Layers[0] + 1) * (w.Rows[1] - w.Rows[0] + 1) * (w.Cols[1] - w.Cols[0] + 1)
}

// File is a grid file opened for reading.
type File struct {
	path        string
	file        api.ReadSeekerCloser
	version     byte
	numRecs     uint64
	recSize     uint64
	dimensions  []dimension
	globalAttrs *util.OrderedMap
	vars        *util.OrderedMap
	h           *header.Header
	closed      bool
}

// Open opens the grid file at path and decodes its header.
func Open(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := New(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	f.path = path
	return f, nil
}

// New reads a grid file from an already opened file. The file is not
// closed on error.
func New(file api.ReadSeekerCloser) (*File, error) {
	f := &File{file: file}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) load() (err error) {
	defer thrower.RecoverError(&err)
	f.readHeader()
	f.h = decodeHeader(f)
	return nil
}

func (f *File) checkVersion(requiredVersion byte) {
	assert(f.version >= requiredVersion,
		fmt.Sprint("invalid type for version ", f.version),
		ErrCorruptedFile)
}

func (f *File) readNumber(bf io.Reader) uint64 {
	if f.version < 5 {
		n := util.MustRead32BE(bf)
		// sign extension
		return uint64(int64(int32(n)))
	}
	return util.MustRead64BE(bf)
}

func (f *File) readName(bf io.Reader) string {
	nameLen := f.readNumber(bf)
	assert(nameLen < 1<<16, fmt.Sprint("name too long: ", nameLen), ErrCorruptedFile)
	b := make([]byte, roundInt32(nameLen))
	util.MustReadFull(bf, b)
	for i := uint64(0); i < nameLen; i++ {
		if b[i] == 0 {
			logger.Warnf("Null found in name %q version %d", string(b[:nameLen]), f.version)
			nameLen = i
			break
		}
	}
	return string(b[:nameLen])
}

func (f *File) getNElems(bf io.Reader, expectedField uint32) uint64 {
	fieldType := util.MustRead32BE(bf)
	nElems := f.readNumber(bf)
	switch fieldType {
	case 0: // absent
		assert(nElems == 0,
			fmt.Sprint("corrupted file, elems with absent field: ", expectedField, nElems),
			ErrCorruptedFile)
	case expectedField:
	default:
		fail(fmt.Sprint("corrupted file, unexpected field: ", fieldType),
			ErrCorruptedFile)
	}
	return nElems
}

func (f *File) getAttr(bf io.Reader) (string, any) {
	name := f.readName(bf)
	vType := util.MustRead32BE(bf)
	n := f.readNumber(bf)
	assert(n < 1<<28, fmt.Sprint("attribute too long: ", n), ErrCorruptedFile)
	var values any
	switch vType {
	case typeChar:
		b := make([]byte, n)
		util.MustReadFull(bf, b)
		values = string(b)
	case typeByte:
		values = make([]int8, n)
	case typeShort:
		values = make([]int16, n)
	case typeInt:
		values = make([]int32, n)
	case typeFloat:
		values = make([]float32, n)
	case typeDouble:
		values = make([]float64, n)
	case typeUByte:
		f.checkVersion(5)
		values = make([]uint8, n)
	case typeUShort:
		f.checkVersion(5)
		values = make([]uint16, n)
	case typeUInt:
		f.checkVersion(5)
		values = make([]uint32, n)
	case typeInt64:
		f.checkVersion(5)
		values = make([]int64, n)
	case typeUInt64:
		f.checkVersion(5)
		values = make([]uint64, n)
	default:
		fail(fmt.Sprint("corrupted file, unknown type: ", vType),
			ErrCorruptedFile)
	}
	if vType != typeChar {
		util.MustReadBE(bf, values)
	}
	nread := n * uint64(typeSize(vType))
	for ; nread&0x3 != 0; nread++ {
		_ = util.MustRead8(bf)
	}
	return name, scalar(values)
}

// scalar unwraps single-element attribute arrays.
func scalar(values any) any {
	switch v := values.(type) {
	case []int8:
		if len(v) == 1 {
			return v[0]
		}
	case []int16:
		if len(v) == 1 {
			return v[0]
		}
	case []int32:
		if len(v) == 1 {
			return v[0]
		}
	case []float32:
		if len(v) == 1 {
			return v[0]
		}
	case []float64:
		if len(v) == 1 {
			return v[0]
		}
	}
	return values
}

func (f *File) getAttrList(bf io.Reader) *util.OrderedMap {
	nElems := f.getNElems(bf, fieldAttribute)
	om := util.NewOrderedMap()
	for i := uint64(0); i < nElems; i++ {
		name, val := f.getAttr(bf)
		om.Add(name, val)
	}
	return om
}

func (f *File) isRecordDimension(id uint64) bool {
	return f.dimensions[id].dimLength == 0
}

func (f *File) getVar(bf io.Reader) variable {
	name := f.readName(bf)
	nDims := f.readNumber(bf)
	assert(nDims <= maxDimensions, "too many dimensions", ErrTooManyDimensions)
	dimids := make([]uint64, nDims)
	for i := range dimids {
		dimids[i] = f.readNumber(bf)
		assert(dimids[i] < uint64(len(f.dimensions)),
			fmt.Sprint("bad dimension id ", dimids[i], " in ", name),
			ErrCorruptedFile)
		if i > 0 && f.isRecordDimension(dimids[i]) {
			fail(fmt.Sprint(name, ": record dimension at position ", i),
				ErrUnlimitedMustBeFirst)
		}
	}
	attrs := f.getAttrList(bf)
	vType := util.MustRead32BE(bf)
	vsize := f.readNumber(bf)
	used := vsize
	if nDims > 0 && f.isRecordDimension(dimids[0]) {
		n := uint64(1)
		for _, id := range dimids[1:] {
			n *= f.dimensions[id].dimLength
		}
		used = n * uint64(typeSize(vType))
		f.recSize += vsize
	}
	var begin uint64
	switch f.version {
	case 1:
		begin = uint64(util.MustRead32BE(bf))
	case 2, 5:
		begin = util.MustRead64BE(bf)
	default:
		thrower.Throw(ErrInternal)
	}
	return variable{name, dimids, attrs, vType, int64(used), begin}
}

func (f *File) readHeader() {
	seekTo(f.file, 0)
	bf := bufio.NewReader(f.file)

	magic := make([]byte, 4)
	util.MustReadFull(bf, magic)
	if string(magic[:3]) != "CDF" {
		logger.Infof("not cdf: %q", string(magic[:3]))
		thrower.Throw(ErrNotCDF)
	}
	switch magic[3] {
	case 1, 2, 5:
	default:
		fail(fmt.Sprint("unknown version: ", magic[3]), ErrUnknownVersion)
	}
	f.version = magic[3]
	f.numRecs = f.readNumber(bf)
	assert(f.numRecs != 0xffffffffffffffff, "streaming not supported", ErrNoStreaming)

	nDims := f.getNElems(bf, fieldDimension)
	assert(nDims <= maxDimensions, "too many dimensions", ErrTooManyDimensions)
	f.dimensions = make([]dimension, nDims)
	for i := range f.dimensions {
		name := f.readName(bf)
		f.dimensions[i] = dimension{name, f.readNumber(bf)}
	}

	f.globalAttrs = f.getAttrList(bf)

	nVars := f.getNElems(bf, fieldVariable)
	f.vars = util.NewOrderedMap()
	var records []variable
	for i := uint64(0); i < nVars; i++ {
		v := f.getVar(bf)
		if _, has := f.vars.Get(v.name); has {
			fail(fmt.Sprint("duplicate variable ", v.name), ErrDuplicateVariable)
		}
		if len(v.dimids) > 0 && f.isRecordDimension(v.dimids[0]) {
			records = append(records, v)
		}
		f.vars.Add(v.name, v)
	}
	switch len(records) {
	case 0:
	case 1:
		// a lone record variable is not padded
		f.recSize = uint64(records[0].vsize)
	default:
		f.recSize = roundInt32(f.recSize)
	}
}

// Header returns a copy of the decoded header.
func (f *File) Header() *header.Header {
	return f.h.Clone()
}

// Path is the file name given to Open.
func (f *File) Path() string {
	return f.path
}

// NumRecs is the number of timesteps stored.
func (f *File) NumRecs() int {
	return int(f.numRecs)
}

// Close closes the underlying file.
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	f.closed = true
	return f.file.Close()
}

func (f *File) variable(name string) variable {
	val, has := f.vars.Get(name)
	if !has {
		// header names may carry padding the file does not
		for _, key := range f.vars.Keys() {
			if internal.SameName(key, name) {
				val, has = f.vars.Get(key)
				break
			}
		}
	}
	if !has {
		thrower.Throw(fmt.Errorf("%w: %q", ErrNotFound, name))
	}
	return val.(variable)
}

// dataVariable resolves a header variable and its position in VAR.
func (f *File) dataVariable(name string) (variable, int) {
	vi, ok := header.NameToIndex(f.h, name)
	if !ok {
		thrower.Throw(fmt.Errorf("%w: %q", ErrNotFound, name))
	}
	return f.variable(f.h.Vars[vi].Name), vi
}

// shape returns the per-record layers, rows and columns of v.
func (f *File) shape(v variable) (nlays, nrows, ncols int) {
	dims := v.dimids[1:]
	assert(len(dims) == 3, fmt.Sprint(v.name, " is not a layer/row/column variable"), ErrNotGridFile)
	return int(f.dimensions[dims[0]].dimLength), int(f.dimensions[dims[1]].dimLength),
		int(f.dimensions[dims[2]].dimLength)
}

// stepOf maps a date and time to a record index. Timed files also check
// that TFLAG records vi as written for that date and time.
func stepOf(h *header.Header, date, time int32) int {
	if h.TStep == 0 {
		return 0
	}
	if calendar.Compare(int(date), int(time), int(h.SDate), int(h.STime)) < 0 {
		thrower.Throw(fmt.Errorf("%w: %07d:%06d precedes the start %07d:%06d",
			ErrStepNotAvailable, date, time, h.SDate, h.STime))
	}
	delta := calendar.Seconds(int(date), int(time)) - calendar.Seconds(int(h.SDate), int(h.STime))
	step := calendar.StepSeconds(int(h.TStep))
	if delta%step != 0 {
		thrower.Throw(fmt.Errorf("%w: %07d:%06d is not on the time axis", ErrStepNotAvailable, date, time))
	}
	return int(delta / step)
}

func (f *File) step(vi int, date, time int32) int {
	n := stepOf(f.h, date, time)
	if uint64(n) >= f.numRecs {
		thrower.Throw(fmt.Errorf("%w: %07d:%06d is step %d of %d", ErrStepNotAvailable, date, time, n, f.numRecs))
	}
	if f.h.TStep == 0 || vi < 0 {
		return n
	}
	tflag := f.variable(VarTFlag)
	var flag [2]int32
	seekTo(f.file, int64(tflag.begin)+int64(n)*int64(f.recSize)+int64(vi)*8)
	util.MustReadBE(f.file, flag[:])
	if flag[0] != date || flag[1] != time {
		thrower.Throw(fmt.Errorf("%w: %s not written for %07d:%06d", ErrStepNotAvailable, f.h.Vars[vi].Name, date, time))
	}
	return n
}

func (f *File) checkWindow(v variable, w Window) {
	nlays, nrows, ncols := f.shape(v)
	for _, b := range []struct {
		bounds [2]int
		limit  int
	}{{w.Layers, nlays}, {w.Rows, nrows}, {w.Cols, ncols}} {
		if b.bounds[0] < 1 || b.bounds[0] > b.bounds[1] || b.bounds[1] > b.limit {
			thrower.Throw(fmt.Errorf("%w: %v of %d", ErrBadWindow, b.bounds, b.limit))
		}
	}
}

// readWindow reads the window of v at record n, one run of contiguous
// values at a time, handing each run to decode.
func (f *File) readWindow(v variable, n int, w Window, decode func(raw []byte, at, count int)) {
	_, nrows, ncols := f.shape(v)
	size := typeSize(v.vType)
	base := int64(v.begin) + int64(n)*int64(f.recSize)
	width := w.Cols[1] - w.Cols[0] + 1
	height := w.Rows[1] - w.Rows[0] + 1
	rowRuns := height
	if width == ncols {
		// whole rows are contiguous
		width *= height
		rowRuns = 1
	}
	raw := make([]byte, int64(width)*size)
	at := 0
	for l := w.Layers[0] - 1; l < w.Layers[1]; l++ {
		for r := 0; r < rowRuns; r++ {
			row := w.Rows[0] - 1 + r
			offset := base + ((int64(l)*int64(nrows)+int64(row))*int64(ncols)+int64(w.Cols[0]-1))*size
			seekTo(f.file, offset)
			_, err := io.ReadFull(f.file, raw)
			thrower.ThrowIfError(err)
			decode(raw, at, width)
			at += width
		}
	}
}

func (f *File) mustOpen() {
	if f.closed {
		thrower.Throw(ErrClosed)
	}
}

// ReadWindow reads the window of a variable at the given date and time into
// out, columns varying fastest. Integer variables are widened.
func (f *File) ReadWindow(name string, date, time int32, w Window, out []float32) (err error) {
	defer thrower.RecoverError(&err)
	f.mustOpen()
	v, vi := f.dataVariable(name)
	f.checkWindow(v, w)
	if len(out) < w.count() {
		return fmt.Errorf("%w: %d values for a window of %d", ErrShortBuffer, len(out), w.count())
	}
	n := f.step(vi, date, time)
	f.readWindow(v, n, w, func(raw []byte, at, count int) {
		decodeFloats(v.vType, raw, out[at:at+count])
	})
	return nil
}

func (f *File) fullWindow(v variable) Window {
	nlays, nrows, ncols := f.shape(v)
	return Window{Layers: [2]int{1, nlays}, Rows: [2]int{1, nrows}, Cols: [2]int{1, ncols}}
}

// ReadRecord reads every layer, row and column of a variable.
func (f *File) ReadRecord(name string, date, time int32, out []float32) (err error) {
	defer thrower.RecoverError(&err)
	f.mustOpen()
	v, _ := f.dataVariable(name)
	return f.ReadWindow(name, date, time, f.fullWindow(v), out)
}

// ReadRecordInts is ReadRecord for integer values; reals are truncated.
func (f *File) ReadRecordInts(name string, date, time int32, out []int32) (err error) {
	defer thrower.RecoverError(&err)
	f.mustOpen()
	v, vi := f.dataVariable(name)
	w := f.fullWindow(v)
	if len(out) < w.count() {
		return fmt.Errorf("%w: %d values for a record of %d", ErrShortBuffer, len(out), w.count())
	}
	n := f.step(vi, date, time)
	f.readWindow(v, n, w, func(raw []byte, at, count int) {
		decodeInts(v.vType, raw, out[at:at+count])
	})
	return nil
}

// ReadStations reads the station count and the reporting station ids of an
// id-data file. ids must hold at least count values.
func (f *File) ReadStations(date, time int32, ids []int32) (count int, err error) {
	defer thrower.RecoverError(&err)
	f.mustOpen()
	if f.h.FileType != header.IDData {
		return 0, ErrNotIDData
	}
	n := f.step(-1, date, time)
	base := int64(n) * int64(f.recSize)

	countVar := f.variable(VarIDCount)
	var nc int32
	seekTo(f.file, int64(countVar.begin)+base)
	util.MustReadBE(f.file, &nc)
	if nc < 0 || nc > f.h.NRows {
		return 0, fmt.Errorf("%w: %d stations in %d rows", ErrTooManyStations, nc, f.h.NRows)
	}
	if len(ids) < int(nc) {
		return 0, fmt.Errorf("%w: %d ids for %d stations", ErrShortBuffer, len(ids), nc)
	}
	idVar := f.variable(VarID)
	raw := make([]byte, int(nc)*4)
	seekTo(f.file, int64(idVar.begin)+base)
	util.MustReadFull(f.file, raw)
	for i := 0; i < int(nc); i++ {
		ids[i] = int32(binary.BigEndian.Uint32(raw[i*4:]))
	}
	return int(nc), nil
}
