package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"

	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/util"
	"github.com/batchatco/go-thrower"
)

type countedWriter struct {
	w     *bufio.Writer
	count int64
}

func (c *countedWriter) Count() int64 {
	return c.count
}

func (c *countedWriter) Flush() error {
	return c.w.Flush()
}

func (c *countedWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.count += int64(n)
	return n, err
}

// Writer creates a grid file and appends timesteps to it. Records may be
// written in any order; numrecs grows to cover the highest step written.
type Writer struct {
	path        string
	file        *os.File
	h           *header.Header
	dimensions  []dimension
	globalAttrs *util.OrderedMap
	vars        []variable
	recSize     int64
	numRecs     uint64
	closed      bool
}

// Create makes a new grid file for h. It fails with ErrExists if path is
// already there.
func Create(path string, h *header.Header) (*Writer, error) {
	if err := header.Check(h); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, path)
		}
		return nil, err
	}
	w := &Writer{path: path, file: file, h: h.Clone()}
	if err := w.start(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *Writer) start() (err error) {
	defer thrower.RecoverError(&err)
	w.layout()

	// The header size does not depend on the begin offsets, so size it
	// once with zeros and then write it for real.
	sizer := &countedWriter{w: bufio.NewWriter(io.Discard)}
	w.writeHeader(sizer)
	begin := sizer.Count()
	for i := range w.vars {
		w.vars[i].begin = uint64(begin)
		begin += vsize(&w.vars[i])
	}
	seekTo(w.file, 0)
	bf := &countedWriter{w: bufio.NewWriter(w.file)}
	w.writeHeader(bf)
	thrower.ThrowIfError(bf.Flush())
	assert(bf.Count() == sizer.Count(), "header size changed", ErrInternal)
	return nil
}

func (w *Writer) dimID(name string) uint64 {
	for i, d := range w.dimensions {
		if d.name == name {
			return uint64(i)
		}
	}
	thrower.Throw(ErrInternal)
	return 0
}

func (w *Writer) addVar(name string, vType uint32, attrs *util.OrderedMap, dims ...string) {
	ids := make([]uint64, len(dims))
	n := int64(1)
	for i, d := range dims {
		ids[i] = w.dimID(d)
		if i > 0 {
			n *= int64(w.dimensions[ids[i]].dimLength)
		}
	}
	w.vars = append(w.vars, variable{name, ids, attrs, vType, n * typeSize(vType), 0})
	w.recSize += vsize(&w.vars[len(w.vars)-1])
}

// layout declares the dimensions and record variables of the file.
func (w *Writer) layout() {
	h := w.h
	w.dimensions = []dimension{
		{DimStep, 0},
		{DimDateTime, 2},
		{DimLayer, uint64(h.NLays)},
		{DimVar, uint64(len(h.Vars))},
		{DimRow, uint64(h.NRows)},
		{DimCol, uint64(h.NCols)},
	}
	w.globalAttrs = encodeHeader(h)

	tflagAttrs := attrs("units", "<YYYYDDD,HHMMSS>",
		"long_name", name16(VarTFlag),
		"var_desc", desc80("Timestep-valid flags:  (1) YYYYDDD or (2) HHMMSS"))
	w.addVar(VarTFlag, typeInt, tflagAttrs, DimStep, DimVar, DimDateTime)
	if h.FileType == header.IDData {
		w.addVar(VarIDCount, typeInt, attrs("long_name", name16(VarIDCount)), DimStep)
		w.addVar(VarID, typeInt, attrs("long_name", name16(VarID)), DimStep, DimRow)
	}
	for _, v := range h.Vars {
		vType := uint32(typeFloat)
		if v.Type == header.Int {
			vType = typeInt
		}
		w.addVar(v.Name, vType, attrs(
			"long_name", name16(v.Name),
			"units", name16(v.Units),
			"var_desc", desc80(v.Desc)),
			DimStep, DimLayer, DimRow, DimCol)
	}
}

func vsize(v *variable) int64 {
	return 4 * ((v.vsize + 3) / 4)
}

func pad(bf *countedWriter) {
	offset := bf.Count()
	extra := int64(roundInt32(uint64(offset))) - offset
	if extra > 0 {
		zero := [3]byte{}
		util.MustWriteRaw(bf, zero[:extra])
	}
}

func write32(w io.Writer, i uint32) {
	util.MustWriteBE(w, i)
}

func writeName(bf *countedWriter, name string) {
	write32(bf, uint32(len(name)))
	util.MustWriteRaw(bf, []byte(name))
	pad(bf)
}

func writeAttributes(bf *countedWriter, attrs *util.OrderedMap) {
	if attrs == nil || attrs.Len() == 0 {
		write32(bf, 0) // absent
		write32(bf, 0)
		return
	}
	write32(bf, fieldAttribute)
	write32(bf, uint32(attrs.Len()))
	for _, k := range attrs.Keys() {
		v, _ := attrs.Get(k)
		writeName(bf, k)
		switch vals := v.(type) {
		case string:
			write32(bf, typeChar)
			write32(bf, uint32(len(vals)))
			util.MustWriteRaw(bf, []byte(vals))
		case int32:
			write32(bf, typeInt)
			write32(bf, 1)
			util.MustWriteBE(bf, vals)
		case []int32:
			write32(bf, typeInt)
			write32(bf, uint32(len(vals)))
			util.MustWriteBE(bf, vals)
		case float32:
			write32(bf, typeFloat)
			write32(bf, 1)
			util.MustWriteBE(bf, vals)
		case []float32:
			write32(bf, typeFloat)
			write32(bf, uint32(len(vals)))
			util.MustWriteBE(bf, vals)
		case float64:
			write32(bf, typeDouble)
			write32(bf, 1)
			util.MustWriteBE(bf, vals)
		case []float64:
			write32(bf, typeDouble)
			write32(bf, uint32(len(vals)))
			util.MustWriteBE(bf, vals)
		default:
			logger.Warnf("Unknown type %T, %#v=%#v", v, k, v)
			thrower.Throw(ErrUnknownType)
		}
		pad(bf)
	}
}

func (w *Writer) writeHeader(bf *countedWriter) {
	util.MustWriteRaw(bf, []byte{'C', 'D', 'F', 2})
	write32(bf, uint32(w.numRecs))

	write32(bf, fieldDimension)
	write32(bf, uint32(len(w.dimensions)))
	for _, d := range w.dimensions {
		writeName(bf, d.name)
		write32(bf, uint32(d.dimLength))
	}

	writeAttributes(bf, w.globalAttrs)

	write32(bf, fieldVariable)
	write32(bf, uint32(len(w.vars)))
	for i := range w.vars {
		v := &w.vars[i]
		writeName(bf, v.name)
		write32(bf, uint32(len(v.dimids)))
		for _, id := range v.dimids {
			write32(bf, uint32(id))
		}
		writeAttributes(bf, v.attrs)
		write32(bf, v.vType)
		write32(bf, uint32(vsize(v)))
		util.MustWriteBE(bf, v.begin)
	}
}

// Header returns a copy of the header the file was created with.
func (w *Writer) Header() *header.Header {
	return w.h.Clone()
}

// Path is the name given to Create.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) mustOpen() {
	if w.closed {
		thrower.Throw(ErrClosed)
	}
}

func (w *Writer) variable(name string) variable {
	for _, v := range w.vars {
		if v.name == name {
			return v
		}
	}
	thrower.Throw(fmt.Errorf("%w: %q", ErrNotFound, name))
	return variable{}
}

// step maps a date and time onto the time axis and checks it fits MXREC.
func (w *Writer) step(date, time int32) int {
	n := stepOf(w.h, date, time)
	if n >= w.h.Steps() {
		thrower.Throw(fmt.Errorf("%w: %07d:%06d is step %d, limit %d", ErrStepNotAvailable, date, time, n, w.h.Steps()))
	}
	return n
}

// extend grows numrecs to cover step n, zero filling the new records.
func (w *Writer) extend(n int) {
	if uint64(n) < w.numRecs {
		return
	}
	w.numRecs = uint64(n) + 1
	end := int64(w.vars[0].begin) + int64(w.numRecs)*w.recSize
	thrower.ThrowIfError(w.file.Truncate(end))
	seekTo(w.file, 4)
	write32(w.file, uint32(w.numRecs))
}

func (w *Writer) writeAt(offset int64, raw []byte) {
	seekTo(w.file, offset)
	util.MustWriteRaw(w.file, raw)
}

func (w *Writer) record(name string, date, time int32, encode func(vType uint32, raw []byte)) {
	w.mustOpen()
	vi, ok := header.NameToIndex(w.h, name)
	if !ok {
		thrower.Throw(fmt.Errorf("%w: %q", ErrNotFound, name))
	}
	v := w.variable(w.h.Vars[vi].Name)
	n := w.step(date, time)
	w.extend(n)
	base := int64(n) * w.recSize

	raw := make([]byte, v.vsize)
	encode(v.vType, raw)
	w.writeAt(int64(v.begin)+base, raw)

	var flag [8]byte
	binary.BigEndian.PutUint32(flag[:], uint32(date))
	binary.BigEndian.PutUint32(flag[4:], uint32(time))
	w.writeAt(int64(w.variable(VarTFlag).begin)+base+int64(vi)*8, flag[:])
}

func (w *Writer) recordLen() int {
	return int(w.h.NLays) * int(w.h.NRows) * int(w.h.NCols)
}

// WriteRecord stores every layer, row and column of a variable for one
// timestep. Integer variables are rounded toward zero.
func (w *Writer) WriteRecord(name string, date, time int32, data []float32) (err error) {
	defer thrower.RecoverError(&err)
	if len(data) != w.recordLen() {
		return fmt.Errorf("%w: %d values for a record of %d", ErrShortBuffer, len(data), w.recordLen())
	}
	w.record(name, date, time, func(vType uint32, raw []byte) {
		be := binary.BigEndian
		for i, f := range data {
			if vType == typeInt {
				be.PutUint32(raw[i*4:], uint32(int32(f)))
			} else {
				be.PutUint32(raw[i*4:], math.Float32bits(f))
			}
		}
	})
	return nil
}

// WriteRecordInts is WriteRecord for integer values.
func (w *Writer) WriteRecordInts(name string, date, time int32, data []int32) (err error) {
	defer thrower.RecoverError(&err)
	if len(data) != w.recordLen() {
		return fmt.Errorf("%w: %d values for a record of %d", ErrShortBuffer, len(data), w.recordLen())
	}
	w.record(name, date, time, func(vType uint32, raw []byte) {
		be := binary.BigEndian
		for i, v := range data {
			if vType == typeInt {
				be.PutUint32(raw[i*4:], uint32(v))
			} else {
				be.PutUint32(raw[i*4:], math.Float32bits(float32(v)))
			}
		}
	})
	return nil
}

// WriteStations stores the number of reporting stations and their ids for
// one timestep of an id-data file. Unused rows hold the missing value.
func (w *Writer) WriteStations(date, time int32, count int, ids []int32) (err error) {
	defer thrower.RecoverError(&err)
	w.mustOpen()
	if w.h.FileType != header.IDData {
		return ErrNotIDData
	}
	if count < 0 || count > int(w.h.NRows) {
		return fmt.Errorf("%w: %d stations in %d rows", ErrTooManyStations, count, w.h.NRows)
	}
	if len(ids) < count {
		return fmt.Errorf("%w: %d ids for %d stations", ErrShortBuffer, len(ids), count)
	}
	n := w.step(date, time)
	w.extend(n)
	base := int64(n) * w.recSize

	var nc [4]byte
	binary.BigEndian.PutUint32(nc[:], uint32(count))
	w.writeAt(int64(w.variable(VarIDCount).begin)+base, nc[:])

	raw := make([]byte, int(w.h.NRows)*4)
	for i := 0; i < int(w.h.NRows); i++ {
		id := header.MissingInt
		if i < count {
			id = ids[i]
		}
		binary.BigEndian.PutUint32(raw[i*4:], uint32(id))
	}
	w.writeAt(int64(w.variable(VarID).begin)+base, raw)
	return nil
}

// NumRecs is the number of timesteps the file holds so far.
func (w *Writer) NumRecs() int {
	return int(w.numRecs)
}

// Close syncs and closes the file.
func (w *Writer) Close() (err error) {
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	err = w.file.Sync()
	err2 := w.file.Close()
	if err == nil {
		err = err2
	} else if err2 != nil {
		// return the first error, log the second
		logger.Error(err2)
	}
	return err
}
