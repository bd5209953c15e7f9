package gridio

import (
	"errors"
	"io/fs"
	"os"

	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/station"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/sirupsen/logrus"
)

// Descriptor is an open grid file: its logical name, its path and its
// header after overrides and repair.
type Descriptor struct {
	session *Session
	name    string
	path    string
	h       *header.Header
	reader  *container.File
	writer  *container.Writer
}

func (s *Session) openFailed(path, mode string, err error) error {
	s.logger.WithFields(logrus.Fields{"file": path, "mode": mode}).Errorf("open failed: %v", err)
	return &OpenError{Path: path, Err: err}
}

// OpenForReading opens a grid file, applies the session overrides to its
// header, repairs it and validates it. On failure nothing stays assigned
// or open.
func (s *Session) OpenForReading(path string) (*Descriptor, error) {
	if s.closed {
		return nil, &OpenError{Path: path, Err: ErrSessionClosed}
	}
	name, err := s.registry.Assign(path, "r")
	if err != nil {
		return nil, s.openFailed(path, "r", err)
	}
	var f *container.File
	ok := false
	defer func() {
		if ok {
			return
		}
		if f != nil {
			f.Close()
		}
		s.registry.Unassign(name)
	}()

	f, err = container.Open(path)
	if err != nil {
		return nil, s.openFailed(path, "r", err)
	}
	h := f.Header()
	if err := header.ApplyOverrides(h, &s.overrides); err != nil {
		return nil, s.openFailed(path, "r", err)
	}
	if !header.Repair(h, &s.overrides) {
		return nil, s.openFailed(path, "r", header.Check(h))
	}
	d := &Descriptor{session: s, name: name, path: path, h: h, reader: f}
	s.open[d] = struct{}{}
	ok = true
	return d, nil
}

// OpenForWriting creates a grid file for h, replacing any file already at
// path. h must be valid.
func (s *Session) OpenForWriting(path string, h *header.Header) (*Descriptor, error) {
	if s.closed {
		return nil, &OpenError{Path: path, Err: ErrSessionClosed}
	}
	if err := header.Check(h); err != nil {
		return nil, s.openFailed(path, "w", err)
	}
	name, err := s.registry.Assign(path, "w")
	if err != nil {
		return nil, s.openFailed(path, "w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.registry.Unassign(name)
		return nil, s.openFailed(path, "w", err)
	}
	w, err := container.Create(path, h)
	if err != nil {
		s.registry.Unassign(name)
		return nil, s.openFailed(path, "w", err)
	}
	d := &Descriptor{session: s, name: name, path: path, h: h.Clone(), writer: w}
	s.open[d] = struct{}{}
	return d, nil
}

// Close closes the file and frees its logical name.
func (d *Descriptor) Close() error {
	if d.session == nil {
		return ErrClosed
	}
	var err error
	if d.reader != nil {
		err = d.reader.Close()
	}
	if d.writer != nil {
		err = d.writer.Close()
	}
	d.session.registry.Unassign(d.name)
	delete(d.session.open, d)
	d.session = nil
	d.reader, d.writer = nil, nil
	return err
}

// Header returns a copy of the header.
func (d *Descriptor) Header() *header.Header {
	return d.h.Clone()
}

// LogicalName is the registry name of the file.
func (d *Descriptor) LogicalName() string {
	return d.name
}

func (d *Descriptor) Path() string {
	return d.path
}

// Writable reports whether the file was opened for writing.
func (d *Descriptor) Writable() bool {
	return d.writer != nil
}

func (d *Descriptor) mustRead() error {
	switch {
	case d.session == nil:
		return ErrClosed
	case d.reader == nil:
		return ErrNotReadable
	}
	return nil
}

func (d *Descriptor) mustWrite() error {
	switch {
	case d.session == nil:
		return ErrClosed
	case d.writer == nil:
		return ErrNotWritable
	}
	return nil
}

func (d *Descriptor) fullWindow() container.Window {
	return container.Window{
		Layers: [2]int{1, int(d.h.NLays)},
		Rows:   [2]int{1, int(d.h.NRows)},
		Cols:   [2]int{1, int(d.h.NCols)},
	}
}

func (d *Descriptor) access(variable string, date, time int32, w container.Window) Access {
	return Access{File: d.path, Variable: variable, Date: date, Time: time, Window: w}
}

func (d *Descriptor) readFailed(a Access, err error) error {
	if d.session != nil {
		d.session.logger.WithFields(a.fields()).Errorf("read failed: %v", err)
	}
	return &ReadError{Access: a, Err: err}
}

func (d *Descriptor) writeFailed(a Access, err error) error {
	if d.session != nil {
		d.session.logger.WithFields(a.fields()).Errorf("write failed: %v", err)
	}
	return &WriteError{Access: a, Err: err}
}

// ValidateSubset checks spec and the optional variable names against the
// file.
func (d *Descriptor) ValidateSubset(spec *subset.Spec, names []string) error {
	return header.ValidateSubset(d.h, spec, names)
}

// ClampSubset forces spec into the extents of the file.
func (d *Descriptor) ClampSubset(spec *subset.Spec) {
	header.ClampSubset(d.h, spec)
}

// TimestepDateTime is the date and time of timestep n.
func (d *Descriptor) TimestepDateTime(n int) (date, time int32) {
	return header.TimestepDateTime(d.h, n)
}

// DeriveSubset returns the header of a file holding the given subset.
func (d *Descriptor) DeriveSubset(spec *subset.Spec, names []string) (*header.Header, error) {
	return header.DeriveSubset(d.h, spec, names)
}

// ReadVolume reads every layer, row and column of a variable at timestep n.
func (d *Descriptor) ReadVolume(name string, n int, out []float32) error {
	if err := d.mustRead(); err != nil {
		return err
	}
	date, time := d.TimestepDateTime(n)
	if err := d.reader.ReadRecord(name, date, time, out); err != nil {
		return d.readFailed(d.access(name, date, time, d.fullWindow()), err)
	}
	return nil
}

// WriteVolume stores every layer, row and column of a variable at
// timestep n.
func (d *Descriptor) WriteVolume(name string, n int, data []float32) error {
	if err := d.mustWrite(); err != nil {
		return err
	}
	date, time := d.TimestepDateTime(n)
	if err := d.writer.WriteRecord(name, date, time, data); err != nil {
		return d.writeFailed(d.access(name, date, time, d.fullWindow()), err)
	}
	return nil
}

// NewStations makes a station dataset shaped for this id-data file.
func (d *Descriptor) NewStations() (*station.Dataset, error) {
	return station.New(d.h)
}

// ReadStations fills ds with timestep n of an id-data file.
func (d *Descriptor) ReadStations(n int, ds *station.Dataset) error {
	if err := d.mustRead(); err != nil {
		return err
	}
	date, time := d.TimestepDateTime(n)
	if err := station.Read(d.reader, d.h, date, time, ds); err != nil {
		return d.readFailed(d.access(container.VarID, date, time, d.fullWindow()), err)
	}
	return nil
}

// WriteStations stores ds as timestep n of an id-data file.
func (d *Descriptor) WriteStations(n int, ds *station.Dataset) error {
	if err := d.mustWrite(); err != nil {
		return err
	}
	date, time := d.TimestepDateTime(n)
	if err := station.Write(d.writer, d.h, date, time, ds); err != nil {
		return d.writeFailed(d.access(container.VarID, date, time, d.fullWindow()), err)
	}
	return nil
}
