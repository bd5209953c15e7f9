package gridio

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/sirupsen/logrus"
)

var (
	ErrClosed      = errors.New("file is closed")
	ErrNotReadable = errors.New("file is not open for reading")
	ErrNotWritable = errors.New("file is not open for writing")
	ErrShortBuffer = container.ErrShortBuffer
)

// OpenError reports a file that could not be opened. Nothing is left
// assigned or open when it is returned.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Access names the file, variable, timestep and window of a failed read or
// write. Window bounds are 1-based and inclusive.
type Access struct {
	File     string
	Variable string
	Date     int32
	Time     int32
	Window   container.Window
}

func (a *Access) String() string {
	w := a.Window
	return fmt.Sprintf("%s variable %s at %07d:%06d layers %d-%d rows %d-%d cols %d-%d",
		a.File, a.Variable, a.Date, a.Time,
		w.Layers[0], w.Layers[1], w.Rows[0], w.Rows[1], w.Cols[0], w.Cols[1])
}

func (a *Access) fields() logrus.Fields {
	return logrus.Fields{
		"file":     a.File,
		"variable": a.Variable,
		"date":     a.Date,
		"time":     a.Time,
		"window":   fmt.Sprint(a.Window.Layers, a.Window.Rows, a.Window.Cols),
	}
}

type ReadError struct {
	Access
	Err error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Access.String(), e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

type WriteError struct {
	Access
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Access.String(), e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
