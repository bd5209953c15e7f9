// Package api holds the small interfaces shared by the grid I/O packages.
package api

import (
	"io"
)

type ReadSeekerCloser interface {
	io.ReadSeeker
	io.Closer
}

// Transport is the byte channel underneath a stream: a file, a pipe to a
// child process, or a socket.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}
