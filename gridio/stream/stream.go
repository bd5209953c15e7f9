// Package stream unifies files, pipes and sockets behind one handle with a
// binary (big-endian, XDR style) or text codec.
//
// A Stream is used by one goroutine at a time. Reads and writes may be
// interleaved: the first operation in a new direction flushes pending output
// or drops read-ahead before the codec restarts. Fixed-size reads on sockets
// block until every requested byte arrives; use ReadUpTo when the peer's
// message size is unknown.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strconv"

	"github.com/batchatco/go-native-gridio/gridio/api"
	"github.com/batchatco/go-thrower"
)

// Kind is the transport underneath a Stream.
type Kind int

const (
	File Kind = iota
	Pipe
	Socket
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Pipe:
		return "pipe"
	case Socket:
		return "socket"
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Direction is the codec direction currently active.
type Direction int

const (
	Idle Direction = iota
	Decode
	Encode
)

// Names that select the standard streams instead of a path.
const (
	Stdin  = "-stdin"
	Stdout = "-stdout"
	Stderr = "-stderr"
)

var (
	ErrEmptyName   = errors.New("empty stream name")
	ErrBadMode     = errors.New("invalid stream mode")
	ErrClosed      = errors.New("stream is closed")
	ErrNotSeekable = errors.New("stream is not seekable")
	ErrNotReadable = errors.New("stream not opened for reading")
	ErrNotWritable = errors.New("stream not opened for writing")
	ErrBadSocket   = errors.New("socket needs a positive port and chunk size")
	ErrBadToken    = errors.New("malformed text token")
)

// OpenError reports a stream that could not be opened.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open stream %q: %v", e.Name, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// PartialError reports an array or byte transfer that failed after Done of
// Total items had been moved.
type PartialError struct {
	Op    string
	Done  int
	Total int
	Err   error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s: %d of %d items transferred: %v", e.Op, e.Done, e.Total, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

type Stream struct {
	name      string
	mode      Mode
	kind      Kind
	port      int
	chunkSize int
	dir       Direction
	transport api.Transport
	file      *os.File // set only for random-access files
	cmd       *exec.Cmd
	r         *bufio.Reader
	w         *bufio.Writer
	codec     codec
	closed    bool
}

// Open opens a file, or one of the standard streams when path is Stdin,
// Stdout or Stderr.
func Open(path, mode string) (*Stream, error) {
	if path == "" {
		return nil, &OpenError{path, ErrEmptyName}
	}
	m, err := ParseMode(mode)
	if err != nil {
		return nil, &OpenError{path, err}
	}
	var std *os.File
	switch path {
	case Stdin:
		std = os.Stdin
		if !m.Read || m.Plus {
			return nil, &OpenError{path, ErrBadMode}
		}
	case Stdout, Stderr:
		std = os.Stdout
		if path == Stderr {
			std = os.Stderr
		}
		if m.Read || m.Plus {
			return nil, &OpenError{path, ErrBadMode}
		}
	}
	if std != nil {
		return newStream(path, m, File, stdTransport{std}, 0), nil
	}
	f, err := os.OpenFile(path, m.openFlags(), 0o644)
	if err != nil {
		return nil, &OpenError{path, err}
	}
	s := newStream(path, m, File, f, 0)
	s.file = f
	return s, nil
}

// OpenPipe starts command under the shell and connects to its standard
// output (mode "r") or standard input (mode "w").
func OpenPipe(command, mode string) (*Stream, error) {
	if command == "" {
		return nil, &OpenError{command, ErrEmptyName}
	}
	m, err := ParseMode(mode)
	if err != nil {
		return nil, &OpenError{command, err}
	}
	if m.Plus || m.Append {
		return nil, &OpenError{command, ErrBadMode}
	}
	cmd := exec.Command("sh", "-c", command)
	cmd.Stderr = os.Stderr
	var t api.Transport
	if m.Read {
		out, err := cmd.StdoutPipe()
		if err != nil {
			return nil, &OpenError{command, err}
		}
		t = pipeTransport{r: out, c: out}
	} else {
		cmd.Stdout = os.Stdout
		in, err := cmd.StdinPipe()
		if err != nil {
			return nil, &OpenError{command, err}
		}
		t = pipeTransport{w: in, c: in}
	}
	if err := cmd.Start(); err != nil {
		return nil, &OpenError{command, err}
	}
	s := newStream(command, m, Pipe, t, 0)
	s.cmd = cmd
	return s, nil
}

// Dial connects to host:port. No single transport call moves more than
// chunkSize bytes.
func Dial(ctx context.Context, host string, port int, mode string, chunkSize int) (*Stream, error) {
	name := net.JoinHostPort(host, strconv.Itoa(port))
	if port <= 0 || chunkSize <= 0 {
		return nil, &OpenError{name, ErrBadSocket}
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", name)
	if err != nil {
		return nil, &OpenError{name, err}
	}
	s, err := NewSocket(conn, name, port, mode, chunkSize)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// NewSocket wraps an established connection. The Stream owns conn.
func NewSocket(conn net.Conn, name string, port int, mode string, chunkSize int) (*Stream, error) {
	if name == "" {
		return nil, &OpenError{name, ErrEmptyName}
	}
	if port <= 0 || chunkSize <= 0 {
		return nil, &OpenError{name, ErrBadSocket}
	}
	m, err := ParseMode(mode)
	if err != nil {
		return nil, &OpenError{name, err}
	}
	s := newStream(name, m, Socket, chunkedTransport{conn, chunkSize}, chunkSize)
	s.port = port
	return s, nil
}

func newStream(name string, m Mode, kind Kind, t api.Transport, chunkSize int) *Stream {
	s := &Stream{
		name:      name,
		mode:      m,
		kind:      kind,
		chunkSize: chunkSize,
		transport: t,
	}
	if kind == Socket {
		s.r = bufio.NewReaderSize(t, chunkSize)
		s.w = bufio.NewWriterSize(t, chunkSize)
	} else {
		s.r = bufio.NewReader(t)
		s.w = bufio.NewWriter(t)
	}
	if m.Text {
		s.codec = textCodec{}
	} else {
		s.codec = binaryCodec{}
	}
	return s
}

func (s *Stream) Name() string         { return s.name }
func (s *Stream) Mode() Mode           { return s.mode }
func (s *Stream) Kind() Kind           { return s.kind }
func (s *Stream) Port() int            { return s.port }
func (s *Stream) ChunkSize() int       { return s.chunkSize }
func (s *Stream) Direction() Direction { return s.dir }
func (s *Stream) IsText() bool         { return s.mode.Text }
func (s *Stream) IsClosed() bool       { return s.closed }

// Close flushes pending output and closes the transport. The Stream is
// unusable afterwards even when an error is returned.
func (s *Stream) Close() error {
	if s.closed {
		return ErrClosed
	}
	var err error
	if s.dir == Encode {
		err = s.w.Flush()
	}
	if cerr := s.transport.Close(); err == nil {
		err = cerr
	}
	if s.cmd != nil {
		if werr := s.cmd.Wait(); err == nil {
			err = werr
		}
	}
	s.closed = true
	s.transport = nil
	s.file = nil
	s.cmd = nil
	s.r = nil
	s.w = nil
	return err
}

// Flush writes any buffered output to the transport.
func (s *Stream) Flush() error {
	if s.closed {
		return ErrClosed
	}
	if s.dir != Encode {
		return nil
	}
	return s.w.Flush()
}

// Seek sets the position of a random-access file stream.
func (s *Stream) Seek(offset int64, whence int) (pos int64, err error) {
	defer thrower.RecoverError(&err)
	s.mustSeekable()
	switch s.dir {
	case Encode:
		thrower.ThrowIfError(s.w.Flush())
	case Decode:
		if whence == io.SeekCurrent {
			offset -= int64(s.r.Buffered())
		}
	}
	s.r.Reset(s.transport)
	s.dir = Idle
	pos, err = s.file.Seek(offset, whence)
	thrower.ThrowIfError(err)
	return pos, nil
}

// Tell returns the logical position of a random-access file stream.
func (s *Stream) Tell() (pos int64, err error) {
	defer thrower.RecoverError(&err)
	s.mustSeekable()
	pos, err = s.file.Seek(0, io.SeekCurrent)
	thrower.ThrowIfError(err)
	switch s.dir {
	case Encode:
		pos += int64(s.w.Buffered())
	case Decode:
		pos -= int64(s.r.Buffered())
	}
	return pos, nil
}

func (s *Stream) mustOpen() {
	if s.closed {
		thrower.Throw(ErrClosed)
	}
}

func (s *Stream) mustSeekable() {
	s.mustOpen()
	if s.file == nil {
		thrower.Throw(ErrNotSeekable)
	}
}

// decoding switches the stream to reading.
func (s *Stream) decoding() {
	s.mustOpen()
	if !s.mode.CanRead() {
		thrower.Throw(ErrNotReadable)
	}
	switch s.dir {
	case Decode:
		return
	case Encode:
		thrower.ThrowIfError(s.w.Flush())
		if s.file != nil {
			s.r.Reset(s.transport)
		}
	}
	s.dir = Decode
}

// encoding switches the stream to writing. Read-ahead on a file is given
// back by seeking; a socket keeps it, since its two directions are independent.
func (s *Stream) encoding() {
	s.mustOpen()
	if !s.mode.CanWrite() {
		thrower.Throw(ErrNotWritable)
	}
	switch s.dir {
	case Encode:
		return
	case Decode:
		if s.file != nil {
			if n := s.r.Buffered(); n > 0 {
				_, err := s.file.Seek(-int64(n), io.SeekCurrent)
				thrower.ThrowIfError(err)
			}
			s.r.Reset(s.transport)
		}
	}
	s.w.Reset(s.transport)
	s.dir = Encode
}

type stdTransport struct {
	f *os.File
}

func (t stdTransport) Read(p []byte) (int, error)  { return t.f.Read(p) }
func (t stdTransport) Write(p []byte) (int, error) { return t.f.Write(p) }

// Close leaves the process's standard descriptors open.
func (t stdTransport) Close() error { return nil }

type pipeTransport struct {
	r io.Reader
	w io.Writer
	c io.Closer
}

func (t pipeTransport) Read(p []byte) (int, error) {
	if t.r == nil {
		return 0, ErrNotReadable
	}
	return t.r.Read(p)
}

func (t pipeTransport) Write(p []byte) (int, error) {
	if t.w == nil {
		return 0, ErrNotWritable
	}
	return t.w.Write(p)
}

func (t pipeTransport) Close() error { return t.c.Close() }

// chunkedTransport never moves more than max bytes in one call.
type chunkedTransport struct {
	api.Transport
	max int
}

func (t chunkedTransport) Read(p []byte) (int, error) {
	if len(p) > t.max {
		p = p[:t.max]
	}
	return t.Transport.Read(p)
}

func (t chunkedTransport) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		n := min(len(p), t.max)
		m, err := t.Transport.Write(p[:n])
		written += m
		if err != nil {
			return written, err
		}
		p = p[n:]
	}
	return written, nil
}
