package stream

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	good := []struct {
		spec  string
		read  bool
		write bool
		text  bool
	}{
		{"r", true, false, false},
		{"rb", true, false, false},
		{"rt", true, false, true},
		{"w", false, true, false},
		{"w+", true, true, false},
		{"a", false, true, false},
		{"a+t", true, true, true},
		{"+r", true, true, false},
	}
	for _, tc := range good {
		m, err := ParseMode(tc.spec)
		require.NoError(t, err, tc.spec)
		assert.Equal(t, tc.read, m.CanRead(), tc.spec)
		assert.Equal(t, tc.write, m.CanWrite(), tc.spec)
		assert.Equal(t, tc.text, m.Text, tc.spec)
		assert.Equal(t, tc.spec, m.String())
	}
	bad := []string{"", "rw", "rr", "r++", "bt", "rbb", "x", "r b", "wa"}
	for _, spec := range bad {
		_, err := ParseMode(spec)
		assert.ErrorIs(t, err, ErrBadMode, spec)
	}
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("", "r")
	assert.ErrorIs(t, err, ErrEmptyName)

	_, err = Open(filepath.Join(t.TempDir(), "missing"), "r")
	var oerr *OpenError
	require.ErrorAs(t, err, &oerr)
	assert.Contains(t, oerr.Name, "missing")

	_, err = Open(Stdin, "w")
	assert.ErrorIs(t, err, ErrBadMode)
	_, err = Open(Stdout, "r")
	assert.ErrorIs(t, err, ErrBadMode)
	_, err = OpenPipe("true", "r+")
	assert.ErrorIs(t, err, ErrBadMode)
}

func TestBinaryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalars.bin")
	w, err := Open(path, "wb")
	require.NoError(t, err)
	require.NoError(t, w.WriteByte(200))
	require.NoError(t, w.WriteChar('Q'))
	require.NoError(t, w.WriteShort(-12))
	require.NoError(t, w.WriteShort16(-300))
	require.NoError(t, w.WriteInt(-70000))
	require.NoError(t, w.WriteLong(1<<40+5))
	require.NoError(t, w.WriteFloat(1.5))
	require.NoError(t, w.WriteDouble(-2.25e100))
	require.NoError(t, w.WriteChars("O3", 4))
	require.NoError(t, w.WriteInts([]int32{1, -2, 3}))
	require.NoError(t, w.WriteShorts16([]int16{7, -8}))
	require.NoError(t, w.Close())

	r, err := Open(path, "rb")
	require.NoError(t, err)
	defer r.Close()
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(200), b)
	c, err := r.ReadChar()
	require.NoError(t, err)
	assert.Equal(t, byte('Q'), c)
	sh, err := r.ReadShort()
	require.NoError(t, err)
	assert.Equal(t, int16(-12), sh)
	sh, err = r.ReadShort16()
	require.NoError(t, err)
	assert.Equal(t, int16(-300), sh)
	i, err := r.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(-70000), i)
	l, err := r.ReadLong()
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40+5), l)
	f, err := r.ReadFloat()
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), f)
	d, err := r.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, -2.25e100, d)
	s, err := r.ReadChars(4)
	require.NoError(t, err)
	assert.Equal(t, "O3  ", s)
	ints := make([]int32, 3)
	require.NoError(t, r.ReadInts(ints))
	assert.Equal(t, []int32{1, -2, 3}, ints)
	shorts := make([]int16, 2)
	require.NoError(t, r.ReadShorts16(shorts))
	assert.Equal(t, []int16{7, -8}, shorts)

	_, err = r.ReadInt()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWireLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.bin")
	w, err := Open(path, "w")
	require.NoError(t, err)
	require.NoError(t, w.WriteShort(1))
	require.NoError(t, w.WriteShort16(2))
	require.NoError(t, w.WriteDouble(1))
	require.NoError(t, w.Close())

	r, err := Open(path, "r")
	require.NoError(t, err)
	defer r.Close()
	raw := make([]byte, 14)
	require.NoError(t, r.ReadExact(raw))
	assert.Equal(t, []byte{
		0, 0, 0, 1,
		0, 2,
		0x3f, 0xf0, 0, 0, 0, 0, 0, 0,
	}, raw)
}

func TestDirectionSwitchAndSeek(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plus.bin")
	s, err := Open(path, "w+")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.WriteInts([]int32{10, 20, 30, 40}))
	pos, err := s.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(16), pos)

	_, err = s.Seek(4, io.SeekStart)
	require.NoError(t, err)
	v, err := s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(20), v)
	assert.Equal(t, Decode, s.Direction())

	pos, err = s.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(8), pos)

	// the write lands right after the value just read
	require.NoError(t, s.WriteInt(99))
	assert.Equal(t, Encode, s.Direction())
	v, err = s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(40), v)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	all := make([]int32, 4)
	require.NoError(t, s.ReadInts(all))
	assert.Equal(t, []int32{10, 20, 99, 40}, all)
}

func TestTextRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.txt")
	w, err := Open(path, "wt")
	require.NoError(t, err)
	assert.True(t, w.IsText())
	require.NoError(t, w.WriteInt(-42))
	require.NoError(t, w.WriteDouble(3.25))
	require.NoError(t, w.WriteFloats([]float32{0.5, -1e-3}))
	require.NoError(t, w.WriteChars("NO2", 3))
	require.NoError(t, w.WriteByte(255))
	require.NoError(t, w.Close())

	r, err := Open(path, "rt")
	require.NoError(t, err)
	defer r.Close()
	line, err := r.ReadLine(80)
	require.NoError(t, err)
	assert.Equal(t, "-42", line)
	d, err := r.ReadDouble()
	require.NoError(t, err)
	assert.Equal(t, 3.25, d)
	fs := make([]float32, 2)
	require.NoError(t, r.ReadFloats(fs))
	assert.Equal(t, []float32{0.5, -1e-3}, fs)
	name, err := r.ReadChars(3)
	require.NoError(t, err)
	assert.Equal(t, "NO2", name)
	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(255), b)
}

func TestTextBadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.txt")
	w, err := Open(path, "w")
	require.NoError(t, err)
	require.NoError(t, w.WriteString("  12x\n70000\n"))
	require.NoError(t, w.Close())

	r, err := Open(path, "rt")
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadInt()
	assert.ErrorIs(t, err, ErrBadToken)
	_, err = r.ReadShort16()
	assert.ErrorIs(t, err, ErrBadToken)
}

func TestReadLineLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.txt")
	w, err := Open(path, "w")
	require.NoError(t, err)
	require.NoError(t, w.WriteString("abcdefgh\nxy\n"))
	require.NoError(t, w.Close())

	r, err := Open(path, "r")
	require.NoError(t, err)
	defer r.Close()
	line, err := r.ReadLine(5)
	require.NoError(t, err)
	assert.Equal(t, "abcd", line)
	line, err = r.ReadLine(80)
	require.NoError(t, err)
	assert.Equal(t, "efgh", line)
	line, err = r.ReadLine(80)
	require.NoError(t, err)
	assert.Equal(t, "xy", line)
	_, err = r.ReadLine(80)
	assert.ErrorIs(t, err, io.EOF)
}

func TestPipe(t *testing.T) {
	s, err := OpenPipe(`printf '7\n8\n'`, "rt")
	require.NoError(t, err)
	assert.Equal(t, Pipe, s.Kind())
	v, err := s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(7), v)
	v, err = s.ReadInt()
	require.NoError(t, err)
	assert.Equal(t, int32(8), v)
	_, err = s.Seek(0, io.SeekStart)
	assert.ErrorIs(t, err, ErrNotSeekable)
	_, err = s.Tell()
	assert.ErrorIs(t, err, ErrNotSeekable)
	assert.NoError(t, s.Close())
}

func TestWriteOnReadOnly(t *testing.T) {
	s, err := OpenPipe("cat >/dev/null", "w")
	require.NoError(t, err)
	_, err = s.ReadInt()
	assert.ErrorIs(t, err, ErrNotReadable)
	require.NoError(t, s.WriteString("ignored"))
	assert.NoError(t, s.Close())
}

func TestClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.bin")
	s, err := Open(path, "w+")
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.WriteInt(1), ErrClosed)
	_, err = s.ReadInt()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Tell()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Flush(), ErrClosed)
	assert.ErrorIs(t, s.Close(), ErrClosed)
}

func TestStandardStreamClose(t *testing.T) {
	s, err := Open(Stdout, "w")
	require.NoError(t, err)
	_, err = s.Tell()
	assert.ErrorIs(t, err, ErrNotSeekable)
	require.NoError(t, s.Close())

	// the process's stdout must still be usable
	s, err = Open(Stdout, "w")
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestSocketInvariants(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	_, err := NewSocket(a, "peer", 0, "r+", 16)
	assert.ErrorIs(t, err, ErrBadSocket)
	_, err = NewSocket(a, "peer", 1, "r+", 0)
	assert.ErrorIs(t, err, ErrBadSocket)
	_, err = NewSocket(a, "", 1, "r+", 16)
	assert.ErrorIs(t, err, ErrEmptyName)
}

func TestSocketChunking(t *testing.T) {
	a, b := net.Pipe()
	peer, err := NewSocket(b, "peer", 4000, "r+", 64)
	require.NoError(t, err)
	s, err := NewSocket(a, "local", 4000, "r+", 3)
	require.NoError(t, err)
	assert.Equal(t, Socket, s.Kind())
	assert.Equal(t, 3, s.ChunkSize())
	assert.Equal(t, 4000, s.Port())

	go func() {
		_ = peer.WriteInts([]int32{1, 2, 3, 4, 5})
		_ = peer.WriteString("hello")
		_ = peer.Close()
	}()

	got := make([]int32, 5)
	require.NoError(t, s.ReadInts(got))
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, got)

	buf := make([]byte, 10)
	n, err := s.ReadUpTo(buf)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 3)
	assert.Positive(t, n)

	rest := make([]int32, 10)
	err = s.ReadInts(rest)
	var perr *PartialError
	require.True(t, errors.As(err, &perr), "%v", err)
	assert.Equal(t, 10, perr.Total)
	assert.Less(t, perr.Done, 10)
	require.NoError(t, s.Close())
}

func TestSocketPartialCount(t *testing.T) {
	a, b := net.Pipe()
	peer, err := NewSocket(b, "peer", 1, "w", 64)
	require.NoError(t, err)
	s, err := NewSocket(a, "local", 1, "r", 3)
	require.NoError(t, err)
	go func() {
		_ = peer.WriteInts([]int32{1, 2, 3, 4, 5})
		_ = peer.Close()
	}()
	got := make([]int32, 10)
	err = s.ReadInts(got)
	var perr *PartialError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 5, perr.Done)
	assert.Equal(t, 10, perr.Total)
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, got[:5])

	n, err := s.ReadUpTo(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, s.Close())
}

func TestDial(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	done := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- err
			return
		}
		peer, err := NewSocket(conn, "server", port, "w", 8)
		if err != nil {
			conn.Close()
			done <- err
			return
		}
		if err := peer.WriteDoubles([]float64{1.5, -2}); err != nil {
			peer.Close()
			done <- err
			return
		}
		done <- peer.Close()
	}()

	s, err := Dial(context.Background(), "127.0.0.1", port, "r", 5)
	require.NoError(t, err)
	got := make([]float64, 2)
	require.NoError(t, s.ReadDoubles(got))
	assert.Equal(t, []float64{1.5, -2}, got)
	require.NoError(t, <-done)
	require.NoError(t, s.Close())

	_, err = Dial(context.Background(), "127.0.0.1", 0, "r", 5)
	assert.ErrorIs(t, err, ErrBadSocket)
}
