package stream

import (
	"io"

	"github.com/batchatco/go-native-gridio/internal"
	"github.com/batchatco/go-thrower"
)

func (s *Stream) readInt(width int) (v int64, err error) {
	defer thrower.RecoverError(&err)
	s.decoding()
	return s.codec.readInt(s.r, width), nil
}

func (s *Stream) writeInt(v int64, width int) (err error) {
	defer thrower.RecoverError(&err)
	s.encoding()
	s.codec.writeInt(s.w, v, width)
	return nil
}

func (s *Stream) readFloat(width int) (v float64, err error) {
	defer thrower.RecoverError(&err)
	s.decoding()
	return s.codec.readFloat(s.r, width), nil
}

func (s *Stream) writeFloat(v float64, width int) (err error) {
	defer thrower.RecoverError(&err)
	s.encoding()
	s.codec.writeFloat(s.w, v, width)
	return nil
}

// ReadByte reads an unsigned 8-bit value.
func (s *Stream) ReadByte() (byte, error) {
	v, err := s.readInt(1)
	return byte(v), err
}

func (s *Stream) WriteByte(v byte) error {
	return s.writeInt(int64(v), 1)
}

// ReadChar reads one raw character in either codec.
func (s *Stream) ReadChar() (c byte, err error) {
	defer thrower.RecoverError(&err)
	s.decoding()
	c, err = s.r.ReadByte()
	thrower.ThrowIfError(err)
	return c, nil
}

func (s *Stream) WriteChar(c byte) (err error) {
	defer thrower.RecoverError(&err)
	s.encoding()
	thrower.ThrowIfError(s.w.WriteByte(c))
	return nil
}

// ReadShort reads a short carried in a 4-byte word.
func (s *Stream) ReadShort() (int16, error) {
	v, err := s.readInt(4)
	return int16(v), err
}

func (s *Stream) WriteShort(v int16) error {
	return s.writeInt(int64(v), 4)
}

// ReadShort16 reads a short stored in exactly two big-endian bytes.
func (s *Stream) ReadShort16() (int16, error) {
	v, err := s.readInt(2)
	return int16(v), err
}

func (s *Stream) WriteShort16(v int16) error {
	return s.writeInt(int64(v), 2)
}

func (s *Stream) ReadInt() (int32, error) {
	v, err := s.readInt(4)
	return int32(v), err
}

func (s *Stream) WriteInt(v int32) error {
	return s.writeInt(int64(v), 4)
}

func (s *Stream) ReadLong() (int64, error) {
	return s.readInt(8)
}

func (s *Stream) WriteLong(v int64) error {
	return s.writeInt(v, 8)
}

func (s *Stream) ReadFloat() (float32, error) {
	v, err := s.readFloat(4)
	return float32(v), err
}

func (s *Stream) WriteFloat(v float32) error {
	return s.writeFloat(float64(v), 4)
}

func (s *Stream) ReadDouble() (float64, error) {
	return s.readFloat(8)
}

func (s *Stream) WriteDouble(v float64) error {
	return s.writeFloat(v, 8)
}

// transfer moves n items of itemSize wire bytes by calling f for each.
// Sockets move at most one chunk of items between flushes. A failure after
// the direction switch is reported as a *PartialError.
func (s *Stream) transfer(op string, n, itemSize int, write bool, f func(i int)) (err error) {
	defer thrower.RecoverError(&err)
	if write {
		s.encoding()
	} else {
		s.decoding()
	}
	per := n
	if s.kind == Socket {
		per = max(1, s.chunkSize/itemSize)
	}
	done := 0
	var ferr error
	func() {
		defer thrower.RecoverError(&ferr)
		for done < n {
			end := min(n, done+per)
			for i := done; i < end; i++ {
				f(i)
				if !write {
					done++
				}
			}
			if write {
				if s.kind == Socket {
					thrower.ThrowIfError(s.w.Flush())
				}
				done = end
			}
		}
	}()
	if ferr != nil {
		return &PartialError{Op: op, Done: done, Total: n, Err: ferr}
	}
	return nil
}

func (s *Stream) ReadShorts(p []int16) error {
	return s.transfer("read shorts", len(p), 4, false, func(i int) {
		p[i] = int16(s.codec.readInt(s.r, 4))
	})
}

func (s *Stream) WriteShorts(p []int16) error {
	return s.transfer("write shorts", len(p), 4, true, func(i int) {
		s.codec.writeInt(s.w, int64(p[i]), 4)
	})
}

func (s *Stream) ReadShorts16(p []int16) error {
	return s.transfer("read shorts", len(p), 2, false, func(i int) {
		p[i] = int16(s.codec.readInt(s.r, 2))
	})
}

func (s *Stream) WriteShorts16(p []int16) error {
	return s.transfer("write shorts", len(p), 2, true, func(i int) {
		s.codec.writeInt(s.w, int64(p[i]), 2)
	})
}

func (s *Stream) ReadInts(p []int32) error {
	return s.transfer("read ints", len(p), 4, false, func(i int) {
		p[i] = int32(s.codec.readInt(s.r, 4))
	})
}

func (s *Stream) WriteInts(p []int32) error {
	return s.transfer("write ints", len(p), 4, true, func(i int) {
		s.codec.writeInt(s.w, int64(p[i]), 4)
	})
}

func (s *Stream) ReadLongs(p []int64) error {
	return s.transfer("read longs", len(p), 8, false, func(i int) {
		p[i] = s.codec.readInt(s.r, 8)
	})
}

func (s *Stream) WriteLongs(p []int64) error {
	return s.transfer("write longs", len(p), 8, true, func(i int) {
		s.codec.writeInt(s.w, p[i], 8)
	})
}

func (s *Stream) ReadFloats(p []float32) error {
	return s.transfer("read floats", len(p), 4, false, func(i int) {
		p[i] = float32(s.codec.readFloat(s.r, 4))
	})
}

func (s *Stream) WriteFloats(p []float32) error {
	return s.transfer("write floats", len(p), 4, true, func(i int) {
		s.codec.writeFloat(s.w, float64(p[i]), 4)
	})
}

func (s *Stream) ReadDoubles(p []float64) error {
	return s.transfer("read doubles", len(p), 8, false, func(i int) {
		p[i] = s.codec.readFloat(s.r, 8)
	})
}

func (s *Stream) WriteDoubles(p []float64) error {
	return s.transfer("write doubles", len(p), 8, true, func(i int) {
		s.codec.writeFloat(s.w, p[i], 8)
	})
}

// ReadExact fills p, blocking until every byte has arrived.
func (s *Stream) ReadExact(p []byte) error {
	return s.transfer("read bytes", len(p), 1, false, func(i int) {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		thrower.ThrowIfError(err)
		p[i] = c
	})
}

// WriteBytes writes p as raw bytes.
func (s *Stream) WriteBytes(p []byte) error {
	return s.transfer("write bytes", len(p), 1, true, func(i int) {
		thrower.ThrowIfError(s.w.WriteByte(p[i]))
	})
}

// WriteString writes the raw bytes of str.
func (s *Stream) WriteString(str string) error {
	return s.WriteBytes([]byte(str))
}

// ReadChars reads a fixed-width character field.
func (s *Stream) ReadChars(width int) (string, error) {
	p := make([]byte, width)
	if err := s.ReadExact(p); err != nil {
		return "", err
	}
	return string(p), nil
}

// WriteChars writes str blank-padded or truncated to width.
func (s *Stream) WriteChars(str string, width int) error {
	return s.WriteString(internal.Pad(str, width))
}

// ReadUpTo returns whatever is available, at most len(p) bytes and at most
// one chunk on a socket. It returns 0, io.EOF at end of stream.
func (s *Stream) ReadUpTo(p []byte) (n int, err error) {
	defer thrower.RecoverError(&err)
	s.decoding()
	if len(p) == 0 {
		return 0, nil
	}
	if s.kind == Socket && len(p) > s.chunkSize {
		p = p[:s.chunkSize]
	}
	for n == 0 {
		n, err = s.r.Read(p)
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
	}
	return n, nil
}

// ReadLine reads at most n-1 bytes, stopping after a newline. The newline
// is consumed but not returned. io.EOF is returned only when nothing was
// read.
func (s *Stream) ReadLine(n int) (line string, err error) {
	defer thrower.RecoverError(&err)
	s.decoding()
	buf := make([]byte, 0, max(n-1, 0))
	for len(buf) < n-1 {
		c, err := s.r.ReadByte()
		if err == io.EOF {
			if len(buf) == 0 {
				return "", io.EOF
			}
			break
		}
		thrower.ThrowIfError(err)
		if c == '\n' {
			break
		}
		buf = append(buf, c)
	}
	return string(buf), nil
}
