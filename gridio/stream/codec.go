package stream

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/batchatco/go-native-gridio/gridio/util"
	"github.com/batchatco/go-thrower"
)

// Text tokens longer than this are rejected.
const maxToken = 64

// codec encodes scalars. Widths are in bytes on the binary wire; the text
// codec uses them only to range-check parsed values.
type codec interface {
	writeInt(w *bufio.Writer, v int64, width int)
	readInt(r *bufio.Reader, width int) int64
	writeFloat(w *bufio.Writer, v float64, width int)
	readFloat(r *bufio.Reader, width int) float64
}

type binaryCodec struct{}

func (binaryCodec) writeInt(w *bufio.Writer, v int64, width int) {
	var b [8]byte
	switch width {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.BigEndian.PutUint16(b[:], uint16(v))
	case 4:
		binary.BigEndian.PutUint32(b[:], uint32(v))
	case 8:
		binary.BigEndian.PutUint64(b[:], uint64(v))
	default:
		thrower.Throw(errors.New("bad integer width"))
	}
	util.MustWriteRaw(w, b[:width])
}

func (binaryCodec) readInt(r *bufio.Reader, width int) int64 {
	switch width {
	case 1:
		return int64(util.MustRead8(r))
	case 2:
		var v int16
		util.MustReadBE(r, &v)
		return int64(v)
	case 4:
		return int64(int32(util.MustRead32BE(r)))
	case 8:
		return int64(util.MustRead64BE(r))
	}
	thrower.Throw(errors.New("bad integer width"))
	return 0
}

func (binaryCodec) writeFloat(w *bufio.Writer, v float64, width int) {
	if width == 4 {
		util.MustWriteBE(w, float32(v))
		return
	}
	util.MustWriteBE(w, v)
}

func (binaryCodec) readFloat(r *bufio.Reader, width int) float64 {
	if width == 4 {
		return float64(math.Float32frombits(util.MustRead32BE(r)))
	}
	return math.Float64frombits(util.MustRead64BE(r))
}

// textCodec writes one token per value, each followed by a newline.
type textCodec struct{}

func (textCodec) writeInt(w *bufio.Writer, v int64, _ int) {
	var b [24]byte
	out := strconv.AppendInt(b[:0], v, 10)
	util.MustWriteRaw(w, append(out, '\n'))
}

func (textCodec) readInt(r *bufio.Reader, width int) int64 {
	tok := readToken(r)
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		thrower.Throw(errors.Join(ErrBadToken, err))
	}
	if !fits(v, width) {
		thrower.Throw(fmt.Errorf("%w: %s out of range for %d bytes", ErrBadToken, tok, width))
	}
	return v
}

// fits checks a parsed value against the wire width; single bytes are
// unsigned.
func fits(v int64, width int) bool {
	switch width {
	case 1:
		return v >= 0 && v <= math.MaxUint8
	case 2:
		return v >= math.MinInt16 && v <= math.MaxInt16
	case 4:
		return v >= math.MinInt32 && v <= math.MaxInt32
	}
	return true
}

func (textCodec) writeFloat(w *bufio.Writer, v float64, width int) {
	var b [32]byte
	out := strconv.AppendFloat(b[:0], v, 'g', -1, width*8)
	util.MustWriteRaw(w, append(out, '\n'))
}

func (textCodec) readFloat(r *bufio.Reader, width int) float64 {
	v, err := strconv.ParseFloat(readToken(r), width*8)
	if err != nil {
		thrower.Throw(errors.Join(ErrBadToken, err))
	}
	return v
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// readToken skips leading white space, then reads up to and including one
// delimiter. End of input terminates a non-empty token.
func readToken(r *bufio.Reader) string {
	var c byte
	var err error
	for {
		c, err = r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			thrower.Throw(err)
		}
		if !isSpace(c) {
			break
		}
	}
	tok := []byte{c}
	for {
		c, err = r.ReadByte()
		if err == io.EOF {
			break
		}
		thrower.ThrowIfError(err)
		if isSpace(c) {
			break
		}
		if len(tok) == maxToken {
			thrower.Throw(ErrBadToken)
		}
		tok = append(tok, c)
	}
	return string(tok)
}
