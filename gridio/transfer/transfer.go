// Package transfer moves an extracted subset between processes over a
// stream: the header of the file the subset would make, the subset window,
// and the values, optionally compressed.
//
// A frame is laid out as
//
//	"GRDX" version codec
//	header (see header.Serialize)
//	subset bounds (10 ints) variable count, name count, names (16 chars each)
//	raw length, packed length, xxhash64 of the raw payload (longs)
//	packed payload
//
// The raw payload is the values as big-endian float32.
package transfer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/stream"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/batchatco/go-native-gridio/internal"
	"github.com/batchatco/go-thrower"
	"github.com/cespare/xxhash/v2"
)

const (
	Magic   = "GRDX"
	Version = 1

	// MaxPayload bounds the raw length a receiver accepts.
	MaxPayload = 1 << 31
)

var (
	ErrBadMagic   = errors.New("not a subset frame")
	ErrVersion    = errors.New("unsupported frame version")
	ErrChecksum   = errors.New("payload checksum mismatch")
	ErrCorrupt    = errors.New("corrupt frame")
	ErrValueCount = errors.New("value count does not match the subset")
)

var logger = internal.NewLogger()

// Message is one extracted subset.
type Message struct {
	Header *header.Header
	Spec   subset.Spec
	Names  []string
	Values []float32
}

func check(what string, err error) {
	if err != nil {
		thrower.Throw(fmt.Errorf("%s: %w", what, err))
	}
}

func encodeValues(values []float32) []byte {
	raw := make([]byte, 4*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}
	return raw
}

func decodeValues(raw []byte) []float32 {
	values := make([]float32, len(raw)/4)
	for i := range values {
		values[i] = math.Float32frombits(binary.BigEndian.Uint32(raw[4*i:]))
	}
	return values
}

// Send writes msg to s as one frame and flushes it. A payload the codec
// cannot shrink is sent unpacked.
func Send(s *stream.Stream, msg *Message, codec Codec) (err error) {
	defer thrower.RecoverError(&err)
	if len(msg.Values) != subset.Size(&msg.Spec) {
		return fmt.Errorf("%w: %d values for a subset of %d", ErrValueCount, len(msg.Values), subset.Size(&msg.Spec))
	}
	if len(msg.Names) != 0 && len(msg.Names) != msg.Spec.VarCount {
		return fmt.Errorf("%w: %d names for %d variables", ErrValueCount, len(msg.Names), msg.Spec.VarCount)
	}
	raw := encodeValues(msg.Values)
	packed, err := codec.pack(raw)
	if errors.Is(err, errIncompressible) {
		codec, packed = None, raw
	} else {
		check("pack", err)
	}
	if codec != None && len(packed) >= len(raw) {
		codec, packed = None, raw
	}

	check("magic", s.WriteString(Magic))
	check("version", s.WriteByte(Version))
	check("codec", s.WriteByte(byte(codec)))
	check("header", header.Serialize(s, msg.Header))
	for a := subset.Timestep; a < subset.NumAxes; a++ {
		check("bounds", s.WriteInt(int32(msg.Spec.Bounds[a][subset.First])))
		check("bounds", s.WriteInt(int32(msg.Spec.Bounds[a][subset.Last])))
	}
	check("variable count", s.WriteInt(int32(msg.Spec.VarCount)))
	check("name count", s.WriteInt(int32(len(msg.Names))))
	for _, name := range msg.Names {
		check("name", s.WriteChars(name, header.NameLen))
	}
	check("raw length", s.WriteLong(int64(len(raw))))
	check("packed length", s.WriteLong(int64(len(packed))))
	check("checksum", s.WriteLong(int64(xxhash.Sum64(raw))))
	check("payload", s.WriteBytes(packed))
	check("flush", s.Flush())
	logger.Infof("sent %d values, %d of %d bytes with %v", len(msg.Values), len(packed), len(raw), codec)
	return nil
}

// Receive reads one frame from s.
func Receive(s *stream.Stream) (msg *Message, err error) {
	defer thrower.RecoverError(&err)
	magic, err := s.ReadChars(len(Magic))
	check("magic", err)
	if magic != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}
	version, err := s.ReadByte()
	check("version", err)
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrVersion, version)
	}
	b, err := s.ReadByte()
	check("codec", err)
	codec := Codec(b)
	if _, ok := codecNames[codec]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, b)
	}

	msg = &Message{}
	msg.Header, err = header.Deserialize(s)
	check("header", err)
	readInt := func(what string) int {
		v, err := s.ReadInt()
		check(what, err)
		return int(v)
	}
	for a := subset.Timestep; a < subset.NumAxes; a++ {
		msg.Spec.Bounds[a][subset.First] = readInt("bounds")
		msg.Spec.Bounds[a][subset.Last] = readInt("bounds")
	}
	msg.Spec.VarCount = readInt("variable count")
	nnames := readInt("name count")
	if nnames < 0 || nnames > header.MaxVars {
		return nil, fmt.Errorf("%w: %d names", ErrCorrupt, nnames)
	}
	for i := 0; i < nnames; i++ {
		name, err := s.ReadChars(header.NameLen)
		check("name", err)
		msg.Names = append(msg.Names, internal.Unpad(name))
	}

	readLong := func(what string) int64 {
		v, err := s.ReadLong()
		check(what, err)
		return v
	}
	rawLen := readLong("raw length")
	packedLen := readLong("packed length")
	sum := uint64(readLong("checksum"))
	if rawLen < 0 || rawLen > MaxPayload || rawLen%4 != 0 || packedLen < 0 || packedLen > MaxPayload {
		return nil, fmt.Errorf("%w: payload of %d bytes packed in %d", ErrCorrupt, rawLen, packedLen)
	}
	packed := make([]byte, packedLen)
	check("payload", s.ReadExact(packed))
	raw, err := codec.unpack(packed, int(rawLen))
	check("unpack", err)
	if xxhash.Sum64(raw) != sum {
		return nil, ErrChecksum
	}
	msg.Values = decodeValues(raw)
	if len(msg.Values) != subset.Size(&msg.Spec) {
		return nil, fmt.Errorf("%w: %d values for a subset of %d", ErrValueCount, len(msg.Values), subset.Size(&msg.Spec))
	}
	return msg, nil
}

// SetLogLevel sets the logging level, from 0 (fatal only) to 3 (info), and
// returns the old level.
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
