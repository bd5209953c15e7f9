package transfer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names how a payload is packed.
type Codec byte

const (
	None Codec = iota
	S2
	Zstd
	LZ4
)

var ErrUnknownCodec = errors.New("unknown codec")

var codecNames = map[Codec]string{None: "none", S2: "s2", Zstd: "zstd", LZ4: "lz4"}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Codec(%d)", byte(c))
}

// ParseCodec accepts the names String returns, in any case.
func ParseCodec(name string) (Codec, error) {
	for c, n := range codecNames {
		if strings.EqualFold(n, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

var zstdEncoders = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderCRC(false))
		if err != nil {
			panic(fmt.Sprintf("zstd encoder: %v", err))
		}
		return enc
	},
}

var zstdDecoders = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd decoder: %v", err))
		}
		return dec
	},
}

var lz4Compressors = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

func (c Codec) pack(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch c {
	case None:
		return raw, nil
	case S2:
		return s2.Encode(nil, raw), nil
	case Zstd:
		enc := zstdEncoders.Get().(*zstd.Encoder)
		defer zstdEncoders.Put(enc)
		return enc.EncodeAll(raw, nil), nil
	case LZ4:
		lc := lz4Compressors.Get().(*lz4.Compressor)
		defer lz4Compressors.Put(lc)
		dst := make([]byte, lz4.CompressBlockBound(len(raw)))
		n, err := lc.CompressBlock(raw, dst)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// incompressible input; store it as is
			return nil, errIncompressible
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, c)
}

var errIncompressible = errors.New("incompressible")

// unpack restores a payload of rawLen bytes.
func (c Codec) unpack(packed []byte, rawLen int) ([]byte, error) {
	if rawLen == 0 {
		return nil, nil
	}
	var raw []byte
	var err error
	switch c {
	case None:
		raw = packed
	case S2:
		raw, err = s2.Decode(nil, packed)
	case Zstd:
		dec := zstdDecoders.Get().(*zstd.Decoder)
		defer zstdDecoders.Put(dec)
		raw, err = dec.DecodeAll(packed, make([]byte, 0, rawLen))
	case LZ4:
		raw = make([]byte, rawLen)
		var n int
		n, err = lz4.UncompressBlock(packed, raw)
		raw = raw[:n]
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%v payload: %w", c, err)
	}
	if len(raw) != rawLen {
		return nil, fmt.Errorf("%w: %v payload holds %d bytes, expected %d", ErrCorrupt, c, len(raw), rawLen)
	}
	return raw, nil
}
