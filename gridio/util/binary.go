package util

import (
	"encoding/binary"
	"io"

	"github.com/batchatco/go-thrower"
)

// MustWriteBE writes data big-endian and throws if the write fails.
func MustWriteBE(w io.Writer, data any) {
	thrower.ThrowIfError(binary.Write(w, binary.BigEndian, data))
}

// MustWriteRaw wraps Write and throws an error if it fails.
func MustWriteRaw(w io.Writer, p []byte) {
	_, err := w.Write(p)
	thrower.ThrowIfError(err)
}

// MustReadBE reads big-endian data and throws if the read fails.
func MustReadBE(r io.Reader, data any) {
	thrower.ThrowIfError(binary.Read(r, binary.BigEndian, data))
}

// MustReadFull fills p completely or throws.
func MustReadFull(r io.Reader, p []byte) {
	_, err := io.ReadFull(r, p)
	thrower.ThrowIfError(err)
}

func MustRead8(r io.Reader) byte {
	var b [1]byte
	MustReadFull(r, b[:])
	return b[0]
}

// MustRead32BE reads a big-endian 32-bit word.
func MustRead32BE(r io.Reader) uint32 {
	var b [4]byte
	MustReadFull(r, b[:])
	return binary.BigEndian.Uint32(b[:])
}

// MustRead64BE reads a big-endian 64-bit word.
func MustRead64BE(r io.Reader) uint64 {
	var b [8]byte
	MustReadFull(r, b[:])
	return binary.BigEndian.Uint64(b[:])
}
