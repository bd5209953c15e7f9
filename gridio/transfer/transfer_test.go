package transfer

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/stream"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func message() *Message {
	h := &header.Header{
		FileType: header.Gridded,
		NCols:    3,
		NRows:    2,
		NLays:    1,
		NThik:    1,
		GridType: header.LatLon,
		VertType: header.VGSigmaPH,
		SDate:    2021100,
		STime:    120000,
		TStep:    10000,
		MxRec:    2,
		XOrig:    10,
		YOrig:    40,
		XCell:    0.25,
		YCell:    0.25,
		VGTop:    10000,
		VGLevels: []float32{1, 0.99},
		GridName: "SUB",
		Vars: []header.Variable{
			{Name: "O3", Units: "ppmV", Desc: "ozone", Type: header.Real},
		},
	}
	spec := subset.Spec{VarCount: 1}
	spec.Bounds[subset.Timestep] = [2]int{0, 1}
	spec.Bounds[subset.Row] = [2]int{0, 1}
	spec.Bounds[subset.Column] = [2]int{0, 2}
	values := make([]float32, subset.Size(&spec))
	for i := range values {
		values[i] = float32(i % 3)
	}
	return &Message{Header: h, Spec: spec, Names: []string{"O3"}, Values: values}
}

func roundTrip(t *testing.T, msg *Message, codec Codec) (*Message, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.bin")
	w, err := stream.Open(path, "wb")
	require.NoError(t, err)
	require.NoError(t, Send(w, msg, codec))
	require.NoError(t, w.Close())

	r, err := stream.Open(path, "rb")
	require.NoError(t, err)
	defer r.Close()
	got, err := Receive(r)
	require.NoError(t, err)
	return got, path
}

func TestRoundTrip(t *testing.T) {
	for _, codec := range []Codec{None, S2, Zstd, LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			msg := message()
			got, _ := roundTrip(t, msg, codec)
			assert.Equal(t, msg, got)
		})
	}
}

func TestLargePayload(t *testing.T) {
	msg := message()
	msg.Header.NCols = 300
	msg.Spec.Bounds[subset.Column] = [2]int{0, 299}
	msg.Values = make([]float32, subset.Size(&msg.Spec))
	for i := range msg.Values {
		msg.Values[i] = float32(i / 50)
	}
	for _, codec := range []Codec{S2, Zstd, LZ4} {
		got, path := roundTrip(t, msg, codec)
		assert.Equal(t, msg.Values, got.Values, codec)
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Less(t, info.Size(), int64(4*len(msg.Values)), codec)
	}
}

func TestChecksum(t *testing.T) {
	_, path := roundTrip(t, message(), None)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := stream.Open(path, "rb")
	require.NoError(t, err)
	defer r.Close()
	_, err = Receive(r)
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestBadFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("JUNKJUNKJUNK"), 0o644))
	r, err := stream.Open(path, "rb")
	require.NoError(t, err)
	_, err = Receive(r)
	assert.ErrorIs(t, err, ErrBadMagic)
	require.NoError(t, r.Close())

	require.NoError(t, os.WriteFile(path, []byte("GRDX\x07\x00"), 0o644))
	r, err = stream.Open(path, "rb")
	require.NoError(t, err)
	_, err = Receive(r)
	assert.ErrorIs(t, err, ErrVersion)
	require.NoError(t, r.Close())

	msg := message()
	msg.Values = msg.Values[1:]
	w, err := stream.Open(path, "wb")
	require.NoError(t, err)
	assert.ErrorIs(t, Send(w, msg, None), ErrValueCount)
	require.NoError(t, w.Close())
}

func TestSocket(t *testing.T) {
	a, b := net.Pipe()
	sender, err := stream.NewSocket(a, "sender", 7000, "w", 64)
	require.NoError(t, err)
	receiver, err := stream.NewSocket(b, "receiver", 7000, "r", 64)
	require.NoError(t, err)

	msg := message()
	done := make(chan error, 1)
	go func() {
		done <- Send(sender, msg, Zstd)
		sender.Close()
	}()
	got, err := Receive(receiver)
	require.NoError(t, err)
	require.NoError(t, <-done)
	assert.Equal(t, msg, got)
	receiver.Close()
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)
	_, err = ParseCodec("gzip")
	assert.ErrorIs(t, err, ErrUnknownCodec)
	assert.Equal(t, "Codec(9)", Codec(9).String())
}
