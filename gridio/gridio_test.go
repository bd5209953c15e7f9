package gridio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/registry"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridHeader() *header.Header {
	return &header.Header{
		FileType: header.Gridded,
		NCols:    10,
		NRows:    8,
		NLays:    1,
		NThik:    1,
		GridType: header.Lambert,
		VertType: header.VGSigmaPH,
		SDate:    2018182,
		STime:    0,
		TStep:    10000,
		MxRec:    24,
		PAlp:     30,
		PBet:     60,
		PGam:     -90,
		XCent:    -90,
		YCent:    40,
		XOrig:    -2556000,
		YOrig:    -1728000,
		XCell:    12000,
		YCell:    12000,
		VGTop:    5000,
		VGLevels: []float32{1, 0.995},
		GridName: "LAM_12",
		Vars: []header.Variable{
			{Name: "O3", Units: "ppmV", Desc: "ozone", Type: header.Real},
			{Name: "NO2", Units: "ppmV", Desc: "nitrogen dioxide", Type: header.Real},
		},
	}
}

// cell is the value written at timestep t, variable v, row r, column c.
func cell(t, v, r, c int) float32 {
	return float32(t*1000 + v*100 + r*10 + c)
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	var logs bytes.Buffer
	opts = append([]Option{WithoutEnvironment(), WithLogOutput(&logs)}, opts...)
	s, err := NewSession(opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// writeGrid fills the first steps timesteps of a new file.
func writeGrid(t *testing.T, s *Session, h *header.Header, steps int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.nc")
	d, err := s.OpenForWriting(path, h)
	require.NoError(t, err)
	n := int(h.NLays * h.NRows * h.NCols)
	for step := 0; step < steps; step++ {
		for v, vr := range h.Vars {
			data := make([]float32, n)
			for i := range data {
				r, c := (i/int(h.NCols))%int(h.NRows), i%int(h.NCols)
				data[i] = cell(step, v, r, c)
			}
			require.NoError(t, d.WriteVolume(vr.Name, step, data))
		}
	}
	require.NoError(t, d.Close())
	return path
}

func TestSessionActive(t *testing.T) {
	s := newSession(t)
	_, err := NewSession()
	assert.ErrorIs(t, err, ErrSessionActive)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), ErrSessionClosed)

	s2, err := NewSession(WithoutEnvironment())
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestScenarioWindow(t *testing.T) {
	s := newSession(t)
	path := writeGrid(t, s, gridHeader(), 2)

	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	spec := &subset.Spec{VarCount: 1}
	spec.Bounds[subset.Row] = [2]int{2, 5}
	spec.Bounds[subset.Column] = [2]int{1, 4}
	require.NoError(t, d.ValidateSubset(spec, nil))
	require.Equal(t, 16, subset.Size(spec))

	out := make([]float32, 16)
	require.NoError(t, d.Extract(spec, nil, out))
	var want []float32
	for r := 2; r <= 5; r++ {
		for c := 1; c <= 4; c++ {
			want = append(want, cell(0, 0, r, c))
		}
	}
	assert.Equal(t, want, out)
}

func TestExtractFull(t *testing.T) {
	s := newSession(t)
	h := gridHeader()
	h.MxRec = 3
	path := writeGrid(t, s, h, 3)

	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	spec := subset.Full(d.Header().Extents())
	out := make([]float32, subset.Size(&spec))
	require.NoError(t, d.Extract(&spec, nil, out))

	volume := make([]float32, 80)
	ix := subset.IndexerFor(&spec)
	for step := 0; step < 3; step++ {
		for v, name := range []string{"O3", "NO2"} {
			require.NoError(t, d.ReadVolume(name, step, volume))
			at := ix.ChunkOffset(step, v)
			assert.Equal(t, volume, out[at:at+ix.ChunkLen()])
		}
	}

	// names pick variables in the order given
	spec.VarCount = 1
	spec.Bounds[subset.Timestep] = [2]int{2, 2}
	one := make([]float32, 80)
	require.NoError(t, d.Extract(&spec, []string{" NO2"}, one))
	assert.Equal(t, cell(2, 1, 7, 9), one[79])

	assert.ErrorIs(t, d.Extract(&spec, []string{"SO2"}, one), header.ErrNoSuchVariable)
	assert.ErrorIs(t, d.Extract(&spec, nil, one[:10]), ErrShortBuffer)
}

func TestExtractFailure(t *testing.T) {
	s := newSession(t)
	path := writeGrid(t, s, gridHeader(), 2)
	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	// step 3 was never written
	spec := subset.Full(d.Header().Extents())
	spec.Bounds[subset.Timestep] = [2]int{0, 3}
	out := make([]float32, subset.Size(&spec))
	err = d.Extract(&spec, nil, out)
	var re *ReadError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, container.ErrStepNotAvailable)
	assert.Equal(t, "O3", re.Variable)
	assert.Equal(t, int32(2018182), re.Date)
	assert.Equal(t, int32(20000), re.Time)
	// the first two steps arrived before the failure
	assert.Equal(t, cell(1, 1, 7, 9), out[4*80-1])
	assert.Equal(t, 1, s.Notices().Errors)
}

func TestComputeRange(t *testing.T) {
	s := newSession(t)
	h := gridHeader()
	h.MxRec = 2
	path := filepath.Join(t.TempDir(), "range.nc")
	d, err := s.OpenForWriting(path, h)
	require.NoError(t, err)
	for step := 0; step < 2; step++ {
		o3 := make([]float32, 80)
		no2 := make([]float32, 80)
		for i := range o3 {
			o3[i] = float32(step*100 + i)
			no2[i] = header.MissingReal
		}
		o3[5] = header.MissingReal
		o3[6] = -5e36 // above the sentinel
		require.NoError(t, d.WriteVolume("O3", step, o3))
		require.NoError(t, d.WriteVolume("NO2", step, no2))
	}
	require.NoError(t, d.Close())

	d, err = s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	ranges := make([]Range, 2)
	require.NoError(t, d.ComputeRange(nil, nil, ranges))
	assert.Equal(t, Range{Min: -5e36, Max: 179}, ranges[0])
	assert.Equal(t, Range{}, ranges[1])

	spec := subset.Full(d.Header().Extents())
	spec.Bounds[subset.Timestep] = [2]int{1, 1}
	spec.Bounds[subset.Row] = [2]int{0, 0}
	spec.VarCount = 1
	require.NoError(t, d.ComputeRange(&spec, []string{"O3"}, ranges))
	assert.Equal(t, Range{Min: -5e36, Max: 109}, ranges[0])

	assert.ErrorIs(t, d.ComputeRange(nil, nil, ranges[:1]), ErrShortBuffer)
}

func stationHeader() *header.Header {
	return &header.Header{
		FileType: header.IDData,
		NCols:    1,
		NRows:    4,
		NLays:    1,
		NThik:    1,
		GridType: header.LatLon,
		VertType: header.VGNone,
		SDate:    2020001,
		TStep:    60000,
		MxRec:    2,
		XOrig:    -125,
		YOrig:    20,
		XCell:    1,
		YCell:    1,
		VGLevels: []float32{0, 0},
		GridName: "SITES",
		Vars: []header.Variable{
			{Name: "TEMP", Units: "K", Desc: "air temperature", Type: header.Real},
			{Name: "FLAG", Units: "none", Desc: "quality flag", Type: header.Int},
		},
	}
}

func TestStations(t *testing.T) {
	s := newSession(t)
	h := stationHeader()
	path := filepath.Join(t.TempDir(), "sites.nc")
	w, err := s.OpenForWriting(path, h)
	require.NoError(t, err)
	for step, count := range []int{2, 3} {
		ds, err := w.NewStations()
		require.NoError(t, err)
		ds.Count = count
		for i := 0; i < count; i++ {
			ds.IDs[i] = int32(100 + i)
			ds.SetValue(ds.SlotIndex(0, 0), i, float32(280+10*step+i))
			ds.SetValue(ds.SlotIndex(1, 0), i, float32(i))
		}
		require.NoError(t, w.WriteStations(step, ds))
	}
	require.NoError(t, w.Close())

	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	ds, err := d.NewStations()
	require.NoError(t, err)
	require.NoError(t, d.ReadStations(1, ds))
	assert.Equal(t, 3, ds.Count)
	assert.Equal(t, []int32{100, 101, 102}, ds.IDs[:3])

	ranges := make([]Range, 2)
	require.NoError(t, d.ComputeRange(nil, nil, ranges))
	assert.Equal(t, Range{Min: 280, Max: 292}, ranges[0])
	assert.Equal(t, Range{Min: 0, Max: 2}, ranges[1])

	// irregular files extract whole timesteps
	spec := subset.Full(d.Header().Extents())
	out := make([]float32, subset.Size(&spec))
	require.NoError(t, d.Extract(&spec, nil, out))
	assert.Equal(t, []float32{280, 281, header.MissingReal, header.MissingReal}, out[:4])

	spec.Bounds[subset.Row] = [2]int{1, 2}
	assert.ErrorIs(t, d.Extract(&spec, nil, out), subset.ErrIrregular)
}

func TestOpenFailure(t *testing.T) {
	s := newSession(t, WithRegistryCapacity(2))
	_, err := s.OpenForReading(filepath.Join(t.TempDir(), "missing.nc"))
	var oe *OpenError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, 0, s.Registry().Len())

	junk := filepath.Join(t.TempDir(), "junk.nc")
	require.NoError(t, os.WriteFile(junk, []byte("not a grid file"), 0o644))
	_, err = s.OpenForReading(junk)
	assert.ErrorIs(t, err, container.ErrNotCDF)
	assert.Equal(t, 0, s.Registry().Len())
	assert.Equal(t, 2, s.Notices().Errors)

	bad := gridHeader()
	bad.NCols = 0
	_, err = s.OpenForWriting(filepath.Join(t.TempDir(), "bad.nc"), bad)
	assert.ErrorIs(t, err, header.ErrInvalid)
	assert.Equal(t, 0, s.Registry().Len())
}

func TestRegistryFull(t *testing.T) {
	s := newSession(t, WithRegistryCapacity(1))
	path := writeGrid(t, s, gridHeader(), 1)
	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	assert.Equal(t, registry.Name(0), d.LogicalName())

	_, err = s.OpenForReading(path)
	assert.ErrorIs(t, err, registry.ErrFull)

	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)
	assert.ErrorIs(t, d.Extract(&subset.Spec{}, nil, nil), ErrClosed)
	d, err = s.OpenForReading(path)
	require.NoError(t, err)
	assert.ErrorIs(t, d.WriteVolume("O3", 0, nil), ErrNotWritable)
}

func TestRepairOnOpen(t *testing.T) {
	s := newSession(t)
	h := gridHeader()
	h.VertType = header.VGPressure
	h.VGTop = 50
	h.VGLevels = []float32{100, 90}
	path := writeGrid(t, s, h, 1)

	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()
	got := d.Header()
	assert.Equal(t, float32(50000), got.VGTop)
	assert.Equal(t, []float32{100000, 90000}, got.VGLevels)
	assert.Equal(t, 2, s.Notices().Warnings)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	v.Set("XORIG", "-2500000")
	v.Set(KeyUnitRepair, "false")
	s := newSession(t, WithViper(v))
	assert.True(t, s.Overrides().DisableUnitRepair)

	h := gridHeader()
	h.VertType = header.VGPressure
	h.VGTop = 50
	h.VGLevels = []float32{100, 90}
	path := writeGrid(t, s, h, 1)
	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, -2500000.0, d.Header().XOrig)
	assert.Equal(t, float32(50), d.Header().VGTop)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GRIDIO_P_GAM", "-97.5")
	s, err := NewSession(WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, -97.5, s.Overrides().Params["P_GAM"])
}

func TestBadConfig(t *testing.T) {
	for _, kv := range [][2]string{
		{"P_ALP", "north"},
		{KeyKPaMax, "2000"},
		{KeyUnitRepair, "sometimes"},
	} {
		v := viper.New()
		v.Set(kv[0], kv[1])
		_, err := NewSession(WithViper(v), WithoutEnvironment())
		assert.ErrorIs(t, err, ErrConfig, kv[0])
	}
	// a failed start leaves no session active
	s := newSession(t)
	require.NoError(t, s.Close())
}

func TestDeriveSubset(t *testing.T) {
	s := newSession(t)
	path := writeGrid(t, s, gridHeader(), 1)
	d, err := s.OpenForReading(path)
	require.NoError(t, err)
	defer d.Close()

	spec := subset.Spec{VarCount: 100}
	spec.Bounds[subset.Timestep] = [2]int{5, 50}
	spec.Bounds[subset.Row] = [2]int{-3, 2}
	d.ClampSubset(&spec)
	require.NoError(t, d.ValidateSubset(&spec, nil))

	spec.VarCount = 1
	spec.Bounds[subset.Variable] = [2]int{1, 1}
	spec.Bounds[subset.Timestep] = [2]int{3, 4}
	out, err := d.DeriveSubset(&spec, nil)
	require.NoError(t, err)
	date, time := d.TimestepDateTime(3)
	assert.Equal(t, date, out.SDate)
	assert.Equal(t, time, out.STime)
	assert.Equal(t, int32(2), out.MxRec)
	assert.Equal(t, int32(3), out.NRows)
	assert.Equal(t, []string{"NO2"}, out.VarNames())
}
