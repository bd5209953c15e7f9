package subset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var grid = Extents{Timesteps: 24, Variables: 2, Layers: 1, Rows: 8, Columns: 10}

func window(t0, t1, vars, l0, l1, r0, r1, c0, c1 int) Spec {
	return Spec{
		Bounds: [NumAxes][2]int{
			{t0, t1}, {0, vars - 1}, {l0, l1}, {r0, r1}, {c0, c1},
		},
		VarCount: vars,
	}
}

func TestSize(t *testing.T) {
	s := window(0, 0, 1, 0, 0, 2, 5, 1, 4)
	assert.Equal(t, 16, Size(&s))
	full := Full(grid)
	assert.Equal(t, 24*2*1*8*10, Size(&full))
	assert.NoError(t, Validate(grid, &full))
	assert.Equal(t, 4, s.Count(Row))
	assert.Equal(t, 1, s.Count(Variable))
}

func TestValidate(t *testing.T) {
	good := window(3, 7, 2, 0, 0, 0, 7, 9, 9)
	require.NoError(t, Validate(grid, &good))

	bad := []struct {
		spec Spec
		err  error
	}{
		{window(-1, 0, 1, 0, 0, 0, 0, 0, 0), ErrBounds},
		{window(5, 4, 1, 0, 0, 0, 0, 0, 0), ErrBounds},
		{window(0, 24, 1, 0, 0, 0, 0, 0, 0), ErrBounds},
		{window(0, 0, 1, 0, 1, 0, 0, 0, 0), ErrBounds},
		{window(0, 0, 1, 0, 0, 0, 8, 0, 0), ErrBounds},
		{window(0, 0, 1, 0, 0, 0, 0, 3, 10), ErrBounds},
		{Spec{VarCount: 0}, ErrVarCount},
		{Spec{VarCount: 3, Bounds: [NumAxes][2]int{{0, 0}, {0, 1}}}, ErrVarCount},
		{Spec{VarCount: 2, Bounds: [NumAxes][2]int{{0, 0}, {1, 1}}}, ErrVarCount},
	}
	for _, tc := range bad {
		assert.ErrorIs(t, Validate(grid, &tc.spec), tc.err, "%+v", tc.spec)
	}
}

func TestIrregular(t *testing.T) {
	stations := Extents{Timesteps: 5, Variables: 3, Layers: 2, Rows: 40, Columns: 1, Irregular: true}
	s := Full(stations)
	s.Bounds[Timestep] = [2]int{1, 3}
	require.NoError(t, Validate(stations, &s))
	s.Bounds[Row] = [2]int{0, 10}
	assert.ErrorIs(t, Validate(stations, &s), ErrIrregular)
	Clamp(stations, &s)
	assert.NoError(t, Validate(stations, &s))
	assert.Equal(t, [2]int{0, 39}, s.Bounds[Row])
	assert.Equal(t, [2]int{1, 3}, s.Bounds[Timestep])
}

func TestClampConverges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	shapes := []Extents{
		grid,
		{Timesteps: 1, Variables: 1, Layers: 1, Rows: 1, Columns: 1},
		{Timesteps: 3, Variables: 5, Layers: 4, Rows: 50, Columns: 1, Irregular: true},
	}
	for _, ext := range shapes {
		for i := 0; i < 500; i++ {
			var s Spec
			for a := Timestep; a < NumAxes; a++ {
				s.Bounds[a] = [2]int{rng.Intn(200) - 100, rng.Intn(200) - 100}
			}
			s.VarCount = rng.Intn(20) - 10
			Clamp(ext, &s)
			require.NoError(t, Validate(ext, &s), "%+v", s)
		}
	}
}

func TestIndexer(t *testing.T) {
	s := window(0, 2, 2, 0, 1, 0, 3, 0, 4)
	ix := IndexerFor(&s)
	assert.Equal(t, Size(&s), ix.Len())
	assert.Equal(t, 2*4*5, ix.ChunkLen())
	assert.Equal(t, 0, ix.ChunkOffset(0, 0))
	assert.Equal(t, 40, ix.ChunkOffset(0, 1))
	assert.Equal(t, 80, ix.ChunkOffset(1, 0))
	assert.Equal(t, 1, ix.Offset(0, 0, 0, 0, 1))
	assert.Equal(t, 5, ix.Offset(0, 0, 0, 1, 0))
	assert.Equal(t, 20, ix.Offset(0, 0, 1, 0, 0))

	for off := 0; off < ix.Len(); off++ {
		tt, v, l, r, c := ix.Coords(off)
		assert.Equal(t, off, ix.Offset(tt, v, l, r, c))
	}
	last := ix.Len() - 1
	tt, v, l, r, c := ix.Coords(last)
	assert.Equal(t, [5]int{2, 1, 1, 3, 4}, [5]int{tt, v, l, r, c})
	assert.Equal(t, [NumAxes]int{3, 2, 2, 4, 5}, ix.Counts())
}

func TestAxisString(t *testing.T) {
	assert.Equal(t, "ROW", Row.String())
	assert.Equal(t, "Axis(9)", Axis(9).String())
}
