package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmpty(t *testing.T) {
	om := NewOrderedMap()
	assert.Equal(t, 0, om.Len())
	assert.Empty(t, om.Keys())
	_, has := om.Get("NCOLS")
	assert.False(t, has)
}

func TestAddReplaces(t *testing.T) {
	om := NewOrderedMap()
	om.Add("NCOLS", int32(10))
	om.Add("NROWS", int32(8))
	om.Add("NCOLS", int32(12))
	assert.Equal(t, []string{"NCOLS", "NROWS"}, om.Keys())
	v, err := om.GetInt32("NCOLS")
	require.NoError(t, err)
	assert.Equal(t, int32(12), v)
}

func TestTypedGetters(t *testing.T) {
	om := NewOrderedMap()
	om.Add("P_ALP", float64(30))
	om.Add("VGTOP", float32(5000))
	om.Add("VGLVLS", []float32{1, 0.5, 0})
	om.Add("GDNAM", "US36")

	f, err := om.GetFloat64("P_ALP")
	require.NoError(t, err)
	assert.Equal(t, 30.0, f)
	f, err = om.GetFloat64("VGTOP")
	require.NoError(t, err)
	assert.Equal(t, 5000.0, f)
	lv, err := om.GetFloat32s("VGLVLS")
	require.NoError(t, err)
	assert.Len(t, lv, 3)
	s, err := om.GetString("GDNAM")
	require.NoError(t, err)
	assert.Equal(t, "US36", s)

	_, err = om.GetInt32("GDNAM")
	assert.ErrorIs(t, err, ErrAttributeType)
	_, err = om.GetString("MISSING")
	assert.ErrorIs(t, err, ErrAttributeMissing)
}
