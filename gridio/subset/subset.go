// Package subset describes five-axis windows (timestep, variable, layer,
// row, column) into a grid file and the flat row-major layout that
// extraction fills.
package subset

import (
	"errors"
	"fmt"
)

type Axis int

const (
	Timestep Axis = iota
	Variable
	Layer
	Row
	Column
	NumAxes
)

var axisNames = [NumAxes]string{"TIMESTEP", "VARIABLE", "LAYER", "ROW", "COLUMN"}

func (a Axis) String() string {
	if a < 0 || a >= NumAxes {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// Bound indexes the two ends of an axis window.
const (
	First = 0
	Last  = 1
)

var (
	ErrBounds    = errors.New("subset out of bounds")
	ErrVarCount  = errors.New("subset variable count out of range")
	ErrIrregular = errors.New("irregular files cannot be windowed off the grid axes")
)

// Spec is a subset of a grid file. Indices are zero-based and inclusive.
// VarCount is the number of variables extracted. Without an explicit name
// list they are the VarCount variables starting at Bounds[Variable][First].
type Spec struct {
	Bounds   [NumAxes][2]int
	VarCount int
}

// Extents is the shape a Spec is checked against.
type Extents struct {
	Timesteps int
	Variables int
	Layers    int
	Rows      int
	Columns   int
	Irregular bool
}

func (e Extents) limit(a Axis) int {
	switch a {
	case Timestep:
		return e.Timesteps
	case Variable:
		return e.Variables
	case Layer:
		return e.Layers
	case Row:
		return e.Rows
	}
	return e.Columns
}

// Count is the number of indices the window covers on axis a. The
// variable axis reports VarCount.
func (s *Spec) Count(a Axis) int {
	if a == Variable {
		return s.VarCount
	}
	return s.Bounds[a][Last] - s.Bounds[a][First] + 1
}

// Size is the number of values an extraction of s produces.
func Size(s *Spec) int {
	n := s.VarCount
	for _, a := range []Axis{Timestep, Layer, Row, Column} {
		n *= s.Count(a)
	}
	return n
}

// Full selects everything in ext.
func Full(ext Extents) Spec {
	var s Spec
	for a := Timestep; a < NumAxes; a++ {
		s.Bounds[a] = [2]int{0, ext.limit(a) - 1}
	}
	s.VarCount = ext.Variables
	return s
}

// Validate checks s against ext.
func Validate(ext Extents, s *Spec) error {
	for a := Timestep; a < NumAxes; a++ {
		first, last := s.Bounds[a][First], s.Bounds[a][Last]
		if first < 0 || first > last || last >= ext.limit(a) {
			return fmt.Errorf("%w: %v [%d, %d] not within [0, %d)", ErrBounds, a, first, last, ext.limit(a))
		}
	}
	if first := s.Bounds[Variable][First]; s.VarCount < 1 || first+s.VarCount > ext.Variables {
		return fmt.Errorf("%w: %d from variable %d, file has %d", ErrVarCount, s.VarCount, first, ext.Variables)
	}
	if ext.Irregular {
		for _, a := range []Axis{Layer, Row, Column} {
			if s.Bounds[a][First] != 0 || s.Bounds[a][Last] != ext.limit(a)-1 {
				return fmt.Errorf("%w: %v [%d, %d]", ErrIrregular, a, s.Bounds[a][First], s.Bounds[a][Last])
			}
		}
	}
	return nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Clamp forces s into ext so that Validate succeeds, provided ext has at
// least one index on every axis.
func Clamp(ext Extents, s *Spec) {
	for a := Timestep; a < NumAxes; a++ {
		hi := max(ext.limit(a)-1, 0)
		first := clamp(s.Bounds[a][First], 0, hi)
		last := clamp(s.Bounds[a][Last], first, hi)
		s.Bounds[a] = [2]int{first, last}
	}
	if ext.Irregular {
		for _, a := range []Axis{Layer, Row, Column} {
			s.Bounds[a] = [2]int{0, max(ext.limit(a)-1, 0)}
		}
	}
	s.VarCount = clamp(s.VarCount, 1, max(ext.Variables-s.Bounds[Variable][First], 1))
}
