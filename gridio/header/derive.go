package header

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio/calendar"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/batchatco/go-native-gridio/internal"
)

var ErrNoSuchVariable = errors.New("no such variable")

// Extents is the shape subsets of h are checked against.
func (h *Header) Extents() subset.Extents {
	return subset.Extents{
		Timesteps: h.Steps(),
		Variables: len(h.Vars),
		Layers:    int(h.NLays),
		Rows:      int(h.NRows),
		Columns:   int(h.NCols),
		Irregular: h.FileType == IDData,
	}
}

// NameToIndex finds a variable, ignoring surrounding white space.
func NameToIndex(h *Header, name string) (int, bool) {
	for i, v := range h.Vars {
		if internal.SameName(v.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// VariableIndices resolves the variables a subset selects: names when
// given, otherwise spec.VarCount variables from Bounds[Variable][First].
func VariableIndices(h *Header, spec *subset.Spec, names []string) ([]int, error) {
	if len(names) == 0 {
		first := spec.Bounds[subset.Variable][subset.First]
		idx := make([]int, spec.VarCount)
		for i := range idx {
			idx[i] = first + i
		}
		return idx, nil
	}
	if len(names) != spec.VarCount {
		return nil, fmt.Errorf("%w: %d names for %d variables", subset.ErrVarCount, len(names), spec.VarCount)
	}
	idx := make([]int, len(names))
	for i, name := range names {
		j, ok := NameToIndex(h, name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoSuchVariable, name)
		}
		idx[i] = j
	}
	return idx, nil
}

// ValidateSubset checks spec against h; every name must resolve.
func ValidateSubset(h *Header, spec *subset.Spec, names []string) error {
	if err := subset.Validate(h.Extents(), spec); err != nil {
		return err
	}
	_, err := VariableIndices(h, spec, names)
	return err
}

// ClampSubset forces spec into the extents of h.
func ClampSubset(h *Header, spec *subset.Spec) {
	subset.Clamp(h.Extents(), spec)
}

// TimestepDateTime is the date and time of timestep n.
func TimestepDateTime(h *Header, n int) (date, time int32) {
	if h.TStep == 0 || n == 0 {
		return h.SDate, h.STime
	}
	d, t := calendar.AddSteps(int(h.SDate), int(h.STime), int(h.TStep), n)
	return int32(d), int32(t)
}

// DeriveSubset returns the header of the file a subset of in would make:
// the time axis starts at the first selected step, the grid shrinks to the
// window with its origin shifted, the level boundaries are sliced and the
// variables are those selected, in order.
func DeriveSubset(in *Header, spec *subset.Spec, names []string) (*Header, error) {
	if err := ValidateSubset(in, spec, names); err != nil {
		return nil, err
	}
	idx, err := VariableIndices(in, spec, names)
	if err != nil {
		return nil, err
	}
	out := in.Clone()
	b := &spec.Bounds
	out.SDate, out.STime = TimestepDateTime(in, b[subset.Timestep][subset.First])
	if in.TStep != 0 {
		out.MxRec = int32(spec.Count(subset.Timestep))
	}
	out.NLays = int32(spec.Count(subset.Layer))
	out.NRows = int32(spec.Count(subset.Row))
	out.NCols = int32(spec.Count(subset.Column))
	out.XOrig += float64(b[subset.Column][subset.First]) * in.XCell
	out.YOrig += float64(b[subset.Row][subset.First]) * in.YCell
	l0, l1 := b[subset.Layer][subset.First], b[subset.Layer][subset.Last]
	if l1+2 <= len(in.VGLevels) {
		out.VGLevels = append([]float32(nil), in.VGLevels[l0:l1+2]...)
	}
	out.Vars = make([]Variable, len(idx))
	for i, j := range idx {
		out.Vars[i] = in.Vars[j]
	}
	return out, nil
}
