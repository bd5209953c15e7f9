package gridio

import (
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio/calendar"
	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/station"
	"github.com/batchatco/go-native-gridio/gridio/subset"
)

// Range is the smallest and largest non-missing value of a variable.
type Range struct {
	Min float32
	Max float32
}

func (r *Range) widen(v float32, seen bool) {
	if !seen {
		r.Min, r.Max = v, v
		return
	}
	r.Min = min(r.Min, v)
	r.Max = max(r.Max, v)
}

// window converts the grid axes of spec to the 1-based inclusive bounds of
// a container read.
func window(spec *subset.Spec) container.Window {
	b := &spec.Bounds
	return container.Window{
		Layers: [2]int{b[subset.Layer][subset.First] + 1, b[subset.Layer][subset.Last] + 1},
		Rows:   [2]int{b[subset.Row][subset.First] + 1, b[subset.Row][subset.Last] + 1},
		Cols:   [2]int{b[subset.Column][subset.First] + 1, b[subset.Column][subset.Last] + 1},
	}
}

func (d *Descriptor) next(date, time int32) (int32, int32) {
	if d.h.TStep == 0 {
		return date, time
	}
	nd, nt := calendar.Add(int(date), int(time), int(d.h.TStep))
	return int32(nd), int32(nt)
}

// Extract reads the subset spec into out, columns varying fastest, then
// rows, layers, variables and timesteps. names, when given, selects the
// variables in order; otherwise spec.VarCount variables are read from
// Bounds[Variable][First]. Integer variables are widened.
//
// On failure the values read so far stay in out and the error is a
// *ReadError naming the timestep, variable and window that failed.
func (d *Descriptor) Extract(spec *subset.Spec, names []string, out []float32) error {
	if err := d.mustRead(); err != nil {
		return err
	}
	if err := d.ValidateSubset(spec, names); err != nil {
		return err
	}
	idx, err := header.VariableIndices(d.h, spec, names)
	if err != nil {
		return err
	}
	if size := subset.Size(spec); len(out) < size {
		return fmt.Errorf("%w: %d values for a subset of %d", ErrShortBuffer, len(out), size)
	}
	ix := subset.IndexerFor(spec)
	w := window(spec)
	irregular := d.h.FileType == header.IDData
	chunk := ix.ChunkLen()

	date, time := d.TimestepDateTime(spec.Bounds[subset.Timestep][subset.First])
	for t, nt := 0, spec.Count(subset.Timestep); t < nt; t++ {
		for v, vi := range idx {
			name := d.h.Vars[vi].Name
			at := ix.ChunkOffset(t, v)
			if irregular {
				err = d.reader.ReadRecord(name, date, time, out[at:at+chunk])
			} else {
				err = d.reader.ReadWindow(name, date, time, w, out[at:at+chunk])
			}
			if err != nil {
				return d.readFailed(d.access(name, date, time, w), err)
			}
		}
		date, time = d.next(date, time)
	}
	return nil
}

// ComputeRange finds the range of each selected variable over spec, or
// over the whole file when spec is nil. Values at or below the missing
// value of the variable's type are skipped, and a variable with no other
// values reports (0, 0). out must hold a Range per selected variable.
func (d *Descriptor) ComputeRange(spec *subset.Spec, names []string, out []Range) error {
	if err := d.mustRead(); err != nil {
		return err
	}
	if spec == nil {
		full := subset.Full(d.h.Extents())
		if len(names) > 0 {
			full.VarCount = len(names)
		}
		spec = &full
	}
	if err := d.ValidateSubset(spec, names); err != nil {
		return err
	}
	idx, err := header.VariableIndices(d.h, spec, names)
	if err != nil {
		return err
	}
	if len(out) < len(idx) {
		return fmt.Errorf("%w: %d ranges for %d variables", ErrShortBuffer, len(out), len(idx))
	}
	seen := make([]bool, len(idx))
	for i := range idx {
		out[i] = Range{}
	}
	if d.h.FileType == header.IDData {
		return d.stationRange(spec, idx, out, seen)
	}

	w := window(spec)
	chunk := make([]float32, subset.IndexerFor(spec).ChunkLen())
	date, time := d.TimestepDateTime(spec.Bounds[subset.Timestep][subset.First])
	for t, nt := 0, spec.Count(subset.Timestep); t < nt; t++ {
		for i, vi := range idx {
			vr := d.h.Vars[vi]
			if err := d.reader.ReadWindow(vr.Name, date, time, w, chunk); err != nil {
				return d.readFailed(d.access(vr.Name, date, time, w), err)
			}
			missing := header.Missing(vr.Type)
			for _, v := range chunk {
				if v > missing {
					out[i].widen(v, seen[i])
					seen[i] = true
				}
			}
		}
		date, time = d.next(date, time)
	}
	return nil
}

// stationRange is ComputeRange for id-data files: only the stations that
// reported in a timestep count.
func (d *Descriptor) stationRange(spec *subset.Spec, idx []int, out []Range, seen []bool) error {
	ds, err := station.New(d.h)
	if err != nil {
		return err
	}
	defer station.Release(ds)

	date, time := d.TimestepDateTime(spec.Bounds[subset.Timestep][subset.First])
	for t, nt := 0, spec.Count(subset.Timestep); t < nt; t++ {
		if err := station.Read(d.reader, d.h, date, time, ds); err != nil {
			return d.readFailed(d.access(container.VarID, date, time, d.fullWindow()), err)
		}
		for i, vi := range idx {
			missing := header.Missing(d.h.Vars[vi].Type)
			for l := 0; l < ds.Layers; l++ {
				slot := ds.SlotIndex(vi, l)
				for s := 0; s < ds.Count; s++ {
					if v := ds.Value(slot, s); v > missing {
						out[i].widen(v, seen[i])
						seen[i] = true
					}
				}
			}
		}
		date, time = d.next(date, time)
	}
	return nil
}
