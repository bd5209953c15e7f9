// Package station holds the per-timestep reports of an irregular (id-data)
// grid file: how many stations reported, their ids, and one value per
// station for every variable and layer.
package station

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
)

var (
	ErrNoStations = errors.New("station count must be positive")
	ErrReleased   = errors.New("dataset released")
	ErrShape      = errors.New("dataset does not fit the file")
)

// Slot holds one variable layer for every station. Exactly one of Ints and
// Floats is in use, selected by Kind.
type Slot struct {
	Kind   header.NumericType
	Ints   []int32
	Floats []float32
}

// Dataset is one timestep of station reports. Slot s holds variable
// s / layers, layer s % layers.
type Dataset struct {
	MaxStations int
	Count       int
	IDs         []int32
	Slots       []Slot
	Layers      int
}

func newSlot(kind header.NumericType, n int) Slot {
	if kind == header.Int {
		return Slot{Kind: kind, Ints: make([]int32, n)}
	}
	return Slot{Kind: header.Real, Floats: make([]float32, n)}
}

// Allocate makes a zeroed dataset with slotCount real-valued slots. It
// returns nil if either size is not positive.
func Allocate(maxStations, slotCount int) *Dataset {
	if maxStations < 1 || slotCount < 1 {
		return nil
	}
	ds := &Dataset{
		MaxStations: maxStations,
		IDs:         make([]int32, maxStations),
		Slots:       make([]Slot, slotCount),
		Layers:      1,
	}
	for i := range ds.Slots {
		ds.Slots[i] = newSlot(header.Real, maxStations)
	}
	return ds
}

// New makes a dataset shaped for an id-data file: one station per row and
// one slot per variable and layer, typed like the variable.
func New(h *header.Header) (*Dataset, error) {
	if h.FileType != header.IDData {
		return nil, container.ErrNotIDData
	}
	if h.NRows < 1 {
		return nil, fmt.Errorf("%w: %d rows", ErrNoStations, h.NRows)
	}
	layers := int(h.NLays)
	ds := &Dataset{
		MaxStations: int(h.NRows),
		IDs:         make([]int32, h.NRows),
		Slots:       make([]Slot, len(h.Vars)*layers),
		Layers:      layers,
	}
	for v, vr := range h.Vars {
		for l := 0; l < layers; l++ {
			ds.Slots[v*layers+l] = newSlot(vr.Type, ds.MaxStations)
		}
	}
	return ds, nil
}

// SlotIndex is the slot of a variable layer.
func (ds *Dataset) SlotIndex(variable, layer int) int {
	return variable*ds.Layers + layer
}

// Value returns the value of station i in a slot, widened to float32.
func (ds *Dataset) Value(slot, i int) float32 {
	s := &ds.Slots[slot]
	if s.Kind == header.Int {
		return float32(s.Ints[i])
	}
	return s.Floats[i]
}

// SetValue stores v for station i, truncating it in integer slots.
func (ds *Dataset) SetValue(slot, i int, v float32) {
	s := &ds.Slots[slot]
	if s.Kind == header.Int {
		s.Ints[i] = int32(v)
		return
	}
	s.Floats[i] = v
}

// Validate reports whether ds is usable: a count within capacity, an id per
// station, and every slot holding exactly the storage its kind calls for.
func Validate(ds *Dataset) bool {
	if ds == nil || ds.MaxStations < 1 || ds.Layers < 1 {
		return false
	}
	if ds.Count < 0 || ds.Count > ds.MaxStations || len(ds.IDs) != ds.MaxStations {
		return false
	}
	if len(ds.Slots) == 0 {
		return false
	}
	for _, s := range ds.Slots {
		switch s.Kind {
		case header.Int:
			if len(s.Ints) != ds.MaxStations || s.Floats != nil {
				return false
			}
		case header.Real:
			if len(s.Floats) != ds.MaxStations || s.Ints != nil {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Release clears ds and drops its storage. A released dataset no longer
// validates.
func Release(ds *Dataset) {
	if ds == nil {
		return
	}
	clear(ds.IDs)
	for i := range ds.Slots {
		clear(ds.Slots[i].Ints)
		clear(ds.Slots[i].Floats)
	}
	*ds = Dataset{}
}

func (ds *Dataset) fits(h *header.Header) error {
	if !Validate(ds) {
		return ErrReleased
	}
	if ds.MaxStations < int(h.NRows) || ds.Layers != int(h.NLays) || len(ds.Slots) != len(h.Vars)*int(h.NLays) {
		return fmt.Errorf("%w: %d stations, %d layers, %d slots for %d rows, %d layers, %d variables",
			ErrShape, ds.MaxStations, ds.Layers, len(ds.Slots), h.NRows, h.NLays, len(h.Vars))
	}
	return nil
}

// Read fills ds with one timestep of f.
func Read(f *container.File, h *header.Header, date, time int32, ds *Dataset) error {
	if err := ds.fits(h); err != nil {
		return err
	}
	count, err := f.ReadStations(date, time, ds.IDs)
	if err != nil {
		return err
	}
	rows := int(h.NRows)
	record := make([]float32, ds.Layers*rows)
	for v, vr := range h.Vars {
		var ints []int32
		if vr.Type == header.Int {
			ints = make([]int32, len(record))
			err = f.ReadRecordInts(vr.Name, date, time, ints)
		} else {
			err = f.ReadRecord(vr.Name, date, time, record)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", vr.Name, err)
		}
		for l := 0; l < ds.Layers; l++ {
			slot := ds.SlotIndex(v, l)
			s := &ds.Slots[slot]
			at := l * rows
			switch {
			case s.Kind == header.Int && ints != nil:
				copy(s.Ints, ints[at:at+count])
			case s.Kind == header.Real && ints == nil:
				copy(s.Floats, record[at:at+count])
			case ints != nil:
				for i := 0; i < count; i++ {
					s.Floats[i] = float32(ints[at+i])
				}
			default:
				for i := 0; i < count; i++ {
					s.Ints[i] = int32(record[at+i])
				}
			}
		}
	}
	ds.Count = count
	return nil
}

// Write stores ds as one timestep of w. Rows past the reporting stations
// hold the missing value.
func Write(w *container.Writer, h *header.Header, date, time int32, ds *Dataset) error {
	if err := ds.fits(h); err != nil {
		return err
	}
	if err := w.WriteStations(date, time, ds.Count, ds.IDs); err != nil {
		return err
	}
	rows := int(h.NRows)
	for v, vr := range h.Vars {
		var err error
		if vr.Type == header.Int {
			ints := make([]int32, ds.Layers*rows)
			for l := 0; l < ds.Layers; l++ {
				s := &ds.Slots[ds.SlotIndex(v, l)]
				layer := ints[l*rows : (l+1)*rows]
				for i := range layer {
					switch {
					case i >= ds.Count:
						layer[i] = header.MissingInt
					case s.Kind == header.Int:
						layer[i] = s.Ints[i]
					default:
						layer[i] = int32(s.Floats[i])
					}
				}
			}
			err = w.WriteRecordInts(vr.Name, date, time, ints)
		} else {
			record := make([]float32, ds.Layers*rows)
			for l := 0; l < ds.Layers; l++ {
				slot := ds.SlotIndex(v, l)
				layer := record[l*rows : (l+1)*rows]
				for i := range layer {
					if i < ds.Count {
						layer[i] = ds.Value(slot, i)
					} else {
						layer[i] = header.MissingReal
					}
				}
			}
			err = w.WriteRecord(vr.Name, date, time, record)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", vr.Name, err)
		}
	}
	return nil
}
