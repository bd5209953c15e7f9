package header

import (
	"errors"
	"fmt"

	"github.com/batchatco/go-native-gridio/gridio/stream"
	"github.com/batchatco/go-native-gridio/internal"
	"github.com/batchatco/go-thrower"
)

var (
	ErrWire     = errors.New("header exchange failed")
	ErrTooLarge = errors.New("header exceeds the fixed wire layout")
)

// field names a failed wire operation.
func field(name string, err error) {
	if err != nil {
		thrower.Throw(fmt.Errorf("%w: field %s: %w", ErrWire, name, err))
	}
}

// Serialize writes h to s: nine doubles, sixteen ints, VGTOP, the level
// and variable type arrays padded to their maximum length, then the text
// fields at fixed width.
func Serialize(s *stream.Stream, h *Header) (err error) {
	defer thrower.RecoverError(&err)
	if len(h.Vars) > MaxVars || len(h.VGLevels) > MaxLayers+1 ||
		len(h.FileDesc) > MaxDescLines || len(h.UpdateDesc) > MaxDescLines {
		return ErrTooLarge
	}
	doubles := []struct {
		name string
		v    float64
	}{
		{"P_ALP", h.PAlp}, {"P_BET", h.PBet}, {"P_GAM", h.PGam},
		{"XCENT", h.XCent}, {"YCENT", h.YCent}, {"XORIG", h.XOrig},
		{"YORIG", h.YOrig}, {"XCELL", h.XCell}, {"YCELL", h.YCell},
	}
	for _, d := range doubles {
		field(d.name, s.WriteDouble(d.v))
	}
	ints := []struct {
		name string
		v    int32
	}{
		{"FTYPE", int32(h.FileType)}, {"CDATE", h.CDate}, {"CTIME", h.CTime},
		{"WDATE", h.WDate}, {"WTIME", h.WTime}, {"NVARS", int32(len(h.Vars))},
		{"NCOLS", h.NCols}, {"NROWS", h.NRows}, {"NLAYS", h.NLays},
		{"NTHIK", h.NThik}, {"GDTYP", int32(h.GridType)}, {"VGTYP", int32(h.VertType)},
		{"SDATE", h.SDate}, {"STIME", h.STime}, {"TSTEP", h.TStep}, {"MXREC", h.MxRec},
	}
	for _, i := range ints {
		field(i.name, s.WriteInt(i.v))
	}
	field("VGTOP", s.WriteFloat(h.VGTop))

	levels := make([]float32, MaxLayers+1)
	copy(levels, h.VGLevels)
	field("VGLVLS", s.WriteFloats(levels))
	types := make([]int32, MaxVars)
	for i, v := range h.Vars {
		types[i] = int32(v.Type)
	}
	field("VTYPE", s.WriteInts(types))

	field("GDNAM", s.WriteChars(h.GridName, NameLen))
	field("UPNAM", s.WriteChars(h.UpdateName, NameLen))
	field("EXECN", s.WriteChars(h.ExecID, DescLen))
	writeLines(s, "FDESC", h.FileDesc)
	writeLines(s, "UPDSC", h.UpdateDesc)
	for _, f := range []struct {
		name  string
		width int
		get   func(v *Variable) string
	}{
		{"VNAME", NameLen, func(v *Variable) string { return v.Name }},
		{"UNITS", NameLen, func(v *Variable) string { return v.Units }},
		{"VDESC", DescLen, func(v *Variable) string { return v.Desc }},
	} {
		for i := 0; i < MaxVars; i++ {
			str := ""
			if i < len(h.Vars) {
				str = f.get(&h.Vars[i])
			}
			field(f.name, s.WriteChars(str, f.width))
		}
	}
	field("flush", s.Flush())
	return nil
}

func writeLines(s *stream.Stream, name string, lines []string) {
	for i := 0; i < MaxDescLines; i++ {
		line := ""
		if i < len(lines) {
			line = lines[i]
		}
		field(name, s.WriteChars(line, DescLen))
	}
}

// Deserialize reads a header written by Serialize. Padding is trimmed from
// text fields, and trailing blank description lines are dropped.
func Deserialize(s *stream.Stream) (h *Header, err error) {
	defer thrower.RecoverError(&err)
	h = &Header{}
	for _, d := range []struct {
		name string
		p    *float64
	}{
		{"P_ALP", &h.PAlp}, {"P_BET", &h.PBet}, {"P_GAM", &h.PGam},
		{"XCENT", &h.XCent}, {"YCENT", &h.YCent}, {"XORIG", &h.XOrig},
		{"YORIG", &h.YOrig}, {"XCELL", &h.XCell}, {"YCELL", &h.YCell},
	} {
		v, err := s.ReadDouble()
		field(d.name, err)
		*d.p = v
	}
	var ftype, nvars, gdtyp, vgtyp int32
	for _, i := range []struct {
		name string
		p    *int32
	}{
		{"FTYPE", &ftype}, {"CDATE", &h.CDate}, {"CTIME", &h.CTime},
		{"WDATE", &h.WDate}, {"WTIME", &h.WTime}, {"NVARS", &nvars},
		{"NCOLS", &h.NCols}, {"NROWS", &h.NRows}, {"NLAYS", &h.NLays},
		{"NTHIK", &h.NThik}, {"GDTYP", &gdtyp}, {"VGTYP", &vgtyp},
		{"SDATE", &h.SDate}, {"STIME", &h.STime}, {"TSTEP", &h.TStep}, {"MXREC", &h.MxRec},
	} {
		v, err := s.ReadInt()
		field(i.name, err)
		*i.p = v
	}
	h.FileType, h.GridType, h.VertType = FileType(ftype), GridType(gdtyp), VertType(vgtyp)
	if nvars < 0 || nvars > MaxVars {
		field("NVARS", fmt.Errorf("%w: %d", ErrTooLarge, nvars))
	}
	if h.NLays < 0 || h.NLays > MaxLayers {
		field("NLAYS", fmt.Errorf("%w: %d", ErrTooLarge, h.NLays))
	}
	h.VGTop, err = s.ReadFloat()
	field("VGTOP", err)

	levels := make([]float32, MaxLayers+1)
	field("VGLVLS", s.ReadFloats(levels))
	h.VGLevels = levels[:h.NLays+1]
	types := make([]int32, MaxVars)
	field("VTYPE", s.ReadInts(types))

	h.GridName = readChars(s, "GDNAM", NameLen)
	h.UpdateName = readChars(s, "UPNAM", NameLen)
	h.ExecID = readChars(s, "EXECN", DescLen)
	h.FileDesc = readLines(s, "FDESC")
	h.UpdateDesc = readLines(s, "UPDSC")

	h.Vars = make([]Variable, nvars)
	for i := range h.Vars {
		h.Vars[i].Type = NumericType(types[i])
	}
	for _, f := range []struct {
		name  string
		width int
		set   func(v *Variable, s string)
	}{
		{"VNAME", NameLen, func(v *Variable, s string) { v.Name = s }},
		{"UNITS", NameLen, func(v *Variable, s string) { v.Units = s }},
		{"VDESC", DescLen, func(v *Variable, s string) { v.Desc = s }},
	} {
		for i := 0; i < MaxVars; i++ {
			str := readChars(s, f.name, f.width)
			if i < len(h.Vars) {
				f.set(&h.Vars[i], str)
			}
		}
	}
	return h, nil
}

func readChars(s *stream.Stream, name string, width int) string {
	str, err := s.ReadChars(width)
	field(name, err)
	return internal.Unpad(str)
}

func readLines(s *stream.Stream, name string) []string {
	lines := make([]string, MaxDescLines)
	n := 0
	for i := range lines {
		lines[i] = readChars(s, name, DescLen)
		if lines[i] != "" {
			n = i + 1
		}
	}
	if n == 0 {
		return nil
	}
	return lines[:n]
}
