package container

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/util"
	"github.com/batchatco/go-native-gridio/internal"
)

// Version written to the IOAPI_VERSION attribute.
const Version = "go-native-gridio 1.0"

func name16(s string) string {
	return internal.Pad(s, header.NameLen)
}

func desc80(s string) string {
	return internal.Pad(s, header.DescLen)
}

// attrs builds an attribute map from alternating names and values.
func attrs(kv ...any) *util.OrderedMap {
	om := util.NewOrderedMap()
	for i := 0; i+1 < len(kv); i += 2 {
		om.Add(kv[i].(string), kv[i+1])
	}
	return om
}

func joinLines(lines []string, width int) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(internal.Pad(l, width))
	}
	return sb.String()
}

// splitLines cuts fixed-width text into lines, dropping trailing blank ones.
func splitLines(s string, width int) []string {
	var lines []string
	n := 0
	for len(s) > 0 {
		end := min(width, len(s))
		lines = append(lines, internal.Unpad(s[:end]))
		if lines[len(lines)-1] != "" {
			n = len(lines)
		}
		s = s[end:]
	}
	if n == 0 {
		return nil
	}
	return lines[:n]
}

// encodeHeader lays the header out as global attributes. MXREC is not an
// I/O API attribute; readers that do not know it size the time axis from
// numrecs.
func encodeHeader(h *header.Header) *util.OrderedMap {
	names := make([]string, len(h.Vars))
	for i, v := range h.Vars {
		names[i] = v.Name
	}
	levels := h.VGLevels
	if len(levels) == 0 {
		levels = []float32{0}
	}
	return attrs(
		"IOAPI_VERSION", desc80(Version),
		"EXEC_ID", desc80(h.ExecID),
		"FTYPE", int32(h.FileType),
		"CDATE", h.CDate,
		"CTIME", h.CTime,
		"WDATE", h.WDate,
		"WTIME", h.WTime,
		"SDATE", h.SDate,
		"STIME", h.STime,
		"TSTEP", h.TStep,
		"NTHIK", h.NThik,
		"NCOLS", h.NCols,
		"NROWS", h.NRows,
		"NLAYS", h.NLays,
		"NVARS", int32(len(h.Vars)),
		"GDTYP", int32(h.GridType),
		"P_ALP", h.PAlp,
		"P_BET", h.PBet,
		"P_GAM", h.PGam,
		"XCENT", h.XCent,
		"YCENT", h.YCent,
		"XORIG", h.XOrig,
		"YORIG", h.YOrig,
		"XCELL", h.XCell,
		"YCELL", h.YCell,
		"VGTYP", int32(h.VertType),
		"VGTOP", h.VGTop,
		"VGLVLS", levels,
		"GDNAM", name16(h.GridName),
		"UPNAM", name16(h.UpdateName),
		"VAR-LIST", joinLines(names, header.NameLen),
		"FILEDESC", joinLines(h.FileDesc, header.DescLen),
		"HISTORY", joinLines(h.UpdateDesc, header.DescLen),
		"MXREC", h.MxRec,
	)
}

type attrReader struct {
	om *util.OrderedMap
}

func (a attrReader) getInt(key string) int32 {
	v, err := a.om.GetInt32(key)
	if err != nil {
		fail(err.Error(), fmt.Errorf("%w: %w", ErrNotGridFile, err))
	}
	return v
}

func (a attrReader) getFloat(key string) float64 {
	v, err := a.om.GetFloat64(key)
	if err != nil {
		fail(err.Error(), fmt.Errorf("%w: %w", ErrNotGridFile, err))
	}
	return v
}

func (a attrReader) getString(key string) string {
	v, err := a.om.GetString(key)
	if err != nil {
		return ""
	}
	return v
}

// decodeHeader rebuilds the header from the global attributes and the
// attributes of each variable named in VAR-LIST.
func decodeHeader(f *File) *header.Header {
	a := attrReader{f.globalAttrs}
	h := &header.Header{
		FileType: header.FileType(a.getInt("FTYPE")),
		CDate:    a.getInt("CDATE"),
		CTime:    a.getInt("CTIME"),
		WDate:    a.getInt("WDATE"),
		WTime:    a.getInt("WTIME"),
		NCols:    a.getInt("NCOLS"),
		NRows:    a.getInt("NROWS"),
		NLays:    a.getInt("NLAYS"),
		NThik:    a.getInt("NTHIK"),
		GridType: header.GridType(a.getInt("GDTYP")),
		VertType: header.VertType(a.getInt("VGTYP")),
		SDate:    a.getInt("SDATE"),
		STime:    a.getInt("STIME"),
		TStep:    a.getInt("TSTEP"),
		PAlp:     a.getFloat("P_ALP"),
		PBet:     a.getFloat("P_BET"),
		PGam:     a.getFloat("P_GAM"),
		XCent:    a.getFloat("XCENT"),
		YCent:    a.getFloat("YCENT"),
		XOrig:    a.getFloat("XORIG"),
		YOrig:    a.getFloat("YORIG"),
		XCell:    a.getFloat("XCELL"),
		YCell:    a.getFloat("YCELL"),
		VGTop:    float32(a.getFloat("VGTOP")),

		GridName:   internal.Unpad(a.getString("GDNAM")),
		UpdateName: internal.Unpad(a.getString("UPNAM")),
		ExecID:     internal.Unpad(a.getString("EXEC_ID")),
		FileDesc:   splitLines(a.getString("FILEDESC"), header.DescLen),
		UpdateDesc: splitLines(a.getString("HISTORY"), header.DescLen),
	}
	levels, err := f.globalAttrs.GetFloat32s("VGLVLS")
	if err != nil {
		fail(err.Error(), fmt.Errorf("%w: %w", ErrNotGridFile, err))
	}
	h.VGLevels = append([]float32(nil), levels...)

	if _, has := f.globalAttrs.Get("MXREC"); has {
		h.MxRec = a.getInt("MXREC")
	} else {
		h.MxRec = int32(max(f.numRecs, 1))
	}

	nvars := int(a.getInt("NVARS"))
	assert(nvars >= 0 && nvars <= header.MaxVars,
		fmt.Sprint("NVARS out of range: ", nvars), ErrNotGridFile)
	names := splitLines(a.getString("VAR-LIST"), header.NameLen)
	if len(names) < nvars {
		fail(fmt.Sprintf("VAR-LIST names %d of %d variables", len(names), nvars), ErrNotGridFile)
	}
	h.Vars = make([]header.Variable, nvars)
	for i := range h.Vars {
		v := f.variable(strings.TrimSpace(names[i]))
		va := attrReader{v.attrs}
		h.Vars[i] = header.Variable{
			Name:  strings.TrimSpace(names[i]),
			Units: internal.Unpad(va.getString("units")),
			Desc:  internal.Unpad(va.getString("var_desc")),
			Type:  header.Real,
		}
		switch v.vType {
		case typeInt, typeShort, typeByte:
			h.Vars[i].Type = header.Int
		}
	}
	return h
}
