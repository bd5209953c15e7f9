package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/batchatco/go-native-gridio/gridio"
	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/batchatco/go-native-gridio/gridio/stream"
	"github.com/batchatco/go-native-gridio/gridio/subset"
	"github.com/batchatco/go-native-gridio/gridio/transfer"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

var (
	errFormat       = errors.New("unknown format")
	errRange        = errors.New("bad index range")
	errStationFrame = errors.New("frames do not carry station ids; extract id-data files without --frame")
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), container.Version)
		},
		DisableAutoGenTag: true,
	}
}

func (a *app) headerCmd() *cobra.Command {
	var format string
	c := &cobra.Command{
		Use:   "header FILE",
		Short: "Print the header of a grid file",
		Long: `header prints the header of FILE after overrides and repair. The toml
format can be edited and given to create.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFile(cmd, args[0], func(_ *gridio.Session, d *gridio.Descriptor) error {
				switch format {
				case "text":
					return printHeader(cmd.OutOrStdout(), d.LogicalName(), d.Header())
				case "toml":
					return toml.NewEncoder(cmd.OutOrStdout()).Encode(d.Header())
				}
				return fmt.Errorf("%w: %q", errFormat, format)
			})
		},
		DisableAutoGenTag: true,
	}
	c.Flags().StringVar(&format, "format", "text", "output format, text or toml")
	return c
}

func printHeader(w io.Writer, name string, h *header.Header) error {
	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	row := func(key string, v any) {
		fmt.Fprintf(tw, "%s\t%v\n", key, v)
	}
	row("logical name", name)
	row("file type", h.FileType)
	row("grid", fmt.Sprintf("%s type %d", h.GridName, h.GridType))
	row("projection", fmt.Sprintf("%g %g %g center %g %g", h.PAlp, h.PBet, h.PGam, h.XCent, h.YCent))
	row("origin", fmt.Sprintf("%g %g", h.XOrig, h.YOrig))
	row("cells", fmt.Sprintf("%d x %d of %g x %g", h.NCols, h.NRows, h.XCell, h.YCell))
	row("layers", fmt.Sprintf("%d, vertical type %d, top %g", h.NLays, h.VertType, h.VGTop))
	row("levels", h.VGLevels)
	row("start", fmt.Sprintf("%07d:%06d", h.SDate, h.STime))
	row("step", fmt.Sprintf("%06d x %d", h.TStep, h.MxRec))
	for _, line := range h.FileDesc {
		row("description", line)
	}
	for _, v := range h.Vars {
		row("variable", fmt.Sprintf("%-16s %-4v %-16s %s", v.Name, v.Type, v.Units, v.Desc))
	}
	return tw.Flush()
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Check that a grid file opens and validates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFile(cmd, args[0], func(s *gridio.Session, d *gridio.Descriptor) error {
				n := s.Notices()
				fmt.Fprintf(cmd.OutOrStdout(), "%s: valid, %d repairs\n", d.Path(), n.Warnings)
				return nil
			})
		},
		DisableAutoGenTag: true,
	}
}

// parseRange reads "first:last" or "index", zero-based and inclusive. An
// empty string selects [0, n).
func parseRange(s string, n int) ([2]int, error) {
	if s == "" {
		return [2]int{0, n - 1}, nil
	}
	lo, hi, found := strings.Cut(s, ":")
	first, err := cast.ToIntE(strings.TrimSpace(lo))
	if err != nil {
		return [2]int{}, fmt.Errorf("%w: %q", errRange, s)
	}
	last := first
	if found {
		if last, err = cast.ToIntE(strings.TrimSpace(hi)); err != nil {
			return [2]int{}, fmt.Errorf("%w: %q", errRange, s)
		}
	}
	return [2]int{first, last}, nil
}

type windowFlags struct {
	vars                       []string
	steps, layers, rows, cols string
}

func (wf *windowFlags) add(c *cobra.Command) {
	c.Flags().StringSliceVar(&wf.vars, "vars", nil, "variables to read, in order (default all)")
	c.Flags().StringVar(&wf.steps, "steps", "", "timesteps, first:last (default all)")
	c.Flags().StringVar(&wf.layers, "layers", "", "layers, first:last (default all)")
	c.Flags().StringVar(&wf.rows, "rows", "", "rows, first:last (default all)")
	c.Flags().StringVar(&wf.cols, "cols", "", "columns, first:last (default all)")
}

func (wf *windowFlags) spec(h *header.Header) (subset.Spec, error) {
	ext := h.Extents()
	spec := subset.Full(ext)
	for _, r := range []struct {
		axis  subset.Axis
		value string
		n     int
	}{
		{subset.Timestep, wf.steps, ext.Timesteps},
		{subset.Layer, wf.layers, ext.Layers},
		{subset.Row, wf.rows, ext.Rows},
		{subset.Column, wf.cols, ext.Columns},
	} {
		b, err := parseRange(r.value, r.n)
		if err != nil {
			return spec, fmt.Errorf("%v: %w", r.axis, err)
		}
		spec.Bounds[r.axis] = b
	}
	if len(wf.vars) > 0 {
		spec.VarCount = len(wf.vars)
	}
	return spec, nil
}

func (a *app) extractCmd() *cobra.Command {
	var (
		wf    windowFlags
		out   string
		frame bool
		codec string
	)
	c := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract a subset of a grid file",
		Long: `extract reads a window of FILE and writes it to a new grid file, or with
--frame as a subset frame that recv can read. An --out of -stdout writes
the frame to standard output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cd, err := transfer.ParseCodec(codec)
			if err != nil {
				return err
			}
			return a.withFile(cmd, args[0], func(s *gridio.Session, d *gridio.Descriptor) error {
				h := d.Header()
				spec, err := wf.spec(h)
				if err != nil {
					return err
				}
				if err := d.ValidateSubset(&spec, wf.vars); err != nil {
					return err
				}
				derived, err := d.DeriveSubset(&spec, wf.vars)
				if err != nil {
					return err
				}
				if !frame && h.FileType == header.IDData {
					return copyStations(s, d, out, derived, &spec, wf.vars)
				}
				values := make([]float32, subset.Size(&spec))
				if err := d.Extract(&spec, wf.vars, values); err != nil {
					return err
				}
				if !frame {
					return writeSubset(s, out, derived, values)
				}
				st, err := stream.Open(out, "wb")
				if err != nil {
					return err
				}
				msg := &transfer.Message{Header: derived, Spec: spec, Names: wf.vars, Values: values}
				if err := transfer.Send(st, msg, cd); err != nil {
					st.Close()
					return err
				}
				return st.Close()
			})
		},
		DisableAutoGenTag: true,
	}
	wf.add(c)
	c.Flags().StringVar(&out, "out", "", "output path")
	c.Flags().BoolVar(&frame, "frame", false, "write a subset frame instead of a grid file")
	c.Flags().StringVar(&codec, "codec", "zstd", "frame compression: none, s2, zstd or lz4")
	c.MarkFlagRequired("out")
	return c
}

// writeSubset stores the values of an extraction as a grid file laid out
// by h.
func writeSubset(s *gridio.Session, path string, h *header.Header, values []float32) error {
	if h.FileType == header.IDData {
		return errStationFrame
	}
	full := subset.Full(h.Extents())
	if n := subset.Size(&full); len(values) != n {
		return fmt.Errorf("%w: %d values for a file of %d", gridio.ErrShortBuffer, len(values), n)
	}
	d, err := s.OpenForWriting(path, h)
	if err != nil {
		return err
	}
	ix := subset.IndexerFor(&full)
	chunk := ix.ChunkLen()
	for t, nt := 0, full.Count(subset.Timestep); t < nt; t++ {
		for v, vr := range h.Vars {
			at := ix.ChunkOffset(t, v)
			if err := d.WriteVolume(vr.Name, t, values[at:at+chunk]); err != nil {
				d.Close()
				return err
			}
		}
	}
	return d.Close()
}

// copyStations copies the selected timesteps and variables of an id-data
// file, station ids included.
func copyStations(s *gridio.Session, src *gridio.Descriptor, path string, h *header.Header, spec *subset.Spec, names []string) error {
	idx, err := header.VariableIndices(src.Header(), spec, names)
	if err != nil {
		return err
	}
	in, err := src.NewStations()
	if err != nil {
		return err
	}
	d, err := s.OpenForWriting(path, h)
	if err != nil {
		return err
	}
	out, err := d.NewStations()
	if err != nil {
		d.Close()
		return err
	}
	first := spec.Bounds[subset.Timestep][subset.First]
	for t, nt := 0, spec.Count(subset.Timestep); t < nt; t++ {
		if err := src.ReadStations(first+t, in); err != nil {
			d.Close()
			return err
		}
		out.Count = in.Count
		copy(out.IDs, in.IDs)
		for i, vi := range idx {
			for l := 0; l < out.Layers; l++ {
				from, to := in.SlotIndex(vi, l), out.SlotIndex(i, l)
				for st := 0; st < in.Count; st++ {
					out.SetValue(to, st, in.Value(from, st))
				}
			}
		}
		if err := d.WriteStations(t, out); err != nil {
			d.Close()
			return err
		}
	}
	return d.Close()
}

func (a *app) rangeCmd() *cobra.Command {
	var vars []string
	c := &cobra.Command{
		Use:   "range FILE",
		Short: "Print the smallest and largest value of each variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withFile(cmd, args[0], func(_ *gridio.Session, d *gridio.Descriptor) error {
				names := vars
				if len(names) == 0 {
					names = d.Header().VarNames()
				}
				ranges := make([]gridio.Range, len(names))
				if err := d.ComputeRange(nil, names, ranges); err != nil {
					return err
				}
				for i, name := range names {
					fmt.Fprintf(cmd.OutOrStdout(), "%-16s %g %g\n", strings.TrimSpace(name), ranges[i].Min, ranges[i].Max)
				}
				return nil
			})
		},
		DisableAutoGenTag: true,
	}
	c.Flags().StringSliceVar(&vars, "vars", nil, "variables (default all)")
	return c
}

func (a *app) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create HEADER.toml OUT",
		Short: "Create an empty grid file from a TOML header",
		Long: `create makes OUT with the header described in HEADER.toml, in the form
"header --format toml" prints. The file holds no timesteps.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var h header.Header
			if _, err := toml.DecodeFile(args[0], &h); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			d, err := s.OpenForWriting(args[1], &h)
			if err != nil {
				return err
			}
			return d.Close()
		},
		DisableAutoGenTag: true,
	}
}

func (a *app) recvCmd() *cobra.Command {
	var out string
	c := &cobra.Command{
		Use:   "recv PATH",
		Short: "Read a subset frame",
		Long: `recv reads a frame written by "extract --frame" from PATH, or from
standard input when PATH is -stdin, and prints what it holds. With --out
the subset is stored as a grid file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := stream.Open(args[0], "rb")
			if err != nil {
				return err
			}
			msg, err := transfer.Receive(st)
			st.Close()
			if err != nil {
				return err
			}
			h := msg.Header
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d values, %d steps from %07d:%06d, %d variables %v, %d x %d x %d\n",
				h.GridName, len(msg.Values), msg.Spec.Count(subset.Timestep), h.SDate, h.STime,
				len(h.Vars), h.VarNames(), h.NLays, h.NRows, h.NCols)
			if out == "" {
				return nil
			}
			s, err := a.session(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return writeSubset(s, out, h, msg.Values)
		},
		DisableAutoGenTag: true,
	}
	c.Flags().StringVar(&out, "out", "", "store the subset as a grid file")
	return c
}
