package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/batchatco/go-native-gridio/gridio"
	"github.com/batchatco/go-native-gridio/gridio/container"
	"github.com/batchatco/go-native-gridio/gridio/header"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headerTOML = `
FTYPE = 1
NCOLS = 5
NROWS = 4
NLAYS = 2
NTHIK = 1
GDTYP = 1
VGTYP = 2
SDATE = 2019050
STIME = 0
TSTEP = 30000
MXREC = 3
XORIG = -90.0
YORIG = 30.0
XCELL = 0.5
YCELL = 0.5
VGTOP = 10000.0
VGLVLS = [1.0, 0.9, 0.8]
GDNAM = "CLI"
FILEDESC = ["made by a test"]

[[variables]]
name = "O3"
units = "ppb"
desc = "ozone"
type = 5

[[variables]]
name = "NOX"
units = "ppb"
desc = "nitrogen oxides"
type = 5
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot()
	var out, errs bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errs)
	root.SetArgs(append(args, "--log-level", "1"))
	err := root.Execute()
	return out.String(), err
}

// fill writes every timestep of the file at path, value = step*100 + index.
func fill(t *testing.T, path string) {
	t.Helper()
	s, err := gridio.NewSession(gridio.WithoutEnvironment(), gridio.WithLogOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	defer s.Close()
	var h header.Header
	_, err = toml.Decode(headerTOML, &h)
	require.NoError(t, err)
	d, err := s.OpenForWriting(path, &h)
	require.NoError(t, err)
	for step := 0; step < 3; step++ {
		for _, v := range h.Vars {
			data := make([]float32, 40)
			for i := range data {
				data[i] = float32(step*100 + i)
			}
			require.NoError(t, d.WriteVolume(v.Name, step, data))
		}
	}
	require.NoError(t, d.Close())
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, container.Version+"\n", out)
}

func TestCreateAndHeader(t *testing.T) {
	dir := t.TempDir()
	desc := filepath.Join(dir, "header.toml")
	require.NoError(t, os.WriteFile(desc, []byte(headerTOML), 0o644))
	path := filepath.Join(dir, "made.nc")
	_, err := run(t, "create", desc, path)
	require.NoError(t, err)

	out, err := run(t, "check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid, 0 repairs")

	out, err = run(t, "header", path, "--format", "toml")
	require.NoError(t, err)
	var got header.Header
	_, err = toml.Decode(out, &got)
	require.NoError(t, err)
	assert.Equal(t, int32(5), got.NCols)
	assert.Equal(t, []string{"O3", "NOX"}, got.VarNames())
	assert.Equal(t, []float32{1, 0.9, 0.8}, got.VGLevels)

	out, err = run(t, "header", path)
	require.NoError(t, err)
	assert.Contains(t, out, "made by a test")
	assert.Contains(t, out, "2019050:000000")

	_, err = run(t, "header", path, "--format", "yaml")
	assert.ErrorIs(t, err, errFormat)
}

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nc")
	fill(t, src)

	dst := filepath.Join(dir, "sub.nc")
	_, err := run(t, "extract", src, "--vars", "NOX", "--steps", "1:2", "--layers", "1",
		"--rows", "1:2", "--cols", "0:1", "--out", dst)
	require.NoError(t, err)

	out, err := run(t, "range", dst)
	require.NoError(t, err)
	// layer 1 starts at index 20; rows 1-2, columns 0-1 of step 1 and 2
	assert.Equal(t, fmt.Sprintf("%-16s 125 231\n", "NOX"), out)

	frame := filepath.Join(dir, "sub.grdx")
	_, err = run(t, "extract", src, "--steps", "0", "--out", frame, "--frame", "--codec", "s2")
	require.NoError(t, err)
	copied := filepath.Join(dir, "copy.nc")
	out, err = run(t, "recv", frame, "--out", copied)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "CLI: 80 values, 1 steps from 2019050:000000"), out)

	out, err = run(t, "range", copied, "--vars", "O3")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%-16s 0 39\n", "O3"), out)

	_, err = run(t, "extract", src, "--rows", "a:b", "--out", dst)
	assert.ErrorIs(t, err, errRange)
	_, err = run(t, "extract", src, "--out", dst, "--frame", "--codec", "gzip")
	require.Error(t, err)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.nc")
	fill(t, src)
	cfg := filepath.Join(dir, "gridio.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("XORIG = -80.0\n"), 0o644))

	out, err := run(t, "header", src, "--config", cfg, "--format", "toml")
	require.NoError(t, err)
	var got header.Header
	_, err = toml.Decode(out, &got)
	require.NoError(t, err)
	assert.Equal(t, -80.0, got.XOrig)

	_, err = run(t, "header", src, "--config", filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
