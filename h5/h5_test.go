package h5

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cube.hdf5")

	w, err := Create(path)
	require.NoError(t, err)
	data := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, w.WriteImage("galaxy_b", []int{2, 2, 2}, data, map[string]float64{"smooth": 0.25, "disk": 0.75}))
	require.NoError(t, w.WriteImage("galaxy_a", []int{1, 1, 2}, []float32{9, 10}, nil))
	require.NoError(t, w.Close())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, path, f.Path())

	keys, err := f.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"galaxy_a", "galaxy_b"}, keys)

	dims, err := f.Dims("galaxy_b")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, dims)

	got, gotDims, err := f.ReadFloat32("galaxy_b")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, gotDims)
	assert.Equal(t, data, got)

	v, err := f.Attr("galaxy_b", "disk")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, v, 1e-12)

	_, err = f.Attr("galaxy_a", "disk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAttribute))
}

func TestReadFloat32NarrowsDoubles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wide.hdf5")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteImage64("g", []int{1, 2, 3}, []float64{0.5, 1, 1.5, 2, 2.5, 3}, map[string]float64{"smooth": 1}))
	require.NoError(t, w.Close())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, dims, err := f.ReadFloat32("g")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, dims)
	assert.Equal(t, []float32{0.5, 1, 1.5, 2, 2.5, 3}, got)
}

func TestReadFloat32ConvertsIntegers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ints.hdf5")
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteCube(w, "signed", []int{1, 2, 2}, []int16{-300, 0, 7, 32000}, map[string]float64{"smooth": 1}))
	require.NoError(t, WriteCube(w, "counts", []int{2, 1, 2}, []uint8{0, 1, 128, 255}, nil))
	require.NoError(t, WriteCube(w, "wide", []int{1, 1, 2}, []int64{-5, 1 << 20}, nil))
	require.NoError(t, w.Close())

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, dims, err := f.ReadFloat32("signed")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2}, dims)
	assert.Equal(t, []float32{-300, 0, 7, 32000}, got)

	got, dims, err = f.ReadFloat32("counts")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2}, dims)
	assert.Equal(t, []float32{0, 1, 128, 255}, got)

	got, _, err = f.ReadFloat32("wide")
	require.NoError(t, err)
	assert.Equal(t, []float32{-5, 1 << 20}, got)

	v, err := f.Attr("signed", "smooth")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestWriteImageRejectsShortData(t *testing.T) {
	w, err := Create(filepath.Join(t.TempDir(), "bad.hdf5"))
	require.NoError(t, err)
	defer w.Close()

	err = w.WriteImage("x", []int{1, 2, 2}, []float32{1, 2, 3}, nil)
	assert.Error(t, err)
	err = WriteCube(w, "y", []int{2, 2}, []uint16{1}, nil)
	assert.Error(t, err)
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.hdf5"))
	assert.Error(t, err)
}
