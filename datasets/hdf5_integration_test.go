package datasets

import (
	"path/filepath"
	"testing"

	"github.com/Noofbiz/galaxyzoo/h5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContainer(t *testing.T, path string, entries map[string]fakeEntry) {
	t.Helper()
	w, err := h5.Create(path)
	require.NoError(t, err)
	for key, e := range entries {
		require.NoError(t, w.WriteImage(key, e.dims, e.data, e.attrs))
	}
	require.NoError(t, w.Close())
}

// TestNewHDF5Dataset_RealFiles runs the loader against files written with the
// HDF5 library, using the default opener.
func TestNewHDF5Dataset_RealFiles(t *testing.T) {
	dir := t.TempDir()
	writeContainer(t, filepath.Join(dir, "part1.hdf5"), map[string]fakeEntry{
		"587722981741363294": cube(5, 6, 1, votes(3, 1, 0)),
		"587722981741363295": cube(5, 12, 2, votes(1, 1, 1)),
	})
	writeContainer(t, filepath.Join(dir, "part2.hdf5"), map[string]fakeEntry{
		"587722981741363300": cube(5, 8, 3, votes(0, 2, 2)),
	})

	ds, err := NewHDF5Dataset(Config{
		Dir:          dir,
		MinPixelDims: 4,
		MaxPixelDims: 8,
		Pad:          true,
		LabelKeys:    labelKeys,
	})
	require.NoError(t, err)
	require.Equal(t, 2, ds.Len())

	s, label, err := ds.Example(0)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 8, 8}, s.Shape())
	assert.Equal(t, float32(0), s.At(0, 0, 0))
	assert.Equal(t, float32(1), s.At(4, 1, 1))
	assert.InDeltaSlice(t, []float32{0.75, 0.25, 0}, label, 1e-6)

	s, label, err = ds.Example(1)
	require.NoError(t, err)
	assert.Equal(t, float32(3), s.At(2, 0, 0))
	assert.InDeltaSlice(t, []float32{0, 0.5, 0.5}, label, 1e-6)
}
