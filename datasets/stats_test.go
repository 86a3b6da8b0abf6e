package datasets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeStats(t *testing.T) {
	dir, open, _ := standardFixture(t)
	ds, err := NewHDF5Dataset(Config{Dir: dir, MinPixelDims: 4, MaxPixelDims: 8, LabelKeys: labelKeys, Open: open})
	require.NoError(t, err)

	st := ComputeStats(ds)
	assert.Equal(t, 3, st.Samples)
	assert.Equal(t, 2, st.Files)
	assert.Equal(t, labelKeys, st.LabelKeys)
	assert.InDeltaSlice(t, []float64{1.0 / 6, 5.0 / 12, 5.0 / 12}, st.LabelMeans, 1e-6)
	assert.Equal(t, []int{0, 1, 2}, st.Dominant)
	assert.Equal(t, map[int]int{4: 1, 6: 1, 8: 1}, st.Heights)
	assert.Equal(t, map[int]int{2: 3}, st.Channels)
	assert.Equal(t, []int{4, 6, 8}, st.SortedHeights())
	assert.Contains(t, st.String(), "3 samples from 2 files")
}

func TestComputeStats_PaddedHeights(t *testing.T) {
	dir, open, _ := standardFixture(t)
	ds, err := NewHDF5Dataset(Config{Dir: dir, MinPixelDims: 4, MaxPixelDims: 8, Pad: true, LabelKeys: labelKeys, Open: open})
	require.NoError(t, err)

	st := ComputeStats(ds)
	assert.Equal(t, map[int]int{8: 3}, st.Heights)
}
