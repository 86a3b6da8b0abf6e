package datasets

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeImageBatchFlat(t *testing.T) {
	a := &Sample{Channels: 1, Height: 2, Width: 2, Data: []float32{1, 2, 3, 4}}
	b := &Sample{Channels: 1, Height: 2, Width: 2, Data: []float32{5, 6, 7, 8}}

	flat, err := MakeImageBatchFlat([]*Sample{a, b}, [][]float32{{0.5, 0.5}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, flat.BatchSize)
	assert.Equal(t, 2, flat.LabelDim)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, flat.Inputs)
	assert.Equal(t, []float32{0.5, 0.5, 1, 0}, flat.Labels)

	in, la, err := flat.ToGomlxTensors()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 2, 2}, in.Shape().Dimensions)
	assert.Equal(t, []int{2, 2}, la.Shape().Dimensions)
}

func TestMakeImageBatchFlatErrors(t *testing.T) {
	a := &Sample{Channels: 1, Height: 2, Width: 2, Data: make([]float32, 4)}
	c := &Sample{Channels: 1, Height: 3, Width: 3, Data: make([]float32, 9)}

	_, err := MakeImageBatchFlat([]*Sample{a, c}, [][]float32{{1}, {1}})
	assert.True(t, errors.Is(err, ErrInconsistentShapes))

	_, err = MakeImageBatchFlat([]*Sample{a, a}, [][]float32{{1}, {1, 0}})
	assert.True(t, errors.Is(err, ErrInconsistentShapes))

	_, err = MakeImageBatchFlat([]*Sample{a}, nil)
	assert.Error(t, err)

	empty, err := MakeImageBatchFlat(nil, nil)
	require.NoError(t, err)
	_, _, err = empty.ToGomlxTensors()
	assert.Error(t, err)
}
