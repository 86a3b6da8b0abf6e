package vgg

import (
	"io"
	"math"
	"testing"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockDataset yields fixed [batch, c, h, w] images whose class is encoded in
// their brightness.
type mockDataset struct {
	c, h, w, classes int
	batch            int
	n                int

	order  []int
	cursor int
}

func newMockDataset(n, batch, c, h, w, classes int) *mockDataset {
	d := &mockDataset{c: c, h: h, w: w, classes: classes, batch: batch, n: n}
	d.order = make([]int, n)
	for i := range d.order {
		d.order[i] = i
	}
	return d
}

func (d *mockDataset) Name() string { return "mock" }
func (d *mockDataset) Reset()       { d.cursor = 0 }

func (d *mockDataset) Shuffle(seed int64) {
	for i, j := 0, len(d.order)-1; i < j; i, j = i+1, j-1 {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	}
	d.cursor = 0
}

func (d *mockDataset) Yield() (any, []*tensors.Tensor, []*tensors.Tensor, error) {
	if d.cursor >= d.n {
		return nil, nil, nil, io.EOF
	}
	end := min(d.cursor+d.batch, d.n)
	idx := d.order[d.cursor:end]
	d.cursor = end

	size := d.c * d.h * d.w
	in := make([]float32, len(idx)*size)
	la := make([]float32, len(idx)*d.classes)
	for b, i := range idx {
		class := i % d.classes
		for k := 0; k < size; k++ {
			in[b*size+k] = float32(class) / float32(d.classes)
		}
		la[b*d.classes+class] = 1
	}
	return d,
		[]*tensors.Tensor{tensors.FromFlatDataAndDimensions(in, len(idx), d.c, d.h, d.w)},
		[]*tensors.Tensor{tensors.FromFlatDataAndDimensions(la, len(idx), d.classes)},
		nil
}

// trainingBackend returns the default backend, skipping the test when it
// cannot differentiate convolutions (SimpleGo, unless $GOMLX_BACKEND selects
// another one).
func trainingBackend(t *testing.T) backends.Backend {
	t.Helper()
	b, err := backends.New()
	require.NoError(t, err)
	if err := CanTrain(b); err != nil {
		t.Skipf("skipping training test: %v", err)
	}
	return b
}

func TestCanTrainRejectsSimpleGo(t *testing.T) {
	b, err := simplego.New("")
	require.NoError(t, err)
	assert.True(t, errors.Is(CanTrain(b), ErrBackendCannotTrain))

	m, err := VGG11NoPool(2)
	require.NoError(t, err)
	_, err = NewTrainer(m, TrainConfig{Epochs: 1}, b, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBackendCannotTrain))
}

func TestTrainerRunsEpochs(t *testing.T) {
	backend := trainingBackend(t)
	m, err := VGG11NoPool(2)
	require.NoError(t, err)
	tr, err := NewTrainer(m, TrainConfig{Epochs: 2, Seed: 7}, backend, nil)
	require.NoError(t, err)
	assert.Equal(t, "adam", tr.Config.Optimizer)
	assert.Equal(t, 0.001, tr.Config.LearningRate)

	ds := newMockDataset(5, 2, 2, 8, 8, 6)
	history, err := tr.Train(ds)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, loss := range history {
		assert.False(t, math.IsNaN(loss) || math.IsInf(loss, 0))
		assert.Greater(t, loss, 0.0)
	}

	p, err := tr.Predictor()
	require.NoError(t, err)
	scores, err := p.Predict(make([]float32, 2*8*8), 1, 2, 8, 8)
	require.NoError(t, err)
	assert.Len(t, scores[0], 6)
}

func TestTrainerRejectsMismatchedLabels(t *testing.T) {
	backend := trainingBackend(t)
	m, err := VGG11NoPool(2)
	require.NoError(t, err)
	tr, err := NewTrainer(m, TrainConfig{Epochs: 1, Seed: -1, Optimizer: "sgd"}, backend, nil)
	require.NoError(t, err)

	_, err = tr.Train(newMockDataset(2, 2, 2, 8, 8, 3))
	assert.Error(t, err)
}

func TestNewTrainerValidation(t *testing.T) {
	m, err := VGG11NoPool(2)
	require.NoError(t, err)

	_, err = NewTrainer(m, TrainConfig{Optimizer: "rmsprop"}, nil, nil)
	assert.Error(t, err)
	_, err = NewTrainer(m, TrainConfig{Epochs: -1}, nil, nil)
	assert.Error(t, err)
	_, err = NewTrainer(nil, TrainConfig{}, nil, nil)
	assert.Error(t, err)
}
