package vgg

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/ml/context"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictorShapes(t *testing.T) {
	m, err := VGG11NoPool(5)
	require.NoError(t, err)
	p, err := NewPredictor(m, nil, nil)
	require.NoError(t, err)

	const c, h, w = 5, 8, 8
	data := make([]float32, 2*c*h*w)
	for i := range data {
		data[i] = float32(i%7) / 7
	}

	scores, err := p.Predict(data[:c*h*w], 1, c, h, w)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Len(t, scores[0], 6)

	scores, err = p.Predict(data, 2, c, h, w)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Len(t, scores[1], 6)
}

func TestPredictorRejectsBadInput(t *testing.T) {
	m, err := VGG11NoPool(5)
	require.NoError(t, err)
	p, err := NewPredictor(m, nil, nil)
	require.NoError(t, err)

	_, err = p.Predict(make([]float32, 3*8*8), 1, 3, 8, 8)
	assert.Error(t, err)
	_, err = p.Predict(make([]float32, 10), 1, 5, 8, 8)
	assert.Error(t, err)

	_, err = NewPredictor(nil, nil, nil)
	assert.Error(t, err)
}

func TestPredictorsShareContextWeights(t *testing.T) {
	m, err := VGG11NoPool(5)
	require.NoError(t, err)
	ctx := context.New()

	first, err := NewPredictor(m, nil, ctx)
	require.NoError(t, err)
	const c, h, w = 5, 8, 8
	data := make([]float32, c*h*w)
	for i := range data {
		data[i] = float32(i%11) / 11
	}
	want, err := first.Predict(data, 1, c, h, w)
	require.NoError(t, err)

	// The second predictor finds the variables created by the first.
	second, err := NewPredictor(m, nil, ctx)
	require.NoError(t, err)
	got, err := second.Predict(data, 1, c, h, w)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want[0], got[0], 1e-5)
}

func TestPredictAllFactoriesAndPoolings(t *testing.T) {
	factories := []struct {
		name    string
		factory func(int) (*Model, error)
		deep    bool
	}{
		{"vgg11", VGG11, false},
		{"vgg11_bn", VGG11BN, false},
		{"vgg11_nopool", VGG11NoPool, false},
		{"vgg13", VGG13, false},
		{"vgg13_bn", VGG13BN, false},
		{"vgg16", VGG16, true},
		{"vgg16_bn", VGG16BN, true},
		{"vgg19", VGG19, true},
		{"vgg19_bn", VGG19BN, true},
	}
	const c, h, w = 5, 32, 32
	data := make([]float32, c*h*w)
	for i := range data {
		data[i] = float32(i%13) / 13
	}

	for _, f := range factories {
		for _, pooling := range []Pooling{MaxPooling, AvgPooling} {
			t.Run(f.name+"/"+pooling.String(), func(t *testing.T) {
				if f.deep && testing.Short() {
					t.Skip("deep preset skipped in short mode")
				}
				base, err := f.factory(c)
				require.NoError(t, err)
				cfg := base.Config
				cfg.Pooling = pooling
				m, err := New(cfg)
				require.NoError(t, err)

				p, err := NewPredictor(m, nil, nil)
				require.NoError(t, err)
				scores, err := p.Predict(data, 1, c, h, w)
				require.NoError(t, err)
				require.Len(t, scores, 1)
				assert.Len(t, scores[0], 6)
			})
		}
	}
}
