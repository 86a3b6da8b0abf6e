package vgg

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	_ "github.com/gomlx/gomlx/backends/simplego"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/pkg/errors"
)

// Predictor runs inference with a Model on a gomlx backend. The compiled
// graph is cached by gomlx per input shape.
type Predictor struct {
	Model   *Model
	Backend backends.Backend
	Ctx     *context.Context

	exec *context.Exec
}

// newBackend returns the default gomlx backend: $GOMLX_BACKEND if set,
// otherwise the first registered one (simplego, linked by this package).
func newBackend() (backends.Backend, error) {
	b, err := backends.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gomlx backend")
	}
	return b, nil
}

// NewPredictor returns a Predictor for m. A nil backend selects the default
// gomlx backend. A nil ctx starts from freshly initialized weights; a given
// ctx may already hold the model's weights (from a Trainer or another
// Predictor), which are then reused.
func NewPredictor(m *Model, backend backends.Backend, ctx *context.Context) (*Predictor, error) {
	if m == nil {
		return nil, errors.New("vgg: model is nil")
	}
	if backend == nil {
		b, err := newBackend()
		if err != nil {
			return nil, err
		}
		backend = b
	}
	if ctx == nil {
		ctx = context.New()
	} else {
		ctx = ctx.Checked(false)
	}
	p := &Predictor{Model: m, Backend: backend, Ctx: ctx}
	exec, err := context.NewExec(backend, ctx, func(ctx *context.Context, images *Node) *Node {
		return m.Apply(ctx, images)
	})
	if err != nil {
		return nil, errors.Wrap(err, "vgg: build inference graph")
	}
	p.exec = exec
	return p, nil
}

// Predict scores a [batch, channels, height, width] float32 batch held flat
// in data and returns one score vector per image.
func (p *Predictor) Predict(data []float32, batch, channels, height, width int) ([][]float32, error) {
	if _, err := p.Model.OutputShape(batch, channels, height, width); err != nil {
		return nil, err
	}
	if len(data) != batch*channels*height*width {
		return nil, errors.Errorf("vgg: %d values for input shape [%d, %d, %d, %d]", len(data), batch, channels, height, width)
	}
	input := tensors.FromFlatDataAndDimensions(data, batch, channels, height, width)

	var outputs []*tensors.Tensor
	var err error
	if exc := exceptions.TryCatch[error](func() { outputs, err = p.exec.Exec(input) }); exc != nil {
		return nil, errors.Wrap(exc, "vgg: forward pass")
	}
	if err != nil {
		return nil, errors.Wrap(err, "vgg: forward pass")
	}
	if len(outputs) != 1 {
		return nil, errors.Errorf("vgg: expected 1 output, got %d", len(outputs))
	}
	value, ok := outputs[0].Value().([][]float32)
	if !ok {
		return nil, errors.Errorf("vgg: unexpected output %s", outputs[0].Shape())
	}
	return value, nil
}
