package vgg

import (
	"io"
	"math"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train"
	"github.com/gomlx/gomlx/pkg/ml/train/losses"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrBackendCannotTrain is returned by NewTrainer when the backend lacks an
// operation needed to differentiate the network. SimpleGo, the backend linked
// by default, cannot yet compute convolution or max-pool gradients; link
// github.com/gomlx/gomlx/backends/default and select XLA with $GOMLX_BACKEND.
var ErrBackendCannotTrain = errors.New("backend cannot compute the gradients needed for training")

// gradientOps are the backend operations used by the gradients of the
// convolution and pooling layers.
var gradientOps = []backends.OpType{
	backends.OpTypeReverse,
	backends.OpTypeSelectAndScatterMax,
}

// CanTrain reports whether backend supports every operation Train needs.
func CanTrain(backend backends.Backend) error {
	ops := backend.Capabilities().Operations
	for _, op := range gradientOps {
		if !ops[op] {
			return errors.Wrapf(ErrBackendCannotTrain, "backend %s lacks %s", backend.Name(), op)
		}
	}
	return nil
}

// TrainConfig holds the optimization hyperparameters used by Train.
type TrainConfig struct {
	// Epochs to train for. Default: 10.
	Epochs int

	// LearningRate used by the optimizer. Default: 0.001.
	LearningRate float64

	// Optimizer selects "adam" or "sgd". Default: "adam".
	Optimizer string

	// Seed shuffles the dataset before every epoch (seed+epoch). Zero uses a
	// time based seed; negative keeps the dataset order.
	Seed int64
}

// Dataset is what Train needs from a corpus: gomlx batches of
// [batch, channels, height, width] images with [batch, classes] soft labels,
// plus a way to reorder them between epochs.
type Dataset interface {
	train.Dataset
	Shuffle(seed int64)
}

// Trainer fits a Model's weights, kept in Ctx, to a Dataset.
type Trainer struct {
	Model   *Model
	Config  TrainConfig
	Backend backends.Backend
	Ctx     *context.Context

	trainer *train.Trainer
}

// NewTrainer fills cfg defaults and prepares the gomlx trainer. A nil backend
// selects the default gomlx backend; a nil ctx starts from freshly
// initialized weights. It fails with ErrBackendCannotTrain before any graph
// is built if the backend cannot differentiate the network.
func NewTrainer(m *Model, cfg TrainConfig, backend backends.Backend, ctx *context.Context) (*Trainer, error) {
	if m == nil {
		return nil, errors.New("vgg: model is nil")
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = "adam"
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Epochs < 0 || cfg.LearningRate < 0 {
		return nil, errors.Errorf("vgg: invalid training config epochs=%d learning_rate=%g", cfg.Epochs, cfg.LearningRate)
	}

	var opt optimizers.Interface
	switch cfg.Optimizer {
	case "adam":
		opt = optimizers.Adam().Done()
	case "sgd":
		opt = optimizers.StochasticGradientDescent().Done()
	default:
		return nil, errors.Errorf("vgg: optimizer must be 'adam' or 'sgd', got %q", cfg.Optimizer)
	}

	if backend == nil {
		b, err := newBackend()
		if err != nil {
			return nil, err
		}
		backend = b
	}
	if err := CanTrain(backend); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.New()
	}
	ctx.SetParam(optimizers.ParamLearningRate, cfg.LearningRate)

	t := &Trainer{Model: m, Config: cfg, Backend: backend, Ctx: ctx}
	// Labels are vote fractions, so the loss is cross entropy against soft targets.
	t.trainer = train.NewTrainer(backend, ctx, m.ModelGraph, losses.CategoricalCrossEntropyLogits, opt, nil, nil)
	return t, nil
}

// Train runs Config.Epochs passes over ds and returns the mean loss of each
// epoch.
func (t *Trainer) Train(ds Dataset) ([]float64, error) {
	if ds == nil {
		return nil, errors.New("vgg: dataset is nil")
	}
	history := make([]float64, 0, t.Config.Epochs)
	for ep := 0; ep < t.Config.Epochs; ep++ {
		if t.Config.Seed >= 0 {
			ds.Shuffle(t.Config.Seed + int64(ep))
		} else {
			ds.Reset()
		}
		loss, err := t.epoch(ds)
		if err != nil {
			return history, errors.Wrapf(err, "epoch %d", ep)
		}
		klog.V(1).Infof("%s epoch %d: loss=%.5f", t.Model.Config.Preset, ep, loss)
		history = append(history, loss)
	}
	return history, nil
}

func (t *Trainer) epoch(ds Dataset) (float64, error) {
	var sum float64
	steps := 0
	for {
		spec, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if err := t.checkBatch(inputs, labels); err != nil {
			return 0, err
		}

		var metrics []*tensors.Tensor
		if exc := exceptions.TryCatch[error](func() { metrics = t.trainer.TrainStep(spec, inputs, labels) }); exc != nil {
			return 0, errors.Wrapf(exc, "train step %d", steps)
		}
		loss, err := scalar(metrics[0])
		if err != nil {
			return 0, err
		}
		if math.IsNaN(loss) {
			return 0, errors.Errorf("loss became NaN at step %d", steps)
		}
		sum += loss
		steps++
	}
	if steps == 0 {
		return 0, errors.New("dataset yielded no batches")
	}
	return sum / float64(steps), nil
}

func (t *Trainer) checkBatch(inputs, labels []*tensors.Tensor) error {
	if len(inputs) != 1 || len(labels) != 1 {
		return errors.Errorf("expected one input and one label tensor, got %d and %d", len(inputs), len(labels))
	}
	in := inputs[0].Shape().Dimensions
	if len(in) != 4 {
		return errors.Errorf("input batch %s is not [batch, channels, height, width]", inputs[0].Shape())
	}
	if _, err := t.Model.OutputShape(in[0], in[1], in[2], in[3]); err != nil {
		return err
	}
	lab := labels[0].Shape().Dimensions
	if len(lab) != 2 || lab[1] != t.Model.Config.NumClasses {
		return errors.Errorf("label batch %s, model has %d classes", labels[0].Shape(), t.Model.Config.NumClasses)
	}
	return nil
}

func scalar(t *tensors.Tensor) (float64, error) {
	switch v := t.Value().(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, errors.Errorf("unexpected loss value %s", t.Shape())
}

// Predictor returns a Predictor sharing the trained weights.
func (t *Trainer) Predictor() (*Predictor, error) {
	return NewPredictor(t.Model, t.Backend, t.Ctx)
}
