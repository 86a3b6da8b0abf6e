package vgg

import (
	"fmt"

	"github.com/gomlx/exceptions"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
)

// Apply builds the network on images, shaped [batch, channels, height,
// width], and returns the [batch, NumClasses] scores. Variables are created
// (or reused) under ctx.
//
// Internally the graph runs channels-last, which is gomlx's default layout
// for convolutions and pooling.
func (m *Model) Apply(ctx *context.Context, images *Node) *Node {
	cfg := m.Config
	dims := images.Shape().Dimensions
	if len(dims) != 4 {
		exceptions.Panicf("vgg: images must be [batch, channels, height, width], got shape %s", images.Shape())
	}
	if dims[1] != cfg.InChannels {
		exceptions.Panicf("vgg: images have %d channels, model %s expects %d", dims[1], cfg.Preset, cfg.InChannels)
	}
	batchSize := dims[0]

	x := TransposeAllDims(images, 0, 2, 3, 1)
	x = m.features(ctx.In("features"), x)
	x = m.classifier(ctx.In("classifier"), x)
	return Reshape(x, batchSize, cfg.NumClasses)
}

func (m *Model) features(ctx *context.Context, x *Node) *Node {
	cfg := m.Config
	convIdx := 0
	for _, s := range m.plan {
		switch s.Kind {
		case StepPool:
			if cfg.Pooling == AvgPooling {
				x = MeanPool(x).Window(2).Strides(2).Done()
			} else {
				x = MaxPool(x).Window(2).Strides(2).Done()
			}
		case StepAdaPool:
			if cfg.Pooling == AvgPooling {
				x = ReduceAndKeep(x, ReduceMean, 1, 2)
			} else {
				x = ReduceAndKeep(x, ReduceMax, 1, 2)
			}
		case StepConv:
			blockCtx := ctx.In(fmt.Sprintf("conv_%02d", convIdx))
			x = layers.Convolution(blockCtx, x).Filters(s.Channels).KernelSize(3).PadSame().Strides(1).Done()
			if cfg.BatchNorm {
				x = batchnorm.New(blockCtx.In("batchnorm"), x, -1).UseBackendInference(false).Done()
			}
			x = activations.Relu(x)
			convIdx++
		}
	}
	return x
}

func (m *Model) classifier(ctx *context.Context, x *Node) *Node {
	cfg := m.Config
	if cfg.DropoutRate > 0 {
		x = layers.DropoutStatic(ctx, x, cfg.DropoutRate)
	}
	x = layers.Convolution(ctx.In("hidden"), x).Filters(cfg.HiddenChannels).KernelSize(1).Done()
	x = layers.Convolution(ctx.In("scores"), x).Filters(cfg.NumClasses).KernelSize(1).Done()
	return x
}

// ModelGraph has the signature of a gomlx train.ModelFn: it takes the image
// batch as the first input and returns the class scores.
func (m *Model) ModelGraph(ctx *context.Context, _ any, inputs []*Node) []*Node {
	return []*Node{m.Apply(ctx, inputs[0])}
}
