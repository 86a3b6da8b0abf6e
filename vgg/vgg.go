// Package vgg builds the VGG-style convolutional classifier used on galaxy
// image cubes.
//
// A model is a feature stage read from a preset plan (3x3 convolutions, each
// optionally followed by batch normalization, then ReLU; 2x2 pooling between
// blocks; a final adaptive pool to 1x1) and a classifier head: dropout and two
// 1x1 convolutions, first to HiddenChannels and then to NumClasses, reshaped
// to one score vector per image.
//
// The graph is built with gomlx; parameters live in the *context.Context the
// caller passes to Apply, so training is left to gomlx's train package.
package vgg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Config holds the hyperparameters of a Model.
type Config struct {
	// Preset selects the feature stage plan.
	Preset Preset

	// InChannels is the number of image bands. Default: 5.
	InChannels int

	// BatchNorm inserts batch normalization after every convolution.
	BatchNorm bool

	// Pooling selects max or average pooling. Default: MaxPooling.
	Pooling Pooling

	// NumClasses is the length of the score vector. Default: 6.
	NumClasses int

	// HiddenChannels is the width of the first 1x1 classifier convolution.
	// Default: 100.
	HiddenChannels int

	// DropoutRate applied before the classifier during training.
	// Default: 0.5. Negative disables dropout.
	DropoutRate float64
}

// Model is a constructed network description. It is immutable and holds no
// weights.
type Model struct {
	Config Config

	plan []Step

	// featureChannels is the channel count entering the classifier.
	featureChannels int
}

// New validates cfg, fills in defaults and returns the Model. Zero-valued
// fields take their documented defaults, so InChannels 0 means 5 bands.
func New(cfg Config) (*Model, error) {
	if cfg.InChannels == 0 {
		cfg.InChannels = 5
	}
	if cfg.NumClasses == 0 {
		cfg.NumClasses = 6
	}
	if cfg.HiddenChannels == 0 {
		cfg.HiddenChannels = 100
	}
	if cfg.DropoutRate == 0 {
		cfg.DropoutRate = 0.5
	}
	if cfg.InChannels < 0 || cfg.NumClasses < 0 || cfg.HiddenChannels < 0 {
		return nil, errors.Errorf("vgg: channel counts must be positive: in=%d hidden=%d classes=%d",
			cfg.InChannels, cfg.HiddenChannels, cfg.NumClasses)
	}
	if cfg.DropoutRate >= 1 {
		return nil, errors.Errorf("vgg: dropout rate %g must be < 1", cfg.DropoutRate)
	}
	if cfg.Pooling != MaxPooling && cfg.Pooling != AvgPooling {
		return nil, errors.Errorf("vgg: unknown pooling %s", cfg.Pooling)
	}

	plan, err := Plan(cfg.Preset)
	if err != nil {
		return nil, err
	}
	m := &Model{Config: cfg, plan: plan, featureChannels: cfg.InChannels}
	for _, s := range plan {
		if s.Kind == StepConv {
			m.featureChannels = s.Channels
		}
	}
	return m, nil
}

// newPreset builds a factory model. Unlike New, it takes inChannels literally:
// zero is an error rather than the default.
func newPreset(p Preset, inChannels int, batchNorm bool) (*Model, error) {
	if inChannels <= 0 {
		return nil, errors.Errorf("vgg: %s needs a positive channel count, got %d", p, inChannels)
	}
	return New(Config{Preset: p, InChannels: inChannels, BatchNorm: batchNorm})
}

// VGG11 returns the 11-layer model with max pooling.
func VGG11(inChannels int) (*Model, error) { return newPreset(VGG11Preset, inChannels, false) }

// VGG11BN is VGG11 with batch normalization.
func VGG11BN(inChannels int) (*Model, error) { return newPreset(VGG11Preset, inChannels, true) }

// VGG11NoPool is the shallow two-convolution variant.
func VGG11NoPool(inChannels int) (*Model, error) {
	return newPreset(VGG11NoPoolPreset, inChannels, false)
}

// VGG13 returns the 13-layer model with max pooling.
func VGG13(inChannels int) (*Model, error) { return newPreset(VGG13Preset, inChannels, false) }

// VGG13BN is VGG13 with batch normalization.
func VGG13BN(inChannels int) (*Model, error) { return newPreset(VGG13Preset, inChannels, true) }

// VGG16 returns the 16-layer model with max pooling.
func VGG16(inChannels int) (*Model, error) { return newPreset(VGG16Preset, inChannels, false) }

// VGG16BN is VGG16 with batch normalization.
func VGG16BN(inChannels int) (*Model, error) { return newPreset(VGG16Preset, inChannels, true) }

// VGG19 returns the 19-layer model with max pooling.
func VGG19(inChannels int) (*Model, error) { return newPreset(VGG19Preset, inChannels, false) }

// VGG19BN is VGG19 with batch normalization.
func VGG19BN(inChannels int) (*Model, error) { return newPreset(VGG19Preset, inChannels, true) }

// Plan returns the preset plan the model was built from.
func (m *Model) Plan() []Step {
	return append([]Step(nil), m.plan...)
}

// LayerKind identifies one concrete layer of a Model.
type LayerKind string

const (
	LayerConv            LayerKind = "conv2d"
	LayerBatchNorm       LayerKind = "batchnorm"
	LayerReLU            LayerKind = "relu"
	LayerMaxPool         LayerKind = "maxpool"
	LayerAvgPool         LayerKind = "avgpool"
	LayerAdaptiveMaxPool LayerKind = "adaptive_maxpool"
	LayerAdaptiveAvgPool LayerKind = "adaptive_avgpool"
	LayerDropout         LayerKind = "dropout"
	LayerReshape         LayerKind = "reshape"
)

// Layer describes one layer of the expanded network.
type Layer struct {
	Kind LayerKind

	// InChannels and OutChannels are set for convolutions and batch norm.
	InChannels, OutChannels int

	// Kernel, Stride and Padding are set for convolutions and pools.
	Kernel, Stride, Padding int

	// Rate is the dropout rate.
	Rate float64
}

func (l Layer) String() string {
	switch l.Kind {
	case LayerConv:
		return fmt.Sprintf("%s(%d -> %d, kernel=%d, stride=%d, padding=%d)",
			l.Kind, l.InChannels, l.OutChannels, l.Kernel, l.Stride, l.Padding)
	case LayerBatchNorm:
		return fmt.Sprintf("%s(%d)", l.Kind, l.OutChannels)
	case LayerMaxPool, LayerAvgPool:
		return fmt.Sprintf("%s(kernel=%d, stride=%d)", l.Kind, l.Kernel, l.Stride)
	case LayerAdaptiveMaxPool, LayerAdaptiveAvgPool:
		return fmt.Sprintf("%s(1)", l.Kind)
	case LayerDropout:
		return fmt.Sprintf("%s(%g)", l.Kind, l.Rate)
	case LayerReshape:
		return fmt.Sprintf("%s(batch, %d)", l.Kind, l.OutChannels)
	}
	return string(l.Kind)
}

// Layers expands the model into its concrete layer sequence, feature stage
// first, then the classifier head.
func (m *Model) Layers() []Layer {
	cfg := m.Config
	var out []Layer
	in := cfg.InChannels
	for _, s := range m.plan {
		switch s.Kind {
		case StepPool:
			kind := LayerMaxPool
			if cfg.Pooling == AvgPooling {
				kind = LayerAvgPool
			}
			out = append(out, Layer{Kind: kind, Kernel: 2, Stride: 2})
		case StepAdaPool:
			kind := LayerAdaptiveMaxPool
			if cfg.Pooling == AvgPooling {
				kind = LayerAdaptiveAvgPool
			}
			out = append(out, Layer{Kind: kind})
		case StepConv:
			out = append(out, Layer{Kind: LayerConv, InChannels: in, OutChannels: s.Channels, Kernel: 3, Stride: 1, Padding: 1})
			if cfg.BatchNorm {
				out = append(out, Layer{Kind: LayerBatchNorm, InChannels: s.Channels, OutChannels: s.Channels})
			}
			out = append(out, Layer{Kind: LayerReLU})
			in = s.Channels
		}
	}
	if cfg.DropoutRate > 0 {
		out = append(out, Layer{Kind: LayerDropout, Rate: cfg.DropoutRate})
	}
	out = append(out,
		Layer{Kind: LayerConv, InChannels: m.featureChannels, OutChannels: cfg.HiddenChannels, Kernel: 1, Stride: 1},
		Layer{Kind: LayerConv, InChannels: cfg.HiddenChannels, OutChannels: cfg.NumClasses, Kernel: 1, Stride: 1},
		Layer{Kind: LayerReshape, OutChannels: cfg.NumClasses},
	)
	return out
}

// OutputShape returns the output shape for a [batch, channels, height, width]
// input, or an error if the input does not fit the model.
func (m *Model) OutputShape(batch, channels, height, width int) ([]int, error) {
	if channels != m.Config.InChannels {
		return nil, errors.Errorf("vgg: input has %d channels, model expects %d", channels, m.Config.InChannels)
	}
	if batch <= 0 || height <= 0 || width <= 0 {
		return nil, errors.Errorf("vgg: invalid input shape [%d, %d, %d, %d]", batch, channels, height, width)
	}
	h, w := height, width
	for _, s := range m.plan {
		if s.Kind != StepPool {
			continue
		}
		h, w = h/2, w/2
		if h == 0 || w == 0 {
			return nil, errors.Errorf("vgg: %dx%d input is too small for preset %s", height, width, m.Config.Preset)
		}
	}
	return []int{batch, m.Config.NumClasses}, nil
}

// String summarizes the model, one layer per line.
func (m *Model) String() string {
	s := fmt.Sprintf("%s(in=%d, batchnorm=%t, pooling=%s, classes=%d)\n",
		m.Config.Preset, m.Config.InChannels, m.Config.BatchNorm, m.Config.Pooling, m.Config.NumClasses)
	for i, l := range m.Layers() {
		s += fmt.Sprintf("  %2d: %s\n", i, l)
	}
	return s
}
