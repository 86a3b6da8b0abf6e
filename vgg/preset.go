package vgg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Preset names one of the fixed network depth configurations.
type Preset int

const (
	VGG11Preset Preset = iota
	VGG11NoPoolPreset
	VGG13Preset
	VGG16Preset
	VGG19Preset
)

var presetNames = map[Preset]string{
	VGG11Preset:       "vgg11",
	VGG11NoPoolPreset: "vgg11_nopool",
	VGG13Preset:       "vgg13",
	VGG16Preset:       "vgg16",
	VGG19Preset:       "vgg19",
}

// Presets lists every preset in declaration order.
func Presets() []Preset {
	return []Preset{VGG11Preset, VGG11NoPoolPreset, VGG13Preset, VGG16Preset, VGG19Preset}
}

func (p Preset) String() string {
	if name, ok := presetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Preset(%d)", int(p))
}

// ParsePreset maps a preset name such as "vgg16" to its Preset.
func ParsePreset(name string) (Preset, error) {
	for p, n := range presetNames {
		if n == name {
			return p, nil
		}
	}
	return 0, errors.Errorf("unknown vgg preset %q", name)
}

// StepKind is the kind of one entry of a preset plan.
type StepKind int

const (
	// StepConv is a 3x3 convolution (padding 1, stride 1) to Step.Channels.
	StepConv StepKind = iota
	// StepPool halves the spatial resolution.
	StepPool
	// StepAdaPool reduces the spatial extent to 1x1 and ends the feature stage.
	StepAdaPool
)

// Step is one entry of a preset plan.
type Step struct {
	Kind     StepKind
	Channels int
}

func conv(ch int) Step { return Step{Kind: StepConv, Channels: ch} }

var (
	pool    = Step{Kind: StepPool}
	adapool = Step{Kind: StepAdaPool}
)

// Plan returns the layer plan of p, or an error for an unknown preset.
func Plan(p Preset) ([]Step, error) {
	var plan []Step
	switch p {
	case VGG11Preset:
		plan = []Step{conv(64), pool, conv(128), pool, conv(256), conv(256), pool,
			conv(512), conv(512), pool, conv(512), conv(512), adapool}
	case VGG11NoPoolPreset:
		plan = []Step{conv(64), pool, conv(128), adapool}
	case VGG13Preset:
		plan = []Step{conv(64), conv(64), pool, conv(128), conv(128), pool, conv(256), conv(256), pool,
			conv(512), conv(512), pool, conv(512), conv(512), adapool}
	case VGG16Preset:
		plan = []Step{conv(64), conv(64), pool, conv(128), conv(128), pool, conv(256), conv(256), conv(256), pool,
			conv(512), conv(512), conv(512), pool, conv(512), conv(512), conv(512), adapool}
	case VGG19Preset:
		plan = []Step{conv(64), conv(64), pool, conv(128), conv(128), pool,
			conv(256), conv(256), conv(256), conv(256), pool,
			conv(512), conv(512), conv(512), conv(512), pool,
			conv(512), conv(512), conv(512), conv(512), adapool}
	default:
		return nil, errors.Errorf("unknown vgg preset %s", p)
	}
	return plan, nil
}

// Pooling selects max or average pooling for both the halving pools and the
// final adaptive pool.
type Pooling int

const (
	MaxPooling Pooling = iota
	AvgPooling
)

func (p Pooling) String() string {
	switch p {
	case MaxPooling:
		return "max"
	case AvgPooling:
		return "avg"
	}
	return fmt.Sprintf("Pooling(%d)", int(p))
}

// ParsePooling accepts "max" or "avg".
func ParsePooling(name string) (Pooling, error) {
	switch name {
	case "max":
		return MaxPooling, nil
	case "avg":
		return AvgPooling, nil
	}
	return 0, errors.Errorf("pooling type must be 'max' or 'avg', got %q", name)
}
