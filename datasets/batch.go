package datasets

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
)

// ImageBatchFlat stores a batch in flat contiguous buffers
type ImageBatchFlat struct {
	Inputs    []float32
	Labels    []float32
	BatchSize int
	Channels  int
	Height    int
	Width     int
	LabelDim  int
}

// MakeImageBatchFlat flattens a batch into contiguous buffers. All samples
// must share one shape and all labels one length.
func MakeImageBatchFlat(samples []*Sample, labels [][]float32) (*ImageBatchFlat, error) {
	if len(samples) != len(labels) {
		return nil, errors.Errorf("samples and labels batch sizes don't match: %d != %d", len(samples), len(labels))
	}
	if len(samples) == 0 {
		return &ImageBatchFlat{}, nil
	}

	first := samples[0]
	b := &ImageBatchFlat{
		BatchSize: len(samples),
		Channels:  first.Channels,
		Height:    first.Height,
		Width:     first.Width,
		LabelDim:  len(labels[0]),
	}
	sampleSize := b.Channels * b.Height * b.Width
	b.Inputs = make([]float32, b.BatchSize*sampleSize)
	b.Labels = make([]float32, b.BatchSize*b.LabelDim)

	for i, s := range samples {
		if s.Channels != b.Channels || s.Height != b.Height || s.Width != b.Width {
			return nil, errors.Wrapf(ErrInconsistentShapes, "example %d has shape %v, example 0 has %v",
				i, s.Shape(), first.Shape())
		}
		if len(labels[i]) != b.LabelDim {
			return nil, errors.Wrapf(ErrInconsistentShapes, "example %d has %d labels, expected %d",
				i, len(labels[i]), b.LabelDim)
		}
		copy(b.Inputs[i*sampleSize:], s.Data)
		copy(b.Labels[i*b.LabelDim:], labels[i])
	}
	return b, nil
}

// ToGomlxTensors converts the batch to a [batch, channels, height, width]
// input tensor and a [batch, labels] label tensor.
func (b *ImageBatchFlat) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 {
		return nil, nil, errors.New("empty batch")
	}
	inT := tensors.FromFlatDataAndDimensions(b.Inputs, b.BatchSize, b.Channels, b.Height, b.Width)
	labT := tensors.FromFlatDataAndDimensions(b.Labels, b.BatchSize, b.LabelDim)
	return inT, labT, nil
}
