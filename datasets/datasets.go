package datasets

import "github.com/gomlx/gomlx/pkg/core/tensors"

// This package loads galaxy image cubes stored in HDF5 container files and
// presents them as (sample, label) examples suitable for model training.
//
// Unlike a lazily loaded dataset, the whole corpus is read into memory while
// the dataset is constructed: every container file in the directory is opened
// once, in lexicographic path order, and every accepted entry is copied out.
// Afterwards the corpus is read-only.
//
// Layout and intended usage:
//
// HDF5Dataset
//   - Discovers *.hdf5 files in a directory (optionally recursively)
//   - Keeps entries whose height lies within [MinPixelDims, MaxPixelDims]
//   - Optionally zero-pads accepted entries to MaxPixelDims
//   - Sample per example: image cube (channels, height, width) as float32
//   - Label per example: one value per label key, normalized to sum to 1
//
// The datasets implement this interface in order to interact with GoMLX
// training loops and batching utilities.
type Dataset interface {
	Len() int
	Example(i int) (sample *Sample, label []float32, err error)
	Batch(indices []int) (samples []*Sample, labels [][]float32, err error)
	Shuffle(seed int64)

	// To implement gomlx's train.Dataset interface
	Name() string
	Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error)
	Reset()
}

// Transform is applied by the batching pipeline (Batch and Yield) to every
// sample it hands out. Example never applies it.
type Transform func(s *Sample) (*Sample, error)
