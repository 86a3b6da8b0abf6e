package datasets

import (
	"runtime"

	"github.com/Noofbiz/galaxyzoo/h5"
	"github.com/pkg/errors"
)

// DefaultExtension is the file extension of container files picked up by
// discovery when Config.Extension is empty.
const DefaultExtension = ".hdf5"

// Container is an opened dataset file: a mapping from entry names to numeric
// arrays, each with scalar attributes. *h5.File implements it.
type Container interface {
	// Keys lists entry names in lexicographic order.
	Keys() ([]string, error)
	// Dims returns the shape of an entry without loading it.
	Dims(key string) ([]int, error)
	// ReadFloat32 loads a whole entry as float32 in row-major order.
	ReadFloat32(key string) ([]float32, []int, error)
	// Attr reads a scalar attribute of an entry. A missing attribute yields
	// an error wrapping h5.ErrNoAttribute.
	Attr(key, name string) (float64, error)
	Close() error
}

// OpenFunc opens the container file at path.
type OpenFunc func(path string) (Container, error)

// OpenHDF5 is the default OpenFunc.
func OpenHDF5(path string) (Container, error) {
	f, err := h5.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Config holds the construction parameters of an HDF5Dataset.
type Config struct {
	// Dir is the directory holding the container files. It must exist.
	Dir string `json:"dir"`

	// Recursive searches Dir at any depth instead of only its direct children.
	Recursive bool `json:"recursive"`

	// MinPixelDims and MaxPixelDims bound, inclusively, the height (second
	// dimension) of accepted entries.
	MinPixelDims int `json:"min_pixel_dims"`
	MaxPixelDims int `json:"max_pixel_dims"`

	// Pad zero-pads accepted entries smaller than MaxPixelDims up to it.
	Pad bool `json:"pad"`

	// LabelKeys names the attributes forming each label vector, in order.
	LabelKeys []string `json:"label_keys"`

	// Extension of container files. Default: DefaultExtension.
	Extension string `json:"extension"`

	// BatchSize used by Yield. Default: 1.
	BatchSize int `json:"batch_size"`

	// Workers bounds the goroutines padding samples after loading.
	// Default: runtime.NumCPU().
	Workers int `json:"workers"`

	// Transform, if set, is applied to samples by Batch and Yield.
	Transform Transform `json:"-"`

	// Open opens container files. Default: OpenHDF5.
	Open OpenFunc `json:"-"`
}

// withDefaults returns a copy of c with zero values replaced by defaults and
// validates the pixel range.
func (c Config) withDefaults() (Config, error) {
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.Open == nil {
		c.Open = OpenHDF5
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.MinPixelDims < 0 || c.MaxPixelDims <= 0 || c.MinPixelDims > c.MaxPixelDims {
		return c, errors.Wrapf(ErrInvalidRange, "[%d, %d]", c.MinPixelDims, c.MaxPixelDims)
	}
	c.LabelKeys = append([]string(nil), c.LabelKeys...)
	return c, nil
}
