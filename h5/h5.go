// Package h5 reads and writes the HDF5 container files holding galaxy image
// cubes. A file is a flat mapping from dataset names to N-dimensional numeric
// arrays, each carrying scalar attributes (the morphology vote fractions used
// as labels).
package h5

import (
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/hdf5"
)

// ErrNoAttribute is returned by Attr when the dataset has no attribute with
// the requested name.
var ErrNoAttribute = errors.New("attribute not found")

// ErrUnsupportedType is returned by ReadFloat32 for datasets whose elements
// are not native integers or floats.
var ErrUnsupportedType = errors.New("unsupported dataset element type")

// Element lists the stored element types ReadFloat32 converts and WriteCube
// writes.
type Element interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// File is an open HDF5 container.
type File struct {
	path string
	f    *hdf5.File
}

// Open opens the HDF5 file at path read-only.
func Open(path string) (*File, error) {
	f, err := hdf5.OpenFile(path, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, errors.Wrapf(err, "open hdf5 file %s", path)
	}
	return &File{path: path, f: f}, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string { return f.path }

// Keys returns the names of the datasets stored at the root of the file,
// sorted lexicographically. Groups and other objects are skipped.
func (f *File) Keys() ([]string, error) {
	n, err := f.f.NumObjects()
	if err != nil {
		return nil, errors.Wrapf(err, "count objects in %s", f.path)
	}
	keys := make([]string, 0, n)
	for i := uint(0); i < n; i++ {
		typ, err := f.f.ObjectTypeByIndex(i)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d type in %s", i, f.path)
		}
		if typ != hdf5.H5G_DATASET {
			continue
		}
		name, err := f.f.ObjectNameByIndex(i)
		if err != nil {
			return nil, errors.Wrapf(err, "object %d name in %s", i, f.path)
		}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys, nil
}

// Dims returns the shape of the named dataset.
func (f *File) Dims(key string) ([]int, error) {
	ds, err := f.f.OpenDataset(key)
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %q in %s", key, f.path)
	}
	defer ds.Close()
	return datasetDims(ds)
}

// ReadFloat32 loads the whole named dataset converted to float32, returning
// the flat row-major values and the dataset shape. Stored float64 values are
// narrowed; integer values of any native width are converted.
func (f *File) ReadFloat32(key string) ([]float32, []int, error) {
	ds, err := f.f.OpenDataset(key)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open dataset %q in %s", key, f.path)
	}
	defer ds.Close()

	dims, err := datasetDims(ds)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "dataset %q in %s", key, f.path)
	}
	n := numElements(dims)
	if n == 0 {
		return []float32{}, dims, nil
	}

	// Read converts nothing: the buffer must match the stored element type.
	dt, err := ds.Datatype()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "datatype of %q in %s", key, f.path)
	}
	defer dt.Close()

	var data []float32
	switch {
	case dt.Equal(hdf5.T_NATIVE_FLOAT):
		data = make([]float32, n)
		err = ds.Read(&data)
	case dt.Equal(hdf5.T_NATIVE_DOUBLE):
		data, err = readAs[float64](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT8):
		data, err = readAs[int8](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT16):
		data, err = readAs[int16](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT32):
		data, err = readAs[int32](ds, n)
	case dt.Equal(hdf5.T_NATIVE_INT64):
		data, err = readAs[int64](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT8):
		data, err = readAs[uint8](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT16):
		data, err = readAs[uint16](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT32):
		data, err = readAs[uint32](ds, n)
	case dt.Equal(hdf5.T_NATIVE_UINT64):
		data, err = readAs[uint64](ds, n)
	default:
		return nil, nil, errors.Wrapf(ErrUnsupportedType, "dataset %q in %s: class %d, %d bytes",
			key, f.path, dt.Class(), dt.Size())
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "read dataset %q in %s", key, f.path)
	}
	return data, dims, nil
}

// readAs reads n stored elements of type T and converts them to float32.
func readAs[T Element](ds *hdf5.Dataset, n int) ([]float32, error) {
	raw := make([]T, n)
	if err := ds.Read(&raw); err != nil {
		return nil, err
	}
	data := make([]float32, n)
	for i, v := range raw {
		data[i] = float32(v)
	}
	return data, nil
}

// Attr reads the scalar attribute name of the dataset key as a float64.
// It returns an error wrapping ErrNoAttribute if the attribute is absent.
func (f *File) Attr(key, name string) (float64, error) {
	ds, err := f.f.OpenDataset(key)
	if err != nil {
		return 0, errors.Wrapf(err, "open dataset %q in %s", key, f.path)
	}
	defer ds.Close()

	attr, err := ds.OpenAttribute(name)
	if err != nil {
		return 0, errors.Wrapf(ErrNoAttribute, "%s: dataset %q attribute %q (%v)", f.path, key, name, err)
	}
	defer attr.Close()

	var v float64
	if err := attr.Read(&v, hdf5.T_NATIVE_DOUBLE); err != nil {
		return 0, errors.Wrapf(err, "read attribute %q of %q in %s", name, key, f.path)
	}
	return v, nil
}

// Close releases the underlying HDF5 handle.
func (f *File) Close() error {
	if f.f == nil {
		return nil
	}
	err := f.f.Close()
	f.f = nil
	return err
}

func datasetDims(ds *hdf5.Dataset) ([]int, error) {
	space := ds.Space()
	defer space.Close()
	udims, _, err := space.SimpleExtentDims()
	if err != nil {
		return nil, errors.Wrap(err, "read dataspace extent")
	}
	dims := make([]int, len(udims))
	for i, d := range udims {
		dims[i] = int(d)
	}
	return dims, nil
}

func numElements(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
