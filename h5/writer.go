package h5

import (
	"github.com/pkg/errors"
	"gonum.org/v1/hdf5"
)

// Writer creates HDF5 container files in the layout Open expects. It is used
// to build fixtures and to export corpora.
type Writer struct {
	path string
	f    *hdf5.File
}

// Create creates (truncating) an HDF5 file at path.
func Create(path string) (*Writer, error) {
	f, err := hdf5.CreateFile(path, hdf5.F_ACC_TRUNC)
	if err != nil {
		return nil, errors.Wrapf(err, "create hdf5 file %s", path)
	}
	return &Writer{path: path, f: f}, nil
}

// WriteImage stores data with the given dims as the float32 dataset key and
// attaches each entry of attrs as a scalar float64 attribute.
func (w *Writer) WriteImage(key string, dims []int, data []float32, attrs map[string]float64) error {
	return WriteCube(w, key, dims, data, attrs)
}

// WriteImage64 is WriteImage for float64 cubes, the element type numpy
// writes by default.
func (w *Writer) WriteImage64(key string, dims []int, data []float64, attrs map[string]float64) error {
	return WriteCube(w, key, dims, data, attrs)
}

// WriteCube is WriteImage for any Element type, storing the values with the
// matching native HDF5 type. Raw survey cutouts are often int16 or uint8.
func WriteCube[T Element](w *Writer, key string, dims []int, data []T, attrs map[string]float64) error {
	if numElements(dims) != len(data) {
		return errors.Errorf("dataset %q: %d values do not fill dims %v", key, len(data), dims)
	}
	var zero T
	dtype, err := hdf5.NewDatatypeFromValue(zero)
	if err != nil {
		return errors.Wrapf(err, "datatype for %q", key)
	}
	defer dtype.Close()
	return w.write(key, dims, dtype, &data, attrs)
}

func (w *Writer) write(key string, dims []int, dtype *hdf5.Datatype, data any, attrs map[string]float64) error {
	udims := make([]uint, len(dims))
	for i, d := range dims {
		udims[i] = uint(d)
	}
	space, err := hdf5.CreateSimpleDataspace(udims, nil)
	if err != nil {
		return errors.Wrapf(err, "dataspace for %q", key)
	}
	defer space.Close()

	ds, err := w.f.CreateDataset(key, dtype, space)
	if err != nil {
		return errors.Wrapf(err, "create dataset %q in %s", key, w.path)
	}
	defer ds.Close()
	if err := ds.Write(data); err != nil {
		return errors.Wrapf(err, "write dataset %q in %s", key, w.path)
	}

	for name, v := range attrs {
		if err := writeScalarAttr(ds, name, v); err != nil {
			return errors.Wrapf(err, "dataset %q in %s", key, w.path)
		}
	}
	return nil
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

func writeScalarAttr(ds *hdf5.Dataset, name string, v float64) error {
	scalar, err := hdf5.CreateDataspace(hdf5.S_SCALAR)
	if err != nil {
		return errors.Wrap(err, "scalar dataspace")
	}
	defer scalar.Close()
	attr, err := ds.CreateAttribute(name, hdf5.T_NATIVE_DOUBLE, scalar)
	if err != nil {
		return errors.Wrapf(err, "create attribute %q", name)
	}
	defer attr.Close()
	if err := attr.Write(&v, hdf5.T_NATIVE_DOUBLE); err != nil {
		return errors.Wrapf(err, "write attribute %q", name)
	}
	return nil
}
