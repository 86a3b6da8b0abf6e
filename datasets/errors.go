package datasets

import "github.com/pkg/errors"

var (
	// ErrDirNotFound is returned when the configured directory does not exist
	// or is not a directory.
	ErrDirNotFound = errors.New("dataset directory not found")

	// ErrNoContainerFiles is returned when no container file with the
	// configured extension was found.
	ErrNoContainerFiles = errors.New("no hdf5 files found in directory")

	// ErrNoSamples is returned when no entry passed the dimension filter.
	ErrNoSamples = errors.New("no datasets found in hdf5 files")

	// ErrMissingLabel is returned when an accepted entry lacks one of the
	// configured label attributes.
	ErrMissingLabel = errors.New("missing label attribute")

	// ErrZeroLabelMass is returned when the label attributes of an entry sum
	// to zero and cannot be normalized.
	ErrZeroLabelMass = errors.New("label values sum to zero")

	// ErrIndexOutOfRange is returned by Example and Batch for indices outside
	// [0, Len()).
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidRange is returned when the pixel dimension bounds are unusable.
	ErrInvalidRange = errors.New("invalid pixel dimension range")

	// ErrBadRank is returned for accepted-size entries that are not 3D cubes.
	ErrBadRank = errors.New("dataset entry is not a (channel, height, width) cube")

	// ErrSampleSize is returned when a sample's data does not hold exactly
	// channels*height*width values.
	ErrSampleSize = errors.New("sample data does not match its shape")

	// ErrInconsistentShapes is returned when samples of different shapes are
	// stacked into one batch.
	ErrInconsistentShapes = errors.New("inconsistent sample shapes in batch")
)
