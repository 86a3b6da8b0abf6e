package datasets

import (
	"io"
	"math/rand"

	"github.com/Noofbiz/galaxyzoo/h5"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// HDF5Dataset holds every accepted image cube of a directory of HDF5 files in
// memory, with its normalized label vector.
type HDF5Dataset struct {
	cfg Config

	// files are the discovered container paths, in processing order.
	files []string

	// imagesPerFile[i] is the number of samples accepted from files[0..i].
	imagesPerFile []int

	// samples and labels are index aligned.
	samples []*Sample
	labels  [][]float32

	// order is the iteration order used by Yield; Shuffle permutes it.
	order  []int
	cursor int
	rand   *rand.Rand
}

// NewHDF5Dataset discovers the container files of cfg.Dir and loads every
// entry accepted by the pixel range into memory.
func NewHDF5Dataset(cfg Config) (*HDF5Dataset, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	files, err := FindContainers(cfg.Dir, cfg.Extension, cfg.Recursive)
	if err != nil {
		return nil, err
	}

	ds := &HDF5Dataset{
		cfg:           cfg,
		files:         files,
		imagesPerFile: make([]int, 0, len(files)),
	}
	for _, path := range files {
		if err := ds.loadFile(path); err != nil {
			return nil, err
		}
		ds.imagesPerFile = append(ds.imagesPerFile, len(ds.samples))
	}
	if cfg.Pad {
		if err := ds.padSamples(); err != nil {
			return nil, err
		}
	}

	if len(ds.samples) == 0 {
		return nil, errors.Wrapf(ErrNoSamples, "%d files in %s, pixel range [%d, %d]",
			len(files), cfg.Dir, cfg.MinPixelDims, cfg.MaxPixelDims)
	}
	ds.resetOrder()
	klog.Infof("Total number of images: %d (%s in memory)", len(ds.samples), humanize.Bytes(ds.SizeBytes()))
	return ds, nil
}

// loadFile appends the accepted entries of one container to the corpus.
func (d *HDF5Dataset) loadFile(path string) (err error) {
	c, err := d.cfg.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()

	keys, err := c.Keys()
	if err != nil {
		return errors.Wrapf(err, "list entries of %s", path)
	}

	accepted := 0
	for _, key := range keys {
		dims, err := c.Dims(key)
		if err != nil {
			return errors.Wrapf(err, "%s: entry %q", path, key)
		}
		if len(dims) < 2 || dims[1] < d.cfg.MinPixelDims || dims[1] > d.cfg.MaxPixelDims {
			continue
		}
		if len(dims) != 3 {
			return errors.Wrapf(ErrBadRank, "%s: entry %q has shape %v", path, key, dims)
		}

		sample, err := readSample(c, key)
		if err != nil {
			return errors.Wrapf(err, "%s: entry %q", path, key)
		}
		label, err := d.readLabel(c, key)
		if err != nil {
			return errors.Wrapf(err, "%s: entry %q", path, key)
		}

		d.samples = append(d.samples, sample)
		d.labels = append(d.labels, label)
		accepted++
	}
	klog.V(1).Infof("%s: accepted %d of %d entries", path, accepted, len(keys))
	return nil
}

// padSamples pads every sample to MaxPixelDims on a bounded pool of
// goroutines. HDF5 reads stay on the loading goroutine since the C library is
// not built thread safe.
func (d *HDF5Dataset) padSamples() error {
	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i := range d.samples {
		g.Go(func() error {
			s := d.samples[i]
			if len(s.Data) != s.Channels*s.Height*s.Width {
				return errors.Wrapf(ErrSampleSize, "sample %d: %d values for shape (%d, %d, %d)",
					i, len(s.Data), s.Channels, s.Height, s.Width)
			}
			d.samples[i] = PadTo(s, d.cfg.MaxPixelDims)
			return nil
		})
	}
	return errors.Wrap(g.Wait(), "pad samples")
}

func readSample(c Container, key string) (*Sample, error) {
	data, dims, err := c.ReadFloat32(key)
	if err != nil {
		return nil, err
	}
	if len(dims) != 3 {
		return nil, errors.Wrapf(ErrBadRank, "shape %v", dims)
	}
	if len(data) != dims[0]*dims[1]*dims[2] {
		return nil, errors.Wrapf(ErrSampleSize, "read %d values for shape %v", len(data), dims)
	}
	return &Sample{Channels: dims[0], Height: dims[1], Width: dims[2], Data: data}, nil
}

func (d *HDF5Dataset) readLabel(c Container, key string) ([]float32, error) {
	raw := make([]float64, len(d.cfg.LabelKeys))
	for i, name := range d.cfg.LabelKeys {
		v, err := c.Attr(key, name)
		if err != nil {
			if errors.Is(err, h5.ErrNoAttribute) {
				return nil, errors.Wrapf(ErrMissingLabel, "attribute %q", name)
			}
			return nil, err
		}
		raw[i] = v
	}
	label, err := normalizeLabel(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "label keys %v", d.cfg.LabelKeys)
	}
	return label, nil
}

// Len returns the number of accepted samples.
func (d *HDF5Dataset) Len() int {
	return len(d.samples)
}

// Example returns the stored sample and label at index i. The transform, if
// any, is not applied.
func (d *HDF5Dataset) Example(i int) (*Sample, []float32, error) {
	if i < 0 || i >= len(d.samples) {
		return nil, nil, errors.Wrapf(ErrIndexOutOfRange, "index %d, want [0, %d)", i, len(d.samples))
	}
	return d.samples[i], d.labels[i], nil
}

// Batch returns the examples at indices, passing each sample through the
// configured transform.
func (d *HDF5Dataset) Batch(indices []int) ([]*Sample, [][]float32, error) {
	samples := make([]*Sample, len(indices))
	labels := make([][]float32, len(indices))
	for pos, idx := range indices {
		s, l, err := d.Example(idx)
		if err != nil {
			return nil, nil, err
		}
		if d.cfg.Transform != nil {
			if s, err = d.cfg.Transform(s); err != nil {
				return nil, nil, errors.Wrapf(err, "transform sample %d", idx)
			}
		}
		samples[pos] = s
		labels[pos] = l
	}
	return samples, labels, nil
}

// Files returns the container files that were loaded, in processing order.
func (d *HDF5Dataset) Files() []string {
	return append([]string(nil), d.files...)
}

// ImagesPerFile returns, for each file, the cumulative number of samples
// accepted up to and including it.
func (d *HDF5Dataset) ImagesPerFile() []int {
	return append([]int(nil), d.imagesPerFile...)
}

// Config returns the effective configuration, defaults included.
func (d *HDF5Dataset) Config() Config {
	return d.cfg
}

// SetTransform replaces the transform used by Batch and Yield.
func (d *HDF5Dataset) SetTransform(t Transform) {
	d.cfg.Transform = t
}

// SizeBytes is the memory held by sample and label values.
func (d *HDF5Dataset) SizeBytes() uint64 {
	var n uint64
	for i, s := range d.samples {
		n += uint64(len(s.Data)+len(d.labels[i])) * 4
	}
	return n
}

func (d *HDF5Dataset) resetOrder() {
	d.order = make([]int, len(d.samples))
	for i := range d.order {
		d.order[i] = i
	}
	d.cursor = 0
}

// Shuffle permutes the order in which Yield visits examples and restarts the
// epoch. It does not change what Example returns for an index.
func (d *HDF5Dataset) Shuffle(seed int64) {
	d.rand = rand.New(rand.NewSource(seed))
	d.rand.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	d.cursor = 0
}

// Tensors reads a batch of examples and returns them as gomlx tensors
func (d *HDF5Dataset) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	samples, labs, err := d.Batch(indices)
	if err != nil {
		return nil, nil, err
	}
	flat, err := MakeImageBatchFlat(samples, labs)
	if err != nil {
		return nil, nil, err
	}
	return flat.ToGomlxTensors()
}

// Name returns the name of the dataset
func (d *HDF5Dataset) Name() string {
	return "HDF5Dataset"
}

// Yield returns the next batch of Config.BatchSize examples (the last batch
// of an epoch may be smaller) as [batch, channels, height, width] inputs and
// [batch, labels] targets. It returns io.EOF once the epoch is exhausted.
func (d *HDF5Dataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= len(d.order) {
		return nil, nil, nil, io.EOF
	}
	end := min(d.cursor+d.cfg.BatchSize, len(d.order))
	indices := d.order[d.cursor:end]
	d.cursor = end

	in, la, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Reset starts a new epoch, keeping the current (possibly shuffled) order.
func (d *HDF5Dataset) Reset() {
	d.cursor = 0
}
