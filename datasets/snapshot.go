package datasets

import (
	"bufio"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// snapshotVersion is incremented when the on-disk snapshot format changes.
const snapshotVersion = 1

// Compression selects how a snapshot stream is compressed.
type Compression uint8

const (
	// CompressionNone writes the gob stream as is.
	CompressionNone Compression = 0
	// CompressionLZ4 favors speed.
	CompressionLZ4 Compression = 1
	// CompressionZSTD favors ratio.
	CompressionZSTD Compression = 2
)

// ParseCompression maps "none", "lz4" and "zstd" to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	}
	return 0, errors.Errorf("unknown compression %q, want none, lz4 or zstd", name)
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	}
	return "unknown"
}

// snapshotConfig is the serializable part of Config.
type snapshotConfig struct {
	Dir          string
	Recursive    bool
	MinPixelDims int
	MaxPixelDims int
	Pad          bool
	LabelKeys    []string
	Extension    string
	BatchSize    int
}

type snapshotFormat struct {
	Version       int
	CreatedAt     int64
	Config        snapshotConfig
	Files         []string
	ImagesPerFile []int
	Samples       []*Sample
	Labels        [][]float32
}

// SaveSnapshot writes the whole corpus of ds to path so it can be reloaded
// without re-reading the container files. The write is atomic: data goes to a
// temporary file in the same directory that is renamed over path.
func SaveSnapshot(path string, ds *HDF5Dataset, c Compression) error {
	if path == "" {
		return errors.New("empty snapshot path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot file")
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	bw := bufio.NewWriter(tmpFile)
	if err := bw.WriteByte(byte(c)); err != nil {
		return errors.Wrap(err, "write snapshot header")
	}
	w, err := compressWriter(bw, c)
	if err != nil {
		return err
	}

	cfg := ds.cfg
	sf := snapshotFormat{
		Version:   snapshotVersion,
		CreatedAt: time.Now().Unix(),
		Config: snapshotConfig{
			Dir:          cfg.Dir,
			Recursive:    cfg.Recursive,
			MinPixelDims: cfg.MinPixelDims,
			MaxPixelDims: cfg.MaxPixelDims,
			Pad:          cfg.Pad,
			LabelKeys:    cfg.LabelKeys,
			Extension:    cfg.Extension,
			BatchSize:    cfg.BatchSize,
		},
		Files:         ds.files,
		ImagesPerFile: ds.imagesPerFile,
		Samples:       ds.samples,
		Labels:        ds.labels,
	}
	if err := gob.NewEncoder(w).Encode(&sf); err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "finish snapshot compression")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush snapshot")
	}
	if err := tmpFile.Sync(); err != nil {
		klog.Warningf("sync temp snapshot file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "close temp snapshot file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename temp snapshot to target")
	}
	klog.V(1).Infof("wrote snapshot %s (%d samples, %s)", path, len(ds.samples), c)
	return nil
}

// LoadSnapshot reads a corpus written by SaveSnapshot. The returned dataset
// has no transform and cannot reopen container files.
func LoadSnapshot(path string) (*HDF5Dataset, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot %s", path)
	}
	defer fh.Close()

	br := bufio.NewReader(fh)
	header, err := br.ReadByte()
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot header %s", path)
	}
	r, closeFn, err := decompressReader(br, Compression(header))
	if err != nil {
		return nil, errors.Wrapf(err, "snapshot %s", path)
	}
	defer closeFn()

	var sf snapshotFormat
	if err := gob.NewDecoder(r).Decode(&sf); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", path)
	}
	if sf.Version != snapshotVersion {
		return nil, errors.Errorf("snapshot version mismatch: snapshot=%d expected=%d", sf.Version, snapshotVersion)
	}
	if len(sf.Samples) != len(sf.Labels) {
		return nil, errors.Errorf("snapshot %s: %d samples but %d labels", path, len(sf.Samples), len(sf.Labels))
	}
	if len(sf.Samples) == 0 {
		return nil, errors.Wrapf(ErrNoSamples, "snapshot %s", path)
	}

	sc := sf.Config
	ds := &HDF5Dataset{
		cfg: Config{
			Dir:          sc.Dir,
			Recursive:    sc.Recursive,
			MinPixelDims: sc.MinPixelDims,
			MaxPixelDims: sc.MaxPixelDims,
			Pad:          sc.Pad,
			LabelKeys:    sc.LabelKeys,
			Extension:    sc.Extension,
			BatchSize:    sc.BatchSize,
		},
		files:         sf.Files,
		imagesPerFile: sf.ImagesPerFile,
		samples:       sf.Samples,
		labels:        sf.Labels,
	}
	if ds.cfg.BatchSize <= 0 {
		ds.cfg.BatchSize = 1
	}
	for i, l := range ds.labels {
		// gob drops empty slices; keep labels non-nil like a fresh load.
		if l == nil {
			ds.labels[i] = []float32{}
		}
	}
	ds.resetOrder()
	return ds, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, errors.Wrap(err, "create zstd encoder")
		}
		return enc, nil
	}
	return nil, errors.Errorf("unknown compression %d", c)
}

func decompressReader(r io.Reader, c Compression) (io.Reader, func(), error) {
	switch c {
	case CompressionNone:
		return r, func() {}, nil
	case CompressionLZ4:
		return lz4.NewReader(r), func() {}, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, errors.Wrap(err, "create zstd decoder")
		}
		return dec, dec.Close, nil
	}
	return nil, nil, errors.Errorf("unknown compression %d", c)
}
