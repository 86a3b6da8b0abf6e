// Command inspect loads a directory of HDF5 galaxy cubes, logs corpus
// statistics, writes label and size plots and optionally saves a snapshot of
// the loaded corpus.
//
// Usage:
//
//	go run ./cmd/inspect -dir data/train -min 32 -max 128 -pad \
//	    -labels smooth,disk,artifact -plots plots -snapshot output/train.snap
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Noofbiz/galaxyzoo/datasets"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"k8s.io/klog/v2"
)

// fileConfig is the JSON configuration file. Flags given on the command line
// take precedence over its values.
type fileConfig struct {
	Dataset     datasets.Config `json:"dataset"`
	Plots       string          `json:"plots"`
	Snapshot    string          `json:"snapshot"`
	Compression string          `json:"compression"`
	Seed        int64           `json:"seed"`
	Batches     int             `json:"batches"`
}

func loadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, errors.Wrapf(err, "read config %s", path)
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return fc, errors.Wrapf(err, "parse config %s", path)
	}
	return fc, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	configPath := flag.String("config", "", "optional JSON config file; explicit flags override its values")
	dir := flag.String("dir", "", "directory holding the HDF5 containers")
	recursive := flag.Bool("recursive", false, "also search subdirectories")
	minDims := flag.Int("min", 0, "minimum accepted image height in pixels")
	maxDims := flag.Int("max", 128, "maximum accepted image height in pixels")
	pad := flag.Bool("pad", false, "zero-pad every sample to -max pixels")
	labels := flag.String("labels", "", "comma-separated attribute names forming the label vector")
	ext := flag.String("ext", datasets.DefaultExtension, "container file extension")
	batchSize := flag.Int("batch-size", 16, "batch size used when iterating the corpus")
	workers := flag.Int("workers", 0, "number of goroutines used to pad samples (0 = NumCPU)")
	fromSnapshot := flag.String("from-snapshot", "", "load the corpus from this snapshot instead of -dir")
	plotsDir := flag.String("plots", "", "if set, write label and size plots into this directory")
	snapshot := flag.String("snapshot", "", "if set, save the loaded corpus to this path")
	compression := flag.String("compression", "zstd", "snapshot compression: none, lz4 or zstd")
	seed := flag.Int64("seed", 0, "if non-zero, shuffle the iteration order with this seed")
	batches := flag.Int("batches", 1, "number of batches to pull through the gomlx pipeline")
	printEffectiveConfig := flag.Bool("print-effective-config", false, "print the effective (JSON+CLI merged) configuration and exit")
	flag.Parse()

	fc := fileConfig{
		Dataset: datasets.Config{
			MaxPixelDims: 128,
			Extension:    datasets.DefaultExtension,
			BatchSize:    16,
		},
		Compression: "zstd",
		Batches:     1,
	}
	if *configPath != "" {
		loaded, err := loadFileConfig(*configPath)
		if err != nil {
			klog.Fatalf("failed to load config: %v", err)
		}
		fc = mergeFileConfig(fc, loaded)
		klog.Infof("Loaded config from %s", *configPath)
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "dir":
			fc.Dataset.Dir = *dir
		case "recursive":
			fc.Dataset.Recursive = *recursive
		case "min":
			fc.Dataset.MinPixelDims = *minDims
		case "max":
			fc.Dataset.MaxPixelDims = *maxDims
		case "pad":
			fc.Dataset.Pad = *pad
		case "labels":
			fc.Dataset.LabelKeys = splitList(*labels)
		case "ext":
			fc.Dataset.Extension = *ext
		case "batch-size":
			fc.Dataset.BatchSize = *batchSize
		case "workers":
			fc.Dataset.Workers = *workers
		case "plots":
			fc.Plots = *plotsDir
		case "snapshot":
			fc.Snapshot = *snapshot
		case "compression":
			fc.Compression = *compression
		case "seed":
			fc.Seed = *seed
		case "batches":
			fc.Batches = *batches
		}
	})

	if *printEffectiveConfig {
		out, err := json.MarshalIndent(fc, "", "  ")
		if err != nil {
			klog.Fatalf("failed to marshal effective config: %v", err)
		}
		fmt.Println(string(out))
		return
	}

	comp, err := datasets.ParseCompression(fc.Compression)
	if err != nil {
		klog.Fatalf("%v", err)
	}

	var ds *datasets.HDF5Dataset
	if *fromSnapshot != "" {
		ds, err = datasets.LoadSnapshot(*fromSnapshot)
		if err != nil {
			klog.Fatalf("failed to load snapshot: %v", err)
		}
		klog.Infof("Loaded %d samples from snapshot %s", ds.Len(), *fromSnapshot)
	} else {
		if fc.Dataset.Dir == "" {
			klog.Fatalf("either -dir or -from-snapshot is required")
		}
		ds, err = datasets.NewHDF5Dataset(fc.Dataset)
		if err != nil {
			klog.Fatalf("failed to load dataset: %v", err)
		}
	}

	st := datasets.ComputeStats(ds)
	klog.Infof("Corpus statistics:\n%s", st)

	if fc.Seed != 0 {
		ds.Shuffle(fc.Seed)
	}
	if err := pullBatches(ds, fc.Batches); err != nil {
		klog.Fatalf("failed to iterate dataset: %v", err)
	}

	if fc.Plots != "" {
		if err := plotLabels(fc.Plots, st); err != nil {
			klog.Fatalf("failed to generate label plot: %v", err)
		}
		if err := plotHeights(fc.Plots, st); err != nil {
			klog.Fatalf("failed to generate size plot: %v", err)
		}
		klog.Infof("Wrote plots to %s", fc.Plots)
	}

	if fc.Snapshot != "" {
		if err := datasets.SaveSnapshot(fc.Snapshot, ds, comp); err != nil {
			klog.Fatalf("failed to save snapshot: %v", err)
		}
		klog.Infof("Saved snapshot to %s (%s)", fc.Snapshot, comp)
	}
}

// mergeFileConfig overlays the non-zero values of loaded onto base.
func mergeFileConfig(base, loaded fileConfig) fileConfig {
	d := loaded.Dataset
	if d.Dir != "" {
		base.Dataset.Dir = d.Dir
	}
	if d.Recursive {
		base.Dataset.Recursive = true
	}
	if d.MinPixelDims != 0 {
		base.Dataset.MinPixelDims = d.MinPixelDims
	}
	if d.MaxPixelDims != 0 {
		base.Dataset.MaxPixelDims = d.MaxPixelDims
	}
	if d.Pad {
		base.Dataset.Pad = true
	}
	if len(d.LabelKeys) > 0 {
		base.Dataset.LabelKeys = d.LabelKeys
	}
	if d.Extension != "" {
		base.Dataset.Extension = d.Extension
	}
	if d.BatchSize != 0 {
		base.Dataset.BatchSize = d.BatchSize
	}
	if d.Workers != 0 {
		base.Dataset.Workers = d.Workers
	}
	if loaded.Plots != "" {
		base.Plots = loaded.Plots
	}
	if loaded.Snapshot != "" {
		base.Snapshot = loaded.Snapshot
	}
	if loaded.Compression != "" {
		base.Compression = loaded.Compression
	}
	if loaded.Seed != 0 {
		base.Seed = loaded.Seed
	}
	if loaded.Batches != 0 {
		base.Batches = loaded.Batches
	}
	return base
}

// pullBatches runs up to n batches through Yield and logs their shapes.
func pullBatches(ds *datasets.HDF5Dataset, n int) error {
	defer ds.Reset()
	for i := 0; i < n; i++ {
		_, inputs, labels, err := ds.Yield()
		if err == io.EOF {
			klog.Infof("Epoch ended after %d batches", i)
			return nil
		}
		if err != nil {
			return err
		}
		klog.Infof("Batch %d: inputs %s labels %s", i, inputs[0].Shape(), labels[0].Shape())
	}
	return nil
}

// plotLabels writes a bar chart of the mean label value per key and another
// of how many samples each key dominates.
func plotLabels(outDir string, st datasets.Stats) error {
	if len(st.LabelKeys) == 0 {
		klog.Infof("No label keys configured, skipping label plots")
		return nil
	}
	means := make(plotter.Values, len(st.LabelMeans))
	copy(means, st.LabelMeans)
	if err := saveBars(outDir, "label_means.png", "Mean label value", st.LabelKeys, means,
		color.RGBA{R: 20, G: 80, B: 200, A: 220}); err != nil {
		return err
	}

	dominant := make(plotter.Values, len(st.Dominant))
	for i, n := range st.Dominant {
		dominant[i] = float64(n)
	}
	return saveBars(outDir, "label_dominant.png", "Samples by dominant label", st.LabelKeys, dominant,
		color.RGBA{R: 200, G: 30, B: 30, A: 200})
}

// plotHeights writes the distribution of stored sample heights.
func plotHeights(outDir string, st datasets.Stats) error {
	hs := st.SortedHeights()
	names := make([]string, len(hs))
	counts := make(plotter.Values, len(hs))
	for i, h := range hs {
		names[i] = strconv.Itoa(h)
		counts[i] = float64(st.Heights[h])
	}
	return saveBars(outDir, "heights.png", "Samples by height (pixels)", names, counts,
		color.RGBA{R: 40, G: 120, B: 40, A: 220})
}

func saveBars(outDir, name, title string, names []string, values plotter.Values, col color.Color) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "value"

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return err
	}
	bars.Color = col
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.Add(plotter.NewGrid())
	p.NominalX(names...)

	if err := ensureDir(outDir); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, filepath.Join(outDir, name))
}

func ensureDir(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
