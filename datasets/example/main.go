package main

// Example command that loads a directory of HDF5 galaxy cubes, pads every
// accepted image to a common size and converts a small batch into gomlx
// tensors using the helpers provided in the package.
//
// Usage:
//   go run ./datasets/example -dir ../assets/galaxies/train
//
// Every entry whose height lies in [32, 128] is kept; its label is the
// normalized vote fractions stored as attributes on the entry.

import (
	"flag"
	"fmt"
	"log"

	"github.com/Noofbiz/galaxyzoo/datasets"
)

func main() {
	dir := flag.String("dir", "../assets/galaxies/train", "directory holding .hdf5 containers")
	flag.Parse()

	ds, err := datasets.NewHDF5Dataset(datasets.Config{
		Dir:          *dir,
		MinPixelDims: 32,
		MaxPixelDims: 128,
		Pad:          true,
		LabelKeys:    []string{"smooth", "disk", "star_artifact", "edge_on", "spiral", "merger"},
	})
	if err != nil {
		log.Fatalf("failed to load galaxy dataset: %v", err)
	}
	fmt.Printf("Loaded %d images from %d files\n", ds.Len(), len(ds.Files()))

	// Prepare a small batch (first N examples)
	n := min(8, ds.Len())
	indices := make([]int, n)
	for i := range n {
		indices[i] = i
	}

	samples, labels, err := ds.Batch(indices)
	if err != nil {
		log.Fatalf("failed to build batch: %v", err)
	}

	flat, err := datasets.MakeImageBatchFlat(samples, labels)
	if err != nil {
		log.Fatalf("failed to make image batch flat: %v", err)
	}
	inT, laT, err := flat.ToGomlxTensors()
	if err != nil {
		log.Fatalf("failed to convert batch to gomlx tensors: %v", err)
	}

	fmt.Printf("Created tensors: input=%s label=%s\n", inT.Shape(), laT.Shape())
	fmt.Printf("  First example: %s\n", samples[0])
	fmt.Printf("  First example label: %v\n", labels[0])
}
