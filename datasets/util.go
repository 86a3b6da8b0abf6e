package datasets

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// checkDir verifies that dir exists and is a directory.
func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(ErrDirNotFound, "%s: %v", dir, err)
	}
	if !info.IsDir() {
		return errors.Wrapf(ErrDirNotFound, "%s is not a directory", dir)
	}
	return nil
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

// FindContainers lists the regular files in dir whose extension matches ext
// (case-insensitively), descending into subdirectories when recursive is set.
// The result is sorted lexicographically so sample order is reproducible.
func FindContainers(dir, ext string, recursive bool) ([]string, error) {
	if err := checkDir(dir); err != nil {
		return nil, err
	}

	var paths []string
	if recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() && hasExt(d.Name(), ext) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "walk %s", dir)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read directory %s", dir)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && hasExt(e.Name(), ext) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}

	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNoContainerFiles, "%s (extension %s, recursive=%t)", dir, ext, recursive)
	}
	sort.Strings(paths)
	return paths, nil
}

// normalizeLabel divides raw by its sum. An empty raw yields an empty label.
func normalizeLabel(raw []float64) ([]float32, error) {
	label := make([]float32, len(raw))
	if len(raw) == 0 {
		return label, nil
	}
	var sum float64
	for _, v := range raw {
		sum += v
	}
	if sum == 0 {
		return nil, ErrZeroLabelMass
	}
	for i, v := range raw {
		label[i] = float32(v / sum)
	}
	return label, nil
}
