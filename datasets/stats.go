package datasets

import (
	"fmt"
	"sort"
	"strings"
)

// Stats summarizes a loaded corpus.
type Stats struct {
	Samples int
	Files   int

	// LabelKeys are the label names, index aligned with LabelMeans and
	// Dominant.
	LabelKeys []string

	// LabelMeans is the mean normalized label vector.
	LabelMeans []float64

	// Dominant counts, per label key, the samples whose largest label value is
	// that key. Ties go to the first key.
	Dominant []int

	// Heights and Channels count samples by their stored dimensions.
	Heights  map[int]int
	Channels map[int]int
}

// ComputeStats walks every stored example of ds.
func ComputeStats(ds *HDF5Dataset) Stats {
	keys := ds.cfg.LabelKeys
	st := Stats{
		Samples:    ds.Len(),
		Files:      len(ds.files),
		LabelKeys:  append([]string(nil), keys...),
		LabelMeans: make([]float64, len(keys)),
		Dominant:   make([]int, len(keys)),
		Heights:    make(map[int]int),
		Channels:   make(map[int]int),
	}
	for i, s := range ds.samples {
		st.Heights[s.Height]++
		st.Channels[s.Channels]++

		label := ds.labels[i]
		best := -1
		for k, v := range label {
			st.LabelMeans[k] += float64(v)
			if best < 0 || v > label[best] {
				best = k
			}
		}
		if best >= 0 {
			st.Dominant[best]++
		}
	}
	if st.Samples > 0 {
		for k := range st.LabelMeans {
			st.LabelMeans[k] /= float64(st.Samples)
		}
	}
	return st
}

// SortedHeights returns the distinct sample heights in increasing order.
func (s Stats) SortedHeights() []int {
	hs := make([]int, 0, len(s.Heights))
	for h := range s.Heights {
		hs = append(hs, h)
	}
	sort.Ints(hs)
	return hs
}

func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d samples from %d files\n", s.Samples, s.Files)
	for k, name := range s.LabelKeys {
		fmt.Fprintf(&sb, "  %-24s mean=%.4f dominant=%d\n", name, s.LabelMeans[k], s.Dominant[k])
	}
	for _, h := range s.SortedHeights() {
		fmt.Fprintf(&sb, "  height %4d: %d\n", h, s.Heights[h])
	}
	return sb.String()
}
