package datasets

import "fmt"

// Sample is one image cube laid out row-major as (channel, height, width).
type Sample struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// At returns the value at channel c, row y, column x.
func (s *Sample) At(c, y, x int) float32 {
	return s.Data[(c*s.Height+y)*s.Width+x]
}

// Shape returns [channels, height, width].
func (s *Sample) Shape() []int {
	return []int{s.Channels, s.Height, s.Width}
}

// Clone returns a deep copy of s.
func (s *Sample) Clone() *Sample {
	c := *s
	c.Data = append([]float32(nil), s.Data...)
	return &c
}

func (s *Sample) String() string {
	return fmt.Sprintf("Sample[%dx%dx%d]", s.Channels, s.Height, s.Width)
}

// padAmounts splits the padding needed to grow size to target between the
// leading and trailing side. An odd remainder goes to the leading side.
func padAmounts(size, target int) (before, after int) {
	amt := target - size
	if amt <= 0 {
		return 0, 0
	}
	half, rem := amt/2, amt%2
	return half + rem, half
}

// PadTo zero-pads the two spatial axes of s up to target. Axes already at or
// above target are left alone; if nothing needs padding s itself is returned.
func PadTo(s *Sample, target int) *Sample {
	top, bottom := padAmounts(s.Height, target)
	left, right := padAmounts(s.Width, target)
	if top+bottom == 0 && left+right == 0 {
		return s
	}

	h := s.Height + top + bottom
	w := s.Width + left + right
	out := &Sample{Channels: s.Channels, Height: h, Width: w, Data: make([]float32, s.Channels*h*w)}
	for c := 0; c < s.Channels; c++ {
		for y := 0; y < s.Height; y++ {
			src := s.Data[(c*s.Height+y)*s.Width : (c*s.Height+y+1)*s.Width]
			copy(out.Data[(c*h+y+top)*w+left:], src)
		}
	}
	return out
}
