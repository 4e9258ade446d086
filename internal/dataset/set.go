package dataset

import "fmt"

// Digit geometry.
const (
	ImgRows   = 28
	ImgCols   = 28
	ImageSize = ImgRows * ImgCols
)

// Set holds a whole split in memory: N flattened single-channel images
// normalised to [-1, 1], and their labels.
type Set struct {
	Pixels []float64
	Labels []uint8
}

// Len returns the number of images.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Labels)
}

// Image returns image i as a view into the backing slice.
func (s *Set) Image(i int) []float64 {
	return s.Pixels[i*ImageSize : (i+1)*ImageSize]
}

// NewSet normalises raw 8-bit images (concatenated, ImageSize bytes each).
func NewSet(raw []byte, labels []uint8) (*Set, error) {
	if len(raw)%ImageSize != 0 {
		return nil, fmt.Errorf("dataset: %d pixel bytes is not a multiple of %d", len(raw), ImageSize)
	}
	if n := len(raw) / ImageSize; n != len(labels) {
		return nil, fmt.Errorf("dataset: %d images but %d labels", n, len(labels))
	}
	return &Set{Pixels: Normalize(raw), Labels: labels}, nil
}

// Normalize maps 8-bit pixels to [-1, 1] with (p - 127.5) / 127.5.
func Normalize(raw []byte) []float64 {
	out := make([]float64, len(raw))
	for i, p := range raw {
		out[i] = (float64(p) - 127.5) / 127.5
	}
	return out
}
