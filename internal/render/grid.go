package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	// Rows and Cols are the shape of the sample grid written during training.
	Rows = 5
	Cols = 5

	tile = 28
)

// Grid lays rows*cols generated images out as one grayscale picture.
// Each row of images is a flattened 28x28 tile with values in [-1, 1],
// rescaled with 0.5*x + 0.5 and clamped to [0, 1].
func Grid(images *mat.Dense, rows, cols int) (*image.Gray, error) {
	n, width := images.Dims()
	if width != tile*tile {
		return nil, fmt.Errorf("render: images have %d values, want %d", width, tile*tile)
	}
	if n < rows*cols {
		return nil, fmt.Errorf("render: %d images for a %dx%d grid", n, rows, cols)
	}
	img := image.NewGray(image.Rect(0, 0, cols*tile, rows*tile))
	cnt := 0
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			src := images.RawRowView(cnt)
			for y := 0; y < tile; y++ {
				for x := 0; x < tile; x++ {
					img.SetGray(c*tile+x, r*tile+y, color.Gray{Y: toByte(src[y*tile+x])})
				}
			}
			cnt++
		}
	}
	return img, nil
}

func toByte(v float64) uint8 {
	v = 0.5*v + 0.5
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v*255 + 0.5)
}

// FileName is the name a grid for the given iteration is written under.
func FileName(iteration int) string {
	return fmt.Sprintf("mnist_%d.png", iteration)
}

// WritePNG writes img to dir/mnist_<iteration>.png, creating dir if needed,
// and returns the path written.
func WritePNG(dir string, iteration int, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}
	path := filepath.Join(dir, FileName(iteration))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

// SaveGrid renders a Rows x Cols grid from images and writes it.
func SaveGrid(dir string, iteration int, images *mat.Dense) (string, error) {
	img, err := Grid(images, Rows, Cols)
	if err != nil {
		return "", err
	}
	return WritePNG(dir, iteration, img)
}
