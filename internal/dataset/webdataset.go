package dataset

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sample is one image/label pair read from a WebDataset shard.
type Sample struct {
	Key   string
	Image []byte
	Label int
}

// ErrPendingOverflow indicates too many half-paired entries in one shard.
var ErrPendingOverflow = errors.New("webdataset: pending pair buffer exceeded")

const defaultPendingCap = 1024

// StreamShard streams paired samples (key.png|key.jpg + key.cls) from the
// shard at path. The error channel receives at most one value.
func StreamShard(ctx context.Context, path string, pendingCap int) (<-chan Sample, <-chan error) {
	if pendingCap <= 0 {
		pendingCap = defaultPendingCap
	}
	out := make(chan Sample)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- fmt.Errorf("open shard: %w", err)
			return
		}
		defer f.Close()

		tr := tar.NewReader(bufio.NewReader(f))
		pending := make(map[string]*partial)

		for {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}

			hdr, err := tr.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- fmt.Errorf("read tar: %w", err)
				return
			}
			if hdr.FileInfo().IsDir() {
				continue
			}
			name := filepath.Base(hdr.Name)
			ext := strings.ToLower(filepath.Ext(name))
			key := strings.TrimSuffix(name, ext)

			part := pending[key]
			if part == nil {
				part = &partial{}
			}
			switch ext {
			case ".jpg", ".jpeg", ".png":
				data, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read image %s: %w", name, err)
					return
				}
				part.image = data
			case ".cls":
				payload, err := io.ReadAll(tr)
				if err != nil {
					errCh <- fmt.Errorf("read label %s: %w", name, err)
					return
				}
				label, err := strconv.Atoi(strings.TrimSpace(string(payload)))
				if err != nil {
					errCh <- fmt.Errorf("parse label %s: %w", name, err)
					return
				}
				part.label = &label
			default:
				continue
			}

			if !part.ready() {
				pending[key] = part
				if len(pending) > pendingCap {
					errCh <- ErrPendingOverflow
					return
				}
				continue
			}
			delete(pending, key)

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- Sample{Key: key, Image: part.image, Label: *part.label}:
			}
		}

		if len(pending) > 0 {
			errCh <- fmt.Errorf("%s: %d samples incomplete", path, len(pending))
		}
	}()

	return out, errCh
}

type partial struct {
	image []byte
	label *int
}

func (p *partial) ready() bool {
	return len(p.image) > 0 && p.label != nil
}

// LoadShards reads every shard under root, in sorted order, into one Set.
// Images of any size are resampled to 28x28 grayscale.
func LoadShards(ctx context.Context, root string) (*Set, error) {
	shards, err := DiscoverShards(root)
	if err != nil {
		return nil, err
	}

	var pixels []byte
	var labels []uint8
	for _, shard := range shards {
		samples, errCh := StreamShard(ctx, shard, defaultPendingCap)
		for s := range samples {
			digit, err := decodeDigit(s.Image)
			if err != nil {
				// drain so the shard goroutine can exit
				for range samples {
				}
				return nil, fmt.Errorf("%s/%s: %w", shard, s.Key, err)
			}
			if s.Label < 0 || s.Label > 255 {
				for range samples {
				}
				return nil, fmt.Errorf("%s/%s: label %d out of range", shard, s.Key, s.Label)
			}
			pixels = append(pixels, digit...)
			labels = append(labels, uint8(s.Label))
		}
		if err := <-errCh; err != nil {
			return nil, err
		}
	}
	return NewSet(pixels, labels)
}

// decodeDigit decodes a PNG or JPEG and samples it on a 28x28 grid.
func decodeDigit(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, errors.New("empty image")
	}
	out := make([]byte, ImageSize)
	for y := 0; y < ImgRows; y++ {
		py := bounds.Min.Y + y*height/ImgRows
		for x := 0; x < ImgCols; x++ {
			px := bounds.Min.X + x*width/ImgCols
			out[y*ImgCols+x] = color.GrayModel.Convert(img.At(px, py)).(color.Gray).Y
		}
	}
	return out, nil
}
