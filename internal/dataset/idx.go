package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadHeader reports an idx file whose header does not describe its body.
var ErrBadHeader = errors.New("idx: bad header")

const (
	idxImagesMagic = 0x00000803
	idxLabelsMagic = 0x00000801
)

// parseImages validates an idx3-ubyte image file and returns its pixels.
func parseImages(data []byte) ([]byte, int, error) {
	if len(data) < 16 {
		return nil, 0, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(data))
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	count := int(binary.BigEndian.Uint32(data[4:8]))
	rows := int(binary.BigEndian.Uint32(data[8:12]))
	cols := int(binary.BigEndian.Uint32(data[12:16]))
	if magic != idxImagesMagic {
		return nil, 0, fmt.Errorf("%w: magic %#08x, want %#08x", ErrBadHeader, magic, idxImagesMagic)
	}
	if rows != ImgRows || cols != ImgCols {
		return nil, 0, fmt.Errorf("%w: images are %dx%d, want %dx%d", ErrBadHeader, rows, cols, ImgRows, ImgCols)
	}
	body := data[16:]
	if len(body) != count*ImageSize {
		return nil, 0, fmt.Errorf("%w: %d images declared, %d bytes present", ErrBadHeader, count, len(body))
	}
	return body, count, nil
}

// parseLabels validates an idx1-ubyte label file and returns its labels.
func parseLabels(data []byte) ([]uint8, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrBadHeader, len(data))
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	count := int(binary.BigEndian.Uint32(data[4:8]))
	if magic != idxLabelsMagic {
		return nil, fmt.Errorf("%w: magic %#08x, want %#08x", ErrBadHeader, magic, idxLabelsMagic)
	}
	body := data[8:]
	if len(body) != count {
		return nil, fmt.Errorf("%w: %d labels declared, %d present", ErrBadHeader, count, len(body))
	}
	return body, nil
}
