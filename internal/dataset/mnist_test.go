package dataset

import (
	"bytes"
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeImages(pixels []byte) []byte {
	out := make([]byte, 16, 16+len(pixels))
	binary.BigEndian.PutUint32(out[0:4], idxImagesMagic)
	binary.BigEndian.PutUint32(out[4:8], uint32(len(pixels)/ImageSize))
	binary.BigEndian.PutUint32(out[8:12], ImgRows)
	binary.BigEndian.PutUint32(out[12:16], ImgCols)
	return append(out, pixels...)
}

func encodeLabels(labels []uint8) []byte {
	out := make([]byte, 8, 8+len(labels))
	binary.BigEndian.PutUint32(out[0:4], idxLabelsMagic)
	binary.BigEndian.PutUint32(out[4:8], uint32(len(labels)))
	return append(out, labels...)
}

func gz(t *testing.T, data []byte) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := gzip.NewWriter(buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// writeFixture writes a tiny dataset: n training images and 1 test image.
func writeFixture(t *testing.T, dir string, n int, compress bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	trainPix := make([]byte, n*ImageSize)
	trainLbl := make([]uint8, n)
	for i := range trainLbl {
		trainLbl[i] = uint8(i % 10)
		trainPix[i*ImageSize] = 255
	}
	files := map[idxFile][]byte{
		trainImages: encodeImages(trainPix),
		trainLabels: encodeLabels(trainLbl),
		testImages:  encodeImages(make([]byte, ImageSize)),
		testLabels:  encodeLabels([]uint8{4}),
	}
	for f, data := range files {
		name := f.name
		if compress {
			data = gz(t, data)
			name += ".gz"
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

func TestLoadMNISTSearchesDirectories(t *testing.T) {
	base := t.TempDir()
	empty := filepath.Join(base, "empty")
	full := filepath.Join(base, "full")
	require.NoError(t, os.MkdirAll(empty, 0o755))
	writeFixture(t, full, 3, true)

	ds, err := LoadMNIST(context.Background(), MNISTOptions{Dirs: []string{empty, full}})
	require.NoError(t, err)
	assert.Equal(t, full, ds.Dir)
	require.Equal(t, 3, ds.Train.Len())
	require.Equal(t, 1, ds.Test.Len())
	assert.Equal(t, []uint8{0, 1, 2}, ds.Train.Labels)
	assert.Equal(t, 1.0, ds.Train.Image(1)[0])
	assert.Equal(t, -1.0, ds.Train.Image(1)[1])
}

func TestLoadMNISTUncompressed(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 2, false)

	ds, err := LoadMNIST(context.Background(), MNISTOptions{Dirs: []string{dir}, Verify: true})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Train.Len())
}

func TestLoadMNISTVerifyRejectsUnknownDigest(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 2, true)

	_, err := LoadMNIST(context.Background(), MNISTOptions{Dirs: []string{dir}, Verify: true})
	require.ErrorIs(t, err, ErrChecksum)
}

func TestLoadMNISTNotFound(t *testing.T) {
	_, err := LoadMNIST(context.Background(), MNISTOptions{Dirs: []string{t.TempDir()}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMNISTBadHeader(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, 2, false)
	require.NoError(t, os.WriteFile(filepath.Join(dir, trainLabels.name), encodeImages(nil), 0o644))

	_, err := LoadMNIST(context.Background(), MNISTOptions{Dirs: []string{dir}})
	require.ErrorIs(t, err, ErrBadHeader)
}

func TestLoadMNISTDownloadVerifiesDigest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not mnist"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "mnist")
	_, err := LoadMNIST(context.Background(), MNISTOptions{
		Dirs:        []string{dir},
		DownloadURL: srv.URL,
		Client:      srv.Client(),
	})
	require.ErrorIs(t, err, ErrChecksum)
	_, statErr := os.Stat(filepath.Join(dir, trainImages.name+".gz"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseImagesRejectsTruncatedBody(t *testing.T) {
	data := encodeImages(make([]byte, ImageSize))
	_, _, err := parseImages(data[:len(data)-1])
	require.ErrorIs(t, err, ErrBadHeader)
}
