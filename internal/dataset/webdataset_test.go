package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamShardPairsEntries(t *testing.T) {
	shard := filepath.Join(t.TempDir(), "shard-000000.tar")
	writeShard(t, shard, []filePair{
		{key: "000001", imageExt: ".png", image: digitPNG(t, 28, 0), label: 3},
		{key: "000002", imageExt: ".png", image: digitPNG(t, 28, 255), label: 7},
	})

	samplesCh, errCh := StreamShard(context.Background(), shard, 4)
	var labels []int
	for s := range samplesCh {
		labels = append(labels, s.Label)
	}
	require.NoError(t, <-errCh)
	assert.ElementsMatch(t, []int{3, 7}, labels)
}

func TestStreamShardIncompletePair(t *testing.T) {
	shard := filepath.Join(t.TempDir(), "shard-000000.tar")
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	addTarEntry(t, tw, "lonely.png", digitPNG(t, 28, 0))
	require.NoError(t, tw.Close())
	require.NoError(t, os.WriteFile(shard, buf.Bytes(), 0o644))

	samplesCh, errCh := StreamShard(context.Background(), shard, 4)
	for range samplesCh {
	}
	require.Error(t, <-errCh)
}

func TestLoadShardsNormalisesAndResamples(t *testing.T) {
	root := t.TempDir()
	writeShard(t, filepath.Join(root, "shard-000000.tar"), []filePair{
		{key: "a", imageExt: ".png", image: digitPNG(t, 28, 0), label: 1},
	})
	writeShard(t, filepath.Join(root, "shard-000001.tar"), []filePair{
		{key: "b", imageExt: ".png", image: digitPNG(t, 56, 255), label: 2},
	})

	set, err := LoadShards(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, []uint8{1, 2}, set.Labels)
	for _, v := range set.Image(0) {
		require.Equal(t, -1.0, v)
	}
	for _, v := range set.Image(1) {
		require.Equal(t, 1.0, v)
	}
}

func TestLoadShardsEmptyRoot(t *testing.T) {
	_, err := LoadShards(context.Background(), t.TempDir())
	require.ErrorIs(t, err, ErrNotFound)
}

type filePair struct {
	key      string
	imageExt string
	image    []byte
	label    int
}

func writeShard(t *testing.T, path string, pairs []filePair) {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, pair := range pairs {
		addTarEntry(t, tw, pair.key+pair.imageExt, pair.image)
		addTarEntry(t, tw, pair.key+".cls", []byte(strconv.Itoa(pair.label)))
	}
	require.NoError(t, tw.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func addTarEntry(t *testing.T, tw *tar.Writer, name string, data []byte) {
	t.Helper()
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	require.NoError(t, tw.WriteHeader(hdr))
	_, err := tw.Write(data)
	require.NoError(t, err)
}

func digitPNG(t *testing.T, size int, level uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: level})
		}
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}
