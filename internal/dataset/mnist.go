package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound means no search directory holds the four idx files, or no
	// shards exist under a shard root.
	ErrNotFound = errors.New("dataset: digit images not found")
	// ErrChecksum means a compressed idx file does not have the published digest.
	ErrChecksum = errors.New("mnist: checksum mismatch")
)

type idxFile struct {
	name   string
	digest string // sha256 of the .gz file
}

var (
	trainImages = idxFile{"train-images-idx3-ubyte", "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609"}
	trainLabels = idxFile{"train-labels-idx1-ubyte", "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c"}
	testImages  = idxFile{"t10k-images-idx3-ubyte", "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6"}
	testLabels  = idxFile{"t10k-labels-idx1-ubyte", "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6"}

	idxFiles = []idxFile{trainImages, trainLabels, testImages, testLabels}
)

// MNISTOptions configures where the idx files are looked up.
type MNISTOptions struct {
	// Dirs are searched in order; the first one holding all four files wins.
	Dirs []string
	// Verify checks .gz files against their published SHA-256 digests.
	Verify bool
	// DownloadURL, when set, is the base URL missing .gz files are fetched
	// from into Dirs[0].
	DownloadURL string
	Client      *http.Client
}

// MNIST is the loaded dataset.
type MNIST struct {
	Dir   string
	Train *Set
	Test  *Set
}

// LoadMNIST loads both splits wholesale into memory.
func LoadMNIST(ctx context.Context, opts MNISTOptions) (*MNIST, error) {
	dirs := make([]string, 0, len(opts.Dirs))
	for _, d := range opts.Dirs {
		dirs = append(dirs, expandHome(d))
	}

	dir, err := locate(dirs)
	if errors.Is(err, ErrNotFound) && opts.DownloadURL != "" && len(dirs) > 0 {
		dir = dirs[0]
		if err = download(ctx, opts.Client, opts.DownloadURL, dir); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}

	var raw [4][]byte
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range idxFiles {
		g.Go(func() error {
			data, err := readIDX(gctx, dir, f, opts.Verify)
			if err != nil {
				return err
			}
			raw[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	train, err := buildSet(raw[0], raw[1])
	if err != nil {
		return nil, fmt.Errorf("train split: %w", err)
	}
	test, err := buildSet(raw[2], raw[3])
	if err != nil {
		return nil, fmt.Errorf("test split: %w", err)
	}
	return &MNIST{Dir: dir, Train: train, Test: test}, nil
}

func buildSet(imgFile, lblFile []byte) (*Set, error) {
	pixels, _, err := parseImages(imgFile)
	if err != nil {
		return nil, err
	}
	labels, err := parseLabels(lblFile)
	if err != nil {
		return nil, err
	}
	return NewSet(pixels, labels)
}

func locate(dirs []string) (string, error) {
outer:
	for _, dir := range dirs {
		for _, f := range idxFiles {
			if _, ok := filePath(dir, f); !ok {
				continue outer
			}
		}
		return dir, nil
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, strings.Join(dirs, ", "))
}

// filePath prefers the compressed file over the raw one.
func filePath(dir string, f idxFile) (string, bool) {
	for _, name := range []string{f.name + ".gz", f.name} {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

func readIDX(ctx context.Context, dir string, f idxFile, verify bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, ok := filePath(dir, f)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Join(dir, f.name))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return data, nil
	}
	if verify {
		if err := checkDigest(data, f.digest); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", path, err)
	}
	return out, nil
}

func checkDigest(data []byte, want string) error {
	sum := sha256.Sum256(data)
	if got := hex.EncodeToString(sum[:]); got != want {
		return fmt.Errorf("%w: got %s, want %s", ErrChecksum, got, want)
	}
	return nil
}

func download(ctx context.Context, client *http.Client, baseURL, dir string) error {
	if client == nil {
		client = http.DefaultClient
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}
	for _, f := range idxFiles {
		if _, ok := filePath(dir, f); ok {
			continue
		}
		url := strings.TrimSuffix(baseURL, "/") + "/" + f.name + ".gz"
		if err := fetch(ctx, client, url, filepath.Join(dir, f.name+".gz"), f.digest); err != nil {
			return err
		}
	}
	return nil
}

func fetch(ctx context.Context, client *http.Client, url, dest, digest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := checkDigest(data, digest); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	tmp := dest + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return os.Rename(tmp, dest)
}

func expandHome(dir string) string {
	if dir != "~" && !strings.HasPrefix(dir, "~/") {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return dir
	}
	return filepath.Join(home, strings.TrimPrefix(dir, "~"))
}
