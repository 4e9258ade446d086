package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"digitgan/internal/nn"
)

// ErrCheckpointMismatch reports a checkpoint whose tensors do not fit the
// networks it is being loaded into.
var ErrCheckpointMismatch = errors.New("checkpoint: tensors do not match model")

type checkpointFile struct {
	Iteration     int            `json:"iteration"`
	ZDim          int            `json:"z_dim"`
	Generator     []tensorRecord `json:"generator"`
	Discriminator []tensorRecord `json:"discriminator"`
}

type tensorRecord struct {
	Name string    `json:"name"`
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// SaveCheckpoint writes every parameter and running statistic of both
// networks to path. The file is replaced atomically.
func (g *GAN) SaveCheckpoint(path string, iteration int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := g.WriteCheckpoint(tmp, iteration); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}

// WriteCheckpoint writes a gzip compressed JSON checkpoint to w.
func (g *GAN) WriteCheckpoint(w io.Writer, iteration int) error {
	doc := checkpointFile{
		Iteration:     iteration,
		ZDim:          g.zDim,
		Generator:     records(g.Generator),
		Discriminator: records(g.Discriminator),
	}
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(&doc); err != nil {
		zw.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores both networks from path and returns the
// iteration the checkpoint was taken at.
func (g *GAN) LoadCheckpoint(path string) (int, error) {
	doc, err := readCheckpointFile(path)
	if err != nil {
		return 0, err
	}
	return g.apply(doc)
}

// ReadCheckpoint restores both networks from a checkpoint stream.
func (g *GAN) ReadCheckpoint(r io.Reader) (int, error) {
	doc, err := decodeCheckpoint(r)
	if err != nil {
		return 0, err
	}
	return g.apply(doc)
}

// LoadGAN builds a GAN shaped like the checkpoint at path and restores it.
// The latent size recorded in the checkpoint takes precedence over
// opts.ZDim.
func LoadGAN(path string, opts Options) (*GAN, int, error) {
	doc, err := readCheckpointFile(path)
	if err != nil {
		return nil, 0, err
	}
	if doc.ZDim > 0 {
		opts.ZDim = doc.ZDim
	}
	g, err := New(opts)
	if err != nil {
		return nil, 0, err
	}
	iter, err := g.apply(doc)
	if err != nil {
		return nil, 0, err
	}
	return g, iter, nil
}

func readCheckpointFile(path string) (*checkpointFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()
	return decodeCheckpoint(f)
}

func decodeCheckpoint(r io.Reader) (*checkpointFile, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decompress checkpoint: %w", err)
	}
	defer zr.Close()

	var doc checkpointFile
	if err := json.NewDecoder(zr).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &doc, nil
}

func (g *GAN) apply(doc *checkpointFile) (int, error) {
	if doc.ZDim != g.zDim {
		return 0, fmt.Errorf("%w: z_dim %d, model has %d", ErrCheckpointMismatch, doc.ZDim, g.zDim)
	}
	if err := restore(g.Generator, doc.Generator); err != nil {
		return 0, err
	}
	if err := restore(g.Discriminator, doc.Discriminator); err != nil {
		return 0, err
	}
	return doc.Iteration, nil
}

func records(net *nn.Sequential) []tensorRecord {
	tensors := net.Tensors()
	out := make([]tensorRecord, 0, len(tensors))
	for _, p := range tensors {
		r, c := p.Value.Dims()
		out = append(out, tensorRecord{
			Name: p.Name,
			Rows: r,
			Cols: c,
			Data: append([]float64(nil), p.Value.RawMatrix().Data...),
		})
	}
	return out
}

func restore(net *nn.Sequential, recs []tensorRecord) error {
	tensors := net.Tensors()
	if len(recs) != len(tensors) {
		return fmt.Errorf("%w: %s has %d tensors, checkpoint has %d",
			ErrCheckpointMismatch, net.Name(), len(tensors), len(recs))
	}
	for i, p := range tensors {
		rec := recs[i]
		r, c := p.Value.Dims()
		if rec.Name != p.Name || rec.Rows != r || rec.Cols != c || len(rec.Data) != r*c {
			return fmt.Errorf("%w: %s tensor %d is %s[%dx%d], checkpoint has %s[%dx%d]",
				ErrCheckpointMismatch, net.Name(), i, p.Name, r, c, rec.Name, rec.Rows, rec.Cols)
		}
	}
	for i, p := range tensors {
		copy(p.Value.RawMatrix().Data, recs[i].Data)
	}
	return nil
}
