package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

var flatMagic = [4]byte{'V', 'S', 'F', 'L'}

const (
	flatFormatVersion uint32 = 1
	flatHeaderLen            = 16
	flatSizeOffset           = 12
)

type flatHeader struct {
	Magic     [4]byte
	Version   uint32
	Dimension uint32
	Size      uint32
}

// Flat — точный поиск полным перебором скалярных произведений.
// Эталонная реализация: детерминирована и не теряет полноту.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat создаёт пустой индекс размерности dim.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

func (f *Flat) add(vec []float32) int {
	f.vectors = append(f.vectors, slices.Clone(vec))
	return len(f.vectors) - 1
}

func (f *Flat) Kind() string { return KindFlat }

func (f *Flat) Dimension() int { return f.dim }

func (f *Flat) Len() int { return len(f.vectors) }

func (f *Flat) Search(vec []float32, k int) ([]Neighbor, error) {
	const op = "Flat.Search"

	if err := checkQuery(op, f, vec, k); err != nil {
		return nil, err
	}

	out := make([]Neighbor, len(f.vectors))
	for i, v := range f.vectors {
		out[i] = Neighbor{Ordinal: i, Score: domain.Dot(vec, v)}
	}

	slices.SortStableFunc(out, func(a, b Neighbor) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.Ordinal - b.Ordinal
		}
	})

	if len(out) > k {
		out = out[:k]
	}

	return out, nil
}

// Save пишет индекс одним бинарным файлом: заголовок и float32 little-endian.
func (f *Flat) Save(path string) error {
	const op = "Flat.Save"

	file, err := os.Create(path)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	hdr := flatHeader{
		Magic:     flatMagic,
		Version:   flatFormatVersion,
		Dimension: uint32(f.dim),
		Size:      uint32(len(f.vectors)),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return e.Wrap(op, err)
	}
	for _, v := range f.vectors {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return e.Wrap(op, err)
		}
	}

	if err := w.Flush(); err != nil {
		return e.Wrap(op, err)
	}

	if err := file.Sync(); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// LoadFlat читает индекс, записанный Flat.Save.
func LoadFlat(path string) (*Flat, error) {
	const op = "LoadFlat"

	file, err := os.Open(path)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer file.Close()

	r := bufio.NewReader(file)

	var hdr flatHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: header: %v", e.ErrIndexCorrupt, err))
	}
	if hdr.Magic != flatMagic || hdr.Version != flatFormatVersion {
		return nil, e.Wrap(op, fmt.Errorf("%w: unknown format", e.ErrIndexCorrupt))
	}

	info, err := file.Stat()
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	if want := int64(flatHeaderLen) + int64(hdr.Size)*int64(hdr.Dimension)*4; info.Size() != want {
		return nil, e.Wrap(op, fmt.Errorf("%w: header %d×%d, file %d bytes", e.ErrIndexCorrupt, hdr.Size, hdr.Dimension, info.Size()))
	}

	f := &Flat{
		dim:     int(hdr.Dimension),
		vectors: make([][]float32, hdr.Size),
	}
	for i := range f.vectors {
		v := make([]float32, f.dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, e.Wrap(op, fmt.Errorf("%w: vector %d: %v", e.ErrIndexCorrupt, i, err))
		}
		f.vectors[i] = v
	}

	if _, err := r.ReadByte(); err != io.EOF {
		return nil, e.Wrap(op, fmt.Errorf("%w: trailing data", e.ErrIndexCorrupt))
	}

	return f, nil
}
