package index

import (
	"fmt"
	"slices"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

// BuilderOptions — параметры сборки индекса.
type BuilderOptions struct {
	Kind         string
	Dimension    int
	ModelVersion string
	Trees        int
	SearchK      int
}

// Builder компилирует снимок хранилища эмбеддингов в индекс и карту ординалов.
type Builder struct {
	opts BuilderOptions
}

func NewBuilder(opts BuilderOptions) *Builder {
	if opts.Kind == "" {
		opts.Kind = KindAnnoy
	}
	return &Builder{opts: opts}
}

// assembler добавляет вектор и сообщает его ординал через callback.
type assembler interface {
	add(vec []float32) int
	finish() Index
}

type flatAssembler struct{ *Flat }

func (a flatAssembler) finish() Index { return a.Flat }

type annoyAssembler struct{ *Annoy }

func (a annoyAssembler) finish() Index {
	a.Annoy.build()
	return a.Annoy
}

func (b *Builder) newAssembler() (assembler, error) {
	switch b.opts.Kind {
	case KindFlat:
		return flatAssembler{NewFlat(b.opts.Dimension)}, nil
	case KindAnnoy:
		return annoyAssembler{NewAnnoy(b.opts.Dimension, b.opts.Trees, b.opts.SearchK)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown index kind %q", e.ErrInvalidArgument, b.opts.Kind)
	}
}

// Build — чистая функция снимка: вход сортируется по идентификатору товара,
// поэтому одинаковые снимки дают одинаковые ординалы. Сборка последовательная.
func (b *Builder) Build(embeddings []domain.Embedding) (Index, *IdMap, error) {
	const op = "Builder.Build"

	if len(embeddings) == 0 {
		return nil, nil, e.Wrap(op, e.ErrEmptyCatalog)
	}

	sorted := slices.Clone(embeddings)
	slices.SortFunc(sorted, func(a, b domain.Embedding) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	vectors := make([][]float32, len(sorted))
	for i, emb := range sorted {
		if emb.ProductID == "" {
			return nil, nil, e.Wrap(op, fmt.Errorf("%w: empty product id", e.ErrInvalidArgument))
		}
		if i > 0 && sorted[i-1].ProductID == emb.ProductID {
			return nil, nil, e.Wrap(op, fmt.Errorf("%w: duplicate product id %q", e.ErrInvalidArgument, emb.ProductID))
		}
		if len(emb.Vector) != b.opts.Dimension {
			return nil, nil, e.Wrap(op, fmt.Errorf("%w: product %q has %d, want %d",
				e.ErrDimensionMismatch, emb.ProductID, len(emb.Vector), b.opts.Dimension))
		}
		if b.opts.ModelVersion != "" && emb.ModelVersion != b.opts.ModelVersion {
			return nil, nil, e.Wrap(op, fmt.Errorf("%w: product %q has %q, want %q",
				e.ErrModelVersionMismatch, emb.ProductID, emb.ModelVersion, b.opts.ModelVersion))
		}

		v, ok := domain.Normalize(emb.Vector)
		if !ok {
			return nil, nil, e.Wrap(op, fmt.Errorf("%w: product %q", e.ErrZeroVector, emb.ProductID))
		}
		vectors[i] = v
	}

	asm, err := b.newAssembler()
	if err != nil {
		return nil, nil, e.Wrap(op, err)
	}

	ids := &IdMap{ids: make([]string, 0, len(sorted))}
	for i, v := range vectors {
		if err := ids.record(asm.add(v), sorted[i].ProductID); err != nil {
			return nil, nil, e.Wrap(op, err)
		}
	}

	idx := asm.finish()
	if idx.Len() != ids.Len() {
		return nil, nil, e.Wrap(op, fmt.Errorf("%w: index %d, id map %d", e.ErrIndexCorrupt, idx.Len(), ids.Len()))
	}

	return idx, ids, nil
}
