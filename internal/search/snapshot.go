package search

import (
	"fmt"

	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

// Snapshot — неизменяемая пара (индекс, карта ординалов), которую видит один запрос.
type Snapshot struct {
	Index    index.Index
	IDs      *index.IdMap
	Manifest index.Manifest
}

func NewSnapshot(idx index.Index, ids *index.IdMap, m index.Manifest) (*Snapshot, error) {
	s := &Snapshot{Index: idx, IDs: ids, Manifest: m}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate проверяет, что индекс и карта ординалов описывают одну сборку.
func (s *Snapshot) Validate() error {
	const op = "Snapshot.Validate"

	if s == nil || s.Index == nil || s.IDs == nil {
		return e.Wrap(op, e.ErrIndexNotLoaded)
	}
	if s.Index.Len() != s.IDs.Len() || s.Manifest.Size != s.IDs.Len() {
		return e.Wrap(op, fmt.Errorf("%w: index %d, id map %d, manifest %d",
			e.ErrIndexCorrupt, s.Index.Len(), s.IDs.Len(), s.Manifest.Size))
	}
	if s.Index.Dimension() != s.Manifest.Dimension {
		return e.Wrap(op, fmt.Errorf("%w: index %d, manifest %d",
			e.ErrDimensionMismatch, s.Index.Dimension(), s.Manifest.Dimension))
	}

	return nil
}

// Version — идентификатор сборки, попадающий в ответ и ключи кэша.
func (s *Snapshot) Version() string {
	if s == nil {
		return ""
	}
	return s.Manifest.BuildID
}
