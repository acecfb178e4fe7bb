// Package memory — хранилище эмбеддингов в памяти процесса для офлайн-сборки и тестов.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

type EmbeddingRepo struct {
	mu    sync.RWMutex
	items map[string]domain.Embedding
}

func NewEmbeddingRepo() *EmbeddingRepo {
	return &EmbeddingRepo{items: make(map[string]domain.Embedding)}
}

func (m *EmbeddingRepo) Upsert(_ context.Context, emb *domain.Embedding) error {
	if emb.ProductID == "" || len(emb.Vector) == 0 {
		return e.Wrap("memory.EmbeddingRepo.Upsert", e.ErrInvalidArgument)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *emb
	cp.Vector = slices.Clone(emb.Vector)
	m.items[emb.ProductID] = cp

	return nil
}

// List возвращает копии эмбеддингов по возрастанию идентификатора товара.
func (m *EmbeddingRepo) List(_ context.Context) ([]domain.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Embedding, 0, len(m.items))
	for _, emb := range m.items {
		emb.Vector = slices.Clone(emb.Vector)
		out = append(out, emb)
	}

	slices.SortFunc(out, func(a, b domain.Embedding) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	return out, nil
}

func (m *EmbeddingRepo) Delete(_ context.Context, productIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range productIDs {
		delete(m.items, id)
	}

	return nil
}
