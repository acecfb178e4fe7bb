// Package index строит, хранит и загружает ANN-индекс вместе с картой ординалов.
package index

import (
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const (
	KindFlat  = "flat"
	KindAnnoy = "annoy"
)

// Neighbor — результат поиска по индексу: ординал вектора и косинусная близость.
type Neighbor struct {
	Ordinal int
	Score   float32
}

// Index — неизменяемый индекс по L2-нормированным векторам.
// Реализации безопасны для конкурентного Search.
type Index interface {
	Kind() string
	Dimension() int
	Len() int
	// Search возвращает не более k ближайших соседей по убыванию близости.
	Search(vec []float32, k int) ([]Neighbor, error)
	Save(path string) error
}

// checkQuery — общая проверка запроса для всех реализаций.
func checkQuery(op string, idx Index, vec []float32, k int) error {
	if k <= 0 {
		return e.Wrapf(e.ErrInvalidArgument, "%s: k=%d", op, k)
	}
	if len(vec) != idx.Dimension() {
		return e.Wrapf(e.ErrDimensionMismatch, "%s: got %d, want %d", op, len(vec), idx.Dimension())
	}
	return nil
}
