package search

import (
	"slices"
	"strings"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// RegionHits — соседи одного региона, уже переведённые в идентификаторы товаров.
type RegionHits struct {
	Region int
	Hits   []domain.Hit
}

type fused struct {
	hit       domain.Hit
	firstSeen int
}

// Fuse сливает списки регионов в один список уникальных товаров.
// Для повторяющегося товара берётся максимальная близость по регионам.
// Порядок: близость по убыванию, затем регион первого появления, затем идентификатор.
// Результат не зависит от порядка lists.
func Fuse(lists []RegionHits, k int) []domain.Hit {
	if k <= 0 {
		return []domain.Hit{}
	}

	ordered := slices.Clone(lists)
	slices.SortStableFunc(ordered, func(a, b RegionHits) int { return a.Region - b.Region })

	byID := make(map[string]*fused)
	for _, list := range ordered {
		for _, h := range list.Hits {
			cur, ok := byID[h.ProductID]
			if !ok {
				byID[h.ProductID] = &fused{hit: h, firstSeen: list.Region}
				continue
			}
			if h.Score > cur.hit.Score {
				cur.hit.Score = h.Score
			}
		}
	}

	merged := make([]fused, 0, len(byID))
	for _, f := range byID {
		merged = append(merged, *f)
	}

	slices.SortFunc(merged, func(a, b fused) int {
		switch {
		case a.hit.Score > b.hit.Score:
			return -1
		case a.hit.Score < b.hit.Score:
			return 1
		case a.firstSeen != b.firstSeen:
			return a.firstSeen - b.firstSeen
		default:
			return strings.Compare(a.hit.ProductID, b.hit.ProductID)
		}
	})

	if len(merged) > k {
		merged = merged[:k]
	}

	out := make([]domain.Hit, len(merged))
	for i, f := range merged {
		out[i] = f.hit
	}

	return out
}
