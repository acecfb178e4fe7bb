package index

import (
	"fmt"

	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const DefaultTrees = 16

// Annoy — приближённый индекс на случайных проекционных деревьях (goannoy).
// Ординалы совпадают с идентификаторами элементов annoy: 0..Len()-1.
type Annoy struct {
	idx     interfaces.AnnoyIndex[float32, uint32]
	dim     int
	size    int
	trees   int
	searchK int
	built   bool
}

func newAnnoyIndex(dim int) interfaces.AnnoyIndex[float32, uint32] {
	return builder.Index[float32, uint32]().
		AngularDistance(dim).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()
}

// NewAnnoy создаёт пустой индекс. trees <= 0 означает DefaultTrees,
// searchK <= 0 — значение annoy по умолчанию (trees * k).
func NewAnnoy(dim, trees, searchK int) *Annoy {
	if trees <= 0 {
		trees = DefaultTrees
	}
	if searchK <= 0 {
		searchK = -1
	}

	return &Annoy{
		idx:     newAnnoyIndex(dim),
		dim:     dim,
		trees:   trees,
		searchK: searchK,
	}
}

func (a *Annoy) add(vec []float32) int {
	ordinal := a.size
	a.idx.AddItem(uint32(ordinal), vec)
	a.size++
	return ordinal
}

func (a *Annoy) build() {
	a.idx.Build(a.trees, -1)
	a.built = true
}

func (a *Annoy) Kind() string { return KindAnnoy }

func (a *Annoy) Dimension() int { return a.dim }

func (a *Annoy) Len() int { return a.size }

func (a *Annoy) Search(vec []float32, k int) ([]Neighbor, error) {
	const op = "Annoy.Search"

	if !a.built {
		return nil, e.Wrap(op, e.ErrIndexNotLoaded)
	}
	if err := checkQuery(op, a, vec, k); err != nil {
		return nil, err
	}

	k = min(k, a.size)
	searchCtx := a.idx.CreateContext()
	ids, distances := a.idx.GetNnsByVector(vec, k, a.searchK, searchCtx)

	if len(distances) < len(ids) {
		return nil, e.Wrap(op, fmt.Errorf("%w: %d ids, %d distances", e.ErrIndexCorrupt, len(ids), len(distances)))
	}

	out := make([]Neighbor, 0, len(ids))
	for i, id := range ids {
		if int(id) >= a.size {
			return nil, e.Wrap(op, fmt.Errorf("%w: item %d outside %d", e.ErrIndexCorrupt, id, a.size))
		}
		out = append(out, Neighbor{Ordinal: int(id), Score: angularToCosine(distances[i])})
	}

	return out, nil
}

// angularToCosine: annoy возвращает sqrt(2 - 2cos) для нормированных векторов.
func angularToCosine(d float32) float32 {
	return 1 - d*d/2
}

func (a *Annoy) Save(path string) error {
	const op = "Annoy.Save"

	if !a.built {
		return e.Wrap(op, e.ErrIndexNotLoaded)
	}
	if err := a.idx.Save(path); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// LoadAnnoy загружает индекс из файла. Число элементов annoy не хранит
// в доступном виде, поэтому size берётся из манифеста. Что файл принадлежит
// этому манифесту, проверяет Load по контрольной сумме.
func LoadAnnoy(path string, dim, size, searchK int) (*Annoy, error) {
	const op = "LoadAnnoy"

	if dim <= 0 || size <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: dim=%d size=%d", e.ErrIndexCorrupt, dim, size))
	}

	a := NewAnnoy(dim, 0, searchK)
	if err := a.idx.Load(path); err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrIndexCorrupt, err))
	}
	a.size = size
	a.built = true

	return a, nil
}
