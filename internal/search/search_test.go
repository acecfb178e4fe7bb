package search

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/detector"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/embedder"
	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "fake-v1"

type fakeDetector struct {
	regions []domain.Region
}

func (f fakeDetector) Detect(context.Context, image.Image) iter.Seq[domain.Region] {
	return func(yield func(domain.Region) bool) {
		for _, r := range f.regions {
			if !yield(r) {
				return
			}
		}
	}
}

func (fakeDetector) Mode() string { return "fake" }

// fakeEmbedder отдаёт вектор по координате X региона.
type fakeEmbedder struct {
	vectors map[int][]float32
	block   chan struct{}
	started chan struct{}
}

func (f *fakeEmbedder) Embed(ctx context.Context, _ image.Image, r domain.Region) ([]float32, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v, ok := f.vectors[r.X]
	if !ok {
		return nil, e.Wrap("fakeEmbedder.Embed", e.ErrImageDecode)
	}
	return v, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

func (f *fakeEmbedder) ModelVersion() string { return testModel }

var img = image.NewRGBA(image.Rect(0, 0, 64, 64))

func regionAt(x int) domain.Region {
	return domain.NewRegion(x, 0, 1, 1, 0.9)
}

var indexKinds = []string{index.KindFlat, index.KindAnnoy}

func newTestEngine(t *testing.T, det detector.Detector, emb embedder.Embedder, embeddings []domain.Embedding) *Engine {
	t.Helper()
	return newTestEngineOf(t, index.KindFlat, det, emb, embeddings)
}

func newTestEngineOf(t *testing.T, kind string, det detector.Detector, emb embedder.Embedder, embeddings []domain.Embedding) *Engine {
	t.Helper()

	eng := NewEngine(det, emb, logger.NewNopLogger())
	if embeddings == nil {
		return eng
	}

	idx, ids, err := index.NewBuilder(index.BuilderOptions{
		Kind:         kind,
		Dimension:    emb.Dimension(),
		ModelVersion: emb.ModelVersion(),
	}).Build(embeddings)
	require.NoError(t, err)

	snap, err := NewSnapshot(idx, ids, index.NewManifest(idx, ids, emb.ModelVersion()))
	require.NoError(t, err)

	_, err = eng.Swap(snap)
	require.NoError(t, err)

	return eng
}

func axisCatalog() []domain.Embedding {
	return []domain.Embedding{
		{ProductID: "x", Vector: []float32{1, 0, 0}, ModelVersion: testModel},
		{ProductID: "y", Vector: []float32{0, 1, 0}, ModelVersion: testModel},
		{ProductID: "z", Vector: []float32{0, 0, 1}, ModelVersion: testModel},
	}
}

func params(k int) Params {
	return Params{K: k, MaxRegions: 5, Timeout: time.Second}
}

func TestFuseKeepsMaxScore(t *testing.T) {
	got := Fuse([]RegionHits{
		{Region: 0, Hits: []domain.Hit{{ProductID: "P", Score: 0.7}, {ProductID: "Q", Score: 0.5}}},
		{Region: 1, Hits: []domain.Hit{{ProductID: "P", Score: 0.9}}},
	}, 10)

	assert.Equal(t, []domain.Hit{{ProductID: "P", Score: 0.9}, {ProductID: "Q", Score: 0.5}}, got)
}

func TestFuseTieBreak(t *testing.T) {
	lists := []RegionHits{
		{Region: 1, Hits: []domain.Hit{{ProductID: "a", Score: 0.5}}},
		{Region: 0, Hits: []domain.Hit{{ProductID: "c", Score: 0.5}, {ProductID: "b", Score: 0.5}}},
	}

	got := Fuse(lists, 10)

	ids := make([]string, len(got))
	for i, h := range got {
		ids[i] = h.ProductID
	}
	assert.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestFuseIsIdempotent(t *testing.T) {
	lists := []RegionHits{
		{Region: 0, Hits: []domain.Hit{{ProductID: "a", Score: 0.3}, {ProductID: "b", Score: 0.8}}},
		{Region: 1, Hits: []domain.Hit{{ProductID: "c", Score: 0.8}, {ProductID: "a", Score: 0.6}}},
		{Region: 2, Hits: []domain.Hit{{ProductID: "d", Score: 0.1}}},
	}
	reordered := []RegionHits{lists[2], lists[0], lists[1]}

	first := Fuse(lists, 3)
	assert.Equal(t, first, Fuse(lists, 3))
	assert.Equal(t, first, Fuse(reordered, 3))
	assert.Len(t, first, 3)
	assert.Equal(t, "b", first[0].ProductID)
}

func TestFuseEmpty(t *testing.T) {
	assert.Empty(t, Fuse(nil, 5))
	assert.NotNil(t, Fuse(nil, 5))
	assert.Empty(t, Fuse([]RegionHits{{Region: 0, Hits: []domain.Hit{{ProductID: "a", Score: 1}}}}, 0))
}

func TestSearchInvalidK(t *testing.T) {
	eng := newTestEngine(t, detector.WholeImage{}, &fakeEmbedder{}, axisCatalog())

	for _, k := range []int{0, -1, -100} {
		_, err := eng.Search(context.Background(), img, params(k))
		assert.ErrorIs(t, err, e.ErrInvalidArgument, "k=%d", k)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	eng := newTestEngine(t, detector.WholeImage{}, &fakeEmbedder{}, nil)

	_, err := eng.Search(context.Background(), img, params(3))
	assert.ErrorIs(t, err, e.ErrIndexNotLoaded)
}

func TestSearchZeroRegions(t *testing.T) {
	eng := newTestEngine(t, fakeDetector{}, &fakeEmbedder{}, axisCatalog())

	res, err := eng.Search(context.Background(), img, params(3))
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Zero(t, res.RegionsDetected)
}

func TestSearchAllRegionsFail(t *testing.T) {
	det := fakeDetector{regions: []domain.Region{regionAt(1), regionAt(2)}}
	eng := newTestEngine(t, det, &fakeEmbedder{}, axisCatalog())

	res, err := eng.Search(context.Background(), img, params(3))
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 2, res.RegionsDetected)
	assert.Equal(t, 2, res.RegionsFailed)
}

func TestSearchMultiRegionFusion(t *testing.T) {
	for _, kind := range indexKinds {
		t.Run(kind, func(t *testing.T) {
			det := fakeDetector{regions: []domain.Region{regionAt(1), regionAt(2), regionAt(3)}}
			emb := &fakeEmbedder{vectors: map[int][]float32{
				1: {1, 0.2, 0},
				2: {0, 0, 1},
				// 3 — сбой векторизации
			}}
			eng := newTestEngineOf(t, kind, det, emb, axisCatalog())

			res, err := eng.Search(context.Background(), img, params(2))
			require.NoError(t, err)

			require.Len(t, res.Hits, 2)
			assert.Equal(t, "z", res.Hits[0].ProductID)
			assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-5)
			assert.Equal(t, "x", res.Hits[1].ProductID)
			assert.Equal(t, 1, res.RegionsFailed)
			assert.Equal(t, eng.Snapshot().Version(), res.IndexVersion)
		})
	}
}

func TestSearchCapsRegions(t *testing.T) {
	det := fakeDetector{regions: []domain.Region{regionAt(1), regionAt(2), regionAt(3)}}
	emb := &fakeEmbedder{vectors: map[int][]float32{1: {1, 0, 0}, 2: {0, 1, 0}, 3: {0, 0, 1}}}
	eng := newTestEngine(t, det, emb, axisCatalog())

	p := params(3)
	p.MaxRegions = 1
	p.Candidates = 1

	res, err := eng.Search(context.Background(), img, p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RegionsDetected)
	assert.Equal(t, "x", res.Hits[0].ProductID)
}

func TestSearchEmbedderTimeoutDropsRegion(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	emb := &fakeEmbedder{vectors: map[int][]float32{0: {1, 0, 0}}, block: block}
	eng := newTestEngine(t, detector.WholeImage{}, emb, axisCatalog())

	p := params(3)
	p.Timeout = 20 * time.Millisecond

	res, err := eng.Search(context.Background(), img, p)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 1, res.RegionsFailed)
}

func TestSearchCancelled(t *testing.T) {
	eng := newTestEngine(t, detector.WholeImage{}, &fakeEmbedder{vectors: map[int][]float32{0: {1, 0, 0}}}, axisCatalog())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := eng.Search(ctx, img, params(3))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSwapValidation(t *testing.T) {
	eng := newTestEngine(t, detector.WholeImage{}, &fakeEmbedder{}, nil)

	_, err := eng.Swap(nil)
	assert.ErrorIs(t, err, e.ErrIndexNotLoaded)

	idx, ids, err := index.NewBuilder(index.BuilderOptions{Kind: index.KindFlat, Dimension: 3}).Build(axisCatalog())
	require.NoError(t, err)

	_, err = eng.Swap(&Snapshot{Index: idx, IDs: index.NewIdMap([]string{"x"}), Manifest: index.NewManifest(idx, ids, testModel)})
	assert.ErrorIs(t, err, e.ErrIndexCorrupt)

	_, err = eng.Swap(&Snapshot{Index: idx, IDs: ids, Manifest: index.NewManifest(idx, ids, "other-model")})
	assert.ErrorIs(t, err, e.ErrModelVersionMismatch)
	assert.Nil(t, eng.Snapshot())
}

func TestSwapDoesNotAffectInFlightSearch(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	emb := &fakeEmbedder{vectors: map[int][]float32{0: {1, 0, 0}}, block: block, started: started}
	eng := newTestEngine(t, detector.WholeImage{}, emb, axisCatalog())
	oldVersion := eng.Snapshot().Version()

	var (
		res *domain.SearchResult
		err error
		wg  sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err = eng.Search(context.Background(), img, Params{K: 1, MaxRegions: 1})
	}()

	<-started

	idx, ids, buildErr := index.NewBuilder(index.BuilderOptions{Kind: index.KindFlat, Dimension: 3}).Build([]domain.Embedding{
		{ProductID: "other", Vector: []float32{1, 0, 0}, ModelVersion: testModel},
	})
	require.NoError(t, buildErr)
	next, snapErr := NewSnapshot(idx, ids, index.NewManifest(idx, ids, testModel))
	require.NoError(t, snapErr)

	prev, swapErr := eng.Swap(next)
	require.NoError(t, swapErr)
	assert.Equal(t, oldVersion, prev.Version())

	close(block)
	wg.Wait()

	require.NoError(t, err)
	assert.Equal(t, oldVersion, res.IndexVersion)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "x", res.Hits[0].ProductID)
}

func TestConcurrentSearchesAreDeterministic(t *testing.T) {
	for _, kind := range indexKinds {
		t.Run(kind, func(t *testing.T) {
			det := fakeDetector{regions: []domain.Region{regionAt(1), regionAt(2)}}
			emb := &fakeEmbedder{vectors: map[int][]float32{1: {1, 1, 0}, 2: {0, 1, 1}}}
			eng := newTestEngineOf(t, kind, det, emb, axisCatalog())

			want, err := eng.Search(context.Background(), img, params(3))
			require.NoError(t, err)

			const runs = 64
			results := make([]*domain.SearchResult, runs)
			errs := make([]error, runs)

			var wg sync.WaitGroup
			for i := range runs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], errs[i] = eng.Search(context.Background(), img, params(3))
				}()
			}
			wg.Wait()

			for i := range runs {
				require.NoError(t, errs[i])
				assert.Equal(t, want.Hits, results[i].Hits)
			}
		})
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return m
}

// Каталог из трёх товаров разного цвета; запрос — фрагмент изображения A.
func TestEndToEndColourCrop(t *testing.T) {
	for _, kind := range indexKinds {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			hist := embedder.NewHistogram(4)

			reference := map[string]*image.RGBA{
				"A": solid(64, 48, color.RGBA{R: 220, G: 30, B: 30, A: 255}),
				"B": solid(64, 48, color.RGBA{R: 30, G: 200, B: 40, A: 255}),
				"C": solid(64, 48, color.RGBA{R: 30, G: 40, B: 210, A: 255}),
			}

			var embeddings []domain.Embedding
			for id, ref := range reference {
				vec, err := hist.Embed(ctx, ref, domain.WholeImageRegion(ref.Bounds()))
				require.NoError(t, err)
				embeddings = append(embeddings, *domain.NewEmbedding(id, vec, hist.ModelVersion()))
			}

			eng := newTestEngineOf(t, kind, detector.WholeImage{}, hist, embeddings)

			query, err := cropRGBA(reference["A"], image.Rect(10, 10, 40, 30))
			require.NoError(t, err)

			res, err := eng.Search(ctx, query, params(2))
			require.NoError(t, err)

			require.Len(t, res.Hits, 2)
			assert.Equal(t, "A", res.Hits[0].ProductID)
			assert.Greater(t, res.Hits[0].Score, res.Hits[1].Score)

			// Каждый товар находит сам себя на первом месте.
			for id, ref := range reference {
				res, err := eng.Search(ctx, ref, params(3))
				require.NoError(t, err)
				require.NotEmpty(t, res.Hits)
				assert.Equal(t, id, res.Hits[0].ProductID)
				assert.InDelta(t, 1.0, res.Hits[0].Score, 1e-5)
			}
		})
	}
}

func cropRGBA(src *image.RGBA, r image.Rectangle) (image.Image, error) {
	sub, ok := src.SubImage(r).(*image.RGBA)
	if !ok {
		return nil, errors.New("unexpected image type")
	}
	return sub, nil
}
