// Package search — поиск товаров по фотографии: детекция, векторизация регионов,
// поиск соседей и слияние результатов.
package search

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"time"

	"github.com/DRSN-tech/visual-search/internal/detector"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/embedder"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const defaultCandidates = 50

// Params — параметры одного запроса.
type Params struct {
	K          int
	MaxRegions int
	// Timeout ограничивает каждый вызов детектора и эмбеддера. 0 — без ограничения.
	Timeout time.Duration
	// Candidates — число соседей на регион; не меньше K.
	Candidates int
}

type Engine struct {
	detector detector.Detector
	embedder embedder.Embedder
	snapshot atomic.Pointer[Snapshot]
	metrics  *metrics.Metrics
	logger   logger.Logger
}

type Option func(*Engine)

func WithMetrics(m *metrics.Metrics) Option {
	return func(eng *Engine) { eng.metrics = m }
}

func NewEngine(det detector.Detector, emb embedder.Embedder, log logger.Logger, opts ...Option) *Engine {
	eng := &Engine{
		detector: det,
		embedder: emb,
		logger:   log,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// Snapshot возвращает текущую пару (индекс, карта ординалов) или nil.
func (s *Engine) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

// Swap атомарно подменяет снимок. Запросы, начатые до подмены, дорабатывают
// на старом снимке. Снимок другой модели или размерности отклоняется.
func (s *Engine) Swap(next *Snapshot) (*Snapshot, error) {
	const op = "Engine.Swap"

	if err := next.Validate(); err != nil {
		return nil, e.Wrap(op, err)
	}
	if next.Manifest.ModelVersion != s.embedder.ModelVersion() {
		return nil, e.Wrap(op, fmt.Errorf("%w: index %q, embedder %q",
			e.ErrModelVersionMismatch, next.Manifest.ModelVersion, s.embedder.ModelVersion()))
	}
	if next.Index.Dimension() != s.embedder.Dimension() {
		return nil, e.Wrap(op, fmt.Errorf("%w: index %d, embedder %d",
			e.ErrDimensionMismatch, next.Index.Dimension(), s.embedder.Dimension()))
	}

	prev := s.snapshot.Swap(next)
	s.metrics.IndexSwapped(next.Index.Len())
	s.logger.Infof("index swapped: build=%s kind=%s size=%d", next.Version(), next.Manifest.Kind, next.Index.Len())

	return prev, nil
}

func (s *Engine) DetectorMode() string { return s.detector.Mode() }

// Search находит до K товаров, похожих на предметы на изображении.
// Ошибка отдельного региона не прерывает запрос: регион отбрасывается.
func (s *Engine) Search(ctx context.Context, img image.Image, p Params) (*domain.SearchResult, error) {
	const op = "Engine.Search"

	start := time.Now()
	res, err := s.search(ctx, img, p)

	status := "ok"
	if err != nil {
		status = "error"
	}
	regions := 0
	if res != nil {
		regions = res.RegionsDetected
	}
	s.metrics.ObserveSearch(status, time.Since(start), regions)

	if err != nil {
		return nil, e.Wrap(op, err)
	}
	return res, nil
}

func (s *Engine) search(ctx context.Context, img image.Image, p Params) (*domain.SearchResult, error) {
	if p.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", e.ErrInvalidArgument, p.K)
	}
	if p.MaxRegions <= 0 {
		return nil, fmt.Errorf("%w: max regions must be positive, got %d", e.ErrInvalidArgument, p.MaxRegions)
	}
	if img == nil {
		return nil, e.ErrNoImage
	}

	// Снимок фиксируется один раз на весь запрос.
	snap := s.snapshot.Load()
	if snap == nil {
		return nil, e.ErrIndexNotLoaded
	}

	regions, err := s.detect(ctx, img, p)
	if err != nil {
		return nil, err
	}
	if len(regions) == 0 {
		return domain.NewSearchResult(nil, 0, 0, snap.Version()), nil
	}

	candidates := max(p.Candidates, p.K)
	if p.Candidates <= 0 {
		candidates = max(defaultCandidates, p.K)
	}

	lists := make([]RegionHits, len(regions))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i, region := range regions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			hits, err := s.searchRegion(gctx, snap, img, region, p.Timeout, candidates)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				s.metrics.RegionFailed(failureReason(err))
				s.logger.Warnf("region %d dropped: %v", i, err)
				return nil
			}

			lists[i] = RegionHits{Region: i, Hits: hits}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	hits := Fuse(lists, p.K)
	return domain.NewSearchResult(hits, len(regions), int(failed.Load()), snap.Version()), nil
}

// detect собирает не более MaxRegions регионов. Детектор, не уложившийся
// в Timeout, заменяется регионом на всё изображение.
func (s *Engine) detect(ctx context.Context, img image.Image, p Params) ([]domain.Region, error) {
	callCtx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	done := make(chan []domain.Region, 1)
	go func() {
		done <- detector.Take(s.detector.Detect(callCtx, img), p.MaxRegions)
	}()

	select {
	case regions := <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return regions, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.logger.Warnf("detector timed out after %v, using whole image", p.Timeout)
		s.metrics.RegionFailed("detect_timeout")
		return []domain.Region{domain.WholeImageRegion(img.Bounds())}, nil
	}
}

func (s *Engine) searchRegion(
	ctx context.Context,
	snap *Snapshot,
	img image.Image,
	region domain.Region,
	timeout time.Duration,
	candidates int,
) ([]domain.Hit, error) {
	vec, err := s.embed(ctx, img, region, timeout)
	if err != nil {
		return nil, err
	}

	vec, ok := domain.Normalize(vec)
	if !ok {
		return nil, e.ErrZeroVector
	}

	neighbors, err := snap.Index.Search(vec, candidates)
	if err != nil {
		return nil, err
	}

	hits := make([]domain.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		pid, ok := snap.IDs.ProductID(n.Ordinal)
		if !ok {
			return nil, fmt.Errorf("%w: ordinal %d outside id map of %d", e.ErrIndexCorrupt, n.Ordinal, snap.IDs.Len())
		}
		hits = append(hits, domain.Hit{ProductID: pid, Score: n.Score})
	}

	return hits, nil
}

type embedResult struct {
	vec []float32
	err error
}

// embed вызывает эмбеддер с ограничением по времени, даже если тот не
// проверяет контекст.
func (s *Engine) embed(ctx context.Context, img image.Image, region domain.Region, timeout time.Duration) ([]float32, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	done := make(chan embedResult, 1)
	go func() {
		vec, err := s.embedder.Embed(callCtx, img, region)
		done <- embedResult{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		return r.vec, r.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, e.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, e.ErrImageDecode):
		return "decode"
	default:
		return "embed"
	}
}
