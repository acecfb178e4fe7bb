package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/DRSN-tech/visual-search/internal/detector"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/embedder"
	"github.com/DRSN-tech/visual-search/internal/imaging"
	"github.com/DRSN-tech/visual-search/internal/index"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/internal/search"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// IndexDeps — зависимости IndexUseCase. Postgres, кэш, публикация артефактов
// и события необязательны: без них работает офлайн-сборка.
type IndexDeps struct {
	Catalog    CatalogInfra
	Embeddings EmbeddingRepository
	Detector   detector.Detector
	Embedder   embedder.Embedder
	Builder    *index.Builder
	Artifacts  *index.Artifacts
	Engine     *search.Engine
	Logger     logger.Logger

	DBPool         transaction.Transactional
	Categories     CategoryRepository
	Products       ProductRepository
	Versions       ProductEmbeddingVersionRepository
	Builds         IndexBuildRepository
	Outbox         OutboxRepository
	Cache          CacheRepository
	ArtifactsInfra ArtifactsInfra
	Events         EventsInfra
	Metrics        *metrics.Metrics

	Workers int
	SearchK int
	// CallTimeout ограничивает каждый вызов детектора и эмбеддера при сборке. 0 — без ограничения.
	CallTimeout time.Duration
}

// IndexUseCase векторизует каталог, собирает индекс и подменяет его в поисковом движке.
type IndexUseCase struct {
	IndexDeps
	buildMu sync.Mutex
}

func NewIndexUC(deps IndexDeps) *IndexUseCase {
	if deps.Workers <= 0 {
		deps.Workers = 1
	}
	return &IndexUseCase{IndexDeps: deps}
}

type productResult struct {
	productID string
	embedded  bool
	err       error
}

// EmbedCatalog векторизует товары каталога и сохраняет по одному эмбеддингу на товар.
// Ошибка отдельного товара логируется; недоступная модель прерывает процесс.
func (u *IndexUseCase) EmbedCatalog(ctx context.Context, reembed bool) (*EmbedCatalogRes, error) {
	const op = "IndexUseCase.EmbedCatalog"

	products, err := u.Catalog.ListProducts(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// Пустой листинг не должен стереть хранилище.
	if len(products) == 0 {
		return nil, e.Wrap(op, e.ErrEmptyCatalog)
	}

	stored, err := u.Embeddings.List(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	current := make(map[string]bool, len(stored))
	for _, emb := range stored {
		current[emb.ProductID] = emb.ModelVersion == u.Embedder.ModelVersion()
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan productResult, len(products))
	sem := make(chan struct{}, u.Workers)

	var wg sync.WaitGroup
	for _, product := range products {
		if !reembed && current[product.ID] {
			resCh <- productResult{productID: product.ID}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resCh <- productResult{productID: product.ID, err: ctx.Err()}
				return
			}

			err := u.embedProduct(ctx, product)
			resCh <- productResult{productID: product.ID, embedded: err == nil, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(resCh)
	}()

	res := &EmbedCatalogRes{Products: len(products)}
	var (
		fatal   error
		changed []string
	)
	for r := range resCh {
		switch {
		case r.err == nil && r.embedded:
			res.Embedded++
			changed = append(changed, r.productID)
			u.Metrics.ProductEmbedded("ok")
		case r.err == nil:
			// уже векторизован текущей моделью
		case errors.Is(r.err, e.ErrModelUnavailable) || errors.Is(r.err, context.Canceled) || parent.Err() != nil:
			if fatal == nil {
				fatal = r.err
				if parent.Err() != nil {
					fatal = parent.Err()
				}
				cancel()
			}
		default:
			res.Failed++
			u.Metrics.ProductEmbedded("failed")
			u.Logger.Warnf("product %s skipped: %v", r.productID, r.err)
		}
	}

	if fatal != nil {
		return nil, e.Wrap(op, fatal)
	}

	pruned, err := u.prune(ctx, products, stored)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	res.Pruned = pruned

	if u.Cache != nil && len(changed) > 0 {
		if err := u.Cache.DeleteProducts(ctx, changed); err != nil {
			u.Logger.Warnf("failed to invalidate product cache: %v", e.Wrap(op, err))
		}
	}

	u.Logger.Infof("catalog embedded: products=%d embedded=%d failed=%d pruned=%d",
		res.Products, res.Embedded, res.Failed, res.Pruned)

	return res, nil
}

// detect собирает регионы изображения. Детектор, не уложившийся в CallTimeout,
// заменяется регионом на всё изображение.
func (u *IndexUseCase) detect(ctx context.Context, img image.Image) []domain.Region {
	callCtx, cancel := u.callContext(ctx)
	defer cancel()

	done := make(chan []domain.Region, 1)
	go func() {
		done <- slices.Collect(u.Detector.Detect(callCtx, img))
	}()

	select {
	case regions := <-done:
		return regions
	case <-callCtx.Done():
		if ctx.Err() == nil {
			u.Logger.Warnf("detector timed out after %v, using whole image", u.CallTimeout)
		}
		return []domain.Region{domain.WholeImageRegion(img.Bounds())}
	}
}

// embed ограничивает вызов эмбеддера CallTimeout, даже если тот не проверяет контекст.
func (u *IndexUseCase) embed(ctx context.Context, img image.Image, region domain.Region) ([]float32, error) {
	callCtx, cancel := u.callContext(ctx)
	defer cancel()

	type result struct {
		vec []float32
		err error
	}
	done := make(chan result, 1)
	go func() {
		vec, err := u.Embedder.Embed(callCtx, img, region)
		done <- result{vec: vec, err: err}
	}()

	select {
	case r := <-done:
		return r.vec, r.err
	case <-callCtx.Done():
		return nil, callCtx.Err()
	}
}

func (u *IndexUseCase) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if u.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, u.CallTimeout)
}

// embedProduct усредняет эмбеддинги всех регионов всех изображений товара.
func (u *IndexUseCase) embedProduct(ctx context.Context, product domain.Product) error {
	const op = "IndexUseCase.embedProduct"

	var vectors [][]float32
	for _, key := range product.ImageKeys {
		img, err := u.loadImage(ctx, key)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			u.Logger.Warnf("product %s: image %s skipped: %v", product.ID, key, err)
			continue
		}

		for _, region := range u.detect(ctx, img) {
			vec, err := u.embed(ctx, img, region)
			if err != nil {
				if ctx.Err() != nil {
					return e.Wrap(op, ctx.Err())
				}
				if errors.Is(err, e.ErrModelUnavailable) || errors.Is(err, context.Canceled) {
					return e.Wrap(op, err)
				}
				u.Logger.Warnf("product %s: region of %s skipped: %v", product.ID, key, err)
				continue
			}
			vectors = append(vectors, vec)
		}
	}

	if len(vectors) == 0 {
		return e.Wrap(op, fmt.Errorf("%w: no embeddable images for %s", e.ErrImageDecode, product.ID))
	}

	mean, ok := domain.Normalize(domain.Mean(vectors))
	if !ok {
		return e.Wrap(op, e.ErrZeroVector)
	}

	if err := u.Embeddings.Upsert(ctx, domain.NewEmbedding(product.ID, mean, u.Embedder.ModelVersion())); err != nil {
		return e.Wrap(op, err)
	}

	u.syncProductMeta(ctx, product)
	return nil
}

func (u *IndexUseCase) loadImage(ctx context.Context, key string) (image.Image, error) {
	obj, err := u.Catalog.GetImage(ctx, key)
	if err != nil {
		return nil, err
	}

	img, _, err := imaging.Decode(obj.Data)
	if err != nil {
		return nil, err
	}

	return img, nil
}

// syncProductMeta переносит meta.json товара в Postgres. Ошибки не фатальны.
func (u *IndexUseCase) syncProductMeta(ctx context.Context, product domain.Product) {
	if u.Products == nil {
		return
	}

	info, err := u.Catalog.GetProductMeta(ctx, product.ID)
	if err != nil {
		u.Logger.Warnf("product %s: meta unavailable: %v", product.ID, err)
		return
	}
	if info.ImageKey == "" && len(product.ImageKeys) > 0 {
		info.ImageKey = product.ImageKeys[0]
	}

	err = u.withTx(ctx, func(ctx context.Context) error {
		var categoryID *int64
		if u.Categories != nil && info.Category != "" {
			category, err := u.Categories.Upsert(ctx, domain.NewCategory(info.Category))
			if err != nil {
				return err
			}
			categoryID = &category.ID
		}

		return u.Products.Upsert(ctx, info, categoryID)
	})
	if err != nil {
		u.Logger.Warnf("product %s: meta not saved: %v", product.ID, err)
	}
}

// withTx выполняет fn в транзакции Postgres; без пула — просто вызывает fn.
func (u *IndexUseCase) withTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	const op = "IndexUseCase.withTx"

	if u.DBPool == nil {
		return fn(ctx)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, u.DBPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				u.Logger.Warnf("rollback failed: %v", rbErr)
			}
		}
	}()

	if err = fn(tr.WithTx(ctx, tx.Transaction().(pgx.Tx))); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// prune удаляет из хранилища товары, которых больше нет в каталоге.
func (u *IndexUseCase) prune(ctx context.Context, products []domain.Product, stored []domain.Embedding) (int, error) {
	inCatalog := make(map[string]struct{}, len(products))
	for _, p := range products {
		inCatalog[p.ID] = struct{}{}
	}

	var stale []string
	for _, emb := range stored {
		if _, ok := inCatalog[emb.ProductID]; !ok {
			stale = append(stale, emb.ProductID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := u.Embeddings.Delete(ctx, stale); err != nil {
		return 0, err
	}

	return len(stale), nil
}

// BuildIndex векторизует каталог, собирает индекс, сохраняет и публикует артефакты
// и подменяет снимок в движке. Пока идёт сборка, поиск обслуживает прежний индекс.
func (u *IndexUseCase) BuildIndex(ctx context.Context, req *BuildIndexReq) (res *BuildIndexRes, err error) {
	const op = "IndexUseCase.BuildIndex"

	if !u.buildMu.TryLock() {
		return nil, e.Wrap(op, e.ErrBuildInProgress)
	}
	defer u.buildMu.Unlock()

	start := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		u.Metrics.ObserveBuild(status, time.Since(start))
	}()

	catalogRes, err := u.EmbedCatalog(ctx, req.Reembed)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	embeddings, err := u.currentEmbeddings(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	idx, ids, err := u.Builder.Build(embeddings)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	manifest := index.NewManifest(idx, ids, u.Embedder.ModelVersion())
	dir, err := u.Artifacts.Write(idx, ids, &manifest)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	snapshot, err := search.NewSnapshot(idx, ids, manifest)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var prefix string
	if u.ArtifactsInfra != nil {
		prefix, err = u.ArtifactsInfra.Publish(ctx, dir, manifest)
		if err != nil {
			return nil, e.Wrap(op, err)
		}
	}

	var event *IndexPublishedEvent
	if u.Events != nil && prefix != "" {
		event = &IndexPublishedEvent{
			BuildID:         manifest.BuildID,
			Kind:            manifest.Kind,
			Size:            manifest.Size,
			Dimension:       manifest.Dimension,
			ModelVersion:    manifest.ModelVersion,
			ArtifactsPrefix: prefix,
			Files:           manifest.Files(),
			CreatedAt:       manifest.CreatedAt,
		}
	}

	queued, err := u.recordBuild(ctx, manifest, prefix, ids.IDs(), event)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// CURRENT переключается только на сборку, которую принял движок.
	if _, err := u.Engine.Swap(snapshot); err != nil {
		return nil, e.Wrap(op, err)
	}

	if err := u.Artifacts.SetCurrent(manifest.BuildID); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Без outbox событие отправляется напрямую.
	if event != nil && !queued {
		if err := u.Events.PublishIndex(ctx, event); err != nil {
			u.Logger.Warnf("index %s built but event not published: %v", manifest.BuildID, err)
		}
	}

	res = &BuildIndexRes{
		BuildID:      manifest.BuildID,
		Kind:         manifest.Kind,
		Size:         manifest.Size,
		Dimension:    manifest.Dimension,
		ModelVersion: manifest.ModelVersion,
		Catalog:      *catalogRes,
		Published:    prefix != "",
		Duration:     time.Since(start),
	}
	u.Logger.Infof("index built: build=%s kind=%s size=%d in %v", res.BuildID, res.Kind, res.Size, res.Duration)

	return res, nil
}

// currentEmbeddings отбрасывает векторы другой модели: смешивать их в одном индексе нельзя.
func (u *IndexUseCase) currentEmbeddings(ctx context.Context) ([]domain.Embedding, error) {
	all, err := u.Embeddings.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Embedding, 0, len(all))
	for _, emb := range all {
		if emb.ModelVersion != u.Embedder.ModelVersion() {
			continue
		}
		out = append(out, emb)
	}
	if skipped := len(all) - len(out); skipped > 0 {
		u.Logger.Warnf("%d embeddings of another model version excluded from index", skipped)
	}

	return out, nil
}

// recordBuild в одной транзакции пишет журнал сборки, версии эмбеддингов
// товаров и, если есть outbox, событие о публикации. Возвращает true,
// если событие поставлено в outbox.
func (u *IndexUseCase) recordBuild(
	ctx context.Context,
	m index.Manifest,
	prefix string,
	productIDs []string,
	event *IndexPublishedEvent,
) (bool, error) {
	const op = "IndexUseCase.recordBuild"

	if u.Builds == nil {
		return false, nil
	}

	queue := event != nil && u.Outbox != nil
	err := u.withTx(ctx, func(ctx context.Context) error {
		err := u.Builds.Create(ctx, &domain.IndexBuild{
			ID:              m.BuildID,
			Kind:            m.Kind,
			Size:            m.Size,
			Dimension:       m.Dimension,
			ModelVersion:    m.ModelVersion,
			ArtifactsPrefix: prefix,
			CreatedAt:       m.CreatedAt,
		})
		if err != nil {
			return err
		}

		if u.Versions != nil {
			for _, id := range productIDs {
				if _, err := u.Versions.Upsert(ctx, id, m.ModelVersion); err != nil {
					return err
				}
			}
		}

		if !queue {
			return nil
		}

		payload, err := u.Events.EncodeIndexPublished(event)
		if err != nil {
			return err
		}

		_, err = u.Outbox.Create(ctx, NewOutboxEvent(IndexPublished, event.BuildID, payload))
		return err
	})
	if err != nil {
		return false, e.Wrap(op, err)
	}

	return queue, nil
}

// LoadLatest загружает актуальную локальную сборку, а если её нет —
// последнюю опубликованную сборку из объектного хранилища.
func (u *IndexUseCase) LoadLatest(ctx context.Context) error {
	const op = "IndexUseCase.LoadLatest"

	buildID, err := u.Artifacts.Current()
	if err != nil {
		if !errors.Is(err, e.ErrIndexNotLoaded) || u.Builds == nil || u.ArtifactsInfra == nil {
			return e.Wrap(op, err)
		}

		build, err := u.Builds.Latest(ctx)
		if err != nil {
			return e.Wrap(op, err)
		}
		if build.ArtifactsPrefix == "" {
			return e.Wrap(op, e.ErrIndexNotLoaded)
		}

		return u.ApplyPublished(ctx, &IndexPublishedEvent{
			BuildID:         build.ID,
			Kind:            build.Kind,
			Size:            build.Size,
			Dimension:       build.Dimension,
			ModelVersion:    build.ModelVersion,
			ArtifactsPrefix: build.ArtifactsPrefix,
			Files:           index.FilesFor(build.Kind),
			CreatedAt:       build.CreatedAt,
		})
	}

	if err := u.swapFromDir(u.Artifacts.Dir(buildID)); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// ApplyPublished скачивает опубликованную сборку и подменяет ею текущий индекс.
func (u *IndexUseCase) ApplyPublished(ctx context.Context, event *IndexPublishedEvent) error {
	const op = "IndexUseCase.ApplyPublished"

	if snap := u.Engine.Snapshot(); snap != nil && snap.Version() == event.BuildID {
		return nil
	}
	if event.ModelVersion != u.Embedder.ModelVersion() {
		return e.Wrap(op, fmt.Errorf("%w: build %s uses %q", e.ErrModelVersionMismatch, event.BuildID, event.ModelVersion))
	}
	if u.ArtifactsInfra == nil {
		return e.Wrap(op, fmt.Errorf("artifact store is not configured"))
	}

	files := event.Files
	if len(files) == 0 {
		files = index.FilesFor(event.Kind)
	}

	dir := u.Artifacts.Dir(event.BuildID)
	if err := u.ArtifactsInfra.Download(ctx, event.ArtifactsPrefix, files, dir); err != nil {
		return e.Wrap(op, err)
	}

	if err := u.swapFromDir(dir); err != nil {
		return e.Wrap(op, err)
	}

	if err := u.Artifacts.SetCurrent(event.BuildID); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

func (u *IndexUseCase) swapFromDir(dir string) error {
	idx, ids, manifest, err := index.Load(dir, u.SearchK)
	if err != nil {
		return err
	}

	snapshot, err := search.NewSnapshot(idx, ids, manifest)
	if err != nil {
		return err
	}

	_, err = u.Engine.Swap(snapshot)
	return err
}
