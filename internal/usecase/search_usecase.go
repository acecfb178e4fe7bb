package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/imaging"
	"github.com/DRSN-tech/visual-search/internal/metrics"
	"github.com/DRSN-tech/visual-search/internal/search"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const backgroundTimeout = 3 * time.Second

type SearchUseCase struct {
	engine   *search.Engine
	catalog  CatalogInfra
	products ProductRepository
	cache    CacheRepository
	metrics  *metrics.Metrics
	cfg      *cfg.SearchCfg
	prefix   string // префикс каталога для ссылки на изображение по умолчанию
	logger   logger.Logger
}

// NewSearchUC — каталог, Postgres и Redis необязательны: без них ответ
// содержит только идентификаторы и оценки.
func NewSearchUC(
	engine *search.Engine,
	catalog CatalogInfra,
	products ProductRepository,
	cache CacheRepository,
	metrics *metrics.Metrics,
	cfg *cfg.SearchCfg,
	catalogPrefix string,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		engine:   engine,
		catalog:  catalog,
		products: products,
		cache:    cache,
		metrics:  metrics,
		cfg:      cfg,
		prefix:   catalogPrefix,
		logger:   logger,
	}
}

// Search находит товары, похожие на изображенные на фотографии.
func (u *SearchUseCase) Search(ctx context.Context, req *SearchReq) (*SearchRes, error) {
	const op = "SearchUseCase.Search"

	k, maxRegions, err := u.params(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	if len(req.Image) == 0 {
		return nil, e.Wrap(op, e.ErrNoImage)
	}

	snap := u.engine.Snapshot()
	if snap == nil {
		return nil, e.Wrap(op, e.ErrIndexNotLoaded)
	}

	key := searchCacheKey(snap.Version(), req.Image, k, maxRegions)
	if cached := u.cachedSearch(ctx, key); cached != nil {
		return u.present(ctx, cached, true), nil
	}

	img, _, err := imaging.Decode(req.Image)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	result, err := u.engine.Search(ctx, img, search.Params{
		K:          k,
		MaxRegions: maxRegions,
		Timeout:    u.cfg.CallTimeout,
		Candidates: u.cfg.Candidates,
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res := toCachedSearch(result)
	// Частичный отказ регионов не кэшируем: повтор может дать полный ответ.
	if result.RegionsFailed == 0 && result.IndexVersion == snap.Version() {
		u.storeSearch(key, res)
	}

	return u.present(ctx, res, false), nil
}

// params отклоняет k и max_regions ≤ 0 и урезает значения выше предела.
func (u *SearchUseCase) params(req *SearchReq) (int, int, error) {
	if req.K <= 0 {
		return 0, 0, fmt.Errorf("%w: k must be positive, got %d", e.ErrInvalidArgument, req.K)
	}
	if req.MaxRegions <= 0 {
		return 0, 0, fmt.Errorf("%w: max_regions must be positive, got %d", e.ErrInvalidArgument, req.MaxRegions)
	}

	k, maxRegions := req.K, req.MaxRegions
	if u.cfg.MaxTopK > 0 && k > u.cfg.MaxTopK {
		k = u.cfg.MaxTopK
	}
	if u.cfg.MaxRegions > 0 && maxRegions > u.cfg.MaxRegions {
		maxRegions = u.cfg.MaxRegions
	}

	return k, maxRegions, nil
}

// searchCacheKey привязан к версии индекса: после подмены индекса старые записи не читаются.
func searchCacheKey(indexVersion string, image []byte, k, maxRegions int) string {
	sum := sha256.Sum256(image)
	return fmt.Sprintf("search:%s:%s:%d:%d", indexVersion, hex.EncodeToString(sum[:]), k, maxRegions)
}

func (u *SearchUseCase) cachedSearch(ctx context.Context, key string) *CachedSearch {
	if u.cache == nil {
		return nil
	}

	cached, err := u.cache.GetSearch(ctx, key)
	if err != nil {
		u.logger.Warnf("search cache read failed: %v", err)
	}
	u.metrics.CacheLookup(cached != nil)

	return cached
}

func (u *SearchUseCase) storeSearch(key string, res *CachedSearch) {
	if u.cache == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()

		if err := u.cache.SetSearch(ctx, key, res); err != nil {
			u.logger.Warnf("search cache write failed: %v", err)
		}
	}()
}

func toCachedSearch(result *domain.SearchResult) *CachedSearch {
	hits := make([]CachedHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hits = append(hits, CachedHit{ProductID: h.ProductID, Score: h.Score})
	}

	return &CachedSearch{
		Hits:            hits,
		RegionsDetected: result.RegionsDetected,
		RegionsFailed:   result.RegionsFailed,
		IndexVersion:    result.IndexVersion,
	}
}

// present дополняет ранжирование метаданными товаров и ссылками на изображения.
// Ошибки обогащения не влияют на результат поиска.
func (u *SearchUseCase) present(ctx context.Context, res *CachedSearch, cached bool) *SearchRes {
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ProductID)
	}

	infos, err := u.productsInfo(ctx, ids)
	if err != nil && !errors.Is(err, context.Canceled) {
		u.logger.Warnf("product info unavailable: %v", err)
	}

	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := SearchHit{ProductID: h.ProductID, Score: h.Score}
		if info, ok := infos[h.ProductID]; ok {
			hit.Product = &info
		}
		hit.ImageURL = u.imageURL(ctx, h.ProductID, hit.Product)
		hits = append(hits, hit)
	}

	return &SearchRes{
		Hits:            hits,
		RegionsDetected: res.RegionsDetected,
		RegionsFailed:   res.RegionsFailed,
		IndexVersion:    res.IndexVersion,
		Cached:          cached,
	}
}

// productsInfo: сначала кэш, затем Postgres; найденное в БД кэшируется в фоне.
func (u *SearchUseCase) productsInfo(ctx context.Context, ids []string) (map[string]ProductInfo, error) {
	const op = "SearchUseCase.productsInfo"

	out := make(map[string]ProductInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	missing := ids
	if u.cache != nil {
		cached, err := u.cache.GetProducts(ctx, ids)
		if err != nil {
			u.logger.Warnf("product cache read failed: %v", err)
		}
		missing = missing[:0:0]
		for _, id := range ids {
			if info, ok := cached[id]; ok {
				out[id] = info
				continue
			}
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 || u.products == nil {
		return out, nil
	}

	fromDB, err := u.products.GetProductsInfo(ctx, missing)
	if err != nil {
		return out, e.Wrap(op, err)
	}
	for _, info := range fromDB {
		out[info.ID] = info
	}

	if u.cache != nil && len(fromDB) > 0 {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
			defer cancel()

			if err := u.cache.SetProducts(ctx, fromDB); err != nil {
				u.logger.Warnf("product cache write failed: %v", err)
			}
		}()
	}

	return out, nil
}

func (u *SearchUseCase) imageURL(ctx context.Context, productID string, info *ProductInfo) string {
	if u.catalog == nil {
		return ""
	}

	key := strings.TrimSpace(u.prefix) + productID + "/image_1.jpg"
	if info != nil && info.ImageKey != "" {
		key = info.ImageKey
	}

	url, err := u.catalog.PresignedURL(ctx, key)
	if err != nil {
		u.logger.Warnf("presign %s failed: %v", key, err)
		return ""
	}

	return url
}

// Health не обращается к внешним сервисам.
func (u *SearchUseCase) Health() *HealthRes {
	res := &HealthRes{DetectorMode: u.engine.DetectorMode()}

	snap := u.engine.Snapshot()
	if snap == nil {
		return res
	}

	res.IndexLoaded = true
	res.IndexSize = snap.Index.Len()
	res.IndexVersion = snap.Version()
	res.IndexKind = snap.Index.Kind()
	res.ModelVersion = snap.Manifest.ModelVersion

	return res
}
