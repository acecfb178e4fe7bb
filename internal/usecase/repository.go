package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// EmbeddingRepository — хранилище эмбеддингов: один вектор на товар.
type EmbeddingRepository interface {
	Upsert(ctx context.Context, emb *domain.Embedding) error
	List(ctx context.Context) ([]domain.Embedding, error)
	Delete(ctx context.Context, productIDs []string) error
}

type CategoryRepository interface {
	Upsert(ctx context.Context, category *domain.Category) (*domain.Category, error)
}

type ProductRepository interface {
	Upsert(ctx context.Context, product *ProductInfo, categoryID *int64) error
	GetProductsInfo(ctx context.Context, ids []string) ([]ProductInfo, error)
}

type ProductEmbeddingVersionRepository interface {
	Upsert(ctx context.Context, productID string, modelVersion string) (*domain.ProductEmbeddingVersion, error)
}

type IndexBuildRepository interface {
	Create(ctx context.Context, build *domain.IndexBuild) error
	Latest(ctx context.Context) (*domain.IndexBuild, error)
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []string) (map[string]ProductInfo, error)
	SetProducts(ctx context.Context, products []ProductInfo) error
	DeleteProducts(ctx context.Context, ids []string) error
	GetSearch(ctx context.Context, key string) (*CachedSearch, error)
	SetSearch(ctx context.Context, key string, res *CachedSearch) error
}

// OutboxRepository — таблица исходящих событий, которые пишутся в одной
// транзакции с данными и отправляются в Kafka отдельным воркером.
type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
