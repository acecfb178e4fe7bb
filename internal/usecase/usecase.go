package usecase

import "context"

type SearchUC interface {
	Search(ctx context.Context, req *SearchReq) (*SearchRes, error)
	Health() *HealthRes
}

type IndexUC interface {
	EmbedCatalog(ctx context.Context, reembed bool) (*EmbedCatalogRes, error)
	BuildIndex(ctx context.Context, req *BuildIndexReq) (*BuildIndexRes, error)
	LoadLatest(ctx context.Context) error
	ApplyPublished(ctx context.Context, event *IndexPublishedEvent) error
}
