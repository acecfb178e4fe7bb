package usecase

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/index"
)

// CatalogInfra — снимок каталога в объектном хранилище.
type CatalogInfra interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetImage(ctx context.Context, key string) (*domain.Image, error)
	GetProductMeta(ctx context.Context, productID string) (*ProductInfo, error)
	PresignedURL(ctx context.Context, key string) (string, error)
}

// ArtifactsInfra публикует и скачивает артефакты индекса.
type ArtifactsInfra interface {
	Publish(ctx context.Context, dir string, manifest index.Manifest) (prefix string, err error)
	Download(ctx context.Context, prefix string, files []string, dstDir string) error
}

// EventsInfra рассылает события о новых сборках индекса.
type EventsInfra interface {
	EncodeIndexPublished(event *IndexPublishedEvent) ([]byte, error)
	PublishIndex(ctx context.Context, event *IndexPublishedEvent) error
}

// MessageProducer отправляет уже сериализованные сообщения (для outbox).
type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
