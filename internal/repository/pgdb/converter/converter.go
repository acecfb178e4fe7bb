// Package converter переводит строки PostgreSQL в сущности domain и usecase и обратно.
package converter

import (
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/shopspring/decimal"
)

func CategoryToEntity(model *CategoryModel) *domain.Category {
	return &domain.Category{
		ID:         model.ID,
		Label:      model.Label,
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
		IsArchived: model.IsArchived,
	}
}

// ProductToModel — нулевая цена означает «нет цены» и пишется как NULL.
func ProductToModel(info *usecase.ProductInfo, categoryID *int64) *ProductModel {
	return &ProductModel{
		ID:            info.ID,
		Title:         info.Title,
		CategoryID:    categoryID,
		Brand:         info.Brand,
		SalePrice:     nullablePrice(info.SalePrice),
		OriginalPrice: nullablePrice(info.OriginalPrice),
		Currency:      info.Currency,
		ImageKey:      info.ImageKey,
		ProductURL:    info.ProductURL,
	}
}

func nullablePrice(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: !d.IsZero()}
}

func ProductEmbeddingVersionToEntity(model *ProductEmbeddingVersionModel) *domain.ProductEmbeddingVersion {
	return &domain.ProductEmbeddingVersion{
		ID:               model.ID,
		ProductID:        model.ProductID,
		EmbeddingVersion: model.EmbeddingVersion,
		ModelVersion:     model.ModelVersion,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func IndexBuildToModel(build *domain.IndexBuild) *IndexBuildModel {
	return &IndexBuildModel{
		ID:              build.ID,
		Kind:            build.Kind,
		Size:            int32(build.Size),
		Dimension:       int32(build.Dimension),
		ModelVersion:    build.ModelVersion,
		ArtifactsPrefix: build.ArtifactsPrefix,
		CreatedAt:       build.CreatedAt,
	}
}

func IndexBuildToEntity(model *IndexBuildModel) *domain.IndexBuild {
	return &domain.IndexBuild{
		ID:              model.ID,
		Kind:            model.Kind,
		Size:            int(model.Size),
		Dimension:       int(model.Dimension),
		ModelVersion:    model.ModelVersion,
		ArtifactsPrefix: model.ArtifactsPrefix,
		CreatedAt:       model.CreatedAt,
	}
}

func OutboxEventToModel(event *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          event.ID,
		EventID:     event.EventID,
		EventType:   string(event.EventType),
		AggregateID: event.AggregateID,
		Payload:     event.Payload,
		Status:      string(event.Status),
		CreatedAt:   event.CreatedAt,
		ProcessedAt: event.ProcessedAt,
	}
}

func OutboxEventToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   usecase.OutboxEventType(model.EventType),
		AggregateID: model.AggregateID,
		Payload:     model.Payload,
		Status:      usecase.OutboxStatus(model.Status),
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func OutboxEventsToEntities(models []*OutboxEventModel) []*usecase.OutboxEvent {
	out := make([]*usecase.OutboxEvent, 0, len(models))
	for _, m := range models {
		out = append(out, OutboxEventToEntity(m))
	}
	return out
}
