package qdrant

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/google/uuid"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

const scrollPageSize uint32 = 256

// productNamespace — пространство имён UUIDv5 для идентификаторов точек.
var productNamespace = uuid.MustParse("6f1c2a52-3f8e-5b7a-9c1d-2e4f6a8b0c13")

// pointsClient — часть qdrant.Client, используемая репозиторием.
type pointsClient interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

// EmbeddingRepo — хранилище эмбеддингов товаров в Qdrant: одна точка на товар.
type EmbeddingRepo struct {
	client pointsClient
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// PointID детерминированно выводит идентификатор точки из идентификатора товара,
// поэтому повторный Upsert заменяет прежний вектор.
func PointID(productID string) string {
	return uuid.NewSHA1(productNamespace, []byte(productID)).String()
}

// Upsert сохраняет или заменяет эмбеддинг товара.
func (q *EmbeddingRepo) Upsert(ctx context.Context, emb *domain.Embedding) error {
	if emb.ProductID == "" || len(emb.Vector) == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrInvalidArgument)
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(PointID(emb.ProductID)),
			Vectors: qdrant.NewVectors(emb.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"product_id":    emb.ProductID,
				"model_version": emb.ModelVersion,
				"created_at":    emb.CreatedAt.UTC().Format(time.RFC3339),
			}),
		}},
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// List возвращает все эмбеддинги, упорядоченные по идентификатору товара.
func (q *EmbeddingRepo) List(ctx context.Context) ([]domain.Embedding, error) {
	seen := make(map[string]struct{})
	out := make([]domain.Embedding, 0)

	var offset *qdrant.PointId
	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.cfg.QdrantCollectionName,
			Limit:          qdrant.PtrOf(scrollPageSize),
			WithVectors:    qdrant.NewWithVectors(true),
			WithPayload:    qdrant.NewWithPayload(true),
			Offset:         offset,
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		added := 0
		for _, point := range points {
			pointID := point.GetId().GetUuid()
			if _, ok := seen[pointID]; ok {
				continue
			}
			seen[pointID] = struct{}{}
			offset = point.GetId()

			emb, err := toEmbedding(point)
			if err != nil {
				return nil, e.Wrap(whereami.WhereAmI(), err)
			}
			out = append(out, emb)
			added++
		}

		// offset в Scroll включительный: страница без новых точек — конец.
		if added == 0 || len(points) < int(scrollPageSize) {
			break
		}
	}

	slices.SortFunc(out, func(a, b domain.Embedding) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	return out, nil
}

// Delete удаляет эмбеддинги товаров, выбывших из каталога.
func (q *EmbeddingRepo) Delete(ctx context.Context, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}

	ids := make([]*qdrant.PointId, len(productIDs))
	for i, id := range productIDs {
		ids[i] = qdrant.NewID(PointID(id))
	}

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         qdrant.NewPointsSelector(ids...),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// denseData: новые версии Qdrant отдают вектор в oneof Dense,
// старые заполняют только устаревшее поле Data.
func denseData(out *qdrant.VectorOutput) []float32 {
	if data := out.GetDense().GetData(); len(data) > 0 {
		return data
	}
	return out.GetData()
}

func toEmbedding(point *qdrant.RetrievedPoint) (domain.Embedding, error) {
	payload := point.GetPayload()
	productID := payload["product_id"].GetStringValue()
	if productID == "" {
		return domain.Embedding{}, fmt.Errorf("point %s: missing product_id", point.GetId().GetUuid())
	}

	vec := denseData(point.GetVectors().GetVector())
	if len(vec) == 0 {
		return domain.Embedding{}, fmt.Errorf("point %s: missing vector", point.GetId().GetUuid())
	}

	createdAt, _ := time.Parse(time.RFC3339, payload["created_at"].GetStringValue())

	return domain.Embedding{
		ProductID:    productID,
		Vector:       vec,
		ModelVersion: payload["model_version"].GetStringValue(),
		CreatedAt:    createdAt,
	}, nil
}
