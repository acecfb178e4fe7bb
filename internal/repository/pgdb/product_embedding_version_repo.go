package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

type ProductEmbeddingVersionRepo struct {
	pool *pgxpool.Pool
}

func NewProductEmbeddingVersionRepo(pool *pgxpool.Pool) *ProductEmbeddingVersionRepo {
	return &ProductEmbeddingVersionRepo{pool: pool}
}

// Upsert увеличивает версию эмбеддинга товара и запоминает модель, которой он получен.
func (p *ProductEmbeddingVersionRepo) Upsert(ctx context.Context, productID string, modelVersion string) (*domain.ProductEmbeddingVersion, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	var model converter.ProductEmbeddingVersionModel
	query := `
	INSERT INTO product_embedding_version (product_id, model_version)
    VALUES ($1, $2)
    ON CONFLICT (product_id)
    DO UPDATE SET embedding_version = product_embedding_version.embedding_version + 1,
                  model_version = EXCLUDED.model_version,
                  updated_at = NOW()
    RETURNING id, product_id, embedding_version, model_version, created_at, updated_at, is_archived;
	`

	err = tx.QueryRow(ctx, query, productID, modelVersion).Scan(
		&model.ID,
		&model.ProductID,
		&model.EmbeddingVersion,
		&model.ModelVersion,
		&model.CreatedAt,
		&model.UpdatedAt,
		&model.IsArchived,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.ProductEmbeddingVersionToEntity(&model), nil
}
