package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// IndexBuildRepo — журнал собранных индексов.
type IndexBuildRepo struct {
	pool *pgxpool.Pool
}

func NewIndexBuildRepo(pool *pgxpool.Pool) *IndexBuildRepo {
	return &IndexBuildRepo{pool: pool}
}

func (r *IndexBuildRepo) Create(ctx context.Context, build *domain.IndexBuild) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := converter.IndexBuildToModel(build)
	query := `
		INSERT INTO index_builds (id, kind, size, dimension, model_version, artifacts_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`

	if _, err := tx.Exec(ctx, query,
		model.ID, model.Kind, model.Size, model.Dimension,
		model.ModelVersion, model.ArtifactsPrefix, model.CreatedAt,
	); err != nil {
		if postgresDuplicate(err) {
			return fmt.Errorf("%s: build %s already recorded", whereami.WhereAmI(), build.ID)
		}
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Latest возвращает последнюю сборку; e.ErrIndexNotLoaded, если сборок не было.
func (r *IndexBuildRepo) Latest(ctx context.Context) (*domain.IndexBuild, error) {
	query := `
		SELECT id, kind, size, dimension, model_version, artifacts_prefix, created_at
		FROM index_builds
		ORDER BY created_at DESC
		LIMIT 1
	`

	var model converter.IndexBuildModel
	err := r.pool.QueryRow(ctx, query).Scan(
		&model.ID, &model.Kind, &model.Size, &model.Dimension,
		&model.ModelVersion, &model.ArtifactsPrefix, &model.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrIndexNotLoaded)
	}
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.IndexBuildToEntity(&model), nil
}
