package pgdb

import (
	"context"

	"github.com/DRSN-tech/visual-search/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/shopspring/decimal"
)

// ProductRepo реализует репозиторий метаданных товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
}

func NewProductRepo(pool *pgxpool.Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

// Upsert идемпотентно создаёт или обновляет товар по идентификатору каталога.
// Запись обновляется только при изменении хотя бы одного поля.
func (p *ProductRepo) Upsert(ctx context.Context, product *usecase.ProductInfo, categoryID *int64) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	model := converter.ProductToModel(product, categoryID)
	query := `
		INSERT INTO products (
			id, title, category_id, brand, sale_price, original_price,
			currency, image_key, product_url
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			category_id = EXCLUDED.category_id,
			brand = EXCLUDED.brand,
			sale_price = EXCLUDED.sale_price,
			original_price = EXCLUDED.original_price,
			currency = EXCLUDED.currency,
			image_key = EXCLUDED.image_key,
			product_url = EXCLUDED.product_url,
			is_archived = false,
			updated_at = NOW()
		WHERE
			(products.title, products.category_id, products.brand, products.sale_price,
			 products.original_price, products.currency, products.image_key, products.product_url,
			 products.is_archived)
			IS DISTINCT FROM
			(EXCLUDED.title, EXCLUDED.category_id, EXCLUDED.brand, EXCLUDED.sale_price,
			 EXCLUDED.original_price, EXCLUDED.currency, EXCLUDED.image_key, EXCLUDED.product_url,
			 false);
	`

	_, err = tx.Exec(ctx, query,
		model.ID, model.Title, model.CategoryID, model.Brand, model.SalePrice, model.OriginalPrice,
		model.Currency, model.ImageKey, model.ProductURL,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// GetProductsInfo возвращает информацию о товарах по их идентификаторам, включая название категории.
// Отсутствующие и архивные товары пропускаются.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []string) ([]usecase.ProductInfo, error) {
	query := `
		SELECT pr.id, pr.title, COALESCE(cat.label, ''), pr.brand,
		       pr.sale_price, pr.original_price, pr.currency, pr.image_key, pr.product_url
		FROM products pr
		LEFT JOIN categories cat ON pr.category_id = cat.id
		WHERE pr.id = ANY($1) AND NOT pr.is_archived
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0, len(ids))
	for rows.Next() {
		var (
			product       usecase.ProductInfo
			sale, regular decimal.NullDecimal
		)
		if err := rows.Scan(
			&product.ID, &product.Title, &product.Category, &product.Brand,
			&sale, &regular, &product.Currency, &product.ImageKey, &product.ProductURL,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		product.SalePrice = sale.Decimal
		product.OriginalPrice = regular.Decimal

		result = append(result, product)
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}
