package converter

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ID            string              `db:"id"`
	Title         string              `db:"title"`
	CategoryID    *int64              `db:"category_id"`
	Brand         string              `db:"brand"`
	SalePrice     decimal.NullDecimal `db:"sale_price"`
	OriginalPrice decimal.NullDecimal `db:"original_price"`
	Currency      string              `db:"currency"`
	ImageKey      string              `db:"image_key"`
	ProductURL    string              `db:"product_url"`
	CreatedAt     time.Time           `db:"created_at"`
	UpdatedAt     *time.Time          `db:"updated_at"`
	IsArchived    bool                `db:"is_archived"`
}

// CategoryModel представляет запись таблицы categories в PostgreSQL.
type CategoryModel struct {
	ID         int64      `db:"id"`
	Label      string     `db:"label"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	IsArchived bool       `db:"is_archived"`
}

// ProductEmbeddingVersionModel представляет запись таблицы product_embedding_version.
type ProductEmbeddingVersionModel struct {
	ID               int64      `db:"id"`
	ProductID        string     `db:"product_id"`
	EmbeddingVersion int32      `db:"embedding_version"`
	ModelVersion     string     `db:"model_version"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"`
	IsArchived       bool       `db:"is_archived"`
}

// IndexBuildModel представляет запись таблицы index_builds.
type IndexBuildModel struct {
	ID              string    `db:"id"`
	Kind            string    `db:"kind"`
	Size            int32     `db:"size"`
	Dimension       int32     `db:"dimension"`
	ModelVersion    string    `db:"model_version"`
	ArtifactsPrefix string    `db:"artifacts_prefix"`
	CreatedAt       time.Time `db:"created_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	AggregateID string     `db:"aggregate_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
