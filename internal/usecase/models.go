package usecase

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SEARCH USECASE

// SearchReq — запрос поиска по фотографии.
type SearchReq struct {
	Image       []byte
	ContentType string
	K           int
	MaxRegions  int
}

// SearchHit — найденный товар с данными для витрины.
type SearchHit struct {
	ProductID string
	Score     float32
	Product   *ProductInfo // nil, если товара нет в каталоге метаданных
	ImageURL  string
}

// SearchRes — ответ поиска.
type SearchRes struct {
	Hits            []SearchHit
	RegionsDetected int
	RegionsFailed   int
	IndexVersion    string
	Cached          bool
}

// CachedSearch — то, что кэшируется: ранжирование без ссылок и метаданных,
// потому что presigned-ссылки живут меньше кэша.
type CachedSearch struct {
	Hits            []CachedHit `json:"hits"`
	RegionsDetected int         `json:"regions_detected"`
	RegionsFailed   int         `json:"regions_failed"`
	IndexVersion    string      `json:"index_version"`
}

type CachedHit struct {
	ProductID string  `json:"product_id"`
	Score     float32 `json:"score"`
}

// CATALOG

// ProductInfo — DTO с информацией о продукте для внешнего использования.
type ProductInfo struct {
	ID            string
	Title         string
	Category      string
	Brand         string
	SalePrice     decimal.Decimal
	OriginalPrice decimal.Decimal
	Currency      string
	ImageKey      string // ключ основного изображения в бакете
	ProductURL    string
}

// INDEX USECASE

// EmbedCatalogRes — итог векторизации каталога.
type EmbedCatalogRes struct {
	Products int
	Embedded int
	Failed   int
	Pruned   int
}

// BuildIndexReq — параметры сборки. Reembed пересчитывает все эмбеддинги,
// иначе пересчитываются только товары без эмбеддинга текущей модели.
type BuildIndexReq struct {
	Reembed bool
}

// BuildIndexRes — итог сборки индекса.
type BuildIndexRes struct {
	BuildID      string
	Kind         string
	Size         int
	Dimension    int
	ModelVersion string
	Catalog      EmbedCatalogRes
	Published    bool
	Duration     time.Duration
}

// IndexPublishedEvent — событие о новой сборке, которое подхватывают реплики.
type IndexPublishedEvent struct {
	BuildID         string
	Kind            string
	Size            int
	Dimension       int
	ModelVersion    string
	ArtifactsPrefix string
	Files           []string
	CreatedAt       time.Time
}

// HealthRes — состояние сервиса поиска.
type HealthRes struct {
	IndexLoaded  bool
	IndexSize    int
	IndexVersion string
	IndexKind    string
	ModelVersion string
	DetectorMode string
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const IndexPublished OutboxEventType = "index.published"

// OutboxEvent — запись в таблице исходящих событий.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	AggregateID string // ключ сообщения Kafka; для сборок — build_id
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewOutboxEvent(eventType OutboxEventType, aggregateID string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		Payload:     payload,
		Status:      Pending,
		CreatedAt:   time.Now().UTC(),
	}
}

type WriteRawMessageReq struct {
	Key     string
	Payload []byte
}

func NewWriteRawMessageReq(key string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{Key: key, Payload: payload}
}
