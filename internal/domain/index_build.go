package domain

import "time"

// IndexBuild — запись о собранном индексе.
type IndexBuild struct {
	ID           string
	Kind         string
	Size         int
	Dimension    int
	ModelVersion string
	// ArtifactsPrefix — префикс артефактов в бакете; пуст, если сборка не публиковалась.
	ArtifactsPrefix string
	CreatedAt       time.Time
}

// ProductEmbeddingVersion — сколько раз эмбеддинг товара пересчитывался.
type ProductEmbeddingVersion struct {
	ID               int64
	ProductID        string
	EmbeddingVersion int32
	ModelVersion     string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
}
