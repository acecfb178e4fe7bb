// Package embedder превращает регион изображения в вектор фиксированной размерности.
package embedder

import (
	"context"
	"image"

	"github.com/DRSN-tech/visual-search/internal/domain"
)

// Embedder — модель векторизации. Векторы, полученные в запросе и при
// построении индекса, обязаны иметь одну размерность и одну ModelVersion.
type Embedder interface {
	// Embed векторизует регион img. Регион обрезается по границам изображения.
	Embed(ctx context.Context, img image.Image, region domain.Region) ([]float32, error)
	Dimension() int
	ModelVersion() string
}
