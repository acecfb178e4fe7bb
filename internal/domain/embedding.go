package domain

import (
	"math"
	"time"
)

// Embedding — единственный вектор товара в хранилище эмбеддингов.
type Embedding struct {
	ProductID    string
	Vector       []float32
	ModelVersion string
	CreatedAt    time.Time
}

func NewEmbedding(productID string, vector []float32, modelVersion string) *Embedding {
	return &Embedding{
		ProductID:    productID,
		Vector:       vector,
		ModelVersion: modelVersion,
		CreatedAt:    time.Now().UTC(),
	}
}

// Normalize возвращает L2-нормированную копию вектора.
// Для нулевого вектора или вектора с NaN/Inf возвращает ok == false.
func Normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}

	return out, true
}

// Mean усредняет векторы одинаковой размерности. Пустой вход даёт nil.
func Mean(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}

	acc := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for i, x := range v {
			acc[i] += float64(x)
		}
	}

	out := make([]float32, len(acc))
	for i, x := range acc {
		out[i] = float32(x / float64(len(vectors)))
	}

	return out
}

// Dot — скалярное произведение; для нормированных векторов это косинусная близость.
func Dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
