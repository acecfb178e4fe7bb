package embedder

import (
	"context"
	"fmt"
	"image"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/imaging"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const (
	defaultHistogramBins = 8
	histogramMaxSide     = 128
)

// Histogram — локальный детерминированный эмбеддер: цветовая гистограмма
// RGB с bins³ корзинами. Не требует ML-сервиса, используется в офлайн-режиме и тестах.
type Histogram struct {
	bins int
}

func NewHistogram(bins int) *Histogram {
	if bins <= 0 {
		bins = defaultHistogramBins
	}
	return &Histogram{bins: bins}
}

func (h *Histogram) Dimension() int { return h.bins * h.bins * h.bins }

func (h *Histogram) ModelVersion() string { return fmt.Sprintf("color-hist-v1-%d", h.bins) }

func (h *Histogram) Embed(ctx context.Context, img image.Image, region domain.Region) ([]float32, error) {
	const op = "Histogram.Embed"

	if err := ctx.Err(); err != nil {
		return nil, e.Wrap(op, err)
	}

	crop, err := imaging.Crop(img, region)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	crop = imaging.Resize(crop, histogramMaxSide)

	vec := make([]float32, h.Dimension())
	b := crop.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		if y%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, e.Wrap(op, err)
			}
		}
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := crop.At(x, y).RGBA()
			vec[h.bucket(r, g, bl)]++
		}
	}

	out, ok := domain.Normalize(vec)
	if !ok {
		return nil, e.Wrap(op, e.ErrZeroVector)
	}

	return out, nil
}

// bucket переводит 16-битные каналы в индекс корзины.
func (h *Histogram) bucket(r, g, b uint32) int {
	q := func(c uint32) int {
		return min(int(c)*h.bins/0x10000, h.bins-1)
	}
	return (q(r)*h.bins+q(g))*h.bins + q(b)
}
