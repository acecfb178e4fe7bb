// Package detector находит на изображении регионы с отдельными товарами.
//
// Детекция — оптимизация, а не требование корректности: при выключенном или
// недоступном детекторе конвейер получает один регион на всё изображение.
package detector

import (
	"context"
	"errors"
	"image"
	"iter"
	"slices"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

// Detector возвращает ленивую конечную последовательность регионов
// по убыванию уверенности. Пустая последовательность — «ничего не найдено».
type Detector interface {
	Detect(ctx context.Context, img image.Image) iter.Seq[domain.Region]
	Mode() string
}

// RegionProposer — модель детекции (например, YOLO за ML-сервисом).
// Возвращает сырые кандидаты без фильтрации.
type RegionProposer interface {
	ProposeRegions(ctx context.Context, img image.Image) ([]domain.Region, error)
}

// Config — параметры детектора.
type Config struct {
	Enabled             bool
	ConfidenceThreshold float32
	MaxRegions          int
	FallbackOnEmpty     bool
}

const (
	ModeWholeImage = "whole-image"
	ModeProposing  = "region-proposing"
)

// New выбирает вариант детектора по конфигурации.
// Без модели или при выключенной детекции используется WholeImage.
func New(cfg Config, proposer RegionProposer, log logger.Logger) Detector {
	if !cfg.Enabled || proposer == nil {
		return WholeImage{}
	}

	return NewProposing(proposer, cfg, log)
}

// WholeImage — детектор-заглушка: ровно один регион на всё изображение.
type WholeImage struct{}

func (WholeImage) Detect(_ context.Context, img image.Image) iter.Seq[domain.Region] {
	return func(yield func(domain.Region) bool) {
		yield(domain.WholeImageRegion(img.Bounds()))
	}
}

func (WholeImage) Mode() string { return ModeWholeImage }

// Proposing фильтрует кандидатов модели по порогу и ограничивает их число.
type Proposing struct {
	proposer RegionProposer
	cfg      Config
	logger   logger.Logger
}

func NewProposing(proposer RegionProposer, cfg Config, log logger.Logger) *Proposing {
	return &Proposing{
		proposer: proposer,
		cfg:      cfg,
		logger:   log,
	}
}

func (p *Proposing) Mode() string { return ModeProposing }

// Detect запускает модель при первой итерации. Ошибка модели (недоступна,
// таймаут, отмена) переводит детектор в режим всего изображения.
func (p *Proposing) Detect(ctx context.Context, img image.Image) iter.Seq[domain.Region] {
	return func(yield func(domain.Region) bool) {
		candidates, err := p.proposer.ProposeRegions(ctx, img)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warnf("region proposer failed, falling back to whole image: %v", err)
			yield(domain.WholeImageRegion(img.Bounds()))
			return
		}

		regions := p.filter(img.Bounds(), candidates)
		if len(regions) == 0 && p.cfg.FallbackOnEmpty {
			yield(domain.WholeImageRegion(img.Bounds()))
			return
		}

		for _, r := range regions {
			if !yield(r) {
				return
			}
		}
	}
}

// filter отбрасывает кандидатов ниже порога и вне изображения,
// сортирует по уверенности (стабильно) и обрезает до MaxRegions.
func (p *Proposing) filter(bounds image.Rectangle, candidates []domain.Region) []domain.Region {
	regions := make([]domain.Region, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence < p.cfg.ConfidenceThreshold {
			continue
		}
		if c.Rect().Canon().Intersect(bounds).Empty() {
			continue
		}
		regions = append(regions, c)
	}

	slices.SortStableFunc(regions, func(a, b domain.Region) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		default:
			return 0
		}
	})

	if p.cfg.MaxRegions > 0 && len(regions) > p.cfg.MaxRegions {
		regions = regions[:p.cfg.MaxRegions]
	}

	return regions
}

// Take собирает не более n регионов из последовательности.
func Take(seq iter.Seq[domain.Region], n int) []domain.Region {
	if n <= 0 {
		return nil
	}

	out := make([]domain.Region, 0, n)
	for r := range seq {
		out = append(out, r)
		if len(out) >= n {
			break
		}
	}

	return out
}
