package embedder

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/imaging"
	"github.com/DRSN-tech/visual-search/pkg/e"
)

const remoteMaxSide = 518

// VectorizeClient — клиент ML-сервиса, возвращающий вектор для закодированного изображения.
type VectorizeClient interface {
	Vectorize(ctx context.Context, data []byte, contentType string) (vector []float32, modelVersion string, err error)
}

// Remote векторизует регионы через внешний ML-сервис (DINOv2, CLIP и т.п.).
type Remote struct {
	client       VectorizeClient
	dimension    int
	modelVersion string
}

func NewRemote(client VectorizeClient, dimension int, modelVersion string) *Remote {
	return &Remote{
		client:       client,
		dimension:    dimension,
		modelVersion: modelVersion,
	}
}

func (r *Remote) Dimension() int { return r.dimension }

func (r *Remote) ModelVersion() string { return r.modelVersion }

func (r *Remote) Embed(ctx context.Context, img image.Image, region domain.Region) ([]float32, error) {
	const op = "Remote.Embed"

	crop, err := imaging.Crop(img, region)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	data, err := imaging.EncodeJPEG(imaging.Resize(crop, remoteMaxSide))
	if err != nil {
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrImageDecode, err))
	}

	vec, version, err := r.client.Vectorize(ctx, data, "image/jpeg")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, e.ErrModelUnavailable) || errors.Is(err, e.ErrImageDecode) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, fmt.Errorf("%w: %v", e.ErrModelUnavailable, err))
	}

	if version != "" && version != r.modelVersion {
		return nil, e.Wrap(op, fmt.Errorf("%w: got %q, want %q", e.ErrModelVersionMismatch, version, r.modelVersion))
	}
	if len(vec) != r.dimension {
		return nil, e.Wrap(op, fmt.Errorf("%w: got %d, want %d", e.ErrDimensionMismatch, len(vec), r.dimension))
	}

	out, ok := domain.Normalize(vec)
	if !ok {
		return nil, e.Wrap(op, e.ErrZeroVector)
	}

	return out, nil
}
