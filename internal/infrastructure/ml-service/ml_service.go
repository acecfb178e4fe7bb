package ml_service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/domain"
	"github.com/DRSN-tech/visual-search/internal/imaging"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/jitter"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName     = "/ml.v1.MachineLearningService/"
	methodVectorize = serviceName + "VectorizeImage"
	methodDetect    = serviceName + "DetectObjects"
	methodModelInfo = serviceName + "GetModelInfo"

	detectMaxSide = 1280
)

// MLService клиент для взаимодействия с внешним ML-сервисом (векторизация и детекция).
// Сообщения передаются как google.protobuf.Struct.
type MLService struct {
	conn       grpc.ClientConnInterface
	sem        chan struct{}
	maxRetries int
	baseJitter time.Duration
	maxJitter  time.Duration
	logger     logger.Logger
}

func NewMLService(conn grpc.ClientConnInterface, cfg *cfg.MLServiceCfg, logger logger.Logger) *MLService {
	return &MLService{
		conn:       conn,
		sem:        make(chan struct{}, max(cfg.MaxConcurrent, 1)),
		maxRetries: max(cfg.MaxRetries, 1),
		baseJitter: 100 * time.Millisecond,
		maxJitter:  2 * time.Second,
		logger:     logger,
	}
}

// ModelInfo — версия и размерность модели, которую обслуживает ML-сервис.
type ModelInfo struct {
	ModelVersion string
	Dimension    int
}

// GetModelInfo используется на старте: недоступная модель фатальна.
func (m *MLService) GetModelInfo(ctx context.Context) (*ModelInfo, error) {
	const op = "MLService.GetModelInfo"

	res, err := m.invoke(ctx, methodModelInfo, &structpb.Struct{})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	fields := res.GetFields()
	info := &ModelInfo{
		ModelVersion: fields["model_version"].GetStringValue(),
		Dimension:    int(fields["dimension"].GetNumberValue()),
	}
	if info.ModelVersion == "" || info.Dimension <= 0 {
		return nil, e.Wrap(op, fmt.Errorf("%w: incomplete model info", e.ErrModelUnavailable))
	}

	return info, nil
}

// Vectorize отправляет закодированное изображение на векторизацию.
func (m *MLService) Vectorize(ctx context.Context, data []byte, contentType string) ([]float32, string, error) {
	const op = "MLService.Vectorize"

	req, err := imageRequest(data, contentType)
	if err != nil {
		return nil, "", e.Wrap(op, err)
	}

	res, err := m.invoke(ctx, methodVectorize, req)
	if err != nil {
		return nil, "", e.Wrap(op, err)
	}

	fields := res.GetFields()
	values := fields["vector"].GetListValue().GetValues()
	if len(values) == 0 {
		return nil, "", e.Wrap(op, fmt.Errorf("%w: empty vector", e.ErrModelUnavailable))
	}

	vec := make([]float32, len(values))
	for i, v := range values {
		vec[i] = float32(v.GetNumberValue())
	}

	return vec, fields["model_version"].GetStringValue(), nil
}

// ProposeRegions запускает детектор и возвращает боксы в координатах img.
func (m *MLService) ProposeRegions(ctx context.Context, img image.Image) ([]domain.Region, error) {
	const op = "MLService.ProposeRegions"

	b := img.Bounds()
	scaled := imaging.Resize(img, detectMaxSide)
	scale := float64(b.Dx()) / float64(scaled.Bounds().Dx())

	data, err := imaging.EncodeJPEG(scaled)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	req, err := imageRequest(data, "image/jpeg")
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	res, err := m.invoke(ctx, methodDetect, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	boxes := res.GetFields()["boxes"].GetListValue().GetValues()
	regions := make([]domain.Region, 0, len(boxes))
	for _, box := range boxes {
		f := box.GetStructValue().GetFields()
		x1 := int(f["x1"].GetNumberValue()*scale) + b.Min.X
		y1 := int(f["y1"].GetNumberValue()*scale) + b.Min.Y
		x2 := int(f["x2"].GetNumberValue()*scale) + b.Min.X
		y2 := int(f["y2"].GetNumberValue()*scale) + b.Min.Y
		if x2 <= x1 || y2 <= y1 {
			continue
		}

		r := domain.NewRegion(x1, y1, x2-x1, y2-y1, float32(f["confidence"].GetNumberValue()))
		r.Label = f["label"].GetStringValue()
		regions = append(regions, r)
	}

	return regions, nil
}

func imageRequest(data []byte, contentType string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"image_data": base64.StdEncoding.EncodeToString(data),
		"image_type": contentType,
	})
}

// invoke выполняет вызов с ограничением конкурентности и повторами
// с экспоненциальной задержкой для временных ошибок.
func (m *MLService) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetries; attempt++ {
		res := &structpb.Struct{}
		err := m.conn.Invoke(ctx, method, req, res)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !isRetryable(err) || attempt == m.maxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(m.baseJitter, m.maxJitter, attempt, jitter.DefaultJitter)
		m.logger.Warnf("%s failed, retrying in %v (attempt %d): %v", method, sleepTime, attempt+1, err)
		if err := jitter.Sleep(ctx, sleepTime); err != nil {
			return nil, err
		}
	}

	return nil, classify(lastErr)
}

func isRetryable(err error) bool {
	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// classify переводит gRPC-статус в ошибки домена.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %v", e.ErrImageDecode, err)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	case codes.Canceled:
		return fmt.Errorf("%w: %v", context.Canceled, err)
	default:
		return fmt.Errorf("%w: %v", e.ErrModelUnavailable, err)
	}
}
