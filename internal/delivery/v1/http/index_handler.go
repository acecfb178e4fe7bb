package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

type RebuildResponse struct {
	BuildID      string `json:"build_id"`
	Kind         string `json:"kind"`
	Size         int    `json:"size"`
	Dimension    int    `json:"dimension"`
	ModelVersion string `json:"model_version"`
	Products     int    `json:"products"`
	Embedded     int    `json:"embedded"`
	Failed       int    `json:"failed"`
	Pruned       int    `json:"pruned"`
	Published    bool   `json:"published"`
	DurationMs   int64  `json:"duration_ms"`
}

type IndexHandler struct {
	indexUsecase usecase.IndexUC
	timeout      time.Duration
	logger       logger.Logger
}

func NewIndexHandler(indexUsecase usecase.IndexUC, timeout time.Duration, logger logger.Logger) *IndexHandler {
	return &IndexHandler{indexUsecase: indexUsecase, timeout: timeout, logger: logger}
}

// rebuild
//
//	@Summary		Пересборка индекса
//	@Description	Векторизует каталог и атомарно подменяет индекс. Обрыв соединения сборку не прерывает.
//	@Tags			index
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			reembed	query		bool			false	"Пересчитать все эмбеддинги"
//	@Success		200		{object}	RebuildResponse
//	@Failure		409		{object}	ErrorResponse	"Сборка уже идёт"
//	@Failure		422		{object}	ErrorResponse	"Каталог пуст"
//	@Router			/api/v1/index/rebuild [post]
func (h *IndexHandler) rebuild(w http.ResponseWriter, r *http.Request) {
	reembed := false
	if raw := r.URL.Query().Get("reembed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			WriteError(w, e.Wrapf(e.ErrInvalidArgument, "reembed: %q", raw))
			return
		}
		reembed = v
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	res, err := h.indexUsecase.BuildIndex(ctx, &usecase.BuildIndexReq{Reembed: reembed})
	if err != nil {
		h.logger.Errorf(err, "index rebuild failed")
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, RebuildResponse{
		BuildID:      res.BuildID,
		Kind:         res.Kind,
		Size:         res.Size,
		Dimension:    res.Dimension,
		ModelVersion: res.ModelVersion,
		Products:     res.Catalog.Products,
		Embedded:     res.Catalog.Embedded,
		Failed:       res.Catalog.Failed,
		Pruned:       res.Catalog.Pruned,
		Published:    res.Published,
		DurationMs:   res.Duration.Milliseconds(),
	})
}
