package http

import (
	"net/http"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
)

const (
	maxSearchRequestSize = 20 << 20
	maxImageSize         = 15 << 20
	maxMemory            = 8 << 20
)

type SearchResultDTO struct {
	ProductID     string  `json:"product_id"`
	Score         float32 `json:"score"`
	Title         string  `json:"title,omitempty"`
	Category      string  `json:"category,omitempty"`
	Brand         string  `json:"brand,omitempty"`
	Price         string  `json:"price,omitempty"`
	OriginalPrice string  `json:"original_price,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	ImageURL      string  `json:"image_url,omitempty"`
	ProductURL    string  `json:"product_url,omitempty"`
}

type SearchResponse struct {
	Results         []SearchResultDTO `json:"results"`
	RegionsDetected int               `json:"regions_detected"`
	RegionsFailed   int               `json:"regions_failed"`
	IndexVersion    string            `json:"index_version"`
	Cached          bool              `json:"cached"`
}

type HealthResponse struct {
	Status       string `json:"status"`
	IndexLoaded  bool   `json:"index_loaded"`
	IndexSize    int    `json:"index_size"`
	IndexVersion string `json:"index_version,omitempty"`
	IndexKind    string `json:"index_kind,omitempty"`
	ModelVersion string `json:"model_version,omitempty"`
	DetectorMode string `json:"detector_mode"`
}

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	cfg           *cfg.SearchCfg
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, cfg *cfg.SearchCfg, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, cfg: cfg, logger: logger}
}

// search
//
//	@Summary		Поиск товаров по фотографии
//	@Description	Находит на фото объекты и возвращает похожие товары каталога
//	@Tags			search
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		ApiKeyAuth
//	@Param			image		formData	file			true	"Фотография (jpeg, png, webp)"
//	@Param			k			query		int				false	"Количество результатов"
//	@Param			max_regions	query		int				false	"Максимум регионов"
//	@Success		200			{object}	SearchResponse
//	@Failure		400			{object}	ErrorResponse	"Ошибка валидации"
//	@Failure		401			{object}	ErrorResponse	"Неверный API-ключ"
//	@Failure		503			{object}	ErrorResponse	"Индекс или модель недоступны"
//	@Router			/api/v1/search [post]
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSearchRequestSize)

	k, err := queryInt(r, "k", h.cfg.DefaultTopK)
	if err != nil {
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	maxRegions, err := queryInt(r, "max_regions", h.cfg.MaxRegions)
	if err != nil {
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	if err := ensureMultipartForm(r, maxMemory); err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, err.Error(), r.Header.Get("Content-Type"))
		WriteError(w, err)
		return
	}

	files := r.MultipartForm.File["image"]
	if len(files) == 0 {
		WriteError(w, e.ErrNoImage)
		return
	}

	data, mimeType, err := readImage(files[0], maxImageSize)
	if err != nil {
		h.logger.Warnf("%d %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.searchUsecase.Search(r.Context(), &usecase.SearchReq{
		Image:       data,
		ContentType: mimeType,
		K:           k,
		MaxRegions:  maxRegions,
	})
	if err != nil {
		code, _ := ToHTTPResponse(err)
		if code >= http.StatusInternalServerError {
			h.logger.Errorf(err, "search failed")
		} else {
			h.logger.Warnf("%d %s", code, err.Error())
		}
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toSearchResponse(res))
}

// health
//
//	@Summary	Состояние сервиса
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse	"Индекс не загружен"
//	@Router		/health [get]
func (h *SearchHandler) health(w http.ResponseWriter, _ *http.Request) {
	res := h.searchUsecase.Health()

	status, code := "ok", http.StatusOK
	if !res.IndexLoaded {
		status, code = "index_not_loaded", http.StatusServiceUnavailable
	}

	WriteSuccess(w, code, HealthResponse{
		Status:       status,
		IndexLoaded:  res.IndexLoaded,
		IndexSize:    res.IndexSize,
		IndexVersion: res.IndexVersion,
		IndexKind:    res.IndexKind,
		ModelVersion: res.ModelVersion,
		DetectorMode: res.DetectorMode,
	})
}

func toSearchResponse(res *usecase.SearchRes) *SearchResponse {
	out := &SearchResponse{
		Results:         make([]SearchResultDTO, 0, len(res.Hits)),
		RegionsDetected: res.RegionsDetected,
		RegionsFailed:   res.RegionsFailed,
		IndexVersion:    res.IndexVersion,
		Cached:          res.Cached,
	}

	for _, hit := range res.Hits {
		dto := SearchResultDTO{
			ProductID: hit.ProductID,
			Score:     hit.Score,
			ImageURL:  hit.ImageURL,
		}
		if p := hit.Product; p != nil {
			dto.Title = p.Title
			dto.Category = p.Category
			dto.Brand = p.Brand
			dto.Currency = p.Currency
			dto.ProductURL = p.ProductURL
			if !p.SalePrice.IsZero() {
				dto.Price = p.SalePrice.StringFixed(2)
			}
			if !p.OriginalPrice.IsZero() {
				dto.OriginalPrice = p.OriginalPrice.StringFixed(2)
			}
		}
		out.Results = append(out.Results, dto)
	}

	return out
}
