package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/e"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "secret"

type fakeSearchUC struct {
	last   *usecase.SearchReq
	res    *usecase.SearchRes
	err    error
	health usecase.HealthRes
}

func (f *fakeSearchUC) Search(_ context.Context, req *usecase.SearchReq) (*usecase.SearchRes, error) {
	f.last = req
	return f.res, f.err
}

func (f *fakeSearchUC) Health() *usecase.HealthRes {
	h := f.health
	return &h
}

type fakeIndexUC struct {
	req    *usecase.BuildIndexReq
	ctxErr error
	err    error
}

func (f *fakeIndexUC) EmbedCatalog(context.Context, bool) (*usecase.EmbedCatalogRes, error) {
	return &usecase.EmbedCatalogRes{}, nil
}

func (f *fakeIndexUC) BuildIndex(ctx context.Context, req *usecase.BuildIndexReq) (*usecase.BuildIndexRes, error) {
	f.req = req
	f.ctxErr = ctx.Err()
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.BuildIndexRes{
		BuildID:   "b-1",
		Kind:      "flat",
		Size:      3,
		Dimension: 512,
		Catalog:   usecase.EmbedCatalogRes{Products: 3, Embedded: 3},
		Duration:  1500 * time.Millisecond,
	}, nil
}

func (f *fakeIndexUC) LoadLatest(context.Context) error { return nil }

func (f *fakeIndexUC) ApplyPublished(context.Context, *usecase.IndexPublishedEvent) error {
	return nil
}

func newTestRouter(t *testing.T, s *fakeSearchUC, i *fakeIndexUC) http.Handler {
	t.Helper()

	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNopLogger()).Init(Deps{
		SearchUC:     s,
		IndexUC:      i,
		SearchCfg:    &cfg.SearchCfg{DefaultTopK: 10, MaxTopK: 100, MaxRegions: 5},
		APIKey:       testAPIKey,
		BuildTimeout: time.Minute,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("# metrics"))
		}),
	})

	return mux
}

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func searchRequest(t *testing.T, query string, field string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile(field, "photo")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search"+query, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(apiKeyHeader, testAPIKey)
	return req
}

func TestSearchSuccess(t *testing.T) {
	s := &fakeSearchUC{res: &usecase.SearchRes{
		Hits: []usecase.SearchHit{{
			ProductID: "P000001",
			Score:     0.93,
			ImageURL:  "http://minio/P000001/image_1.jpg",
			Product: &usecase.ProductInfo{
				ID:        "P000001",
				Title:     "Кроссовки",
				SalePrice: decimal.RequireFromString("4990"),
				Currency:  "RUB",
			},
		}, {
			ProductID: "P000002",
			Score:     0.5,
		}},
		RegionsDetected: 2,
		IndexVersion:    "b-1",
	}}
	router := newTestRouter(t, s, &fakeIndexUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, searchRequest(t, "", "image", pngBytes(t)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 10, s.last.K)
	assert.Equal(t, 5, s.last.MaxRegions)
	assert.Equal(t, "image/png", s.last.ContentType)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "P000001", resp.Results[0].ProductID)
	assert.Equal(t, "4990.00", resp.Results[0].Price)
	assert.Empty(t, resp.Results[0].OriginalPrice)
	assert.Empty(t, resp.Results[1].Title)
	assert.Equal(t, 2, resp.RegionsDetected)
	assert.Equal(t, "b-1", resp.IndexVersion)
}

func TestSearchQueryParams(t *testing.T) {
	s := &fakeSearchUC{res: &usecase.SearchRes{}}
	router := newTestRouter(t, s, &fakeIndexUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, searchRequest(t, "?k=3&max_regions=1", "image", pngBytes(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, s.last.K)
	assert.Equal(t, 1, s.last.MaxRegions)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Results)
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name   string
		req    func(t *testing.T) *http.Request
		ucErr  error
		status int
	}{
		{
			name: "no api key",
			req: func(t *testing.T) *http.Request {
				r := searchRequest(t, "", "image", pngBytes(t))
				r.Header.Del(apiKeyHeader)
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "wrong api key",
			req: func(t *testing.T) *http.Request {
				r := searchRequest(t, "", "image", pngBytes(t))
				r.Header.Set(apiKeyHeader, "nope")
				return r
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "zero k",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "?k=0", "image", pngBytes(t)) },
			status: http.StatusBadRequest,
		},
		{
			name:   "non numeric max_regions",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "?max_regions=many", "image", pngBytes(t)) },
			status: http.StatusBadRequest,
		},
		{
			name:   "missing image field",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "", "photo", pngBytes(t)) },
			status: http.StatusBadRequest,
		},
		{
			name:   "not an image",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "", "image", []byte("plain text body")) },
			status: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(pngBytes(t)))
				r.Header.Set("Content-Type", "image/png")
				r.Header.Set(apiKeyHeader, testAPIKey)
				return r
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "index not loaded",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "", "image", pngBytes(t)) },
			ucErr:  e.Wrap("Search", e.ErrIndexNotLoaded),
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "model unavailable",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "", "image", pngBytes(t)) },
			ucErr:  e.Wrap("Search", e.ErrModelUnavailable),
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "undecodable image",
			req:    func(t *testing.T) *http.Request { return searchRequest(t, "", "image", pngBytes(t)) },
			ucErr:  e.ErrImageDecode,
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSearchUC{err: tt.ucErr, res: &usecase.SearchRes{}}
			router := newTestRouter(t, s, &fakeIndexUC{})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req(t))

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	s := &fakeSearchUC{health: usecase.HealthRes{DetectorMode: "whole_image"}}
	router := newTestRouter(t, s, &fakeIndexUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.health = usecase.HealthRes{IndexLoaded: true, IndexSize: 3, IndexVersion: "b-1", DetectorMode: "whole_image"}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.IndexSize)
}

func TestMetricsRoute(t *testing.T) {
	router := newTestRouter(t, &fakeSearchUC{}, &fakeIndexUC{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())
}

func rebuildRequest(query string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild"+query, nil)
	r.Header.Set(apiKeyHeader, testAPIKey)
	return r
}

func TestRebuild(t *testing.T) {
	i := &fakeIndexUC{}
	router := newTestRouter(t, &fakeSearchUC{}, i)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, rebuildRequest("?reembed=true"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, i.req.Reembed)
	assert.NoError(t, i.ctxErr)

	var resp RebuildResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "b-1", resp.BuildID)
	assert.Equal(t, 3, resp.Embedded)
	assert.Equal(t, int64(1500), resp.DurationMs)
}

func TestRebuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
	}{
		{name: "bad reembed", query: "?reembed=maybe", status: http.StatusBadRequest},
		{name: "in progress", err: e.ErrBuildInProgress, status: http.StatusConflict},
		{name: "empty catalog", err: e.Wrap("BuildIndex", e.ErrEmptyCatalog), status: http.StatusUnprocessableEntity},
		{name: "model unavailable", err: e.ErrModelUnavailable, status: http.StatusServiceUnavailable},
		{name: "internal", err: e.ErrIndexCorrupt, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeSearchUC{}, &fakeIndexUC{err: tt.err})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, rebuildRequest(tt.query))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRebuildRequiresAPIKey(t *testing.T) {
	i := &fakeIndexUC{}
	router := newTestRouter(t, &fakeSearchUC{}, i)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, i.req)
}
