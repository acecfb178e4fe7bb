package http

import (
	"net/http"
	"time"

	_ "github.com/DRSN-tech/visual-search/docs" // Импорт сгенерированных файлов
	"github.com/DRSN-tech/visual-search/internal/cfg"
	"github.com/DRSN-tech/visual-search/internal/usecase"
	"github.com/DRSN-tech/visual-search/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

type Deps struct {
	SearchUC     usecase.SearchUC
	IndexUC      usecase.IndexUC
	SearchCfg    *cfg.SearchCfg
	APIKey       string
	BuildTimeout time.Duration
	Metrics      http.Handler // nil — /metrics не регистрируется
}

func (r *Router) Init(deps Deps) {
	r.router.Use(middleware.RealIP, middleware.Recoverer)

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	searchHandler := NewSearchHandler(deps.SearchUC, deps.SearchCfg, r.logger)
	r.router.Get("/health", searchHandler.health)
	if deps.Metrics != nil {
		r.router.Handle("/metrics", deps.Metrics)
	}

	r.router.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(APIKey(deps.APIKey, r.logger))
		registerSearchRoutes(v1, searchHandler)
		registerIndexRoutes(v1, NewIndexHandler(deps.IndexUC, deps.BuildTimeout, r.logger))
	})
}

func registerSearchRoutes(router chi.Router, h *SearchHandler) {
	router.Post("/search", h.search)
}

func registerIndexRoutes(router chi.Router, h *IndexHandler) {
	router.Route("/index", func(ir chi.Router) {
		ir.Post("/rebuild", h.rebuild)
	})
}
