package http

import (
	_ "github.com/genai-ecommerce/go-backend/docs" // Импорт сгенерированных файлов
	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(catalogUC usecase.CatalogUC, recUC usecase.RecommendationUC, recsCfg *cfg.RecsCfg) {
	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	r.router.Route("/api/v1", func(v1 chi.Router) {
		prHandler := NewProductHandler(catalogUC, r.logger)
		recHandler := NewRecommendationHandler(recUC, catalogUC, recsCfg, r.logger)
		registerCatalogRoutes(v1, prHandler, recHandler)
	})
}

func registerCatalogRoutes(router chi.Router, prHandler *ProductHandler, recHandler *RecommendationHandler) {
	router.Route("/products", func(pr chi.Router) {
		pr.Get("/", prHandler.listProducts)
		pr.Get("/{id}", prHandler.getProduct)
		pr.Get("/{id}/recommendations", recHandler.getRecommendations)
	})

	router.Post("/catalog/ingest", prHandler.ingestCatalog)
}
