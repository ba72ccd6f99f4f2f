package http

import (
	"net/http"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
)

type RecommendationHandler struct {
	recUsecase     usecase.RecommendationUC
	catalogUsecase usecase.CatalogUC
	cfg            *cfg.RecsCfg
	logger         logger.Logger
}

func NewRecommendationHandler(recUsecase usecase.RecommendationUC, catalogUsecase usecase.CatalogUC,
	cfg *cfg.RecsCfg, logger logger.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recUsecase:     recUsecase,
		catalogUsecase: catalogUsecase,
		cfg:            cfg,
		logger:         logger,
	}
}

type RecommendationsResponse struct {
	ProductID int64                  `json:"product_id"`
	K         int                    `json:"k"`
	Cluster   []ProductBriefResponse `json:"cluster"`
	Embedding []ProductBriefResponse `json:"embedding"`
}

// getRecommendations
//
//	@Summary		Рекомендации для продукта
//	@Description	Возвращает похожие продукты от обоих движков: кластерного и embedding
//	@Tags			recommendations
//	@Produce		json
//	@Param			id	path		int	true	"ID продукта"
//	@Param			k	query		int	false	"Сколько рекомендаций вернуть от каждого движка"
//	@Success		200	{object}	RecommendationsResponse
//	@Failure		400	{object}	ErrorResponse	"Некорректные параметры"
//	@Failure		404	{object}	ErrorResponse	"Продукт неизвестен обоим движкам"
//	@Router			/products/{id}/recommendations [get]
func (h *RecommendationHandler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}

	k, err := parseQueryInt(r, "k", h.cfg.DefaultTopK)
	if err != nil || k <= 0 {
		WriteError(w, e.ErrInvalidTopK)
		return
	}

	recs, err := h.recUsecase.GetRecommendations(r.Context(), usecase.NewGetRecommendationsReq(id, k))
	if err != nil {
		h.logger.Warnf("recommendations for product %d failed: %s", id, err.Error())
		WriteError(w, err)
		return
	}

	briefs, err := h.enrich(r, recs)
	if err != nil {
		h.logger.Warnf("recommendations enrichment for product %d failed: %s", id, err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, RecommendationsResponse{
		ProductID: id,
		K:         k,
		Cluster:   pickBriefs(recs.Cluster, briefs),
		Embedding: pickBriefs(recs.Embedding, briefs),
	})
}

// enrich подтягивает краткую информацию для всех рекомендованных ID одним запросом.
func (h *RecommendationHandler) enrich(r *http.Request, recs *usecase.GetRecommendationsRes) (map[int64]usecase.ProductInfo, error) {
	seen := make(map[int64]struct{}, len(recs.Cluster)+len(recs.Embedding))
	ids := make([]int64, 0, len(recs.Cluster)+len(recs.Embedding))
	for _, id := range append(append([]int64{}, recs.Cluster...), recs.Embedding...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	res, err := h.catalogUsecase.GetProductsInfo(r.Context(), usecase.NewGetProductsReq(ids))
	if err != nil {
		return nil, err
	}

	briefs := make(map[int64]usecase.ProductInfo, len(res.Products))
	for _, info := range res.Products {
		briefs[info.ID] = info
	}

	return briefs, nil
}

// pickBriefs собирает ответы в порядке, который выдал движок.
// ID без карточки в каталоге пропускается.
func pickBriefs(ids []int64, briefs map[int64]usecase.ProductInfo) []ProductBriefResponse {
	result := make([]ProductBriefResponse, 0, len(ids))
	for _, id := range ids {
		info, ok := briefs[id]
		if !ok {
			continue
		}
		result = append(result, ProductBriefResponse{
			ID:       info.ID,
			Name:     info.Name,
			Brand:    info.Brand,
			Price:    info.Price,
			Currency: info.Currency,
		})
	}

	return result
}
