package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/recommender"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
)

// RecommendationUseCase — фасад рекомендательного ядра, единственная точка
// входа веб-слоя. Запросы обслуживаются на текущем состоянии движков;
// переобучение запускается извне (по завершении инжеста), никогда —
// на пути запроса.
type RecommendationUseCase struct {
	clusterEngine   recommender.Recommender
	embeddingEngine recommender.Recommender
	productRepo     ProductRepository
	logger          logger.Logger

	// fitMu сериализует переобучение: одновременно идёт не более одного Refit.
	fitMu sync.Mutex
}

func NewRecommendationUC(
	clusterEngine recommender.Recommender,
	embeddingEngine recommender.Recommender,
	productRepo ProductRepository,
	logger logger.Logger,
) *RecommendationUseCase {
	return &RecommendationUseCase{
		clusterEngine:   clusterEngine,
		embeddingEngine: embeddingEngine,
		productRepo:     productRepo,
		logger:          logger,
	}
}

// GetRecommendations опрашивает оба движка. Если продукт неизвестен одному
// движку (например, эмбеддинг ещё не посчитан после инжеста), его срез
// остаётся пустым — частичный результат валиден. Ошибка возвращается
// только когда продукт неизвестен обоим движкам.
func (r *RecommendationUseCase) GetRecommendations(ctx context.Context, req *GetRecommendationsReq) (*GetRecommendationsRes, error) {
	const op = "RecommendationUseCase.GetRecommendations"

	if req.TopK <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidTopK)
	}

	notFound := 0

	cluster, err := r.clusterEngine.Recommend(req.ProductID, req.TopK)
	if err != nil {
		if !errors.Is(err, e.ErrProductNotFound) {
			return nil, e.Wrap(op, err)
		}
		notFound++
		cluster = []int64{}
	}

	embedding, err := r.embeddingEngine.Recommend(req.ProductID, req.TopK)
	if err != nil {
		if !errors.Is(err, e.ErrProductNotFound) {
			return nil, e.Wrap(op, err)
		}
		notFound++
		embedding = []int64{}
	}

	if notFound == 2 {
		return nil, e.Wrap(op, e.ErrProductNotFound)
	}

	return NewGetRecommendationsRes(cluster, embedding), nil
}

// Refit загружает полный снапшот каталога и переобучает оба движка.
// Каждый движок подменяет своё состояние атомарно, поэтому конкурентные
// GetRecommendations видят либо старое, либо новое состояние целиком.
func (r *RecommendationUseCase) Refit(ctx context.Context) error {
	const op = "RecommendationUseCase.Refit"

	r.fitMu.Lock()
	defer r.fitMu.Unlock()

	products, err := r.productRepo.GetAll(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	if len(products) == 0 {
		// Пустой каталог: движки сбрасывают состояние, Recommend отвечает not found.
		r.logger.Warnf("%s: %v", op, e.ErrEmptyCatalog)
	}

	started := time.Now()
	if err := r.clusterEngine.Fit(ctx, products); err != nil {
		return e.Wrap(op, err)
	}
	r.logger.Infof("clustering engine fitted: products=%d, took=%s", len(products), time.Since(started))

	started = time.Now()
	if err := r.embeddingEngine.Fit(ctx, products); err != nil {
		return e.Wrap(op, err)
	}
	r.logger.Infof("embedding engine fitted: products=%d, took=%s", len(products), time.Since(started))

	return nil
}
