// Package recommender содержит рекомендательное ядро: два движка
// (кластеризация и эмбеддинги) за общим контрактом Recommender.
package recommender

import (
	"context"

	"github.com/genai-ecommerce/go-backend/internal/domain"
)

// Recommender — общий контракт обоих движков рекомендаций.
//
// Fit принимает полный снапшот каталога и перестраивает внутреннее
// состояние. Повторный Fit на неизменном каталоге даёт те же рекомендации
// (детерминизм кластеризации обеспечивается фиксированным seed).
//
// Recommend возвращает до k идентификаторов других продуктов, лучшие первыми.
// Неизвестный продукт — e.ErrProductNotFound; нехватка кандидатов — короткий
// (возможно пустой) срез без ошибки.
type Recommender interface {
	Fit(ctx context.Context, products []domain.Product) error
	Recommend(productID int64, k int) ([]int64, error)
}

// EmbedRequest — запрос на эмбеддинг текста одного продукта.
type EmbedRequest struct {
	ProductID int64
	Text      string
}

// EmbedResult — результат эмбеддинга одного продукта.
// Err заполняется при сбое генерации; батч при этом не прерывается.
type EmbedResult struct {
	ProductID int64
	Vector    []float32
	Err       error
}

// Embedder — внешний коллаборатор, превращающий текст в плотный вектор.
// Реализация сама ограничивает конкурентность и повторяет неудачные запросы.
type Embedder interface {
	EmbedBatch(ctx context.Context, reqs []EmbedRequest) []EmbedResult
}

// EmbeddingCache — необязательное персистентное хранилище эмбеддингов
// с маркером свежести, переживающее рестарт процесса.
type EmbeddingCache interface {
	Load(ctx context.Context) ([]domain.Embedding, error)
	Store(ctx context.Context, embeddings []domain.Embedding) error
}
