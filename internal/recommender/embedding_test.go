package recommender

import (
	"context"
	"fmt"
	"testing"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder отдаёт заранее заданные векторы по ID продукта и считает вызовы.
type fakeEmbedder struct {
	vectors map[int64][]float32
	fail    map[int64]bool
	calls   int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, reqs []EmbedRequest) []EmbedResult {
	results := make([]EmbedResult, 0, len(reqs))
	for _, req := range reqs {
		f.calls++
		if f.fail[req.ProductID] {
			results = append(results, EmbedResult{ProductID: req.ProductID, Err: e.ErrEmbeddingGeneration})
			continue
		}
		results = append(results, EmbedResult{ProductID: req.ProductID, Vector: f.vectors[req.ProductID]})
	}
	return results
}

// fakeEmbeddingCache — персистентный кэш в памяти.
type fakeEmbeddingCache struct {
	stored []domain.Embedding
}

func (f *fakeEmbeddingCache) Load(_ context.Context) ([]domain.Embedding, error) {
	return f.stored, nil
}

func (f *fakeEmbeddingCache) Store(_ context.Context, embeddings []domain.Embedding) error {
	f.stored = append(f.stored, embeddings...)
	return nil
}

func textProduct(id int64, description string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        fmt.Sprintf("product %d", id),
		Description: &description,
		Price:       domain.Price{Amount: 100, Currency: "EUR"},
	}
}

func TestEmbeddingRecommender_CosineRanking(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[int64][]float32{
		1: {1, 0},   // запрос
		2: {1, 0},   // sim = 1
		3: {1, 1},   // sim ~ 0.707
		4: {0, 1},   // sim = 0
	}}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		textProduct(1, "red shoes"),
		textProduct(2, "crimson shoes"),
		textProduct(3, "red jacket"),
		textProduct(4, "blue pants"),
	}))

	got, err := r.Recommend(1, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3, 4}, got)

	// Усечение до k сохраняет относительный порядок.
	got, err = r.Recommend(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got)
}

func TestEmbeddingRecommender_TieBreakByID(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[int64][]float32{
		1: {1, 0},
		7: {1, 0},
		3: {1, 0},
	}}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		textProduct(1, "a"),
		textProduct(7, "b"),
		textProduct(3, "c"),
	}))

	got, err := r.Recommend(1, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 7}, got)
}

func TestEmbeddingRecommender_FitIdempotence(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[int64][]float32{
		1: {1, 0},
		2: {0, 1},
	}}
	catalog := []domain.Product{
		textProduct(1, "red shoes"),
		textProduct(2, "blue pants"),
	}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), catalog))
	assert.Equal(t, 2, embedder.calls)

	// Неизменный каталог: повторный Fit не трогает генератор.
	require.NoError(t, r.Fit(context.Background(), catalog))
	assert.Equal(t, 2, embedder.calls)

	// Изменился текст одного продукта: пересчитывается только он.
	catalog[1] = textProduct(2, "green pants")
	require.NoError(t, r.Fit(context.Background(), catalog))
	assert.Equal(t, 3, embedder.calls)
}

func TestEmbeddingRecommender_PartialFailureSkipsProduct(t *testing.T) {
	embedder := &fakeEmbedder{
		vectors: map[int64][]float32{
			1: {1, 0},
			2: {1, 0.1},
			4: {0.9, 0},
		},
		fail: map[int64]bool{3: true},
	}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		textProduct(1, "a"),
		textProduct(2, "b"),
		textProduct(3, "c"), // генерация падает
		textProduct(4, "d"),
	}))

	// Остальные продукты работают, продукт 3 исключён из кандидатов.
	got, err := r.Recommend(1, 5)
	require.NoError(t, err)
	assert.NotContains(t, got, int64(3))
	assert.Len(t, got, 2)

	// Продукт без эмбеддинга неизвестен движку.
	_, err = r.Recommend(3, 5)
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestEmbeddingRecommender_KeepsPriorVectorOnFailure(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[int64][]float32{
		1: {1, 0},
		2: {0, 1},
	}}
	catalog := []domain.Product{
		textProduct(1, "red shoes"),
		textProduct(2, "blue pants"),
	}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), catalog))

	// Текст продукта 2 изменился, но генерация теперь падает:
	// продукт остаётся в индексе со старым вектором.
	embedder.fail = map[int64]bool{2: true}
	catalog[1] = textProduct(2, "green pants")
	require.NoError(t, r.Fit(context.Background(), catalog))

	got, err := r.Recommend(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, got)
}

func TestEmbeddingRecommender_WarmStartFromPersistedCache(t *testing.T) {
	catalog := []domain.Product{
		textProduct(1, "red shoes"),
		textProduct(2, "blue pants"),
	}

	// Первый процесс: эмбеддинги посчитаны и уехали в персистентный кэш.
	cache := &fakeEmbeddingCache{}
	first := &fakeEmbedder{vectors: map[int64][]float32{1: {1, 0}, 2: {0, 1}}}
	r1 := NewEmbeddingRecommender(first, cache, logger.NewSlogLogger())
	require.NoError(t, r1.Fit(context.Background(), catalog))
	require.Len(t, cache.stored, 2)

	// Второй процесс: холодный старт, но кэш тёплый — генератор не вызывается.
	second := &fakeEmbedder{vectors: map[int64][]float32{}}
	r2 := NewEmbeddingRecommender(second, cache, logger.NewSlogLogger())
	require.NoError(t, r2.Fit(context.Background(), catalog))
	assert.Equal(t, 0, second.calls)

	got, err := r2.Recommend(1, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, got)
}

func TestEmbeddingRecommender_UnknownProduct(t *testing.T) {
	r := NewEmbeddingRecommender(&fakeEmbedder{vectors: map[int64][]float32{1: {1}}}, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{textProduct(1, "a")}))

	_, err := r.Recommend(999, 5)
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestEmbeddingRecommender_DimensionMismatchDropped(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[int64][]float32{
		1: {1, 0},
		2: {0, 1},
		3: {1, 0, 0}, // чужая размерность
	}}

	r := NewEmbeddingRecommender(embedder, nil, logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		textProduct(1, "a"),
		textProduct(2, "b"),
		textProduct(3, "c"),
	}))

	got, err := r.Recommend(1, 5)
	require.NoError(t, err)
	assert.NotContains(t, got, int64(3))
}

func TestProductText_NormalizesSource(t *testing.T) {
	brand := "ACME"
	desc := "Red   Shoes\n\twith laces"
	p := domain.Product{
		ID:          1,
		Name:        "Runner",
		Brand:       &brand,
		Description: &desc,
		Categories:  []domain.Category{{ID: 10, Name: "Sneakers"}},
		Attributes:  []domain.Attribute{{Key: "color", Value: "Red"}},
	}

	assert.Equal(t, "runner red shoes with laces acme red sneakers", productText(&p))
}
