package recommender

import (
	"context"
	"testing"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecsCfg(clusters int) *cfg.RecsCfg {
	return &cfg.RecsCfg{
		Clusters:      clusters,
		MaxIterations: 100,
		RandomSeed:    42,
		DefaultTopK:   5,
	}
}

func testProduct(id int64, price int64, brand string, attrCount int) domain.Product {
	p := domain.Product{
		ID:    id,
		Name:  "product",
		Price: domain.Price{Amount: price, Currency: "EUR"},
	}
	if brand != "" {
		p.Brand = &brand
	}
	for i := 0; i < attrCount; i++ {
		p.Attributes = append(p.Attributes, domain.Attribute{Key: "color", Value: "blue"})
	}
	return p
}

func TestClusteringRecommender_DistanceOrdering(t *testing.T) {
	// Один кластер: B ближе к A, чем C, поэтому порядок строго [B, C].
	products := []domain.Product{
		testProduct(1, 100, "", 0), // A
		testProduct(2, 200, "", 0), // B
		testProduct(3, 400, "", 0), // C
	}

	r := NewClusteringRecommender(testRecsCfg(1), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), products))

	got, err := r.Recommend(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got)
}

func TestClusteringRecommender_Determinism(t *testing.T) {
	products := []domain.Product{
		testProduct(1, 100, "acme", 2),
		testProduct(2, 110, "acme", 2),
		testProduct(3, 5000, "other", 7),
		testProduct(4, 5100, "other", 6),
		testProduct(5, 300, "acme", 1),
		testProduct(6, 4900, "other", 7),
	}

	r1 := NewClusteringRecommender(testRecsCfg(2), logger.NewSlogLogger())
	r2 := NewClusteringRecommender(testRecsCfg(2), logger.NewSlogLogger())
	require.NoError(t, r1.Fit(context.Background(), products))
	require.NoError(t, r2.Fit(context.Background(), products))

	for _, p := range products {
		got1, err := r1.Recommend(p.ID, 3)
		require.NoError(t, err)
		got2, err := r2.Recommend(p.ID, 3)
		require.NoError(t, err)
		assert.Equal(t, got1, got2, "product %d", p.ID)
	}

	// Повторный Fit на том же каталоге не меняет рекомендации.
	before, err := r1.Recommend(1, 3)
	require.NoError(t, err)
	require.NoError(t, r1.Fit(context.Background(), products))
	after, err := r1.Recommend(1, 3)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestClusteringRecommender_ResultContract(t *testing.T) {
	products := []domain.Product{
		testProduct(1, 100, "acme", 1),
		testProduct(2, 150, "acme", 2),
		testProduct(3, 200, "acme", 3),
		testProduct(4, 250, "other", 1),
	}
	inCatalog := map[int64]bool{1: true, 2: true, 3: true, 4: true}

	r := NewClusteringRecommender(testRecsCfg(2), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), products))

	for _, p := range products {
		got, err := r.Recommend(p.ID, 2)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(got), 2)
		for _, id := range got {
			assert.NotEqual(t, p.ID, id)
			assert.True(t, inCatalog[id])
		}
	}
}

func TestClusteringRecommender_TieBreakByID(t *testing.T) {
	// Продукты 2 и 3 идентичны: расстояния до продукта 1 равны,
	// порядок определяется возрастанием ID.
	products := []domain.Product{
		testProduct(1, 100, "", 0),
		testProduct(3, 200, "", 0),
		testProduct(2, 200, "", 0),
	}

	r := NewClusteringRecommender(testRecsCfg(1), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), products))

	got, err := r.Recommend(1, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got)
}

func TestClusteringRecommender_UnknownProduct(t *testing.T) {
	r := NewClusteringRecommender(testRecsCfg(2), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		testProduct(1, 100, "", 0),
		testProduct(2, 120, "", 0),
	}))

	_, err := r.Recommend(999, 5)
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestClusteringRecommender_EmptyCatalogResetsState(t *testing.T) {
	r := NewClusteringRecommender(testRecsCfg(2), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), []domain.Product{
		testProduct(1, 100, "", 0),
		testProduct(2, 120, "", 0),
	}))

	require.NoError(t, r.Fit(context.Background(), nil))

	_, err := r.Recommend(1, 5)
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestClusteringRecommender_ZeroVarianceFeatures(t *testing.T) {
	// Полностью одинаковые продукты: все колонки с нулевой дисперсией.
	// Стандартизация не должна делить на ноль, расстояния нулевые,
	// порядок — по возрастанию ID.
	products := []domain.Product{
		testProduct(5, 100, "acme", 2),
		testProduct(3, 100, "acme", 2),
		testProduct(8, 100, "acme", 2),
	}

	r := NewClusteringRecommender(testRecsCfg(1), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), products))

	got, err := r.Recommend(5, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 8}, got)
}

func TestClusteringRecommender_ClampsKToCatalogSize(t *testing.T) {
	// Кластеров в конфиге больше, чем продуктов: K клампится, Fit не падает.
	products := []domain.Product{
		testProduct(1, 100, "", 0),
		testProduct(2, 900, "", 0),
	}

	r := NewClusteringRecommender(testRecsCfg(10), logger.NewSlogLogger())
	require.NoError(t, r.Fit(context.Background(), products))

	got, err := r.Recommend(1, 5)
	require.NoError(t, err)
	// Каждый продукт в собственном кластере — соседей нет, и это не ошибка.
	assert.Empty(t, got)
}

func TestExtractFeatures_IncludesCategoryCount(t *testing.T) {
	p := testProduct(1, 100, "acme", 2)
	p.Categories = []domain.Category{
		{ID: 10, Name: "Shoes"},
		{ID: 11, Name: "Sneakers"},
	}

	features := extractFeatures(&p, map[string]float64{"acme": 1})
	require.Len(t, features, featureDim)
	assert.Equal(t, 2.0, features[3])
}
