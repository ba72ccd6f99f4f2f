package usecase

import (
	"context"
	"testing"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine — движок с заранее заданными ответами.
type fakeEngine struct {
	recs     map[int64][]int64
	fitCalls int
	lastFit  []domain.Product
}

func (f *fakeEngine) Fit(_ context.Context, products []domain.Product) error {
	f.fitCalls++
	f.lastFit = products
	return nil
}

func (f *fakeEngine) Recommend(productID int64, k int) ([]int64, error) {
	recs, ok := f.recs[productID]
	if !ok {
		return nil, e.ErrProductNotFound
	}
	if k > len(recs) {
		k = len(recs)
	}
	return recs[:k], nil
}

// fakeProductRepo отдаёт фиксированный снапшот каталога.
type fakeProductRepo struct {
	products []domain.Product
}

func (f *fakeProductRepo) Upsert(context.Context, *domain.Product) error { return nil }
func (f *fakeProductRepo) GetByID(context.Context, int64) (*domain.Product, error) {
	return nil, e.ErrProductNotFound
}
func (f *fakeProductRepo) GetProductsInfo(context.Context, []int64) ([]ProductInfo, error) {
	return nil, nil
}
func (f *fakeProductRepo) List(context.Context, int, int) ([]ProductInfo, int64, error) {
	return nil, 0, nil
}
func (f *fakeProductRepo) GetAll(context.Context) ([]domain.Product, error) {
	return f.products, nil
}

func TestRecommendationUC_PartialResult(t *testing.T) {
	cluster := &fakeEngine{recs: map[int64][]int64{1: {2, 3}}}
	embedding := &fakeEngine{recs: map[int64][]int64{}} // эмбеддинги ещё не посчитаны

	uc := NewRecommendationUC(cluster, embedding, &fakeProductRepo{}, logger.NewSlogLogger())

	got, err := uc.GetRecommendations(context.Background(), NewGetRecommendationsReq(1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, got.Cluster)
	assert.Empty(t, got.Embedding)
}

func TestRecommendationUC_UnknownToBothEngines(t *testing.T) {
	cluster := &fakeEngine{recs: map[int64][]int64{}}
	embedding := &fakeEngine{recs: map[int64][]int64{}}

	uc := NewRecommendationUC(cluster, embedding, &fakeProductRepo{}, logger.NewSlogLogger())

	_, err := uc.GetRecommendations(context.Background(), NewGetRecommendationsReq(999, 5))
	assert.ErrorIs(t, err, e.ErrProductNotFound)
}

func TestRecommendationUC_InvalidTopK(t *testing.T) {
	uc := NewRecommendationUC(&fakeEngine{}, &fakeEngine{}, &fakeProductRepo{}, logger.NewSlogLogger())

	_, err := uc.GetRecommendations(context.Background(), NewGetRecommendationsReq(1, 0))
	assert.ErrorIs(t, err, e.ErrInvalidTopK)
}

func TestRecommendationUC_RefitFitsBothEngines(t *testing.T) {
	cluster := &fakeEngine{}
	embedding := &fakeEngine{}
	repo := &fakeProductRepo{products: []domain.Product{
		{ID: 1, Name: "a"},
		{ID: 2, Name: "b"},
	}}

	uc := NewRecommendationUC(cluster, embedding, repo, logger.NewSlogLogger())
	require.NoError(t, uc.Refit(context.Background()))

	assert.Equal(t, 1, cluster.fitCalls)
	assert.Equal(t, 1, embedding.fitCalls)
	assert.Len(t, cluster.lastFit, 2)
	assert.Len(t, embedding.lastFit, 2)
}
