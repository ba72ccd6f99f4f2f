package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeedCfg(baseURL string) *cfg.FeedCfg {
	return &cfg.FeedCfg{
		BaseURL:        baseURL,
		MaxRetries:     0,
		PageDelay:      0,
		RequestTimeout: 5 * time.Second,
	}
}

const feedPageBody = `{
	"entities": [
		{
			"id": 101,
			"name": "Wool Sweater",
			"brand": "Acme",
			"description": "Warm sweater",
			"priceRange": {"min": {"withTax": 4990, "originalWithTax": 9980, "currencyCode": "EUR"}},
			"categories": [
				[
					{"categoryId": 10, "categoryName": "Clothing", "categorySlug": "clothing"},
					{"categoryId": 11, "categoryName": "Sweaters", "categorySlug": "sweaters"}
				],
				[
					{"categoryId": 10, "categoryName": "Clothing", "categorySlug": "clothing"},
					{"categoryId": 0, "categoryName": "Broken"}
				]
			],
			"attributes": {
				"color": {"key": "color", "values": [{"label": "Red"}, {"label": "Blue"}]},
				"material": {"key": "material", "group": "fabric", "values": [{"label": "Wool"}]}
			},
			"images": [{"hash": "abc123", "type": "standard"}, {"hash": ""}]
		},
		{
			"id": 0,
			"name": "Broken product",
			"priceRange": {"min": {"withTax": 100, "currencyCode": "EUR"}}
		}
	],
	"pagination": {"current": 1, "last": 1, "total": 2}
}`

func TestFeedClient_FetchPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "attributes,categories,priceRange", r.URL.Query().Get("with"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedPageBody))
	}))
	defer srv.Close()

	client := NewFeedClient(testFeedCfg(srv.URL), logger.NewSlogLogger())

	page, err := client.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, page.Products, 1) // продукт с нулевым ID отброшен
	assert.False(t, page.HasMore)

	product := page.Products[0]
	assert.Equal(t, int64(101), product.ID)
	assert.Equal(t, "Wool Sweater", product.Name)
	require.NotNil(t, product.Brand)
	assert.Equal(t, "Acme", *product.Brand)

	assert.Equal(t, int64(4990), product.Price.Amount)
	assert.Equal(t, "EUR", product.Price.Currency)
	require.NotNil(t, product.Price.DiscountPercent)
	assert.InDelta(t, 50.0, *product.Price.DiscountPercent, 0.01)

	// Вложенные списки категорий сплющены, дубликаты и нулевые ID отброшены.
	require.Len(t, product.Categories, 2)
	assert.Equal(t, int64(10), product.Categories[0].ID)
	assert.Equal(t, "Clothing", product.Categories[0].Name)
	assert.Equal(t, "clothing", product.Categories[0].Slug)
	assert.Equal(t, int64(11), product.Categories[1].ID)
	assert.Equal(t, "Sweaters", product.Categories[1].Name)

	// Атрибуты упорядочены по имени, значения склеены.
	require.Len(t, product.Attributes, 2)
	assert.Equal(t, "color", product.Attributes[0].Key)
	assert.Equal(t, "Red, Blue", product.Attributes[0].Value)
	assert.Equal(t, "material", product.Attributes[1].Key)
	require.NotNil(t, product.Attributes[1].Group)
	assert.Equal(t, "fabric", *product.Attributes[1].Group)

	// Изображение без hash отброшено, URL собран из CDN-базы.
	require.Len(t, product.Images, 1)
	assert.Equal(t, imageCDNBase+"/abc123", product.Images[0].URL)
}

func TestFeedClient_FetchPage_LastPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"entities": [], "pagination": {"current": 3, "last": 2}}`))
	}))
	defer srv.Close()

	client := NewFeedClient(testFeedCfg(srv.URL), logger.NewSlogLogger())

	page, err := client.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.False(t, page.HasMore)
}

func TestFeedClient_FetchPage_FeedDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewFeedClient(testFeedCfg(srv.URL), logger.NewSlogLogger())

	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)
}

func TestDiscountPercent(t *testing.T) {
	original := int64(10000)

	percent := discountPercent(7500, &original)
	require.NotNil(t, percent)
	assert.InDelta(t, 25.0, *percent, 0.001)

	assert.Nil(t, discountPercent(7500, nil))

	// Цена не ниже исходной — скидки нет.
	assert.Nil(t, discountPercent(10000, &original))
	assert.Nil(t, discountPercent(12000, &original))

	zero := int64(0)
	assert.Nil(t, discountPercent(100, &zero))
}
