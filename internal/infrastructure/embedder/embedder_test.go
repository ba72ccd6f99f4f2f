package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/recommender"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEmbedderCfg(baseURL string) *cfg.EmbedderCfg {
	return &cfg.EmbedderCfg{
		BaseURL:       baseURL,
		Model:         "test-model",
		MaxConcurrent: 4,
		MaxRetries:    1,
	}
}

func TestEmbedderService_EmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		var req struct {
			Model string `json:"model"`
			Input string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		if req.Input == "bad" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	svc := NewEmbedderService(testEmbedderCfg(srv.URL), logger.NewSlogLogger())

	results := svc.EmbedBatch(context.Background(), []recommender.EmbedRequest{
		{ProductID: 1, Text: "red sweater"},
		{ProductID: 2, Text: "bad"},
		{ProductID: 3, Text: "blue jeans"},
	})

	require.Len(t, results, 3)

	// Результат выровнен по порядку запросов.
	assert.Equal(t, int64(1), results[0].ProductID)
	assert.Equal(t, int64(2), results[1].ProductID)
	assert.Equal(t, int64(3), results[2].ProductID)

	require.NoError(t, results[0].Err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, results[0].Vector)

	// Ошибка одного текста не роняет батч.
	require.Error(t, results[1].Err)
	assert.Nil(t, results[1].Vector)

	require.NoError(t, results[2].Err)
}

func TestEmbedderService_EmptyText(t *testing.T) {
	svc := NewEmbedderService(testEmbedderCfg("http://unused"), logger.NewSlogLogger())

	results := svc.EmbedBatch(context.Background(), []recommender.EmbedRequest{
		{ProductID: 1, Text: "   "},
	})

	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
}
