package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/recommender"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/jitter"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
)

// лимит на размер тела ответа embedding-сервиса
const maxResponseBytes = 1 << 20

// EmbedderService — клиент OpenAI-совместимого сервиса эмбеддингов.
// Дергает POST {baseURL}/embeddings с телом {"model": ..., "input": ...}.
type EmbedderService struct {
	cfg        *cfg.EmbedderCfg
	httpClient *http.Client
	logger     logger.Logger
}

func NewEmbedderService(cfg *cfg.EmbedderCfg, logger logger.Logger) *EmbedderService {
	return &EmbedderService{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// EmbedBatch векторизует тексты параллельно с ограничением конкурентности.
// Результат выровнен по порядку запросов; ошибка одного текста не роняет батч,
// а попадает в Err соответствующего элемента.
func (s *EmbedderService) EmbedBatch(ctx context.Context, reqs []recommender.EmbedRequest) []recommender.EmbedResult {
	results := make([]recommender.EmbedResult, len(reqs))
	sem := make(chan struct{}, s.cfg.MaxConcurrent)

	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vector, err := s.embedWithRetry(ctx, req.Text)
			results[i] = recommender.EmbedResult{
				ProductID: req.ProductID,
				Vector:    vector,
				Err:       err,
			}
		}()
	}
	wg.Wait()

	return results
}

// embedWithRetry выполняет векторизацию одного текста с retry-логикой и экспоненциальной задержкой
func (s *EmbedderService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	const (
		op         = "EmbedderService.embedWithRetry"
		baseJitter = 1 * time.Second
		maxJitter  = 30 * time.Second
	)

	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		vector, err := s.embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err

		if attempt == s.cfg.MaxRetries-1 {
			break
		}

		sleepTime := jitter.ExponentialBackoff(
			baseJitter,
			maxJitter,
			attempt,
			jitter.DefaultJitter,
		)

		s.logger.Warnf("embedding request failed, retrying in %v (attempt %d): %v", sleepTime, attempt+1, err)
		select {
		case <-time.After(sleepTime):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return nil, e.Wrap(op, fmt.Errorf("all %d attempts failed: %w", s.cfg.MaxRetries, lastErr))
}

// embed выполняет один запрос к /embeddings
func (s *EmbedderService) embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, e.ErrEmptyVector
	}

	reqBody := map[string]any{
		"model": s.cfg.Model,
		"input": text,
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(s.cfg.BaseURL, "/") + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.ApiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings request failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, e.ErrEmbeddingGeneration
	}

	emb64 := parsed.Data[0].Embedding
	out := make([]float32, len(emb64))
	for i, v := range emb64 {
		out[i] = float32(v)
	}

	return out, nil
}
