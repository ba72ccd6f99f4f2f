package recommender

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/google/uuid"
)

// EmbeddingRecommender рекомендует продукты по косинусной близости
// текстовых эмбеддингов. Пересчёт эмбеддинга выполняется только когда
// исходный текст продукта изменился (сравнение по content hash) —
// генерация дорогая, лишние вызовы недопустимы.
type EmbeddingRecommender struct {
	embedder Embedder
	cache    EmbeddingCache // может быть nil, тогда кэш только в памяти
	logger   logger.Logger

	mu    sync.RWMutex
	state *embeddingState
}

// embeddingState — неизменяемый снапшот индекса; подменяется целиком в Fit.
type embeddingState struct {
	// known содержит все ID, виденные последним Fit, включая продукты,
	// для которых эмбеддинг так и не был получен.
	known   map[int64]struct{}
	entries map[int64]*indexEntry
	dim     int
}

type indexEntry struct {
	vector []float32
	hash   string
}

func NewEmbeddingRecommender(embedder Embedder, cache EmbeddingCache, logger logger.Logger) *EmbeddingRecommender {
	return &EmbeddingRecommender{
		embedder: embedder,
		cache:    cache,
		logger:   logger,
	}
}

// Fit строит индекс эмбеддингов для снапшота каталога.
// Сначала переиспользуются записи из памяти и персистентного кэша, чей хэш
// совпал; остальные продукты уходят батчем во внешний генератор. Сбой
// генерации для отдельного продукта не прерывает батч: продукт логируется
// и пропускается, прежняя запись (если была) сохраняется.
func (r *EmbeddingRecommender) Fit(ctx context.Context, products []domain.Product) error {
	const op = "EmbeddingRecommender.Fit"

	if len(products) == 0 {
		r.mu.Lock()
		r.state = nil
		r.mu.Unlock()
		return nil
	}

	prior := r.priorEntries(ctx)

	known := make(map[int64]struct{}, len(products))
	entries := make(map[int64]*indexEntry, len(products))
	hashes := make(map[int64]string, len(products))

	var toEmbed []EmbedRequest
	for i := range products {
		p := &products[i]
		known[p.ID] = struct{}{}

		text := productText(p)
		hash := contentHash(text)
		hashes[p.ID] = hash

		if entry, ok := prior[p.ID]; ok && entry.hash == hash {
			entries[p.ID] = entry
			continue
		}

		toEmbed = append(toEmbed, EmbedRequest{ProductID: p.ID, Text: text})
	}

	var changed []domain.Embedding
	if len(toEmbed) > 0 {
		for _, res := range r.embedder.EmbedBatch(ctx, toEmbed) {
			if res.Err != nil {
				r.logger.Warnf("%s: product %d skipped: %v", op, res.ProductID, e.Wrap(op, e.ErrEmbeddingGeneration))
				// Прежний эмбеддинг остаётся в индексе, даже если текст устарел:
				// старый вектор лучше отсутствующего.
				if entry, ok := prior[res.ProductID]; ok {
					entries[res.ProductID] = entry
				}
				continue
			}

			entry := &indexEntry{vector: res.Vector, hash: hashes[res.ProductID]}
			entries[res.ProductID] = entry
			changed = append(changed, *domain.NewEmbedding(
				pointID(res.ProductID), res.ProductID, res.Vector, entry.hash,
			))
		}
	}

	dim := r.checkDimensions(entries)

	r.mu.Lock()
	r.state = &embeddingState{known: known, entries: entries, dim: dim}
	r.mu.Unlock()

	if r.cache != nil && len(changed) > 0 {
		if err := r.cache.Store(ctx, changed); err != nil {
			r.logger.Warnf("%s: persisting embeddings failed: %v", op, err)
		}
	}

	return nil
}

// Recommend возвращает до k продуктов с наибольшей косинусной близостью,
// ближайшие первыми; равная близость упорядочивается по возрастанию ID.
// Продукт без посчитанного эмбеддинга неизвестен движку.
func (r *EmbeddingRecommender) Recommend(productID int64, k int) ([]int64, error) {
	r.mu.RLock()
	state := r.state
	r.mu.RUnlock()

	if state == nil {
		return nil, e.ErrProductNotFound
	}

	query, ok := state.entries[productID]
	if !ok {
		return nil, e.ErrProductNotFound
	}

	type candidate struct {
		id  int64
		sim float64
	}
	candidates := make([]candidate, 0, len(state.entries))
	for id, entry := range state.entries {
		if id == productID {
			continue
		}
		candidates = append(candidates, candidate{id: id, sim: cosine(query.vector, entry.vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sim != candidates[j].sim {
			return candidates[i].sim > candidates[j].sim
		}
		return candidates[i].id < candidates[j].id
	})

	if k > len(candidates) {
		k = len(candidates)
	}

	result := make([]int64, 0, k)
	for _, c := range candidates[:k] {
		result = append(result, c.id)
	}

	return result, nil
}

// priorEntries собирает записи, пригодные для переиспользования:
// текущее состояние в памяти, а при холодном старте — персистентный кэш.
func (r *EmbeddingRecommender) priorEntries(ctx context.Context) map[int64]*indexEntry {
	r.mu.RLock()
	state := r.state
	r.mu.RUnlock()

	if state != nil {
		return state.entries
	}

	prior := make(map[int64]*indexEntry)
	if r.cache == nil {
		return prior
	}

	persisted, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.Warnf("warm start from embedding cache failed: %v", err)
		return prior
	}

	for _, emb := range persisted {
		prior[emb.ProductID] = &indexEntry{vector: emb.Vector, hash: emb.ContentHash}
	}

	return prior
}

// checkDimensions выбрасывает из индекса записи с неконсистентной размерностью.
// Эталоном берётся размерность записи с наименьшим ID: в пределах одного
// инстанса индекса размерность обязана быть постоянной.
func (r *EmbeddingRecommender) checkDimensions(entries map[int64]*indexEntry) int {
	ids := make([]int64, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	dim := 0
	for _, id := range ids {
		entry := entries[id]
		if dim == 0 {
			dim = len(entry.vector)
			continue
		}
		if len(entry.vector) != dim {
			r.logger.Warnf("product %d dropped from index: %v (got %d, want %d)",
				id, e.ErrVectorSizeMismatch, len(entry.vector), dim)
			delete(entries, id)
		}
	}

	return dim
}

// productText собирает текстовое представление продукта для эмбеддинга:
// название, описание, бренд, значения атрибутов и имена категорий,
// нормализованные по регистру и пробелам. Нормализация делает маркер
// свежести устойчивым к шуму фида.
func productText(p *domain.Product) string {
	parts := []string{p.Name, p.DescriptionOrEmpty(), p.BrandOrEmpty()}
	for _, attr := range p.Attributes {
		parts = append(parts, attr.Value)
	}
	parts = append(parts, p.CategoryNames()...)

	joined := strings.Join(parts, " ")
	return strings.ToLower(strings.Join(strings.Fields(joined), " "))
}

// contentHash возвращает SHA-256 hex нормализованного текста продукта.
func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// pointID детерминированно выводит UUID точки в персистентном кэше из ID продукта,
// чтобы повторный апсерт того же продукта перезаписывал ту же точку.
func pointID(productID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strconv.FormatInt(productID, 10))).String()
}
