package qdrant

import (
	"context"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// размер страницы при вычитывании коллекции целиком
const scrollLimit = 256

// EmbeddingRepo — персистентный кэш embedding-векторов в Qdrant.
// Переживает рестарт сервиса: при старте индекс прогревается из коллекции
// и пересчитываются только продукты с изменившимся content_hash.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Store сохраняет или обновляет embedding-векторы в коллекции Qdrant.
// ID точки детерминирован по ID продукта, поэтому повторная запись замещает старую.
func (q *EmbeddingRepo) Store(ctx context.Context, vectors []domain.Embedding) error {
	if len(vectors) == 0 {
		return nil
	}

	reqVectors := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, vector := range vectors {
		reqVectors = append(reqVectors, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(vector.ID),
			Vectors: qdrant.NewVectors(vector.Vector...),
			Payload: qdrant.NewValueMap(vector.Payload),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         reqVectors,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Load вычитывает всю коллекцию постранично через Scroll.
// Точки без product_id или content_hash в payload пропускаются.
func (q *EmbeddingRepo) Load(ctx context.Context) ([]domain.Embedding, error) {
	var result []domain.Embedding

	var offset *qdrant.PointId
	for {
		resp, err := q.client.GetPointsClient().Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.cfg.QdrantCollectionName,
			Limit:          qdrant.PtrOf(uint32(scrollLimit)),
			Offset:         offset,
			WithVectors:    qdrant.NewWithVectors(true),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		for _, point := range resp.GetResult() {
			emb, ok := q.pointToEmbedding(point)
			if !ok {
				continue
			}
			result = append(result, emb)
		}

		offset = resp.GetNextPageOffset()
		if offset == nil {
			break
		}
	}

	return result, nil
}

func (q *EmbeddingRepo) pointToEmbedding(point *qdrant.RetrievedPoint) (domain.Embedding, bool) {
	payload := point.GetPayload()

	productIDVal, ok := payload["product_id"]
	if !ok {
		return domain.Embedding{}, false
	}
	hashVal, ok := payload["content_hash"]
	if !ok {
		return domain.Embedding{}, false
	}

	vector := point.GetVectors().GetVector().GetData()
	if len(vector) == 0 {
		return domain.Embedding{}, false
	}

	return domain.Embedding{
		ID:          point.GetId().GetUuid(),
		ProductID:   productIDVal.GetIntegerValue(),
		Vector:      vector,
		ContentHash: hashVal.GetStringValue(),
	}, true
}
