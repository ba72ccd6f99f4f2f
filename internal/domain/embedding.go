package domain

import "time"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет эмбеддинг одного продукта вместе с маркером свежести.
// ContentHash — SHA-256 исходного текста; по нему решается, нужен ли пересчёт.
type Embedding struct {
	ID          string
	ProductID   int64
	Vector      []float32
	ContentHash string
	Payload     Payload
}

func NewEmbedding(id string, productID int64, vector []float32, contentHash string) *Embedding {
	return &Embedding{
		ID:          id,
		ProductID:   productID,
		Vector:      vector,
		ContentHash: contentHash,
		Payload:     NewPayload(productID, contentHash, ""),
	}
}

func NewPayload(productID int64, contentHash string, modelVersion string) Payload {
	return Payload{
		"product_id":    productID,
		"content_hash":  contentHash,
		"created_at":    time.Now().UTC().UnixNano(),
		"model_version": modelVersion,
	}
}
