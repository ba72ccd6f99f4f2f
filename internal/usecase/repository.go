package usecase

import (
	"context"

	"github.com/genai-ecommerce/go-backend/internal/domain"
)

type ProductRepository interface {
	// Upsert полностью замещает продукт вместе с атрибутами и изображениями.
	Upsert(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsInfo(ctx context.Context, ids []int64) ([]ProductInfo, error)
	List(ctx context.Context, limit, offset int) ([]ProductInfo, int64, error)
	// GetAll отдаёт полный снапшот каталога для обучения движков.
	GetAll(ctx context.Context) ([]domain.Product, error)
}

type CategoryRepository interface {
	// Upsert идемпотентно создаёт категорию фида.
	Upsert(ctx context.Context, category *domain.Category) error
	// ReplaceProductCategories полностью замещает связи продукта с категориями.
	ReplaceProductCategories(ctx context.Context, productID int64, categoryIDs []int64) error
}

type ImageRepository interface {
	Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]ProductInfo, error)
	SetProducts(ctx context.Context, products []ProductInfo) error
	DeleteProducts(ctx context.Context, ids []int64) error
}
