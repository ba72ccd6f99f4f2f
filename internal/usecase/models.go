package usecase

import "github.com/genai-ecommerce/go-backend/internal/domain"

// RECOMMENDATION USECASE

// GetRecommendationsReq — запрос рекомендаций для продукта.
type GetRecommendationsReq struct {
	ProductID int64
	TopK      int // сколько рекомендаций вернуть от каждого движка
}

// GetRecommendationsRes — ответ с рекомендациями обоих движков.
// Пустой срез у движка означает, что продукт ему пока неизвестен, —
// частичный результат валиден и ожидаем.
type GetRecommendationsRes struct {
	Cluster   []int64
	Embedding []int64
}

// CATALOG USECASE

// IngestRes — итог инжеста каталога.
type IngestRes struct {
	Pages    int
	Products int
}

// ListProductsReq — постраничный запрос списка продуктов.
type ListProductsReq struct {
	Limit  int
	Offset int
}

// ListProductsRes — страница каталога.
type ListProductsRes struct {
	Products []ProductInfo
	Total    int64
}

// GetProductsReq — запрос информации о продуктах по их идентификаторам.
type GetProductsReq struct {
	IDs []int64
}

// GetProductsRes — ответ с данными запрошенных продуктов.
type GetProductsRes struct {
	Products         []ProductInfo
	NotFoundProducts []int64
}

// ProductInfo — DTO с краткой информацией о продукте для внешнего использования.
type ProductInfo struct {
	ID       int64
	Name     string
	Brand    string
	Price    int64
	Currency string
}

// ProductDetail — полная карточка продукта.
type ProductDetail struct {
	Product domain.Product
}

// INFRASTRUCTURE

// FeedPage — одна страница внешнего фида каталога.
type FeedPage struct {
	Products []domain.Product
	HasMore  bool
}

// MirrorImagesReq — запрос на зеркалирование изображений продукта в S3.
type MirrorImagesReq struct {
	ProductID int64
	Images    []domain.Image
}

// MirrorImagesRes — результат зеркалирования (ключи объектов, по одному на изображение;
// пустой ключ означает, что изображение скачать не удалось).
type MirrorImagesRes struct {
	ObjectKeys []string
}

// CatalogUpdatedReq — событие о завершении инжеста каталога.
type CatalogUpdatedReq struct {
	Products int
}

// MAPPERS

func NewGetRecommendationsReq(productID int64, topK int) *GetRecommendationsReq {
	return &GetRecommendationsReq{
		ProductID: productID,
		TopK:      topK,
	}
}

func NewGetRecommendationsRes(cluster, embedding []int64) *GetRecommendationsRes {
	return &GetRecommendationsRes{
		Cluster:   cluster,
		Embedding: embedding,
	}
}

func NewIngestRes(pages, products int) *IngestRes {
	return &IngestRes{
		Pages:    pages,
		Products: products,
	}
}

func NewProductInfo(id int64, name, brand string, price int64, currency string) ProductInfo {
	return ProductInfo{
		ID:       id,
		Name:     name,
		Brand:    brand,
		Price:    price,
		Currency: currency,
	}
}

func NewGetProductsReq(ids []int64) *GetProductsReq {
	return &GetProductsReq{ids}
}

func NewGetProductsRes(products []ProductInfo, notFound []int64) *GetProductsRes {
	return &GetProductsRes{
		Products:         products,
		NotFoundProducts: notFound,
	}
}

func NewMirrorImagesReq(productID int64, images []domain.Image) *MirrorImagesReq {
	return &MirrorImagesReq{
		ProductID: productID,
		Images:    images,
	}
}

func NewMirrorImagesRes(objectKeys []string) *MirrorImagesRes {
	return &MirrorImagesRes{ObjectKeys: objectKeys}
}

func NewCatalogUpdatedReq(products int) *CatalogUpdatedReq {
	return &CatalogUpdatedReq{Products: products}
}
