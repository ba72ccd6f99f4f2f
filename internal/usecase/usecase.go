package usecase

import "context"

type RecommendationUC interface {
	GetRecommendations(ctx context.Context, req *GetRecommendationsReq) (*GetRecommendationsRes, error)
	Refit(ctx context.Context) error
}

type CatalogUC interface {
	IngestCatalog(ctx context.Context) (*IngestRes, error)
	ListProducts(ctx context.Context, req *ListProductsReq) (*ListProductsRes, error)
	GetProduct(ctx context.Context, id int64) (*ProductDetail, error)
	GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error)
}
