package usecase

import "context"

type FeedInfra interface {
	FetchPage(ctx context.Context, page int) (*FeedPage, error)
}

type ImagesInfra interface {
	MirrorImages(ctx context.Context, req *MirrorImagesReq) (*MirrorImagesRes, error)
	CleanupImages(keys []string)
	WaitForCleanup(ctx context.Context) error
}

type MessageProducer interface {
	PublishCatalogUpdated(ctx context.Context, req *CatalogUpdatedReq) error
}
