package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
)

// CatalogUseCase реализует бизнес-логику каталога: инжест полного снапшота
// из внешнего фида, постраничную выдачу и карточки продуктов.
type CatalogUseCase struct {
	productRepo  ProductRepository
	categoryRepo CategoryRepository
	cacheRepo    CacheRepository
	dbPool       transaction.Transactional
	feed         FeedInfra
	imagesInfra  ImagesInfra
	producer     MessageProducer
	logger       logger.Logger

	ingesting atomic.Bool
}

func NewCatalogUC(
	productRepo ProductRepository,
	categoryRepo CategoryRepository,
	cacheRepo CacheRepository,
	dbPool transaction.Transactional,
	feed FeedInfra,
	imagesInfra ImagesInfra,
	producer MessageProducer,
	logger logger.Logger,
) *CatalogUseCase {
	return &CatalogUseCase{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		cacheRepo:    cacheRepo,
		dbPool:       dbPool,
		feed:         feed,
		imagesInfra:  imagesInfra,
		producer:     producer,
		logger:       logger,
	}
}

// IngestCatalog выкачивает фид постранично и замещает продукты по ID.
// Каждый продукт — полная замена прежнего состояния в одной транзакции:
// частично записанных продуктов не бывает. По завершении публикуется
// событие catalog.updated, по которому воркер переобучает движки.
func (c *CatalogUseCase) IngestCatalog(ctx context.Context) (*IngestRes, error) {
	const op = "CatalogUseCase.IngestCatalog"

	if !c.ingesting.CompareAndSwap(false, true) {
		return nil, e.Wrap(op, e.ErrIngestionInProgress)
	}
	defer c.ingesting.Store(false)

	var (
		pages    int
		ingested []int64
	)

	for page := 1; ; page++ {
		feedPage, err := c.feed.FetchPage(ctx, page)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for i := range feedPage.Products {
			product := &feedPage.Products[i]
			if err := c.ingestProduct(ctx, product); err != nil {
				// Один битый продукт не роняет весь инжест.
				c.logger.Warnf("%s: product %d skipped: %v", op, product.ID, err)
				continue
			}
			ingested = append(ingested, product.ID)
		}

		pages++

		// Конец каталога определяет пагинация фида: страница, на которой все
		// продукты забракованы валидацией, концом не считается. Для фидов без
		// метаданных пагинации клиент выставляет HasMore по пустоте страницы.
		if !feedPage.HasMore {
			break
		}
	}

	if len(ingested) > 0 {
		if err := c.cacheRepo.DeleteProducts(ctx, ingested); err != nil {
			c.logger.Warnf("%s: cache invalidation failed: %v", op, err)
		}

		if err := c.producer.PublishCatalogUpdated(ctx, NewCatalogUpdatedReq(len(ingested))); err != nil {
			c.logger.Warnf("%s: publish catalog.updated failed: %v", op, err)
		}
	}

	c.logger.Infof("catalog ingestion finished: pages=%d, products=%d", pages, len(ingested))
	return NewIngestRes(pages, len(ingested)), nil
}

// ingestProduct зеркалирует изображения и транзакционно замещает продукт
// вместе с его категориями.
func (c *CatalogUseCase) ingestProduct(ctx context.Context, product *domain.Product) (err error) {
	const op = "CatalogUseCase.ingestProduct"

	var (
		mirrored *MirrorImagesRes
		uploaded bool
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, c.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	// При ошибке транзакция откатывается, а уже загруженные объекты чистятся.
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploaded && mirrored != nil {
				c.logger.Warnf("Cleaning up orphaned images after transaction failure. product_id: %d, error: %v",
					product.ID, e.Wrap(op, err))
				c.imagesInfra.CleanupImages(nonEmptyKeys(mirrored.ObjectKeys))
			}
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	mirrored, err = c.imagesInfra.MirrorImages(ctx, NewMirrorImagesReq(product.ID, product.Images))
	if err != nil {
		return e.Wrap(op, err)
	}
	uploaded = true

	for i := range product.Images {
		if i < len(mirrored.ObjectKeys) && mirrored.ObjectKeys[i] != "" {
			key := mirrored.ObjectKeys[i]
			product.Images[i].ObjectKey = &key
		}
	}

	if err = c.productRepo.Upsert(ctx, product); err != nil {
		return e.Wrap(op, err)
	}

	// Идемпотентное создание категорий и полная замена связей продукта.
	categoryIDs := make([]int64, 0, len(product.Categories))
	for i := range product.Categories {
		if err = c.categoryRepo.Upsert(ctx, &product.Categories[i]); err != nil {
			return e.Wrap(op, err)
		}
		categoryIDs = append(categoryIDs, product.Categories[i].ID)
	}

	if err = c.categoryRepo.ReplaceProductCategories(ctx, product.ID, categoryIDs); err != nil {
		return e.Wrap(op, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// ListProducts возвращает страницу каталога.
func (c *CatalogUseCase) ListProducts(ctx context.Context, req *ListProductsReq) (*ListProductsRes, error) {
	const op = "CatalogUseCase.ListProducts"

	if req.Limit <= 0 || req.Offset < 0 {
		return nil, e.Wrap(op, e.ErrInvalidPage)
	}

	products, total, err := c.productRepo.List(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &ListProductsRes{Products: products, Total: total}, nil
}

// GetProduct возвращает полную карточку продукта.
func (c *CatalogUseCase) GetProduct(ctx context.Context, id int64) (*ProductDetail, error) {
	const op = "CatalogUseCase.GetProduct"

	product, err := c.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return &ProductDetail{Product: *product}, nil
}

// GetProductsInfo возвращает краткую информацию о продуктах по их идентификаторам,
// сперва заглядывая в кэш; промахи читаются из БД и фоново докэшируются.
func (c *CatalogUseCase) GetProductsInfo(ctx context.Context, req *GetProductsReq) (*GetProductsRes, error) {
	const op = "CatalogUseCase.GetProductsInfo"

	if len(req.IDs) == 0 {
		return NewGetProductsRes([]ProductInfo{}, nil), nil
	}

	cacheProductsMap, err := c.cacheRepo.GetProducts(ctx, req.IDs)
	var nonCacheable []int64
	if err != nil {
		nonCacheable = append(nonCacheable, req.IDs...)
		cacheProductsMap = nil
	} else {
		for _, productID := range req.IDs {
			if _, ok := cacheProductsMap[productID]; !ok {
				nonCacheable = append(nonCacheable, productID)
			}
		}
	}

	var productsFromDB []ProductInfo
	if len(nonCacheable) > 0 {
		productsFromDB, err = c.productRepo.GetProductsInfo(ctx, nonCacheable)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		// Фоновое добавление промахов в кэш
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := c.cacheRepo.SetProducts(bgCtx, productsFromDB); err != nil {
				c.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
			}
		}()
	}

	dbProductsMap := make(map[int64]ProductInfo, len(productsFromDB))
	for _, info := range productsFromDB {
		dbProductsMap[info.ID] = info
	}

	result := make([]ProductInfo, 0, len(req.IDs))
	notFound := make([]int64, 0)
	for _, id := range req.IDs {
		if pr, ok := cacheProductsMap[id]; ok {
			result = append(result, pr)
		} else if pr, ok := dbProductsMap[id]; ok {
			result = append(result, pr)
		} else {
			notFound = append(notFound, id)
		}
	}

	return NewGetProductsRes(result, notFound), nil
}

func nonEmptyKeys(keys []string) []string {
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			result = append(result, k)
		}
	}
	return result
}
