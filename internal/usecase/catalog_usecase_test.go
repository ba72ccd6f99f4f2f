package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInfoRepo отдаёт краткую информацию по заданным продуктам.
type fakeInfoRepo struct {
	fakeProductRepo
	infos map[int64]ProductInfo
	calls [][]int64
}

func (f *fakeInfoRepo) GetProductsInfo(_ context.Context, ids []int64) ([]ProductInfo, error) {
	f.calls = append(f.calls, ids)

	result := make([]ProductInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.infos[id]; ok {
			result = append(result, info)
		}
	}
	return result, nil
}

// fakeCacheRepo — in-memory кэш с учётом записей.
type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[int64]ProductInfo
	deleted []int64
	failGet bool
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[int64]ProductInfo)}
}

func (f *fakeCacheRepo) GetProducts(_ context.Context, ids []int64) (map[int64]ProductInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failGet {
		return nil, e.ErrInternalServerError
	}

	result := make(map[int64]ProductInfo)
	for _, id := range ids {
		if info, ok := f.entries[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

func (f *fakeCacheRepo) SetProducts(_ context.Context, products []ProductInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, info := range products {
		f.entries[info.ID] = info
	}
	return nil
}

func (f *fakeCacheRepo) DeleteProducts(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, ids...)
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func newCatalogUCForInfo(repo *fakeInfoRepo, cache *fakeCacheRepo) *CatalogUseCase {
	return NewCatalogUC(repo, nil, cache, nil, nil, nil, nil, logger.NewSlogLogger())
}

func TestCatalogUC_GetProductsInfo_CacheMissGoesToDB(t *testing.T) {
	repo := &fakeInfoRepo{infos: map[int64]ProductInfo{
		1: NewProductInfo(1, "A", "", 100, "EUR"),
		2: NewProductInfo(2, "B", "Acme", 200, "EUR"),
	}}
	cache := newFakeCacheRepo()
	cache.entries[1] = NewProductInfo(1, "A", "", 100, "EUR")

	uc := newCatalogUCForInfo(repo, cache)

	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]int64{1, 2, 3}))
	require.NoError(t, err)

	// Порядок ответа повторяет порядок запроса, неизвестный ID уходит в NotFoundProducts.
	require.Len(t, res.Products, 2)
	assert.Equal(t, int64(1), res.Products[0].ID)
	assert.Equal(t, int64(2), res.Products[1].ID)
	assert.Equal(t, []int64{3}, res.NotFoundProducts)

	// В БД ходили только за промахами.
	require.Len(t, repo.calls, 1)
	assert.Equal(t, []int64{2, 3}, repo.calls[0])

	// Промахи докэшируются фоном.
	assert.Eventually(t, func() bool {
		cache.mu.Lock()
		defer cache.mu.Unlock()
		_, ok := cache.entries[2]
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestCatalogUC_GetProductsInfo_CacheFailureFallsBackToDB(t *testing.T) {
	repo := &fakeInfoRepo{infos: map[int64]ProductInfo{
		1: NewProductInfo(1, "A", "", 100, "EUR"),
	}}
	cache := newFakeCacheRepo()
	cache.failGet = true

	uc := newCatalogUCForInfo(repo, cache)

	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq([]int64{1}))
	require.NoError(t, err)
	require.Len(t, res.Products, 1)
	assert.Equal(t, int64(1), res.Products[0].ID)
}

func TestCatalogUC_GetProductsInfo_EmptyIDs(t *testing.T) {
	uc := newCatalogUCForInfo(&fakeInfoRepo{}, newFakeCacheRepo())

	res, err := uc.GetProductsInfo(context.Background(), NewGetProductsReq(nil))
	require.NoError(t, err)
	assert.Empty(t, res.Products)
	assert.Empty(t, res.NotFoundProducts)
}

func TestCatalogUC_ListProducts_InvalidPagination(t *testing.T) {
	uc := newCatalogUCForInfo(&fakeInfoRepo{}, newFakeCacheRepo())

	_, err := uc.ListProducts(context.Background(), &ListProductsReq{Limit: 0, Offset: 0})
	require.ErrorIs(t, err, e.ErrInvalidPage)

	_, err = uc.ListProducts(context.Background(), &ListProductsReq{Limit: 10, Offset: -1})
	require.ErrorIs(t, err, e.ErrInvalidPage)
}

func TestNonEmptyKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, nonEmptyKeys([]string{"a", "", "b", ""}))
	assert.Empty(t, nonEmptyKeys([]string{"", ""}))
}

// fakeTx — транзакция-заглушка под pgx.Tx для транзакции инжеста.
type fakeTx struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) { return f, nil }

func (f *fakeTx) Commit(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits++
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbacks++
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (f *fakeTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (f *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (f *fakeTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (f *fakeTx) Conn() *pgx.Conn                                        { return nil }

type fakeDBPool struct {
	tx *fakeTx
}

func (f *fakeDBPool) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return f.tx, nil
}

// fakeFeed отдаёт заранее подготовленные страницы; страницы за пределами
// списка считаются пустым концом фида.
type fakeFeed struct {
	pages   []*FeedPage
	fetches int
}

func (f *fakeFeed) FetchPage(_ context.Context, page int) (*FeedPage, error) {
	f.fetches++
	if page > len(f.pages) {
		return &FeedPage{}, nil
	}
	return f.pages[page-1], nil
}

type fakeImagesInfra struct {
	mu      sync.Mutex
	cleaned [][]string
}

func (f *fakeImagesInfra) MirrorImages(_ context.Context, req *MirrorImagesReq) (*MirrorImagesRes, error) {
	keys := make([]string, len(req.Images))
	for i := range keys {
		keys[i] = fmt.Sprintf("products/%d/%d", req.ProductID, i)
	}
	return NewMirrorImagesRes(keys), nil
}

func (f *fakeImagesInfra) CleanupImages(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleaned = append(f.cleaned, keys)
}

func (f *fakeImagesInfra) WaitForCleanup(context.Context) error { return nil }

type fakeProducer struct {
	events []*CatalogUpdatedReq
}

func (f *fakeProducer) PublishCatalogUpdated(_ context.Context, req *CatalogUpdatedReq) error {
	f.events = append(f.events, req)
	return nil
}

type fakeCategoryRepo struct {
	upserts []domain.Category
	links   map[int64][]int64
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{links: make(map[int64][]int64)}
}

func (f *fakeCategoryRepo) Upsert(_ context.Context, category *domain.Category) error {
	f.upserts = append(f.upserts, *category)
	return nil
}

func (f *fakeCategoryRepo) ReplaceProductCategories(_ context.Context, productID int64, categoryIDs []int64) error {
	f.links[productID] = categoryIDs
	return nil
}

// fakeIngestRepo учитывает апсерты и умеет падать на заданных продуктах.
type fakeIngestRepo struct {
	fakeProductRepo
	upserted []int64
	failIDs  map[int64]bool
}

func (f *fakeIngestRepo) Upsert(_ context.Context, product *domain.Product) error {
	if f.failIDs[product.ID] {
		return e.ErrInternalServerError
	}
	f.upserted = append(f.upserted, product.ID)
	return nil
}

type ingestFixture struct {
	uc       *CatalogUseCase
	repo     *fakeIngestRepo
	cats     *fakeCategoryRepo
	cache    *fakeCacheRepo
	feed     *fakeFeed
	images   *fakeImagesInfra
	producer *fakeProducer
	tx       *fakeTx
}

func newIngestFixture(pages []*FeedPage, failIDs map[int64]bool) *ingestFixture {
	f := &ingestFixture{
		repo:     &fakeIngestRepo{failIDs: failIDs},
		cats:     newFakeCategoryRepo(),
		cache:    newFakeCacheRepo(),
		feed:     &fakeFeed{pages: pages},
		images:   &fakeImagesInfra{},
		producer: &fakeProducer{},
		tx:       &fakeTx{},
	}
	f.uc = NewCatalogUC(
		f.repo, f.cats, f.cache, &fakeDBPool{tx: f.tx},
		f.feed, f.images, f.producer, logger.NewSlogLogger(),
	)
	return f
}

func feedProduct(id int64, categories ...domain.Category) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       fmt.Sprintf("product-%d", id),
		Price:      domain.Price{Amount: 100 * id, Currency: "EUR"},
		Categories: categories,
		Images:     []domain.Image{{URL: fmt.Sprintf("https://cdn.example.com/%d", id), Type: "standard"}},
	}
}

func TestCatalogUC_IngestCatalog_ContinuesPastPageWithoutValidProducts(t *testing.T) {
	// Страница, где все продукты забракованы валидацией, пуста, но фид
	// сообщает о продолжении: инжест обязан дойти до следующей страницы.
	f := newIngestFixture([]*FeedPage{
		{Products: nil, HasMore: true},
		{Products: []domain.Product{feedProduct(1)}, HasMore: false},
	}, nil)

	res, err := f.uc.IngestCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, f.feed.fetches)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Products)
	assert.Equal(t, []int64{1}, f.repo.upserted)
}

func TestCatalogUC_IngestCatalog_BadProductDoesNotFailIngest(t *testing.T) {
	f := newIngestFixture([]*FeedPage{
		{Products: []domain.Product{feedProduct(1), feedProduct(2), feedProduct(3)}, HasMore: false},
	}, map[int64]bool{2: true})

	res, err := f.uc.IngestCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Products)
	assert.Equal(t, []int64{1, 3}, f.repo.upserted)

	// Инжест продукта 2 откатился, его зеркалированные изображения вычищены.
	f.tx.mu.Lock()
	assert.Equal(t, 2, f.tx.commits)
	assert.Equal(t, 1, f.tx.rollbacks)
	f.tx.mu.Unlock()

	f.images.mu.Lock()
	require.Len(t, f.images.cleaned, 1)
	assert.Equal(t, []string{"products/2/0"}, f.images.cleaned[0])
	f.images.mu.Unlock()

	// Кэш инвалидирован и событие опубликовано только для записанных продуктов.
	f.cache.mu.Lock()
	assert.Equal(t, []int64{1, 3}, f.cache.deleted)
	f.cache.mu.Unlock()

	require.Len(t, f.producer.events, 1)
	assert.Equal(t, 2, f.producer.events[0].Products)
}

func TestCatalogUC_IngestCatalog_PersistsCategories(t *testing.T) {
	shoes := domain.Category{ID: 10, Name: "Shoes", Slug: "shoes"}
	sneakers := domain.Category{ID: 11, Name: "Sneakers", Slug: "sneakers"}

	f := newIngestFixture([]*FeedPage{
		{Products: []domain.Product{feedProduct(1, shoes, sneakers)}, HasMore: false},
	}, nil)

	_, err := f.uc.IngestCatalog(context.Background())
	require.NoError(t, err)

	require.Len(t, f.cats.upserts, 2)
	assert.Equal(t, shoes, f.cats.upserts[0])
	assert.Equal(t, sneakers, f.cats.upserts[1])
	assert.Equal(t, []int64{10, 11}, f.cats.links[1])
}

func TestCatalogUC_IngestCatalog_EmptyFeedPublishesNothing(t *testing.T) {
	f := newIngestFixture(nil, nil)

	res, err := f.uc.IngestCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, res.Products)
	assert.Empty(t, f.producer.events)
	f.cache.mu.Lock()
	assert.Empty(t, f.cache.deleted)
	f.cache.mu.Unlock()
}
