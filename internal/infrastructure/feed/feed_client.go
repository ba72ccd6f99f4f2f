package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/cfg"
	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// база CDN для изображений: фид отдаёт только hash файла
const imageCDNBase = "https://cdn.aboutyou.com"

// лимит на размер одной страницы фида
const maxPageBytes = 16 << 20

// FeedClient — постраничный клиент внешнего фида каталога.
// Фид отдаёт продукты через GET {baseURL}/products?page=N,
// пустая страница означает конец каталога.
type FeedClient struct {
	cfg        *cfg.FeedCfg
	httpClient *retryablehttp.Client
	logger     logger.Logger
}

func NewFeedClient(cfg *cfg.FeedCfg, logger logger.Logger) *FeedClient {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.MaxRetries
	client.HTTPClient.Timeout = cfg.RequestTimeout
	client.Logger = nil

	return &FeedClient{
		cfg:        cfg,
		httpClient: client,
		logger:     logger,
	}
}

// FetchPage выкачивает одну страницу фида и маппит её в доменные продукты.
// Битый продукт логируется и пропускается, остальная страница отдаётся как есть.
// После каждого запроса выдерживается пауза PageDelay, щадим внешний API.
func (f *FeedClient) FetchPage(ctx context.Context, page int) (*usecase.FeedPage, error) {
	const op = "FeedClient.FetchPage"

	url := fmt.Sprintf("%s/products?with=attributes,categories,priceRange&page=%d",
		strings.TrimRight(f.cfg.BaseURL, "/"), page)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, e.Wrap(op, e.ErrFeedUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Wrap(op, fmt.Errorf("%w: unexpected status %d", e.ErrFeedUnavailable, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var raw rawFeedResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, e.Wrap(op, err)
	}

	products := make([]domain.Product, 0, len(raw.Entities))
	for _, entity := range raw.Entities {
		product, err := entity.toDomain()
		if err != nil {
			f.logger.Warnf("%s: malformed feed product %d skipped: %v", op, entity.ID, err)
			continue
		}
		products = append(products, *product)
	}

	hasMore := len(raw.Entities) > 0
	if raw.Pagination.Last > 0 {
		hasMore = raw.Pagination.Current < raw.Pagination.Last
	}

	// Пауза между страницами, кроме последней.
	if hasMore && f.cfg.PageDelay > 0 {
		select {
		case <-time.After(f.cfg.PageDelay):
		case <-ctx.Done():
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	return &usecase.FeedPage{
		Products: products,
		HasMore:  hasMore,
	}, nil
}

type rawFeedResponse struct {
	Entities   []rawFeedProduct `json:"entities"`
	Pagination rawPagination    `json:"pagination"`
}

type rawPagination struct {
	Current int `json:"current"`
	Last    int `json:"last"`
	Total   int `json:"total"`
}

type rawFeedProduct struct {
	ID          int64                   `json:"id"`
	Name        string                  `json:"name"`
	Brand       *string                 `json:"brand"`
	Description *string                 `json:"description"`
	PriceRange  rawPriceRange           `json:"priceRange"`
	Categories  [][]rawCategory         `json:"categories"` // вложенные списки, по одному на дерево категорий
	Attributes  map[string]rawAttribute `json:"attributes"`
	Images      []rawImage              `json:"images"`
	CreatedAt   *time.Time              `json:"createdAt"`
	UpdatedAt   *time.Time              `json:"updatedAt"`
}

type rawPriceRange struct {
	Min rawPrice `json:"min"`
}

type rawPrice struct {
	WithTax         int64  `json:"withTax"` // минорные единицы валюты
	OriginalWithTax *int64 `json:"originalWithTax"`
	CurrencyCode    string `json:"currencyCode"`
}

type rawCategory struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	CategorySlug string `json:"categorySlug"`
}

type rawAttribute struct {
	Key    string         `json:"key"`
	Group  *string        `json:"group"`
	Values []rawAttrValue `json:"values"`
}

type rawAttrValue struct {
	Label string `json:"label"`
}

type rawImage struct {
	Hash string `json:"hash"`
	Type string `json:"type"`
}

// toDomain валидирует сырой продукт фида и собирает доменную сущность.
func (r *rawFeedProduct) toDomain() (*domain.Product, error) {
	if r.ID <= 0 {
		return nil, fmt.Errorf("invalid product id %d", r.ID)
	}
	if r.Name == "" {
		return nil, fmt.Errorf("empty product name")
	}
	if r.PriceRange.Min.WithTax < 0 {
		return nil, fmt.Errorf("negative price %d", r.PriceRange.Min.WithTax)
	}

	currency := r.PriceRange.Min.CurrencyCode
	if currency == "" {
		currency = "EUR"
	}

	price := domain.Price{
		Amount:          r.PriceRange.Min.WithTax,
		Currency:        currency,
		OriginalAmount:  r.PriceRange.Min.OriginalWithTax,
		DiscountPercent: discountPercent(r.PriceRange.Min.WithTax, r.PriceRange.Min.OriginalWithTax),
	}

	product := domain.NewProduct(r.ID, r.Name, r.Brand, r.Description, price)
	product.Categories = r.domainCategories()
	product.Attributes = r.domainAttributes()
	product.Images = r.domainImages()
	if r.CreatedAt != nil {
		product.CreatedAt = *r.CreatedAt
	}
	product.UpdatedAt = r.UpdatedAt

	return product, nil
}

// domainCategories сплющивает вложенные списки категорий фида в один,
// отбрасывая дубликаты и записи без валидного ID или имени.
func (r *rawFeedProduct) domainCategories() []domain.Category {
	if len(r.Categories) == 0 {
		return nil
	}

	seen := make(map[int64]struct{})
	categories := make([]domain.Category, 0, len(r.Categories))
	for _, tree := range r.Categories {
		for _, cat := range tree {
			if cat.CategoryID <= 0 || cat.CategoryName == "" {
				continue
			}
			if _, ok := seen[cat.CategoryID]; ok {
				continue
			}
			seen[cat.CategoryID] = struct{}{}

			categories = append(categories, domain.Category{
				ID:   cat.CategoryID,
				Name: cat.CategoryName,
				Slug: cat.CategorySlug,
			})
		}
	}

	return categories
}

// domainAttributes разворачивает атрибуты фида в упорядоченный список.
// Ключи сортируются, чтобы порядок не зависел от обхода map.
func (r *rawFeedProduct) domainAttributes() []domain.Attribute {
	if len(r.Attributes) == 0 {
		return nil
	}

	names := make([]string, 0, len(r.Attributes))
	for name := range r.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]domain.Attribute, 0, len(names))
	for _, name := range names {
		attr := r.Attributes[name]

		key := attr.Key
		if key == "" {
			key = name
		}

		labels := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			if v.Label != "" {
				labels = append(labels, v.Label)
			}
		}
		if len(labels) == 0 {
			continue
		}

		attrs = append(attrs, domain.Attribute{
			Key:   key,
			Value: strings.Join(labels, ", "),
			Group: attr.Group,
		})
	}

	return attrs
}

func (r *rawFeedProduct) domainImages() []domain.Image {
	images := make([]domain.Image, 0, len(r.Images))
	for _, img := range r.Images {
		if img.Hash == "" {
			continue
		}

		imgType := img.Type
		if imgType == "" {
			imgType = "standard"
		}

		images = append(images, domain.Image{
			URL:  fmt.Sprintf("%s/%s", imageCDNBase, img.Hash),
			Type: imgType,
		})
	}

	return images
}

// discountPercent считает процент скидки по текущей и исходной цене.
// Деньги считаем через decimal, чтобы не ловить артефакты float-арифметики.
func discountPercent(amount int64, original *int64) *float64 {
	if original == nil || *original <= 0 || amount >= *original {
		return nil
	}

	cur := decimal.NewFromInt(amount)
	orig := decimal.NewFromInt(*original)

	percent := decimal.NewFromInt(1).
		Sub(cur.Div(orig)).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()

	return &percent
}
