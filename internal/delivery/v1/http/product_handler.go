package http

import (
	"net/http"
	"time"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/logger"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ProductHandler struct {
	catalogUsecase usecase.CatalogUC
	logger         logger.Logger
}

func NewProductHandler(catalogUsecase usecase.CatalogUC, logger logger.Logger) *ProductHandler {
	return &ProductHandler{catalogUsecase: catalogUsecase, logger: logger}
}

type ProductBriefResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Brand    string `json:"brand,omitempty"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
}

type ListProductsResponse struct {
	Products []ProductBriefResponse `json:"products"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}

type PriceResponse struct {
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	OriginalAmount  *int64   `json:"original_amount,omitempty"`
	DiscountPercent *float64 `json:"discount_percent,omitempty"`
}

type CategoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type AttributeResponse struct {
	Key   string  `json:"key"`
	Value string  `json:"value"`
	Group *string `json:"group,omitempty"`
}

type ImageResponse struct {
	URL       string  `json:"url"`
	Type      string  `json:"type"`
	ObjectKey *string `json:"object_key,omitempty"`
}

type ProductResponse struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Brand       *string             `json:"brand,omitempty"`
	Description *string             `json:"description,omitempty"`
	Price       PriceResponse       `json:"price"`
	Categories  []CategoryResponse  `json:"categories"`
	Attributes  []AttributeResponse `json:"attributes"`
	Images      []ImageResponse     `json:"images"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   *time.Time          `json:"updated_at,omitempty"`
}

type IngestResponse struct {
	Pages    int `json:"pages"`
	Products int `json:"products"`
}

// listProducts
//
//	@Summary		Список продуктов
//	@Description	Возвращает страницу каталога, отсортированную по ID
//	@Tags			products
//	@Produce		json
//	@Param			page		query		int	false	"Номер страницы (с 1)"
//	@Param			page_size	query		int	false	"Размер страницы (1..100)"
//	@Success		200			{object}	ListProductsResponse
//	@Failure		400			{object}	ErrorResponse	"Некорректная пагинация"
//	@Router			/products [get]
func (p *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, err := parseQueryInt(r, "page", 1)
	if err != nil {
		WriteError(w, e.ErrInvalidPage)
		return
	}
	pageSize, err := parseQueryInt(r, "page_size", defaultPageSize)
	if err != nil {
		WriteError(w, e.ErrInvalidPage)
		return
	}

	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		WriteError(w, e.ErrInvalidPage)
		return
	}

	res, err := p.catalogUsecase.ListProducts(r.Context(), &usecase.ListProductsReq{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		p.logger.Warnf("list products failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, ListProductsResponse{
		Products: toBriefResponses(res.Products),
		Total:    res.Total,
		Page:     page,
		PageSize: pageSize,
	})
}

// getProduct
//
//	@Summary		Карточка продукта
//	@Description	Возвращает продукт с категориями, атрибутами и изображениями
//	@Tags			products
//	@Produce		json
//	@Param			id	path		int	true	"ID продукта"
//	@Success		200	{object}	ProductResponse
//	@Failure		400	{object}	ErrorResponse	"Некорректный ID"
//	@Failure		404	{object}	ErrorResponse	"Продукт не найден"
//	@Router			/products/{id} [get]
func (p *ProductHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteError(w, err)
		return
	}

	detail, err := p.catalogUsecase.GetProduct(r.Context(), id)
	if err != nil {
		p.logger.Warnf("get product %d failed: %s", id, err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, toProductResponse(&detail.Product))
}

// ingestCatalog
//
//	@Summary		Инжест каталога
//	@Description	Выкачивает внешний фид и замещает продукты каталога
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	IngestResponse
//	@Failure		409	{object}	ErrorResponse	"Инжест уже идёт"
//	@Failure		502	{object}	ErrorResponse	"Фид недоступен"
//	@Router			/catalog/ingest [post]
func (p *ProductHandler) ingestCatalog(w http.ResponseWriter, r *http.Request) {
	res, err := p.catalogUsecase.IngestCatalog(r.Context())
	if err != nil {
		p.logger.Warnf("catalog ingestion failed: %s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, IngestResponse{
		Pages:    res.Pages,
		Products: res.Products,
	})
}

func toBriefResponses(infos []usecase.ProductInfo) []ProductBriefResponse {
	briefs := make([]ProductBriefResponse, 0, len(infos))
	for _, info := range infos {
		briefs = append(briefs, ProductBriefResponse{
			ID:       info.ID,
			Name:     info.Name,
			Brand:    info.Brand,
			Price:    info.Price,
			Currency: info.Currency,
		})
	}

	return briefs
}

func toProductResponse(product *domain.Product) ProductResponse {
	categories := make([]CategoryResponse, 0, len(product.Categories))
	for _, cat := range product.Categories {
		categories = append(categories, CategoryResponse{
			ID:   cat.ID,
			Name: cat.Name,
			Slug: cat.Slug,
		})
	}

	attrs := make([]AttributeResponse, 0, len(product.Attributes))
	for _, attr := range product.Attributes {
		attrs = append(attrs, AttributeResponse{
			Key:   attr.Key,
			Value: attr.Value,
			Group: attr.Group,
		})
	}

	images := make([]ImageResponse, 0, len(product.Images))
	for _, img := range product.Images {
		images = append(images, ImageResponse{
			URL:       img.URL,
			Type:      img.Type,
			ObjectKey: img.ObjectKey,
		})
	}

	return ProductResponse{
		ID:          product.ID,
		Name:        product.Name,
		Brand:       product.Brand,
		Description: product.Description,
		Price: PriceResponse{
			Amount:          product.Price.Amount,
			Currency:        product.Price.Currency,
			OriginalAmount:  product.Price.OriginalAmount,
			DiscountPercent: product.Price.DiscountPercent,
		},
		Categories: categories,
		Attributes: attrs,
		Images:     images,
		CreatedAt:  product.CreatedAt,
		UpdatedAt:  product.UpdatedAt,
	}
}
