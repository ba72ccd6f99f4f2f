//go:generate goverter gen github.com/genai-ecommerce/go-backend/internal/repository/pgdb/converter
package converter

import (
	"time"

	"github.com/genai-ecommerce/go-backend/internal/domain"
)

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
// Атрибуты и изображения хранятся в отдельных таблицах и проставляются репозиторием.
// goverter:converter
// goverter:extend ConvertTime
// goverter:extend ConvertPointerTime
type ProductConverter interface {
	// goverter:map Price.Amount PriceAmount
	// goverter:map Price.Currency Currency
	// goverter:map Price.OriginalAmount OriginalAmount
	// goverter:map Price.DiscountPercent DiscountPercent
	ToModel(entity *domain.Product) *ProductModel
	// goverter:map PriceAmount Price.Amount
	// goverter:map Currency Price.Currency
	// goverter:map OriginalAmount Price.OriginalAmount
	// goverter:map DiscountPercent Price.DiscountPercent
	// goverter:ignore Categories Attributes Images
	ToEntity(model *ProductModel) *domain.Product
}

// CategoryConverter преобразует сущности Category между domain и моделью PostgreSQL.
// goverter:converter
type CategoryConverter interface {
	ToModel(entity *domain.Category) *CategoryModel
	ToEntity(model *CategoryModel) *domain.Category
}

func ConvertPointerTime(t *time.Time) *time.Time {
	return t
}

func ConvertTime(t time.Time) time.Time {
	return t
}
