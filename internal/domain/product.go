package domain

import "time"

// Price описывает цену продукта.
// Суммы хранятся в минорных единицах валюты (копейки/центы).
type Price struct {
	Amount          int64
	Currency        string
	OriginalAmount  *int64
	DiscountPercent *float64
}

// Category — категория каталога. Фид отдаёт плоский список категорий
// продукта; иерархия (parent/level) заполняется, когда фид её сообщает.
type Category struct {
	ID       int64
	Name     string
	Slug     string
	ParentID *int64
	Level    int
}

// Attribute — атрибут продукта (ключ/значение).
// Набор ключей у разных продуктов может не совпадать.
type Attribute struct {
	Key   string
	Value string
	Group *string
}

// Image описывает изображение продукта: URL во внешнем фиде
// и ключ объекта в нашем S3-хранилище после зеркалирования.
type Image struct {
	URL       string
	Type      string
	ObjectKey *string
}

// Product описывает продукт каталога.
// При повторном инжесте запись с тем же ID полностью замещается.
type Product struct {
	ID          int64
	Name        string
	Brand       *string
	Description *string
	Price       Price
	Categories  []Category
	Attributes  []Attribute
	Images      []Image
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

func NewProduct(id int64, name string, brand, description *string, price Price) *Product {
	return &Product{
		ID:          id,
		Name:        name,
		Brand:       brand,
		Description: description,
		Price:       price,
	}
}

// BrandOrEmpty возвращает бренд или пустую строку.
func (p *Product) BrandOrEmpty() string {
	if p.Brand == nil {
		return ""
	}
	return *p.Brand
}

// DescriptionOrEmpty возвращает описание или пустую строку.
func (p *Product) DescriptionOrEmpty() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// CategoryNames возвращает названия категорий продукта в порядке фида.
func (p *Product) CategoryNames() []string {
	names := make([]string, 0, len(p.Categories))
	for _, cat := range p.Categories {
		names = append(names, cat.Name)
	}
	return names
}
