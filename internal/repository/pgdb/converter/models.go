package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
// Цена хранится развёрнутой в колонки, в минорных единицах валюты.
type ProductModel struct {
	ID              int64      `db:"id"`
	Name            string     `db:"name"`
	Brand           *string    `db:"brand"`
	Description     *string    `db:"description"`
	PriceAmount     int64      `db:"price_amount"`
	Currency        string     `db:"currency"`
	OriginalAmount  *int64     `db:"original_amount"`
	DiscountPercent *float64   `db:"discount_percent"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       *time.Time `db:"updated_at"`
}

// CategoryModel представляет запись таблицы categories в PostgreSQL.
type CategoryModel struct {
	ID       int64  `db:"id"`
	Name     string `db:"name"`
	Slug     string `db:"slug"`
	ParentID *int64 `db:"parent_id"`
	Level    int    `db:"level"`
}
