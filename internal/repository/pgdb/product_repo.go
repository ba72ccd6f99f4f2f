package pgdb

import (
	"context"
	"errors"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/internal/repository/pgdb/converter"
	"github.com/genai-ecommerce/go-backend/internal/usecase"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert полностью замещает продукт: строка products апсертится по ID,
// атрибуты и изображения перезаписываются целиком с сохранением порядка.
// Выполняется внутри транзакции инжеста.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO products (id, name, brand, description, price_amount, currency, original_amount, discount_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			description = EXCLUDED.description,
			price_amount = EXCLUDED.price_amount,
			currency = EXCLUDED.currency,
			original_amount = EXCLUDED.original_amount,
			discount_percent = EXCLUDED.discount_percent,
			updated_at = NOW()
	`

	_, err = tx.Exec(ctx, query,
		product.ID, product.Name, product.Brand, product.Description,
		product.Price.Amount, product.Price.Currency,
		product.Price.OriginalAmount, product.Price.DiscountPercent,
	)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if _, err = tx.Exec(ctx, `DELETE FROM attributes WHERE product_id = $1`, product.ID); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	for i, attr := range product.Attributes {
		_, err = tx.Exec(ctx,
			`INSERT INTO attributes (product_id, position, key, value, attr_group) VALUES ($1, $2, $3, $4, $5)`,
			product.ID, i, attr.Key, attr.Value, attr.Group,
		)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	if _, err = tx.Exec(ctx, `DELETE FROM images WHERE product_id = $1`, product.ID); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	for i, img := range product.Images {
		_, err = tx.Exec(ctx,
			`INSERT INTO images (product_id, position, url, type, object_key) VALUES ($1, $2, $3, $4, $5)`,
			product.ID, i, img.URL, img.Type, img.ObjectKey,
		)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}

// GetByID возвращает полную карточку продукта с атрибутами и изображениями.
func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT id, name, brand, description, price_amount, currency, original_amount, discount_percent, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var model converter.ProductModel
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&model.ID, &model.Name, &model.Brand, &model.Description,
		&model.PriceAmount, &model.Currency, &model.OriginalAmount, &model.DiscountPercent,
		&model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrProductNotFound)
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	product := p.conv.ToEntity(&model)

	if product.Categories, err = p.loadCategories(ctx, id); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if product.Attributes, err = p.loadAttributes(ctx, id); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if product.Images, err = p.loadImages(ctx, id); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return product, nil
}

// GetProductsInfo возвращает краткую информацию о продуктах по их идентификаторам.
func (p *ProductRepo) GetProductsInfo(ctx context.Context, ids []int64) ([]usecase.ProductInfo, error) {
	query := `
		SELECT id, name, COALESCE(brand, ''), price_amount, currency
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0)
	for rows.Next() {
		var info usecase.ProductInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Brand, &info.Price, &info.Currency); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, info)
	}

	return result, nil
}

// List возвращает страницу каталога в стабильном порядке по ID и общее число продуктов.
func (p *ProductRepo) List(ctx context.Context, limit, offset int) ([]usecase.ProductInfo, int64, error) {
	var total int64
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		SELECT id, name, COALESCE(brand, ''), price_amount, currency
		FROM products
		ORDER BY id
		LIMIT $1 OFFSET $2
	`

	rows, err := p.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductInfo, 0, limit)
	for rows.Next() {
		var info usecase.ProductInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Brand, &info.Price, &info.Currency); err != nil {
			return nil, 0, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, info)
	}

	return result, total, nil
}

// GetAll выгружает полный снапшот каталога для обучения рекомендательных движков.
// Продукты, атрибуты и изображения читаются тремя запросами внутри read-only
// транзакции уровня REPEATABLE READ: конкурентный инжест не может подмешать
// в снапшот новую строку продукта со старыми атрибутами.
func (p *ProductRepo) GetAll(ctx context.Context) ([]domain.Product, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer tx.Rollback(ctx)

	query := `
		SELECT id, name, brand, description, price_amount, currency, original_amount, discount_percent, created_at, updated_at
		FROM products
		ORDER BY id
	`

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(
			&model.ID, &model.Name, &model.Brand, &model.Description,
			&model.PriceAmount, &model.Currency, &model.OriginalAmount, &model.DiscountPercent,
			&model.CreatedAt, &model.UpdatedAt,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		index[model.ID] = len(products)
		products = append(products, *p.conv.ToEntity(&model))
	}
	rows.Close()

	attrRows, err := tx.Query(ctx,
		`SELECT product_id, key, value, attr_group FROM attributes ORDER BY product_id, position`)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var (
			productID int64
			attr      domain.Attribute
		)
		if err := attrRows.Scan(&productID, &attr.Key, &attr.Value, &attr.Group); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if i, ok := index[productID]; ok {
			products[i].Attributes = append(products[i].Attributes, attr)
		}
	}
	attrRows.Close()

	imgRows, err := tx.Query(ctx,
		`SELECT product_id, url, type, object_key FROM images ORDER BY product_id, position`)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer imgRows.Close()

	for imgRows.Next() {
		var (
			productID int64
			img       domain.Image
		)
		if err := imgRows.Scan(&productID, &img.URL, &img.Type, &img.ObjectKey); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if i, ok := index[productID]; ok {
			products[i].Images = append(products[i].Images, img)
		}
	}
	imgRows.Close()

	catRows, err := tx.Query(ctx, `
		SELECT pc.product_id, c.id, c.name, c.slug, c.parent_id, c.level
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		ORDER BY pc.product_id, pc.position
	`)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer catRows.Close()

	for catRows.Next() {
		var (
			productID int64
			cat       domain.Category
		)
		if err := catRows.Scan(&productID, &cat.ID, &cat.Name, &cat.Slug, &cat.ParentID, &cat.Level); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		if i, ok := index[productID]; ok {
			products[i].Categories = append(products[i].Categories, cat)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return products, nil
}

func (p *ProductRepo) loadCategories(ctx context.Context, productID int64) ([]domain.Category, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.id, c.name, c.slug, c.parent_id, c.level
		FROM product_categories pc
		JOIN categories c ON c.id = pc.category_id
		WHERE pc.product_id = $1
		ORDER BY pc.position
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0)
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Slug, &cat.ParentID, &cat.Level); err != nil {
			return nil, err
		}
		categories = append(categories, cat)
	}

	return categories, nil
}

func (p *ProductRepo) loadAttributes(ctx context.Context, productID int64) ([]domain.Attribute, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, value, attr_group FROM attributes WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attrs := make([]domain.Attribute, 0)
	for rows.Next() {
		var attr domain.Attribute
		if err := rows.Scan(&attr.Key, &attr.Value, &attr.Group); err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}

	return attrs, nil
}

func (p *ProductRepo) loadImages(ctx context.Context, productID int64) ([]domain.Image, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT url, type, object_key FROM images WHERE product_id = $1 ORDER BY position`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := make([]domain.Image, 0)
	for rows.Next() {
		var img domain.Image
		if err := rows.Scan(&img.URL, &img.Type, &img.ObjectKey); err != nil {
			return nil, err
		}
		images = append(images, img)
	}

	return images, nil
}
