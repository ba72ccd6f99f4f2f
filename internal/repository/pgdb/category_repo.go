package pgdb

import (
	"context"

	"github.com/genai-ecommerce/go-backend/internal/domain"
	"github.com/genai-ecommerce/go-backend/internal/repository/pgdb/converter"
	"github.com/genai-ecommerce/go-backend/pkg/e"
	"github.com/genai-ecommerce/go-backend/pkg/tr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// CategoryRepo реализует репозиторий категорий поверх PostgreSQL.
type CategoryRepo struct {
	pool *pgxpool.Pool
	conv converter.CategoryConverter
}

func NewCategoryRepo(pool *pgxpool.Pool, conv converter.CategoryConverter) *CategoryRepo {
	return &CategoryRepo{pool: pool, conv: conv}
}

// Upsert идемпотентно создаёт категорию фида: ID приходит извне,
// при конфликте обновляются имя, slug и иерархия.
// Выполняется внутри транзакции инжеста.
func (c *CategoryRepo) Upsert(ctx context.Context, category *domain.Category) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO categories (id, name, slug, parent_id, level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			parent_id = EXCLUDED.parent_id,
			level = EXCLUDED.level
	`

	model := c.conv.ToModel(category)
	if _, err := tx.Exec(ctx, query,
		model.ID, model.Name, model.Slug, model.ParentID, model.Level,
	); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// ReplaceProductCategories полностью замещает связи продукта с категориями,
// сохраняя порядок фида. Выполняется внутри транзакции инжеста.
func (c *CategoryRepo) ReplaceProductCategories(ctx context.Context, productID int64, categoryIDs []int64) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM product_categories WHERE product_id = $1`, productID,
	); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	for i, categoryID := range categoryIDs {
		_, err := tx.Exec(ctx,
			`INSERT INTO product_categories (product_id, category_id, position) VALUES ($1, $2, $3)`,
			productID, categoryID, i,
		)
		if err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
	}

	return nil
}
