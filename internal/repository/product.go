package repository

import (
	"context"
	"fmt"

	"restmold/internal/database"
	"restmold/internal/models"
)

// ProductSchema maps models.Product onto the products table.
func ProductSchema() Schema[models.Product] {
	return Schema[models.Product]{
		Table:    "products",
		IDColumn: "id",
		Columns: []string{
			"id", "name", "department", "price", "weight", "created_at", "updated_at",
		},
		Fields: func(p *models.Product) []any {
			return []any{&p.ID, &p.Name, &p.Department, &p.Price, &p.Weight, &p.CreatedAt, &p.UpdatedAt}
		},
		InsertColumns: []string{"name", "department", "price", "weight"},
		InsertValues: func(p models.Product) []any {
			return []any{p.Name, p.Department, p.Price, p.Weight}
		},
		UpdatedAtColumn: "updated_at",
	}
}

// ProductRepository adds product-specific queries on top of the generic CRUD
// set.
type ProductRepository struct {
	*Repository[models.Product, int64]
	q database.Querier
}

// NewProductRepository binds a product repository to a session.
func NewProductRepository(session *database.Session) (*ProductRepository, error) {
	base, err := New[models.Product, int64](ProductSchema(), session)
	if err != nil {
		return nil, err
	}
	return &ProductRepository{Repository: base, q: session}, nil
}

// NewProductReader binds a read-only product repository to the pool.
func NewProductReader(q database.Querier) (*ProductRepository, error) {
	base, err := NewReadOnly[models.Product, int64](ProductSchema(), q)
	if err != nil {
		return nil, err
	}
	return &ProductRepository{Repository: base, q: q}, nil
}

const productColumns = "id, name, department, price, weight, created_at, updated_at"

// Search lists products whose name matches the term, optionally narrowed to
// one department.
func (r *ProductRepository) Search(ctx context.Context, term, department string, page Page) ([]models.Product, error) {
	filters := Filters{Match("name", "%"+term+"%")}
	if department != "" {
		filters = append(filters, Eq("department", department))
	}
	return r.Filter(ctx, filters, page)
}

// ByPriceRange lists products priced within [min, max] inclusive, cheapest
// first.
func (r *ProductRepository) ByPriceRange(ctx context.Context, min, max float64, page Page) ([]models.Product, error) {
	sql := fmt.Sprintf("SELECT %s FROM products WHERE price >= $1 AND price <= $2 ORDER BY price", productColumns)
	if page.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", page.Limit)
	}
	if page.Offset > 0 {
		sql += fmt.Sprintf(" OFFSET %d", page.Offset)
	}

	rows, err := r.q.Query(ctx, sql, min, max)
	if err != nil {
		return nil, fmt.Errorf("listing products by price range: %w", err)
	}
	return r.collect(rows)
}
