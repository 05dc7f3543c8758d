package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"perfumevisual/internal/domain"
	"perfumevisual/internal/infra"
	"perfumevisual/internal/sqlinline"
)

// ProductRepositoryPG implements domain.ProductRepository on the scraped
// catalog table.
type ProductRepositoryPG struct {
	db infra.SQLExecutor
}

// NewProductRepository constructs a product repository.
func NewProductRepository(db infra.SQLExecutor) *ProductRepositoryPG {
	return &ProductRepositoryPG{db: db}
}

// List returns every product, most recently parsed first.
func (r *ProductRepositoryPG) List(ctx context.Context) ([]domain.Product, error) {
	return r.query(ctx, sqlinline.QListProducts)
}

// ListPendingStyling returns products that have a main image but no styled
// image, skipping the ids in exclude.
func (r *ProductRepositoryPG) ListPendingStyling(ctx context.Context, limit int, exclude []int64) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 1
	}
	if exclude == nil {
		// any() over a null array would filter out every row.
		exclude = []int64{}
	}
	return r.query(ctx, sqlinline.QListProductsPendingStyling, limit, exclude)
}

// Get fetches one product.
func (r *ProductRepositoryPG) Get(ctx context.Context, id int64) (*domain.Product, error) {
	row := r.db.QueryRow(ctx, sqlinline.QSelectProductByID, id)
	product, err := scanProduct(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("products: get %d: %w", id, err)
	}
	return product, nil
}

// UpdateImagePath stores the main image file name.
func (r *ProductRepositoryPG) UpdateImagePath(ctx context.Context, id int64, filename string) error {
	return r.update(ctx, sqlinline.QUpdateProductImagePath, id, filename)
}

// UpdateStyledImagePath stores the styled image file name.
func (r *ProductRepositoryPG) UpdateStyledImagePath(ctx context.Context, id int64, filename string) error {
	return r.update(ctx, sqlinline.QUpdateProductStyledImagePath, id, filename)
}

// UpdateVideoPath stores the video file name.
func (r *ProductRepositoryPG) UpdateVideoPath(ctx context.Context, id int64, filename string) error {
	return r.update(ctx, sqlinline.QUpdateProductVideoPath, id, filename)
}

func (r *ProductRepositoryPG) update(ctx context.Context, query string, id int64, filename string) error {
	tag, err := r.db.Exec(ctx, query, id, filename)
	if err != nil {
		return fmt.Errorf("products: update %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProductRepositoryPG) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("products: list: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("products: scan: %w", err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("products: iterate: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(
		&p.ID,
		&p.Brand,
		&p.Name,
		&p.ProductURL,
		&p.FragranticaURL,
		&p.Description,
		&p.ImagePath,
		&p.StyledImagePath,
		&p.VideoPath,
		&p.ParsedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

var _ domain.ProductRepository = (*ProductRepositoryPG)(nil)
