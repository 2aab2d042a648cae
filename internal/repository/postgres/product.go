package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/pkg/database"
	apperrors "github.com/ecomstack/review-service/pkg/errors"
)

// ProductRepository stores the product read model, fed by product events from
// the catalog service. The rating and review_count columns are owned by this
// service and recomputed from approved reviews.
type ProductRepository struct {
	db database.DBTX
}

func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

const getProductQuery = `
	SELECT id, seller_id, name, rating, review_count, updated_at
	FROM products
	WHERE id = $1`

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.ProductSummary, error) {
	ctx, end := database.TraceQuery(ctx, "ProductRepository.GetByID", getProductQuery)
	var err error
	defer func() { end(err) }()

	var p domain.ProductSummary
	err = r.db.QueryRow(ctx, getProductQuery, id).Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Rating, &p.ReviewCount, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("product", id)
			return nil, err
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

const upsertProductQuery = `
	INSERT INTO products (id, seller_id, name)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET seller_id = EXCLUDED.seller_id, name = EXCLUDED.name, updated_at = now()`

// Upsert creates or refreshes the product row. Rating columns are left alone:
// they belong to the recompute path, not the event feed.
func (r *ProductRepository) Upsert(ctx context.Context, product *domain.ProductSummary) error {
	ctx, end := database.TraceQuery(ctx, "ProductRepository.Upsert", upsertProductQuery)
	var err error
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, upsertProductQuery, product.ID, product.SellerID, product.Name); err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
