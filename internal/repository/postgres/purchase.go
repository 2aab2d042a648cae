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

// PurchaseRepository stores the purchased-items read model, fed by order
// events. It backs the delivered-order eligibility check for review writes.
type PurchaseRepository struct {
	db database.DBTX
}

func NewPurchaseRepository(db database.DBTX) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

const getOrderItemQuery = `
	SELECT order_id, order_item_id, buyer_id, product_id, order_status, updated_at
	FROM purchased_items
	WHERE buyer_id = $1 AND product_id = $2
	ORDER BY (order_status = 'DELIVERED') DESC, updated_at DESC
	LIMIT 1`

// GetOrderItem returns the buyer's most relevant order line for the product,
// preferring delivered lines so one delivered purchase among many qualifies.
func (r *PurchaseRepository) GetOrderItem(ctx context.Context, buyerID, productID string) (*domain.PurchasedItem, error) {
	ctx, end := database.TraceQuery(ctx, "PurchaseRepository.GetOrderItem", getOrderItemQuery)
	var err error
	defer func() { end(err) }()

	var item domain.PurchasedItem
	err = r.db.QueryRow(ctx, getOrderItemQuery, buyerID, productID).Scan(
		&item.OrderID, &item.OrderItemID, &item.BuyerID, &item.ProductID, &item.OrderStatus, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("order item", productID)
			return nil, err
		}
		return nil, fmt.Errorf("get order item: %w", err)
	}
	return &item, nil
}

const upsertOrderItemQuery = `
	INSERT INTO purchased_items (order_id, order_item_id, buyer_id, product_id, order_status)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (order_id, order_item_id) DO UPDATE
	SET order_status = EXCLUDED.order_status, updated_at = now()`

func (r *PurchaseRepository) Upsert(ctx context.Context, item *domain.PurchasedItem) error {
	ctx, end := database.TraceQuery(ctx, "PurchaseRepository.Upsert", upsertOrderItemQuery)
	var err error
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, upsertOrderItemQuery,
		item.OrderID, item.OrderItemID, item.BuyerID, item.ProductID, item.OrderStatus,
	); err != nil {
		return fmt.Errorf("upsert order item: %w", err)
	}
	return nil
}

const setOrderStatusQuery = `
	UPDATE purchased_items
	SET order_status = $2, updated_at = now()
	WHERE order_id = $1`

// SetOrderStatus updates every line of the order. Status events can arrive
// for orders this service never saw the creation of; zero rows is not an
// error.
func (r *PurchaseRepository) SetOrderStatus(ctx context.Context, orderID, status string) error {
	ctx, end := database.TraceQuery(ctx, "PurchaseRepository.SetOrderStatus", setOrderStatusQuery)
	var err error
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, setOrderStatusQuery, orderID, status); err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	return nil
}
