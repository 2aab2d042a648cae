package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/internal/repository"
	"github.com/ecomstack/review-service/pkg/kafka"
)

// Topics consumed by this service.
const (
	TopicOrderCreated       = "ecommerce.order.created"
	TopicOrderStatusChanged = "ecommerce.order.status_changed"
	TopicProductCreated     = "ecommerce.product.created"
	TopicProductUpdated     = "ecommerce.product.updated"
)

// OrderItemData is one line of an order event payload.
type OrderItemData struct {
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	Quantity    int    `json:"quantity"`
}

// OrderCreatedData is the payload of order.created events.
type OrderCreatedData struct {
	OrderID string          `json:"order_id"`
	BuyerID string          `json:"buyer_id"`
	Status  string          `json:"status"`
	Items   []OrderItemData `json:"items"`
}

// OrderStatusChangedData is the payload of order.status_changed events.
type OrderStatusChangedData struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// ProductEventData is the payload of product.created and product.updated
// events.
type ProductEventData struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
	Name      string `json:"name"`
}

// ReadModelHandlers applies order and product events to the local read
// models. Every handler is idempotent so redelivered events are harmless.
type ReadModelHandlers struct {
	purchases repository.PurchaseRepository
	products  repository.ProductRepository
	logger    *slog.Logger
}

func NewReadModelHandlers(
	purchases repository.PurchaseRepository,
	products repository.ProductRepository,
	l *slog.Logger,
) *ReadModelHandlers {
	return &ReadModelHandlers{purchases: purchases, products: products, logger: l}
}

// HandleOrderCreated records each order line in the purchased-items read
// model.
func (h *ReadModelHandlers) HandleOrderCreated(ctx context.Context, ev *kafka.Event) error {
	var data OrderCreatedData
	if err := ev.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.created: %w", err)
	}

	for _, item := range data.Items {
		err := h.purchases.Upsert(ctx, &domain.PurchasedItem{
			OrderID:     data.OrderID,
			OrderItemID: item.OrderItemID,
			BuyerID:     data.BuyerID,
			ProductID:   item.ProductID,
			OrderStatus: data.Status,
		})
		if err != nil {
			return fmt.Errorf("upsert order item %s: %w", item.OrderItemID, err)
		}
	}

	h.logger.DebugContext(ctx, "order recorded",
		slog.String("order_id", data.OrderID),
		slog.Int("items", len(data.Items)),
	)
	return nil
}

// HandleOrderStatusChanged propagates order status transitions. Delivery is
// the transition that unlocks review eligibility.
func (h *ReadModelHandlers) HandleOrderStatusChanged(ctx context.Context, ev *kafka.Event) error {
	var data OrderStatusChangedData
	if err := ev.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.status_changed: %w", err)
	}

	if err := h.purchases.SetOrderStatus(ctx, data.OrderID, data.Status); err != nil {
		return fmt.Errorf("set order status: %w", err)
	}

	h.logger.DebugContext(ctx, "order status updated",
		slog.String("order_id", data.OrderID),
		slog.String("status", data.Status),
	)
	return nil
}

// HandleProductEvent upserts the product read model from product.created and
// product.updated events.
func (h *ReadModelHandlers) HandleProductEvent(ctx context.Context, ev *kafka.Event) error {
	var data ProductEventData
	if err := ev.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product event: %w", err)
	}

	err := h.products.Upsert(ctx, &domain.ProductSummary{
		ID:       data.ProductID,
		SellerID: data.SellerID,
		Name:     data.Name,
	})
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}
	return nil
}
