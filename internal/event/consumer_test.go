package event

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/pkg/kafka"
)

type mockPurchaseRepo struct {
	mock.Mock
}

func (m *mockPurchaseRepo) GetOrderItem(ctx context.Context, buyerID, productID string) (*domain.PurchasedItem, error) {
	args := m.Called(ctx, buyerID, productID)
	if item := args.Get(0); item != nil {
		return item.(*domain.PurchasedItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockPurchaseRepo) Upsert(ctx context.Context, item *domain.PurchasedItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockPurchaseRepo) SetOrderStatus(ctx context.Context, orderID, status string) error {
	args := m.Called(ctx, orderID, status)
	return args.Error(0)
}

type mockProductRepo struct {
	mock.Mock
}

func (m *mockProductRepo) GetByID(ctx context.Context, id string) (*domain.ProductSummary, error) {
	args := m.Called(ctx, id)
	if p := args.Get(0); p != nil {
		return p.(*domain.ProductSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProductRepo) Upsert(ctx context.Context, product *domain.ProductSummary) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func newHandlers(purchases *mockPurchaseRepo, products *mockProductRepo) *ReadModelHandlers {
	return NewReadModelHandlers(purchases, products, slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func mustEvent(t *testing.T, eventType string, data any) *kafka.Event {
	t.Helper()
	ev, err := kafka.NewEvent(eventType, "agg-1", "order", "order-service", data)
	require.NoError(t, err)
	return ev
}

func TestHandleOrderCreated(t *testing.T) {
	purchases := new(mockPurchaseRepo)
	products := new(mockProductRepo)
	h := newHandlers(purchases, products)

	purchases.On("Upsert", mock.Anything, &domain.PurchasedItem{
		OrderID:     "ord-1",
		OrderItemID: "item-1",
		BuyerID:     "buyer-1",
		ProductID:   "prod-1",
		OrderStatus: "PENDING",
	}).Return(nil)
	purchases.On("Upsert", mock.Anything, &domain.PurchasedItem{
		OrderID:     "ord-1",
		OrderItemID: "item-2",
		BuyerID:     "buyer-1",
		ProductID:   "prod-2",
		OrderStatus: "PENDING",
	}).Return(nil)

	ev := mustEvent(t, "order.created", OrderCreatedData{
		OrderID: "ord-1",
		BuyerID: "buyer-1",
		Status:  "PENDING",
		Items: []OrderItemData{
			{OrderItemID: "item-1", ProductID: "prod-1", Quantity: 1},
			{OrderItemID: "item-2", ProductID: "prod-2", Quantity: 3},
		},
	})

	err := h.HandleOrderCreated(context.Background(), ev)
	require.NoError(t, err)
	purchases.AssertExpectations(t)
}

func TestHandleOrderStatusChanged(t *testing.T) {
	purchases := new(mockPurchaseRepo)
	products := new(mockProductRepo)
	h := newHandlers(purchases, products)

	purchases.On("SetOrderStatus", mock.Anything, "ord-1", "DELIVERED").Return(nil)

	ev := mustEvent(t, "order.status_changed", OrderStatusChangedData{
		OrderID: "ord-1",
		Status:  "DELIVERED",
	})

	err := h.HandleOrderStatusChanged(context.Background(), ev)
	require.NoError(t, err)
	purchases.AssertExpectations(t)
}

func TestHandleProductEvent(t *testing.T) {
	purchases := new(mockPurchaseRepo)
	products := new(mockProductRepo)
	h := newHandlers(purchases, products)

	products.On("Upsert", mock.Anything, &domain.ProductSummary{
		ID:       "prod-1",
		SellerID: "seller-1",
		Name:     "Walnut Desk",
	}).Return(nil)

	ev := mustEvent(t, "product.created", ProductEventData{
		ProductID: "prod-1",
		SellerID:  "seller-1",
		Name:      "Walnut Desk",
	})

	err := h.HandleProductEvent(context.Background(), ev)
	require.NoError(t, err)
	products.AssertExpectations(t)
}

func TestHandleOrderCreatedMalformedData(t *testing.T) {
	purchases := new(mockPurchaseRepo)
	products := new(mockProductRepo)
	h := newHandlers(purchases, products)

	ev := mustEvent(t, "order.created", "not an object")

	err := h.HandleOrderCreated(context.Background(), ev)
	assert.Error(t, err)
	purchases.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}
