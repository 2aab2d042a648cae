// Package repository defines the persistence interfaces consumed by the
// service layer. Implementations live in the postgres subpackage.
package repository

import (
	"context"

	"github.com/ecomstack/review-service/internal/domain"
)

// Sort orders accepted by ListApproved.
const (
	SortRecent  = "recent"
	SortHelpful = "helpful"
	SortHighest = "highest"
	SortLowest  = "lowest"
)

// ReviewFilter narrows and orders a review listing.
type ReviewFilter struct {
	ProductID string
	Rating    *int
	Sort      string
	Page      int
	PerPage   int
}

// ReviewRepository persists reviews, their images, helpful votes, and the
// materialized product rating. Mutations that change the approved set also
// recompute the product's rating inside the same transaction.
type ReviewRepository interface {
	// Create inserts the review and its images atomically. Returns
	// ErrAlreadyExists if the buyer already reviewed the product.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID loads a review with its images.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// GetByBuyerAndProduct returns the buyer's review of the product, or
	// ErrNotFound.
	GetByBuyerAndProduct(ctx context.Context, buyerID, productID string) (*domain.Review, error)

	// ListApproved returns approved reviews matching the filter plus the
	// total count before pagination.
	ListApproved(ctx context.Context, filter ReviewFilter) ([]domain.Review, int, error)

	// GetRatingStats aggregates approved reviews for the product.
	GetRatingStats(ctx context.Context, productID string) (*domain.RatingStats, error)

	// Update rewrites the review's content, replaces its images, resets it
	// to pending, and recomputes the product rating in one transaction.
	Update(ctx context.Context, review *domain.Review) error

	// Delete removes the review (images and votes cascade) and recomputes
	// the product rating.
	Delete(ctx context.Context, id, productID string) error

	// SetStatus transitions the review from one status to another and
	// recomputes the product rating. Returns the updated review, or
	// ErrConflict when the review is not in the from status.
	SetStatus(ctx context.Context, id string, from, to domain.ReviewStatus) (*domain.Review, error)

	// AddHelpfulVote records a helpful vote. Returns the resulting helpful
	// count and whether the vote was newly created.
	AddHelpfulVote(ctx context.Context, reviewID, userID string) (int, bool, error)

	// SetSellerResponse attaches the seller's response. Returns
	// ErrConflict if a response already exists.
	SetSellerResponse(ctx context.Context, reviewID, response string) (*domain.Review, error)

	// RecomputeProductRating rebuilds the product's rating and review count
	// from approved reviews.
	RecomputeProductRating(ctx context.Context, productID string) error
}

// ProductRepository maintains the product read model fed by product events.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ProductSummary, error)
	Upsert(ctx context.Context, product *domain.ProductSummary) error
}

// PurchaseRepository maintains the purchased-items read model fed by order
// events.
type PurchaseRepository interface {
	// GetOrderItem returns an order line for the buyer and product,
	// preferring delivered lines, or ErrNotFound.
	GetOrderItem(ctx context.Context, buyerID, productID string) (*domain.PurchasedItem, error)
	Upsert(ctx context.Context, item *domain.PurchasedItem) error
	// SetOrderStatus updates the status of every line in the order.
	SetOrderStatus(ctx context.Context, orderID, status string) error
}
