package domain

import (
	"math"
	"time"
)

// ReviewStatus is the moderation state of a review. Reviews enter the system
// as pending and only approved reviews are publicly visible or counted in
// product rating aggregates.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known moderation state.
func (s ReviewStatus) Valid() bool {
	switch s {
	case ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected:
		return true
	}
	return false
}

// Review is a buyer's review of a product. A buyer may hold at most one
// review per product.
type Review struct {
	ID                string        `json:"id"`
	ProductID         string        `json:"product_id"`
	BuyerID           string        `json:"buyer_id"`
	OrderID           *string       `json:"order_id,omitempty"`
	OrderItemID       *string       `json:"order_item_id,omitempty"`
	Rating            int           `json:"rating"`
	Title             string        `json:"title"`
	Comment           string        `json:"comment"`
	Status            ReviewStatus  `json:"status"`
	VerifiedPurchase  bool          `json:"verified_purchase"`
	HelpfulCount      int           `json:"helpful_count"`
	SellerResponse    *string       `json:"seller_response,omitempty"`
	SellerRespondedAt *time.Time    `json:"seller_responded_at,omitempty"`
	Images            []ReviewImage `json:"images,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// CanEdit reports whether the review is still inside the edit window at the
// given instant. The window is measured from creation and is inclusive: an
// edit exactly at the boundary is allowed.
func (r *Review) CanEdit(now time.Time, window time.Duration) bool {
	return !now.After(r.CreatedAt.Add(window))
}

// ReviewImage is a photo attached to a review. DisplayOrder controls
// presentation order within the review.
type ReviewImage struct {
	ID           string    `json:"id"`
	ReviewID     string    `json:"review_id"`
	URL          string    `json:"url"`
	AltText      string    `json:"alt_text,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}

// HelpfulVote records that a user found a review helpful. One vote per user
// per review.
type HelpfulVote struct {
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingStats summarizes approved reviews for a product. AverageRating is
// rounded to one decimal place; Histogram maps each star value 1..5 to its
// review count.
type RatingStats struct {
	AverageRating float64     `json:"average_rating"`
	TotalCount    int         `json:"total_count"`
	Histogram     map[int]int `json:"histogram"`
}

// ProductSummary is the locally materialized view of a product, fed by
// product events and updated by rating recomputation. Rating holds the mean
// of approved review ratings rounded to two decimal places.
type ProductSummary struct {
	ID          string    `json:"id"`
	SellerID    string    `json:"seller_id"`
	Name        string    `json:"name"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Order lifecycle states relevant to review eligibility. Only items from
// delivered orders qualify for review.
const OrderStatusDelivered = "DELIVERED"

// PurchasedItem is the locally materialized record of an order line, fed by
// order events. It backs the verified-purchase and review-eligibility checks.
type PurchasedItem struct {
	OrderID     string    `json:"order_id"`
	OrderItemID string    `json:"order_item_id"`
	BuyerID     string    `json:"buyer_id"`
	ProductID   string    `json:"product_id"`
	OrderStatus string    `json:"order_status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Delivered reports whether the item's order has been delivered.
func (p *PurchasedItem) Delivered() bool {
	return p.OrderStatus == OrderStatusDelivered
}

// RoundRating rounds a mean rating to two decimal places, matching the
// precision stored on the product read model.
func RoundRating(v float64) float64 {
	return math.Round(v*100) / 100
}
