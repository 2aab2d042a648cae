// Package service implements the review business rules on top of the
// repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/internal/repository"
	apperrors "github.com/ecomstack/review-service/pkg/errors"
)

// EventPublisher receives review lifecycle notifications. Satisfied by
// event.ReviewEventProducer. Publishing happens after the database commit and
// is best-effort.
type EventPublisher interface {
	ReviewSubmitted(ctx context.Context, r *domain.Review)
	ReviewUpdated(ctx context.Context, r *domain.Review)
	ReviewDeleted(ctx context.Context, r *domain.Review)
	ReviewModerated(ctx context.Context, r *domain.Review)
	RatingUpdated(ctx context.Context, p *domain.ProductSummary)
}

// Policy holds the tunable review rules.
type Policy struct {
	EditWindow       time.Duration
	MaxImages        int
	MaxResponseChars int
}

// DefaultPolicy returns the production defaults: a 30 day edit window, five
// images per review, 1000 character seller responses.
func DefaultPolicy() Policy {
	return Policy{
		EditWindow:       30 * 24 * time.Hour,
		MaxImages:        5,
		MaxResponseChars: 1000,
	}
}

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// ReviewService coordinates review operations across the review store, the
// product and purchase read models, and the event stream.
type ReviewService struct {
	reviews   repository.ReviewRepository
	products  repository.ProductRepository
	purchases repository.PurchaseRepository
	events    EventPublisher
	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
}

func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	purchases repository.PurchaseRepository,
	events EventPublisher,
	policy Policy,
	l *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		products:  products,
		purchases: purchases,
		events:    events,
		policy:    policy,
		logger:    l,
		now:       time.Now,
	}
}

// ImageInput describes one image attached to a review submission or edit.
type ImageInput struct {
	URL          string
	AltText      string
	DisplayOrder int
}

// SubmitReviewInput carries a new review.
type SubmitReviewInput struct {
	ProductID string
	BuyerID   string
	Rating    int
	Title     string
	Comment   string
	Images    []ImageInput
}

// EditReviewInput carries a review edit. Images replace the existing set.
type EditReviewInput struct {
	ReviewID string
	BuyerID  string
	Rating   int
	Title    string
	Comment  string
	Images   []ImageInput
}

func (s *ReviewService) buildImages(inputs []ImageInput) []domain.ReviewImage {
	images := make([]domain.ReviewImage, 0, len(inputs))
	for i, in := range inputs {
		order := in.DisplayOrder
		if order == 0 {
			order = i
		}
		images = append(images, domain.ReviewImage{
			ID:           uuid.New().String(),
			URL:          in.URL,
			AltText:      in.AltText,
			DisplayOrder: order,
		})
	}
	return images
}

// SubmitReview creates a pending review. The buyer must have a delivered
// order containing the product and must not have reviewed it before. The
// verified purchase flag is fixed at submission time.
func (s *ReviewService) SubmitReview(ctx context.Context, in SubmitReviewInput) (*domain.Review, error) {
	if len(in.Images) > s.policy.MaxImages {
		return nil, domain.ErrTooManyImages(s.policy.MaxImages)
	}

	if _, err := s.products.GetByID(ctx, in.ProductID); err != nil {
		return nil, err
	}

	item, err := s.purchases.GetOrderItem(ctx, in.BuyerID, in.ProductID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrNotDelivered()
		}
		return nil, err
	}
	if !item.Delivered() {
		return nil, domain.ErrNotDelivered()
	}

	// Friendly pre-check; the unique constraint is the real guard.
	if _, err := s.reviews.GetByBuyerAndProduct(ctx, in.BuyerID, in.ProductID); err == nil {
		return nil, domain.ErrDuplicateReview()
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	review := &domain.Review{
		ID:               uuid.New().String(),
		ProductID:        in.ProductID,
		BuyerID:          in.BuyerID,
		OrderID:          &item.OrderID,
		OrderItemID:      &item.OrderItemID,
		Rating:           in.Rating,
		Title:            in.Title,
		Comment:          in.Comment,
		Status:           domain.ReviewStatusPending,
		VerifiedPurchase: true,
		Images:           s.buildImages(in.Images),
	}

	if err := s.reviews.Create(ctx, review); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review submitted",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
	)
	s.events.ReviewSubmitted(ctx, review)

	return review, nil
}

// EditReview rewrites the buyer's review inside the edit window. Any edit
// resets the review to pending, pulling it from the public listing and the
// product aggregate until re-moderated.
func (s *ReviewService) EditReview(ctx context.Context, in EditReviewInput) (*domain.Review, error) {
	if len(in.Images) > s.policy.MaxImages {
		return nil, domain.ErrTooManyImages(s.policy.MaxImages)
	}

	review, err := s.reviews.GetByID(ctx, in.ReviewID)
	if err != nil {
		return nil, err
	}
	if review.BuyerID != in.BuyerID {
		return nil, domain.ErrNotOwner()
	}
	if !review.CanEdit(s.now(), s.policy.EditWindow) {
		return nil, domain.ErrEditWindowExpired()
	}

	wasApproved := review.Status == domain.ReviewStatusApproved

	review.Rating = in.Rating
	review.Title = in.Title
	review.Comment = in.Comment
	review.Images = s.buildImages(in.Images)

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review updated",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
	)
	s.events.ReviewUpdated(ctx, review)
	if wasApproved {
		s.publishRatingUpdated(ctx, review.ProductID)
	}

	return review, nil
}

// DeleteReview removes the buyer's own review and its images and votes.
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, buyerID string) error {
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.BuyerID != buyerID {
		return domain.ErrNotOwner()
	}

	wasApproved := review.Status == domain.ReviewStatusApproved

	if err := s.reviews.Delete(ctx, reviewID, review.ProductID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "review deleted",
		slog.String("review_id", reviewID),
		slog.String("product_id", review.ProductID),
	)
	s.events.ReviewDeleted(ctx, review)
	if wasApproved {
		s.publishRatingUpdated(ctx, review.ProductID)
	}
	return nil
}

// Moderate approves or rejects a pending review. Approval adds the review to
// the public listing and the product aggregate.
func (s *ReviewService) Moderate(ctx context.Context, reviewID string, approve bool) (*domain.Review, error) {
	to := domain.ReviewStatusRejected
	if approve {
		to = domain.ReviewStatusApproved
	}

	review, err := s.reviews.SetStatus(ctx, reviewID, domain.ReviewStatusPending, to)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "review moderated",
		slog.String("review_id", reviewID),
		slog.String("status", string(to)),
	)
	s.events.ReviewModerated(ctx, review)
	if approve {
		s.publishRatingUpdated(ctx, review.ProductID)
	}

	return review, nil
}

// MarkHelpful records a helpful vote. Repeated votes by the same user are
// no-ops; the returned count reflects the vote table either way.
func (s *ReviewService) MarkHelpful(ctx context.Context, reviewID, userID string) (int, bool, error) {
	return s.reviews.AddHelpfulVote(ctx, reviewID, userID)
}

// SellerRespond attaches the product owner's single response to an approved
// review.
func (s *ReviewService) SellerRespond(ctx context.Context, reviewID, sellerID, response string) (*domain.Review, error) {
	if len(response) == 0 || len(response) > s.policy.MaxResponseChars {
		return nil, apperrors.InvalidInput(fmt.Sprintf("response must be between 1 and %d characters", s.policy.MaxResponseChars))
	}

	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status != domain.ReviewStatusApproved {
		return nil, domain.ErrReviewNotApproved()
	}

	product, err := s.products.GetByID(ctx, review.ProductID)
	if err != nil {
		return nil, err
	}
	if product.SellerID != sellerID {
		return nil, domain.ErrNotProductOwner()
	}

	updated, err := s.reviews.SetSellerResponse(ctx, reviewID, response)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "seller responded",
		slog.String("review_id", reviewID),
		slog.String("product_id", review.ProductID),
	)
	return updated, nil
}

// ListReviewsResult is a page of approved reviews with aggregate statistics.
type ListReviewsResult struct {
	Reviews []domain.Review
	Stats   *domain.RatingStats
	Total   int
	Page    int
	PerPage int
}

// ListReviews returns approved reviews for a product with rating statistics.
// Page defaults to 1, per-page to 20 with a cap of 100.
func (s *ReviewService) ListReviews(ctx context.Context, filter repository.ReviewFilter) (*ListReviewsResult, error) {
	if filter.Rating != nil && (*filter.Rating < 1 || *filter.Rating > 5) {
		return nil, apperrors.InvalidInput("rating filter must be between 1 and 5")
	}
	switch filter.Sort {
	case "", repository.SortRecent, repository.SortHelpful, repository.SortHighest, repository.SortLowest:
	default:
		return nil, apperrors.InvalidInput("sort must be one of recent, helpful, highest, lowest")
	}
	if filter.Sort == "" {
		filter.Sort = repository.SortRecent
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}

	reviews, total, err := s.reviews.ListApproved(ctx, filter)
	if err != nil {
		return nil, err
	}
	stats, err := s.reviews.GetRatingStats(ctx, filter.ProductID)
	if err != nil {
		return nil, err
	}

	return &ListReviewsResult{
		Reviews: reviews,
		Stats:   stats,
		Total:   total,
		Page:    filter.Page,
		PerPage: filter.PerPage,
	}, nil
}

// RecomputeProductRating rebuilds the product's materialized rating from
// approved reviews and publishes the result. Used by backfills and repair
// jobs.
func (s *ReviewService) RecomputeProductRating(ctx context.Context, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return err
	}
	if err := s.reviews.RecomputeProductRating(ctx, productID); err != nil {
		return err
	}
	s.publishRatingUpdated(ctx, productID)
	return nil
}

func (s *ReviewService) publishRatingUpdated(ctx context.Context, productID string) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load product for rating event",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.events.RatingUpdated(ctx, product)
}
