// Package event publishes review lifecycle events and consumes order and
// product events that feed the local read models.
package event

import (
	"context"
	"log/slog"
	"time"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/pkg/kafka"
	"github.com/ecomstack/review-service/pkg/logger"
)

// Topics published by this service.
const (
	TopicReviewSubmitted = "ecommerce.review.submitted"
	TopicReviewUpdated   = "ecommerce.review.updated"
	TopicReviewDeleted   = "ecommerce.review.deleted"
	TopicReviewModerated = "ecommerce.review.moderated"
	TopicRatingUpdated   = "ecommerce.review.rating_updated"
)

const (
	aggregateTypeReview = "review"
	sourceReviewService = "review-service"
)

// ReviewEventData is the payload carried by review lifecycle events.
type ReviewEventData struct {
	ReviewID         string    `json:"review_id"`
	ProductID        string    `json:"product_id"`
	BuyerID          string    `json:"buyer_id"`
	Rating           int       `json:"rating"`
	Status           string    `json:"status"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// RatingUpdatedData is the payload for product rating change events.
type RatingUpdatedData struct {
	ProductID   string    `json:"product_id"`
	Rating      float64   `json:"rating"`
	ReviewCount int       `json:"review_count"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher is the producer interface used by the service layer. Satisfied by
// *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *kafka.Event) error
}

// ReviewEventProducer publishes review events. Publishing is best-effort: a
// broker failure is logged and swallowed so the HTTP request still succeeds
// after the database commit.
type ReviewEventProducer struct {
	producer Publisher
	logger   *slog.Logger
}

func NewReviewEventProducer(producer Publisher, l *slog.Logger) *ReviewEventProducer {
	return &ReviewEventProducer{producer: producer, logger: l}
}

func (p *ReviewEventProducer) publish(ctx context.Context, topic, eventType string, aggregateID string, data any) {
	ev, err := kafka.NewEvent(eventType, aggregateID, aggregateTypeReview, sourceReviewService, data)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		ev.WithCorrelationID(cid)
	}

	if err := p.producer.Publish(ctx, topic, ev); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

func reviewData(r *domain.Review) ReviewEventData {
	return ReviewEventData{
		ReviewID:         r.ID,
		ProductID:        r.ProductID,
		BuyerID:          r.BuyerID,
		Rating:           r.Rating,
		Status:           string(r.Status),
		VerifiedPurchase: r.VerifiedPurchase,
		OccurredAt:       time.Now().UTC(),
	}
}

func (p *ReviewEventProducer) ReviewSubmitted(ctx context.Context, r *domain.Review) {
	p.publish(ctx, TopicReviewSubmitted, "review.submitted", r.ID, reviewData(r))
}

func (p *ReviewEventProducer) ReviewUpdated(ctx context.Context, r *domain.Review) {
	p.publish(ctx, TopicReviewUpdated, "review.updated", r.ID, reviewData(r))
}

func (p *ReviewEventProducer) ReviewDeleted(ctx context.Context, r *domain.Review) {
	p.publish(ctx, TopicReviewDeleted, "review.deleted", r.ID, reviewData(r))
}

func (p *ReviewEventProducer) ReviewModerated(ctx context.Context, r *domain.Review) {
	p.publish(ctx, TopicReviewModerated, "review.moderated", r.ID, reviewData(r))
}

func (p *ReviewEventProducer) RatingUpdated(ctx context.Context, product *domain.ProductSummary) {
	p.publish(ctx, TopicRatingUpdated, "review.rating_updated", product.ID, RatingUpdatedData{
		ProductID:   product.ID,
		Rating:      product.Rating,
		ReviewCount: product.ReviewCount,
		OccurredAt:  time.Now().UTC(),
	})
}
