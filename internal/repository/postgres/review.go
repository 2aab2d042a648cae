package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/internal/repository"
	"github.com/ecomstack/review-service/pkg/database"
	apperrors "github.com/ecomstack/review-service/pkg/errors"
)

// ReviewRepository is the PostgreSQL implementation of
// repository.ReviewRepository.
type ReviewRepository struct {
	db database.DBTX
}

func NewReviewRepository(db database.DBTX) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, product_id, buyer_id, order_id, order_item_id, rating, title, comment,
		status, verified_purchase, helpful_count, seller_response, seller_responded_at,
		created_at, updated_at`

func scanReview(row pgx.Row) (*domain.Review, error) {
	var r domain.Review
	err := row.Scan(
		&r.ID, &r.ProductID, &r.BuyerID, &r.OrderID, &r.OrderItemID, &r.Rating, &r.Title, &r.Comment,
		&r.Status, &r.VerifiedPurchase, &r.HelpfulCount, &r.SellerResponse, &r.SellerRespondedAt,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "23505")
}

const createReviewQuery = `
	INSERT INTO reviews (id, product_id, buyer_id, order_id, order_item_id, rating, title, comment, status, verified_purchase)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING created_at, updated_at`

const insertReviewImageQuery = `
	INSERT INTO review_images (id, review_id, url, alt_text, display_order)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING created_at`

// Create inserts the review and its images in one transaction. A new review
// is pending, so the product aggregate is unchanged.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.Create", createReviewQuery)
	var err error
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, createReviewQuery,
		review.ID, review.ProductID, review.BuyerID, review.OrderID, review.OrderItemID,
		review.Rating, review.Title, review.Comment, review.Status, review.VerifiedPurchase,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrDuplicateReview()
			return err
		}
		return fmt.Errorf("insert review: %w", err)
	}

	for i := range review.Images {
		img := &review.Images[i]
		img.ReviewID = review.ID
		if err = tx.QueryRow(ctx, insertReviewImageQuery,
			img.ID, img.ReviewID, img.URL, img.AltText, img.DisplayOrder,
		).Scan(&img.CreatedAt); err != nil {
			return fmt.Errorf("insert review image: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const getReviewQuery = `
	SELECT ` + reviewColumns + `
	FROM reviews
	WHERE id = $1`

func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.GetByID", getReviewQuery)
	var err error
	defer func() { end(err) }()

	review, err := scanReview(r.db.QueryRow(ctx, getReviewQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("review", id)
			return nil, err
		}
		return nil, fmt.Errorf("get review: %w", err)
	}

	if err = r.loadImages(ctx, r.db, []*domain.Review{review}); err != nil {
		return nil, err
	}
	return review, nil
}

const getReviewByBuyerProductQuery = `
	SELECT ` + reviewColumns + `
	FROM reviews
	WHERE buyer_id = $1 AND product_id = $2`

func (r *ReviewRepository) GetByBuyerAndProduct(ctx context.Context, buyerID, productID string) (*domain.Review, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.GetByBuyerAndProduct", getReviewByBuyerProductQuery)
	var err error
	defer func() { end(err) }()

	review, err := scanReview(r.db.QueryRow(ctx, getReviewByBuyerProductQuery, buyerID, productID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("review", productID)
			return nil, err
		}
		return nil, fmt.Errorf("get review by buyer and product: %w", err)
	}
	return review, nil
}

var listSortClauses = map[string]string{
	repository.SortRecent:  "created_at DESC",
	repository.SortHelpful: "helpful_count DESC, created_at DESC",
	repository.SortHighest: "rating DESC, created_at DESC",
	repository.SortLowest:  "rating ASC, created_at DESC",
}

const listApprovedBaseQuery = `
	SELECT ` + reviewColumns + `, count(*) OVER() AS total
	FROM reviews
	WHERE product_id = $1 AND status = 'approved'`

// ListApproved returns a page of approved reviews with the pre-pagination
// total, loading each review's images in a single batch query.
func (r *ReviewRepository) ListApproved(ctx context.Context, filter repository.ReviewFilter) ([]domain.Review, int, error) {
	orderBy, ok := listSortClauses[filter.Sort]
	if !ok {
		orderBy = listSortClauses[repository.SortRecent]
	}

	query := listApprovedBaseQuery
	args := []any{filter.ProductID}
	if filter.Rating != nil {
		query += fmt.Sprintf(" AND rating = $%d", len(args)+1)
		args = append(args, *filter.Rating)
	}
	query += " ORDER BY " + orderBy
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	ctx, end := database.TraceQuery(ctx, "ReviewRepository.ListApproved", query)
	var err error
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews []domain.Review
		total   int
	)
	for rows.Next() {
		var rv domain.Review
		if err = rows.Scan(
			&rv.ID, &rv.ProductID, &rv.BuyerID, &rv.OrderID, &rv.OrderItemID, &rv.Rating, &rv.Title, &rv.Comment,
			&rv.Status, &rv.VerifiedPurchase, &rv.HelpfulCount, &rv.SellerResponse, &rv.SellerRespondedAt,
			&rv.CreatedAt, &rv.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate reviews: %w", err)
	}

	refs := make([]*domain.Review, len(reviews))
	for i := range reviews {
		refs[i] = &reviews[i]
	}
	if err = r.loadImages(ctx, r.db, refs); err != nil {
		return nil, 0, err
	}

	return reviews, total, nil
}

const ratingStatsQuery = `
	SELECT rating, count(*)
	FROM reviews
	WHERE product_id = $1 AND status = 'approved'
	GROUP BY rating`

// GetRatingStats aggregates approved reviews into an average (one decimal)
// and a per-star histogram.
func (r *ReviewRepository) GetRatingStats(ctx context.Context, productID string) (*domain.RatingStats, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.GetRatingStats", ratingStatsQuery)
	var err error
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, ratingStatsQuery, productID)
	if err != nil {
		return nil, fmt.Errorf("rating stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.RatingStats{Histogram: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for rows.Next() {
		var rating, count int
		if err = rows.Scan(&rating, &count); err != nil {
			return nil, fmt.Errorf("scan rating stats: %w", err)
		}
		stats.Histogram[rating] = count
		stats.TotalCount += count
		sum += rating * count
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating stats: %w", err)
	}

	if stats.TotalCount > 0 {
		stats.AverageRating = math.Round(float64(sum)/float64(stats.TotalCount)*10) / 10
	}
	return stats, nil
}

const updateReviewQuery = `
	UPDATE reviews
	SET rating = $2, title = $3, comment = $4, status = 'pending', updated_at = now()
	WHERE id = $1
	RETURNING status, updated_at`

const deleteReviewImagesQuery = `DELETE FROM review_images WHERE review_id = $1`

// Update rewrites the review's content and images, resets it to pending, and
// recomputes the product rating, all in one transaction. An edited review
// that was approved leaves the public aggregate immediately.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) error {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.Update", updateReviewQuery)
	var err error
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, updateReviewQuery,
		review.ID, review.Rating, review.Title, review.Comment,
	).Scan(&review.Status, &review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("review", review.ID)
			return err
		}
		return fmt.Errorf("update review: %w", err)
	}

	if _, err = tx.Exec(ctx, deleteReviewImagesQuery, review.ID); err != nil {
		return fmt.Errorf("delete review images: %w", err)
	}
	for i := range review.Images {
		img := &review.Images[i]
		img.ReviewID = review.ID
		if err = tx.QueryRow(ctx, insertReviewImageQuery,
			img.ID, img.ReviewID, img.URL, img.AltText, img.DisplayOrder,
		).Scan(&img.CreatedAt); err != nil {
			return fmt.Errorf("insert review image: %w", err)
		}
	}

	if err = recomputeRating(ctx, tx, review.ProductID); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const deleteReviewQuery = `DELETE FROM reviews WHERE id = $1`

// Delete removes the review (images and helpful votes cascade) and recomputes
// the product rating in the same transaction.
func (r *ReviewRepository) Delete(ctx context.Context, id, productID string) error {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.Delete", deleteReviewQuery)
	var err error
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, deleteReviewQuery, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = apperrors.NotFound("review", id)
		return err
	}

	if err = recomputeRating(ctx, tx, productID); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const setStatusQuery = `
	UPDATE reviews
	SET status = $3, updated_at = now()
	WHERE id = $1 AND status = $2
	RETURNING ` + reviewColumns

const getStatusQuery = `SELECT status FROM reviews WHERE id = $1`

// SetStatus performs a guarded status transition. The WHERE clause on the
// current status makes concurrent moderation race-safe: exactly one of two
// competing transitions wins.
func (r *ReviewRepository) SetStatus(ctx context.Context, id string, from, to domain.ReviewStatus) (*domain.Review, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.SetStatus", setStatusQuery)
	var err error
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	review, err := scanReview(tx.QueryRow(ctx, setStatusQuery, id, from, to))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("set review status: %w", err)
		}
		var current domain.ReviewStatus
		if scanErr := tx.QueryRow(ctx, getStatusQuery, id).Scan(&current); scanErr != nil {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				err = apperrors.NotFound("review", id)
				return nil, err
			}
			err = fmt.Errorf("get review status: %w", scanErr)
			return nil, err
		}
		err = domain.ErrInvalidModerationState(current)
		return nil, err
	}

	if from == domain.ReviewStatusApproved || to == domain.ReviewStatusApproved {
		if err = recomputeRating(ctx, tx, review.ProductID); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if err = r.loadImages(ctx, r.db, []*domain.Review{review}); err != nil {
		return nil, err
	}
	return review, nil
}

const lockReviewForVoteQuery = `SELECT status, helpful_count FROM reviews WHERE id = $1 FOR UPDATE`

const insertHelpfulVoteQuery = `
	INSERT INTO review_helpful (review_id, user_id)
	VALUES ($1, $2)
	ON CONFLICT (review_id, user_id) DO NOTHING`

const incrementHelpfulQuery = `
	UPDATE reviews
	SET helpful_count = helpful_count + 1, updated_at = now()
	WHERE id = $1
	RETURNING helpful_count`

// AddHelpfulVote records a helpful vote idempotently. The row lock serializes
// concurrent votes so the counter matches the vote table exactly.
func (r *ReviewRepository) AddHelpfulVote(ctx context.Context, reviewID, userID string) (int, bool, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.AddHelpfulVote", insertHelpfulVoteQuery)
	var err error
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		status domain.ReviewStatus
		count  int
	)
	if err = tx.QueryRow(ctx, lockReviewForVoteQuery, reviewID).Scan(&status, &count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperrors.NotFound("review", reviewID)
			return 0, false, err
		}
		return 0, false, fmt.Errorf("lock review: %w", err)
	}
	if status != domain.ReviewStatusApproved {
		err = domain.ErrReviewNotApproved()
		return 0, false, err
	}

	tag, err := tx.Exec(ctx, insertHelpfulVoteQuery, reviewID, userID)
	if err != nil {
		return 0, false, fmt.Errorf("insert helpful vote: %w", err)
	}

	created := tag.RowsAffected() > 0
	if created {
		if err = tx.QueryRow(ctx, incrementHelpfulQuery, reviewID).Scan(&count); err != nil {
			return 0, false, fmt.Errorf("increment helpful count: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit tx: %w", err)
	}
	return count, created, nil
}

const setSellerResponseQuery = `
	UPDATE reviews
	SET seller_response = $2, seller_responded_at = now(), updated_at = now()
	WHERE id = $1 AND seller_response IS NULL
	RETURNING ` + reviewColumns

// SetSellerResponse attaches the seller's response. The IS NULL guard keeps
// the response write-once even under concurrent requests.
func (r *ReviewRepository) SetSellerResponse(ctx context.Context, reviewID, response string) (*domain.Review, error) {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.SetSellerResponse", setSellerResponseQuery)
	var err error
	defer func() { end(err) }()

	review, err := scanReview(r.db.QueryRow(ctx, setSellerResponseQuery, reviewID, response))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("set seller response: %w", err)
		}
		var exists bool
		if scanErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM reviews WHERE id = $1)`, reviewID).Scan(&exists); scanErr != nil {
			err = fmt.Errorf("check review exists: %w", scanErr)
			return nil, err
		}
		if !exists {
			err = apperrors.NotFound("review", reviewID)
			return nil, err
		}
		err = domain.ErrAlreadyResponded()
		return nil, err
	}

	if err = r.loadImages(ctx, r.db, []*domain.Review{review}); err != nil {
		return nil, err
	}
	return review, nil
}

const recomputeRatingQuery = `
	UPDATE products
	SET rating = COALESCE((
			SELECT ROUND(AVG(rating)::numeric, 2)
			FROM reviews
			WHERE product_id = $1 AND status = 'approved'
		), 0),
		review_count = (
			SELECT count(*)
			FROM reviews
			WHERE product_id = $1 AND status = 'approved'
		),
		updated_at = now()
	WHERE id = $1`

func recomputeRating(ctx context.Context, db database.DBTX, productID string) error {
	if _, err := db.Exec(ctx, recomputeRatingQuery, productID); err != nil {
		return fmt.Errorf("recompute product rating: %w", err)
	}
	return nil
}

// RecomputeProductRating rebuilds the materialized rating outside any caller
// transaction, for use by backfills and event handlers.
func (r *ReviewRepository) RecomputeProductRating(ctx context.Context, productID string) error {
	ctx, end := database.TraceQuery(ctx, "ReviewRepository.RecomputeProductRating", recomputeRatingQuery)
	var err error
	defer func() { end(err) }()

	err = recomputeRating(ctx, r.db, productID)
	return err
}

const listImagesQuery = `
	SELECT id, review_id, url, alt_text, display_order, created_at
	FROM review_images
	WHERE review_id = ANY($1)
	ORDER BY display_order, created_at`

func (r *ReviewRepository) loadImages(ctx context.Context, db database.DBTX, reviews []*domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}

	ids := make([]string, len(reviews))
	byID := make(map[string]*domain.Review, len(reviews))
	for i, rv := range reviews {
		ids[i] = rv.ID
		byID[rv.ID] = rv
	}

	rows, err := db.Query(ctx, listImagesQuery, ids)
	if err != nil {
		return fmt.Errorf("list review images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img domain.ReviewImage
		var altText *string
		if err := rows.Scan(&img.ID, &img.ReviewID, &img.URL, &altText, &img.DisplayOrder, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan review image: %w", err)
		}
		if altText != nil {
			img.AltText = *altText
		}
		if rv, ok := byID[img.ReviewID]; ok {
			rv.Images = append(rv.Images, img)
		}
	}
	return rows.Err()
}
