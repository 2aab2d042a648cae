package domain

import (
	"net/http"
	"strconv"

	apperrors "github.com/ecomstack/review-service/pkg/errors"
)

// Review-specific error constructors. Each maps a business rule violation to
// a stable error code carried to the HTTP layer.

// ErrDuplicateReview is returned when a buyer already has a review for the
// product.
func ErrDuplicateReview() *apperrors.AppError {
	return apperrors.Conflict("DUPLICATE_REVIEW", "you have already reviewed this product")
}

// ErrNotDelivered is returned when the buyer has no delivered order
// containing the product.
func ErrNotDelivered() *apperrors.AppError {
	return apperrors.Unprocessable("NOT_DELIVERED", "reviews require a delivered order containing this product")
}

// ErrEditWindowExpired is returned when a review is edited after the edit
// window has closed.
func ErrEditWindowExpired() *apperrors.AppError {
	return apperrors.Unprocessable("EDIT_WINDOW_EXPIRED", "the edit window for this review has expired")
}

// ErrNotOwner is returned when a user tries to modify a review they did not
// write.
func ErrNotOwner() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_OWNER",
		Message: "only the review author can modify this review",
		Status:  http.StatusForbidden,
		Err:     apperrors.ErrForbidden,
	}
}

// ErrNotProductOwner is returned when a seller response is attempted by
// someone other than the product's seller.
func ErrNotProductOwner() *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "NOT_PRODUCT_OWNER",
		Message: "only the product owner can respond to this review",
		Status:  http.StatusForbidden,
		Err:     apperrors.ErrForbidden,
	}
}

// ErrInvalidModerationState is returned when a moderation transition does not
// start from the pending state.
func ErrInvalidModerationState(current ReviewStatus) *apperrors.AppError {
	return apperrors.Conflict("INVALID_MODERATION_STATE", "review is "+string(current)+", only pending reviews can be moderated")
}

// ErrReviewNotApproved is returned when an action requires an approved review.
func ErrReviewNotApproved() *apperrors.AppError {
	return apperrors.Unprocessable("REVIEW_NOT_APPROVED", "this action is only available on approved reviews")
}

// ErrAlreadyResponded is returned when a seller response already exists.
func ErrAlreadyResponded() *apperrors.AppError {
	return apperrors.Conflict("ALREADY_RESPONDED", "a seller response already exists for this review")
}

// ErrTooManyImages is returned when a review submission or edit exceeds the
// image limit.
func ErrTooManyImages(max int) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "TOO_MANY_IMAGES",
		Message: "a review may have at most " + strconv.Itoa(max) + " images",
		Status:  http.StatusBadRequest,
		Err:     apperrors.ErrInvalidInput,
	}
}
