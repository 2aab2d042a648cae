package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ecomstack/review-service/internal/domain"
	"github.com/ecomstack/review-service/internal/repository"
	"github.com/ecomstack/review-service/internal/service"
	apperrors "github.com/ecomstack/review-service/pkg/errors"
	"github.com/ecomstack/review-service/pkg/httputil"
	"github.com/ecomstack/review-service/pkg/validator"
)

const maxBodyBytes = 1 << 20

// ReviewHandler exposes the review API over HTTP.
type ReviewHandler struct {
	svc    *service.ReviewService
	logger *slog.Logger
}

func NewReviewHandler(svc *service.ReviewService, l *slog.Logger) *ReviewHandler {
	return &ReviewHandler{svc: svc, logger: l}
}

type imageRequest struct {
	URL          string `json:"url" validate:"required,url,max=500"`
	AltText      string `json:"alt_text" validate:"max=200"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}

type submitReviewRequest struct {
	Rating  int            `json:"rating" validate:"required,gte=1,lte=5"`
	Title   string         `json:"title" validate:"required,max=200"`
	Comment string         `json:"comment" validate:"required,max=5000"`
	Images  []imageRequest `json:"images" validate:"max=5,dive"`
}

type editReviewRequest struct {
	Rating  int            `json:"rating" validate:"required,gte=1,lte=5"`
	Title   string         `json:"title" validate:"required,max=200"`
	Comment string         `json:"comment" validate:"required,max=5000"`
	Images  []imageRequest `json:"images" validate:"max=5,dive"`
}

type moderateRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
}

type sellerResponseRequest struct {
	Response string `json:"response" validate:"required,max=1000"`
}

type helpfulResponse struct {
	HelpfulCount int  `json:"helpful_count"`
	Voted        bool `json:"voted"`
}

type reviewListResponse struct {
	httputil.PaginatedResponse[domain.Review]
	Stats *domain.RatingStats `json:"stats"`
}

// userID extracts the authenticated user from the gateway-set header.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func toImageInputs(images []imageRequest) []service.ImageInput {
	inputs := make([]service.ImageInput, 0, len(images))
	for _, img := range images {
		inputs = append(inputs, service.ImageInput{
			URL:          img.URL,
			AltText:      img.AltText,
			DisplayOrder: img.DisplayOrder,
		})
	}
	return inputs
}

// Submit handles POST /api/v1/products/{productId}/reviews.
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req submitReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.svc.SubmitReview(r.Context(), service.SubmitReviewInput{
		ProductID: chi.URLParam(r, "productId"),
		BuyerID:   uid,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
		Images:    toImageInputs(req.Images),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: review})
}

// List handles GET /api/v1/products/{productId}/reviews.
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := repository.ReviewFilter{
		ProductID: chi.URLParam(r, "productId"),
		Sort:      r.URL.Query().Get("sort"),
	}

	if v := r.URL.Query().Get("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("rating must be an integer"), h.logger)
			return
		}
		filter.Rating = &rating
	}
	if v := r.URL.Query().Get("page"); v != "" {
		filter.Page, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		filter.PerPage, _ = strconv.Atoi(v)
	}

	result, err := h.svc.ListReviews(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reviewListResponse{
		PaginatedResponse: httputil.NewPaginatedResponse(result.Reviews, result.Total, result.Page, result.PerPage),
		Stats:             result.Stats,
	}})
}

// Edit handles PUT /api/v1/reviews/{reviewId}.
func (h *ReviewHandler) Edit(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req editReviewRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.svc.EditReview(r.Context(), service.EditReviewInput{
		ReviewID: chi.URLParam(r, "reviewId"),
		BuyerID:  uid,
		Rating:   req.Rating,
		Title:    req.Title,
		Comment:  req.Comment,
		Images:   toImageInputs(req.Images),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// Delete handles DELETE /api/v1/reviews/{reviewId}.
func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	if err := h.svc.DeleteReview(r.Context(), chi.URLParam(r, "reviewId"), uid); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkHelpful handles POST /api/v1/reviews/{reviewId}/helpful.
func (h *ReviewHandler) MarkHelpful(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	count, voted, err := h.svc.MarkHelpful(r.Context(), chi.URLParam(r, "reviewId"), uid)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: helpfulResponse{
		HelpfulCount: count,
		Voted:        voted,
	}})
}

// Respond handles POST /api/v1/reviews/{reviewId}/response.
func (h *ReviewHandler) Respond(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req sellerResponseRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.svc.SellerRespond(r.Context(), chi.URLParam(r, "reviewId"), uid, req.Response)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// Moderate handles POST /api/v1/reviews/{reviewId}/moderate. The gateway
// restricts this route to moderators.
func (h *ReviewHandler) Moderate(w http.ResponseWriter, r *http.Request) {
	if userID(r) == "" {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req moderateRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	review, err := h.svc.Moderate(r.Context(), chi.URLParam(r, "reviewId"), req.Action == "approve")
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: review})
}

// RecomputeRating handles POST /api/v1/products/{productId}/rating/recompute.
// Internal repair endpoint for rebuilding a product's materialized rating.
func (h *ReviewHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")
	if err := h.svc.RecomputeProductRating(r.Context(), productID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
