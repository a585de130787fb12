package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type createReviewReq struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Rating    int    `json:"rating" binding:"required"`
	Comment   string `json:"comment" binding:"required"`
}

type updateReviewReq struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

// @Summary List product reviews
// @Tags reviews
// @Produce json
// @Param productId path string true "Product ID"
// @Success 200 {object} envelope{data=[]domain.Review}
// @Failure 400 {object} envelope
// @Router /reviews/{productId} [get]
func (s *Server) listReviews(c *gin.Context) {
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}
	list, err := s.reviews.ListByProduct(c.Request.Context(), productID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Review{}
	}
	respondOK(c, "", list)
}

// @Summary Add review
// @Description One review per product and user; a second one returns 409.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body createReviewReq true "Review"
// @Success 201 {object} envelope{data=domain.Review}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 409 {object} envelope
// @Router /reviews [post]
func (s *Server) createReview(c *gin.Context) {
	var req createReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	r, err := s.reviews.Add(c.Request.Context(), actor(c), uuid.MustParse(req.ProductID), req.Rating, req.Comment)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "review added", r)
}

// @Summary Update review
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param reviewId path string true "Review ID"
// @Param input body updateReviewReq true "Update"
// @Success 200 {object} envelope{data=domain.Review}
// @Failure 400 {object} envelope
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /reviews/{reviewId} [put]
func (s *Server) updateReview(c *gin.Context) {
	id, ok := parseID(c, "reviewId")
	if !ok {
		return
	}
	var req updateReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	r, err := s.reviews.Update(c.Request.Context(), actor(c), id, service.ReviewPatch{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "review updated", r)
}

// @Summary Delete review
// @Tags reviews
// @Security BearerAuth
// @Param reviewId path string true "Review ID"
// @Success 204
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /reviews/{reviewId} [delete]
func (s *Server) deleteReview(c *gin.Context) {
	id, ok := parseID(c, "reviewId")
	if !ok {
		return
	}
	if err := s.reviews.Delete(c.Request.Context(), actor(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
