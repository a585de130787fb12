package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
)

type wishlistReq struct {
	ProductID string `json:"productId" binding:"required,uuid"`
}

// @Summary Add product to wishlist
// @Tags wishlist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body wishlistReq true "Product"
// @Success 201 {object} envelope{data=domain.WishlistItem}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 409 {object} envelope
// @Router /wishlist [post]
func (s *Server) addToWishlist(c *gin.Context) {
	var req wishlistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	item, err := s.wishlist.Add(c.Request.Context(), actor(c).UserID, uuid.MustParse(req.ProductID))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "added to wishlist", item)
}

// @Summary Remove product from wishlist
// @Description productId is read from the query string or the JSON body.
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Param productId query string false "Product ID"
// @Success 200 {object} envelope{data=domain.WishlistItem}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /wishlist [delete]
func (s *Server) removeFromWishlist(c *gin.Context) {
	raw := c.Query("productId")
	if raw == "" {
		var req struct {
			ProductID string `json:"productId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondBindError(c, err)
			return
		}
		raw = req.ProductID
	}
	productID, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
			Success: false,
			Message: "validation failed",
			Errors:  map[string]string{"productId": "must be a valid id"},
		})
		return
	}
	item, err := s.wishlist.Remove(c.Request.Context(), actor(c).UserID, productID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "removed from wishlist", item)
}

// @Summary My wishlist
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.WishlistItem}
// @Router /wishlist [get]
func (s *Server) myWishlist(c *gin.Context) {
	list, err := s.wishlist.List(c.Request.Context(), actor(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.WishlistItem{}
	}
	respondOK(c, "", list)
}

// @Summary All wishlists
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.WishlistItem}
// @Failure 403 {object} envelope
// @Router /wishlist/all [get]
func (s *Server) allWishlists(c *gin.Context) {
	list, err := s.wishlist.ListAll(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.WishlistItem{}
	}
	respondOK(c, "", list)
}
