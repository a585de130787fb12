package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type createPromotionReq struct {
	Code          string          `json:"code" binding:"required"`
	Description   string          `json:"description"`
	DiscountType  string          `json:"discount_type" binding:"required,oneof=percentage fixed"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartsAt      time.Time       `json:"starts_at" binding:"required"`
	EndsAt        time.Time       `json:"ends_at" binding:"required"`
	Active        *bool           `json:"active"`
	UsageLimit    *int64          `json:"usage_limit"`
}

type updatePromotionReq struct {
	Code          *string          `json:"code"`
	Description   *string          `json:"description"`
	DiscountType  *string          `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	DiscountValue *decimal.Decimal `json:"discount_value"`
	StartsAt      *time.Time       `json:"starts_at"`
	EndsAt        *time.Time       `json:"ends_at"`
	Active        *bool            `json:"active"`
	UsageLimit    *int64           `json:"usage_limit"`
}

// @Summary Create promotion
// @Tags promotions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body createPromotionReq true "Promotion"
// @Success 201 {object} envelope{data=domain.Promotion}
// @Failure 400 {object} envelope
// @Failure 409 {object} envelope
// @Router /promotions [post]
func (s *Server) createPromotion(c *gin.Context) {
	var req createPromotionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	p, err := s.promotions.Create(c.Request.Context(), domain.Promotion{
		Code:          req.Code,
		Description:   req.Description,
		DiscountType:  domain.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Active:        active,
		UsageLimit:    req.UsageLimit,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "promotion created", p)
}

// @Summary Update promotion
// @Tags promotions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Promotion ID"
// @Param input body updatePromotionReq true "Update"
// @Success 200 {object} envelope{data=domain.Promotion}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Failure 409 {object} envelope
// @Router /promotions/{id} [put]
func (s *Server) updatePromotion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updatePromotionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	patch := service.PromotionPatch{
		Code:          req.Code,
		Description:   req.Description,
		DiscountValue: req.DiscountValue,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Active:        req.Active,
		UsageLimit:    req.UsageLimit,
	}
	if req.DiscountType != nil {
		t := domain.DiscountType(*req.DiscountType)
		patch.DiscountType = &t
	}
	p, err := s.promotions.Update(c.Request.Context(), id, patch)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "promotion updated", p)
}

// @Summary Delete promotion
// @Tags promotions
// @Security BearerAuth
// @Param id path string true "Promotion ID"
// @Success 204
// @Failure 404 {object} envelope
// @Router /promotions/{id} [delete]
func (s *Server) deletePromotion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := s.promotions.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List promotions
// @Tags promotions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Promotion}
// @Failure 403 {object} envelope
// @Router /promotions/all [get]
func (s *Server) listPromotions(c *gin.Context) {
	list, err := s.promotions.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Promotion{}
	}
	respondOK(c, "", list)
}

// @Summary Validate promotion code
// @Description With amount the response carries the discount and the discounted total.
// @Tags promotions
// @Produce json
// @Security BearerAuth
// @Param code query string true "Promotion code"
// @Param amount query number false "Order amount"
// @Success 200 {object} envelope{data=service.PromotionQuote}
// @Failure 400 {object} envelope
// @Router /promotions/validate [get]
func (s *Server) validatePromotion(c *gin.Context) {
	var amount *decimal.Decimal
	if v := c.Query("amount"); v != "" {
		x, err := decimal.NewFromString(v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, envelope{
				Success: false,
				Message: "validation failed",
				Errors:  map[string]string{"amount": "must be a number"},
			})
			return
		}
		amount = &x
	}
	q, err := s.promotions.Validate(c.Request.Context(), c.Query("code"), amount)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "promotion code is valid", q)
}
