package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/service"
)

type orderItemReq struct {
	ProductID string          `json:"productId" binding:"required"`
	Quantity  int64           `json:"quantity" binding:"required,min=1"`
	Price     decimal.Decimal `json:"price"`
}

type placeOrderReq struct {
	Items          []orderItemReq  `json:"items" binding:"required,min=1,dive"`
	Address        string          `json:"address"`
	PaymentMethod  string          `json:"paymentMethod" binding:"required"`
	PaymentChannel string          `json:"paymentChannel"`
	Phone          string          `json:"phone"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	Email          string          `json:"email" binding:"omitempty,email"`
	IsPremium      bool            `json:"isPremium"`
}

// @Summary Place order
// @Description COD orders get a delivery immediately; card and momo orders return a payment handoff.
// @Tags orders
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body placeOrderReq true "Order"
// @Success 201 {object} envelope{data=service.PlaceOrderResult}
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Failure 500 {object} envelope
// @Router /orders [post]
func (s *Server) placeOrder(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	pm, err := service.ParsePayment(req.PaymentMethod, req.PaymentChannel, req.Phone)
	if err != nil {
		s.respondError(c, err)
		return
	}

	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	res, err := s.orders.PlaceOrder(c.Request.Context(), service.PlaceOrderInput{
		UserID:      actor(c).UserID,
		Items:       items,
		TotalAmount: req.TotalAmount,
		Payment:     pm,
		Address:     req.Address,
		Email:       req.Email,
		Phone:       req.Phone,
		IsPremium:   req.IsPremium,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "order placed", res)
}

// @Summary Verify payment
// @Tags payments
// @Produce json
// @Param reference path string true "Payment reference"
// @Success 200 {object} envelope{data=service.VerificationResult}
// @Failure 400 {object} envelope{data=service.VerificationResult}
// @Failure 500 {object} envelope
// @Router /orders/paystack/verify/{reference} [get]
func (s *Server) verifyPayment(c *gin.Context) {
	res, err := s.orders.VerifyPayment(c.Request.Context(), c.Param("reference"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !res.Success {
		c.JSON(http.StatusBadRequest, envelope{Success: false, Message: "payment verification failed: " + res.Reason, Data: res})
		return
	}
	respondOK(c, "payment verified", res)
}

// @Summary Payment provider redirect
// @Tags payments
// @Param reference query string false "Payment reference"
// @Param trxref query string false "Payment reference (provider alias)"
// @Success 302
// @Router /orders/paystack/callback [get]
func (s *Server) paymentCallback(c *gin.Context) {
	target := strings.TrimRight(s.cfg.URLs.Frontend, "/") + "/payment-failed"

	reference := c.Query("reference")
	if reference == "" {
		reference = c.Query("trxref")
	}
	if reference != "" {
		res, err := s.orders.VerifyPayment(c.Request.Context(), reference)
		switch {
		case err != nil:
			logging.Warn(c.Request.Context(), s.logger, "Payment callback verification failed",
				zap.String("reference", reference), zap.Error(err))
		case res.RedirectURL != "":
			target = res.RedirectURL
		}
	}
	c.Redirect(http.StatusFound, target)
}

// @Summary Payment provider webhook
// @Description The raw body is signed with HMAC-SHA512; requests with a bad signature are rejected before any write.
// @Tags payments
// @Accept json
// @Produce json
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Failure 404 {object} envelope
// @Failure 500 {object} envelope
// @Router /orders/paystack/webhook [post]
func (s *Server) paymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, envelope{Message: "invalid request body"})
		return
	}
	res, err := s.orders.HandleWebhook(c.Request.Context(), body, c.GetHeader(s.cfg.Payment.SignatureHeader))
	if err != nil {
		s.respondError(c, err)
		return
	}
	if res == nil {
		respondOK(c, "event ignored", nil)
		return
	}
	respondOK(c, "payment verified", res)
}

// @Summary List all orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Order}
// @Failure 403 {object} envelope
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respondOK(c, "", list)
}

// @Summary List my orders
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Order}
// @Router /orders/my-orders [get]
func (s *Server) myOrders(c *gin.Context) {
	list, err := s.orders.ListMyOrders(c.Request.Context(), actor(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respondOK(c, "", list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} envelope{data=domain.Order}
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/{orderId} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	order, err := s.orders.GetOrder(c.Request.Context(), id, actor(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "", order)
}

// @Summary Track order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} envelope{data=service.TrackingInfo}
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /orders/{orderId}/track [get]
func (s *Server) trackOrder(c *gin.Context) {
	id, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	info, err := s.orders.TrackOrder(c.Request.Context(), id, actor(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "", info)
}
