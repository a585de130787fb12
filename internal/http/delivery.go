package httpapi

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
)

type createDeliveryReq struct {
	OrderID string `json:"orderId" binding:"required,uuid"`
	Address string `json:"address"`
	Courier string `json:"courier"`
}

type deliveryStatusReq struct {
	Status string `json:"status" binding:"required"`
}

type assignCourierReq struct {
	Courier string `json:"courier"`
}

// @Summary List deliveries
// @Tags delivery
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.DeliveryView}
// @Failure 403 {object} envelope
// @Router /delivery [get]
func (s *Server) listDeliveries(c *gin.Context) {
	list, err := s.deliveries.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.DeliveryView{}
	}
	respondOK(c, "", list)
}

// @Summary List couriers
// @Tags delivery
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]string}
// @Router /delivery/couriers/all [get]
func (s *Server) listCouriers(c *gin.Context) {
	couriers, err := s.deliveries.Couriers(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if couriers == nil {
		couriers = []string{}
	}
	respondOK(c, "", couriers)
}

// @Summary Create delivery
// @Description Returns the existing delivery with 200 when the order already has one.
// @Tags delivery
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body createDeliveryReq true "Delivery"
// @Success 201 {object} envelope{data=domain.Delivery}
// @Success 200 {object} envelope{data=domain.Delivery}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /delivery [post]
func (s *Server) createDelivery(c *gin.Context) {
	var req createDeliveryReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	orderID, _ := uuid.Parse(req.OrderID)

	d, created, err := s.deliveries.Create(c.Request.Context(), orderID, req.Address, req.Courier)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !created {
		respondOK(c, "delivery already exists", d)
		return
	}
	respondCreated(c, "delivery created", d)
}

// @Summary Get delivery for order
// @Tags delivery
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} envelope{data=domain.Delivery}
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /delivery/{orderId} [get]
func (s *Server) getDelivery(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	d, err := s.deliveries.Get(c.Request.Context(), orderID, actor(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "", d)
}

// @Summary Update delivery status
// @Description Creates the delivery when missing and mirrors the status onto the order.
// @Tags delivery
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param input body deliveryStatusReq true "Status"
// @Success 200 {object} envelope{data=domain.Delivery}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /delivery/{orderId}/status [patch]
func (s *Server) updateDeliveryStatus(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	var req deliveryStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	d, err := s.deliveries.UpdateStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "delivery status updated", d)
}

// @Summary Assign courier
// @Tags delivery
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param input body assignCourierReq true "Courier"
// @Success 200 {object} envelope{data=domain.Delivery}
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /delivery/{orderId}/courier [patch]
func (s *Server) assignCourier(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}
	var req assignCourierReq
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}
	d, err := s.deliveries.AssignCourier(c.Request.Context(), orderID, req.Courier)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "courier assigned", d)
}
