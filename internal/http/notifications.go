package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/notify"
)

type sendNotificationReq struct {
	UserID  string `json:"userId" binding:"required,uuid"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=email sms push"`
}

type registerDeviceReq struct {
	Token string `json:"deviceToken" binding:"required"`
}

// @Summary My notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Notification}
// @Router /notifications [get]
func (s *Server) listNotifications(c *gin.Context) {
	list, err := s.notifications.List(c.Request.Context(), actor(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	respondOK(c, "", list)
}

// @Summary All notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=[]domain.Notification}
// @Failure 403 {object} envelope
// @Router /notifications/all [get]
func (s *Server) listAllNotifications(c *gin.Context) {
	list, err := s.notifications.ListAll(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if list == nil {
		list = []domain.Notification{}
	}
	respondOK(c, "", list)
}

// @Summary Send notification
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body sendNotificationReq true "Notification"
// @Success 201 {object} envelope{data=domain.Notification}
// @Failure 400 {object} envelope
// @Failure 403 {object} envelope
// @Router /notifications [post]
func (s *Server) sendNotification(c *gin.Context) {
	var req sendNotificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	n, err := s.notifications.Send(c.Request.Context(), notify.Message{
		UserID:  userID,
		Title:   req.Title,
		Body:    req.Message,
		Channel: domain.NotificationType(req.Type),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "notification sent", n)
}

// @Summary Mark notification read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} envelope{data=domain.Notification}
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /notifications/{id}/read [patch]
func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	a := actor(c)
	n, err := s.notifications.MarkRead(c.Request.Context(), id, a.UserID, a.IsAdmin())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "notification marked as read", n)
}

// @Summary Register push device
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body registerDeviceReq true "Device"
// @Success 201 {object} envelope
// @Failure 400 {object} envelope
// @Router /notifications/devices [post]
func (s *Server) registerDevice(c *gin.Context) {
	var req registerDeviceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if err := s.notifications.RegisterDevice(c.Request.Context(), actor(c).UserID, req.Token); err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "device registered", nil)
}
