package httpapi

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/service"
)

type registerReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// @Summary Register
// @Tags auth
// @Accept json
// @Produce json
// @Param input body registerReq true "Account"
// @Success 201 {object} envelope{data=service.AuthResult}
// @Failure 400 {object} envelope
// @Router /auth/register [post]
func (s *Server) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	res, err := s.users.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondCreated(c, "account created", res)
}

// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param input body loginReq true "Credentials"
// @Success 200 {object} envelope{data=service.AuthResult}
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Router /auth/login [post]
func (s *Server) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	res, err := s.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "logged in", res)
}

// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=domain.User}
// @Failure 401 {object} envelope
// @Router /auth/me [get]
func (s *Server) me(c *gin.Context) {
	u, err := s.users.Me(c.Request.Context(), actor(c).UserID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "", u)
}
