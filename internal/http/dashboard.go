package httpapi

import "github.com/gin-gonic/gin"

// @Summary Admin dashboard overview
// @Description Counts are cached for five minutes; partial is true when a count could not be loaded.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} envelope{data=service.DashboardOverview}
// @Failure 403 {object} envelope
// @Router /admin/dashboard/overview [get]
func (s *Server) dashboardOverview(c *gin.Context) {
	overview, err := s.dashboard.Overview(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, "", overview)
}
