package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/logging"
)

const (
	monitoringHeader   = "x-monitoring-token"
	healthCheckTimeout = 3 * time.Second
)

type healthStatus struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Time     time.Time         `json:"timestamp"`
}

// @Summary Health check
// @Description Pings every configured dependency with a 3s bound.
// @Tags ops
// @Produce json
// @Param x-monitoring-token header string true "Monitoring token"
// @Success 200 {object} healthStatus
// @Failure 401 {object} envelope
// @Failure 503 {object} healthStatus
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	want := s.cfg.Monitoring.Token
	got := c.GetHeader(monitoringHeader)
	if want == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Message: "unauthorized"})
		return
	}

	results := make([]string, len(s.checks))
	var g errgroup.Group
	for i, check := range s.checks {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			defer cancel()
			if err := check.Ping(ctx); err != nil {
				logging.Warn(ctx, s.logger, "Health check failed", zap.String("service", check.Name), zap.Error(err))
				results[i] = "down"
				return nil
			}
			results[i] = "up"
			return nil
		})
	}
	_ = g.Wait()

	resp := healthStatus{Status: "ok", Services: make(map[string]string, len(s.checks)), Time: time.Now().UTC()}
	code := http.StatusOK
	for i, check := range s.checks {
		resp.Services[check.Name] = results[i]
		if results[i] != "up" {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	c.JSON(code, resp)
}
