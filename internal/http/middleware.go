package httpapi

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/service"
)

const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

// accessLog пишет строку на каждый запрос и обновляет метрики
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		latency := time.Since(start)

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		}
		if status >= http.StatusInternalServerError {
			logging.Warn(c.Request.Context(), s.logger, "HTTP request", fields...)
			return
		}
		logging.Debug(c.Request.Context(), s.logger, "HTTP request", fields...)
	}
}

// protect проверяет Bearer-токен. Для EventSource, который не умеет заголовки, токен принимается и из ?token=.
func (s *Server) protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if header := c.GetHeader("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Message: "unauthorized: invalid header format"})
				return
			}
			token = strings.TrimSpace(parts[1])
		} else {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Message: "unauthorized: missing token"})
			return
		}

		claims, err := s.issuer.Parse(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{Message: "unauthorized: invalid token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

func requireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !slices.Contains(roles, actor(c).Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, envelope{Message: "forbidden: insufficient role"})
			return
		}
		c.Next()
	}
}

// actor пользователь, установленный protect
func actor(c *gin.Context) service.Actor {
	var a service.Actor
	if v, ok := c.Get(ctxUserID); ok {
		a.UserID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ctxRole); ok {
		a.Role, _ = v.(domain.Role)
	}
	return a
}
