package httpapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/realtime"
)

const streamHeartbeat = 25 * time.Second

// @Summary Realtime event stream
// @Description Server-sent events for the caller's room: delivery_status_update and courier_assigned.
// @Tags realtime
// @Produce text/event-stream
// @Security BearerAuth
// @Param token query string false "JWT for clients that cannot set headers"
// @Success 200
// @Router /realtime/stream [get]
func (s *Server) stream(c *gin.Context) {
	ctx := c.Request.Context()
	room := realtime.UserRoom(actor(c).UserID)

	events, unsubscribe, err := s.broker.Subscribe(ctx, room)
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"room": room})
	c.Writer.Flush()

	logging.Debug(ctx, s.logger, "Realtime stream opened", zap.String("room", room))
	defer logging.Debug(ctx, s.logger, "Realtime stream closed", zap.String("room", room))

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, ev.Payload)
			return true
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Unix())
			return true
		}
	})
}
