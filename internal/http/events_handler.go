package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetguard/internal/events"
	"fleetguard/internal/http/middleware"
)

// streamEvents upgrades to a websocket that receives the caller's session events, or all of them for admins.
func (h *Handler) streamEvents(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("principal missing"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("worker_id", principal.WorkerID).Msg("websocket upgrade failed")
		return
	}
	events.NewClient(h.hub, conn, principal.WorkerID, principal.IsAdmin()).Serve()
}
