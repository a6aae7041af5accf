package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/realtime"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *realtime.Hub
}

func NewRealtimeHandler(baseLog *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		log: baseLog.With("handler", "RealtimeHandler"),
		hub: hub,
	}
}

// Stream opens an SSE connection. Subscriptions come from the channels
// query param; with none given the client gets both order channels.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	client := h.hub.NewClient()
	defer h.hub.CloseClient(client)

	channels := []string{realtime.ChannelOrders, realtime.ChannelDrafts}
	if raw := strings.TrimSpace(c.Query("channels")); raw != "" {
		channels = channels[:0]
		for _, ch := range strings.Split(raw, ",") {
			if ch = strings.TrimSpace(ch); ch != "" {
				channels = append(channels, ch)
			}
		}
	}
	for _, ch := range channels {
		h.hub.Subscribe(client, ch)
	}

	h.log.Debug("realtime client connected", "clientID", client.ID, "channels", channels)
	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
