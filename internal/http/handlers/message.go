package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mercadomm/orders-backend/internal/http/response"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/services"
)

type MessageHandler struct {
	log    *logger.Logger
	engine services.DraftEngine
}

func NewMessageHandler(baseLog *logger.Logger, engine services.DraftEngine) *MessageHandler {
	return &MessageHandler{
		log:    baseLog.With("handler", "MessageHandler"),
		engine: engine,
	}
}

type ingestRequest struct {
	ProviderMessageID string `json:"provider_message_id" binding:"required"`
	FromPhone         string `json:"from_phone" binding:"required"`
	CustomerName      string `json:"customer_name"`
	Text              string `json:"text" binding:"required"`
	Timestamp         string `json:"timestamp"`
}

// Ingest accepts a normalized inbound message from any provider bridge.
func (h *MessageHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	in := services.IngestInput{
		ProviderMessageID: req.ProviderMessageID,
		FromPhone:         req.FromPhone,
		CustomerName:      req.CustomerName,
		Text:              req.Text,
	}
	if raw := strings.TrimSpace(req.Timestamp); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_timestamp",
				fmt.Errorf("timestamp must be RFC3339: %w", err))
			return
		}
		in.ProviderTimestamp = &ts
	}

	out, err := h.engine.IngestMessage(c.Request.Context(), in)
	if err != nil {
		h.log.Error("ingest failed", "error", err)
		response.RespondError(c, response.StatusFor(err), "ingest_failed", err)
		return
	}
	response.RespondOK(c, out)
}

// TwilioWebhook handles Twilio's form-encoded WhatsApp callback. Twilio
// retries on non-2xx, so processing errors still return 200 after being
// logged; only a missing MessageSid is rejected.
func (h *MessageHandler) TwilioWebhook(c *gin.Context) {
	sid := strings.TrimSpace(c.PostForm("MessageSid"))
	if sid == "" {
		sid = strings.TrimSpace(c.PostForm("SmsMessageSid"))
	}
	if sid == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_message_sid",
			fmt.Errorf("MessageSid is required"))
		return
	}

	from := strings.TrimSpace(c.PostForm("From"))
	from = strings.TrimPrefix(from, "whatsapp:")

	in := services.IngestInput{
		ProviderMessageID: sid,
		FromPhone:         from,
		CustomerName:      strings.TrimSpace(c.PostForm("ProfileName")),
		Text:              c.PostForm("Body"),
	}
	out, err := h.engine.IngestMessage(c.Request.Context(), in)
	if err != nil {
		h.log.Error("twilio webhook ingest failed", "providerMessageID", sid, "error", err)
		c.Status(http.StatusOK)
		return
	}
	if out.Duplicate {
		h.log.Debug("twilio webhook replayed message", "providerMessageID", sid)
	}
	c.Status(http.StatusOK)
}
