package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	"github.com/mercadomm/orders-backend/internal/http/response"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
)

type CustomerHandler struct {
	log       *logger.Logger
	customers repos.CustomerRepo
	messages  repos.InboundMessageRepo
}

func NewCustomerHandler(baseLog *logger.Logger, customers repos.CustomerRepo, messages repos.InboundMessageRepo) *CustomerHandler {
	return &CustomerHandler{
		log:       baseLog.With("handler", "CustomerHandler"),
		customers: customers,
		messages:  messages,
	}
}

func (h *CustomerHandler) List(c *gin.Context) {
	limit, offset := pagination(c)
	customers, err := h.customers.List(c.Request.Context(), nil, limit, offset)
	if err != nil {
		h.log.Error("list customers failed", "error", err)
		response.RespondError(c, response.StatusFor(err), "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"customers": customers})
}

func (h *CustomerHandler) Get(c *gin.Context) {
	customerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	customer, err := h.customers.GetByID(c.Request.Context(), nil, customerID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "get_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"customer": customer})
}

// Messages returns the conversation transcript, newest first.
func (h *CustomerHandler) Messages(c *gin.Context) {
	customerID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	messages, err := h.messages.ListByCustomer(c.Request.Context(), nil, customerID, limit)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "messages_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"messages": messages})
}
