package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	"github.com/mercadomm/orders-backend/internal/http/response"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/services"
)

type OrderHandler struct {
	log     *logger.Logger
	orders  repos.OrderRepo
	actions services.OrderActions
}

func NewOrderHandler(baseLog *logger.Logger, orders repos.OrderRepo, actions services.OrderActions) *OrderHandler {
	return &OrderHandler{
		log:     baseLog.With("handler", "OrderHandler"),
		orders:  orders,
		actions: actions,
	}
}

func (h *OrderHandler) List(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))
	limit, offset := pagination(c)

	var customerID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("customer_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_customer_id", err)
			return
		}
		customerID = &id
	}

	orders, err := h.orders.List(c.Request.Context(), nil, status, customerID, limit, offset)
	if err != nil {
		h.log.Error("list orders failed", "error", err)
		response.RespondError(c, response.StatusFor(err), "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"orders": orders})
}

func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.GetByID(c.Request.Context(), nil, orderID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "get_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"order": order})
}

func (h *OrderHandler) History(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	history, err := h.orders.ListHistory(c.Request.Context(), nil, orderID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "history_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"history": history})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.actions.CancelOrder(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "cancel_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"order": order})
}

type moveStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *OrderHandler) MoveStatus(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req moveStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	order, err := h.actions.MoveOrderStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "move_status_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"order": order})
}

func (h *OrderHandler) Ask(c *gin.Context) {
	orderID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	draft, err := h.actions.AskOrderQuestion(c.Request.Context(), orderID, req.Question, req.ReplyType)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "ask_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"sent": true, "draft": draft})
}
