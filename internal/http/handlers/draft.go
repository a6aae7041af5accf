package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mercadomm/orders-backend/internal/data/repos"
	types "github.com/mercadomm/orders-backend/internal/domain"
	"github.com/mercadomm/orders-backend/internal/http/response"
	"github.com/mercadomm/orders-backend/internal/pkg/logger"
	"github.com/mercadomm/orders-backend/internal/services"
)

type DraftHandler struct {
	log     *logger.Logger
	drafts  repos.DraftRepo
	links   repos.DraftMessageRepo
	actions services.OrderActions
}

func NewDraftHandler(baseLog *logger.Logger, drafts repos.DraftRepo, links repos.DraftMessageRepo, actions services.OrderActions) *DraftHandler {
	return &DraftHandler{
		log:     baseLog.With("handler", "DraftHandler"),
		drafts:  drafts,
		links:   links,
		actions: actions,
	}
}

func (h *DraftHandler) List(c *gin.Context) {
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

	drafts, err := h.drafts.List(c.Request.Context(), nil, status, customerID, limit, offset)
	if err != nil {
		h.log.Error("list drafts failed", "error", err)
		response.RespondError(c, response.StatusFor(err), "list_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"drafts": drafts})
}

func (h *DraftHandler) Get(c *gin.Context) {
	draftID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	draft, err := h.drafts.GetByID(c.Request.Context(), nil, draftID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "get_failed", err)
		return
	}
	messages, err := h.links.ListByDraft(c.Request.Context(), nil, draftID)
	if err != nil {
		h.log.Warn("list draft messages failed", "draftID", draftID, "error", err)
		messages = []*types.DraftMessage{}
	}
	response.RespondOK(c, gin.H{"draft": draft, "messages": messages})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *DraftHandler) Cancel(c *gin.Context) {
	draftID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	draft, err := h.actions.CancelDraft(c.Request.Context(), draftID, req.Reason)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "cancel_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"draft": draft})
}

func (h *DraftHandler) Finalize(c *gin.Context) {
	draftID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	draft, err := h.actions.ForceFinalizeDraft(c.Request.Context(), draftID)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "finalize_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"draft": draft})
}

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	ReplyType string `json:"reply_type"`
}

func (h *DraftHandler) Ask(c *gin.Context) {
	draftID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	draft, err := h.actions.AskDraftQuestion(c.Request.Context(), draftID, req.Question, req.ReplyType)
	if err != nil {
		response.RespondError(c, response.StatusFor(err), "ask_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"draft": draft})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id",
			fmt.Errorf("%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
