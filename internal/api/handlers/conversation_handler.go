package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
)

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type ConversationListResponse struct {
	SessionID     string                   `json:"session_id"`
	Conversations []models.ConversationLog `json:"conversations"`
}

func (h *ConversationHandler) ListBySession(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}

	limit := 50
	if s := c.Query("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := h.svc.ListBySession(c.Request.Context(), userID, sessionID, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ConversationListResponse{SessionID: sessionID, Conversations: rows})
}
