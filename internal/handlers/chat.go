package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scholarport/backend/internal/services"
)

type ChatHandler struct {
	conversationService services.ConversationService
}

func NewChatHandler(conversationService services.ConversationService) *ChatHandler {
	return &ChatHandler{conversationService: conversationService}
}

func (ch *ChatHandler) Start(c *gin.Context) {
	result, err := ch.conversationService.Start(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
		return
	}
	RespondOK(c, result)
}

type sendMessageRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("message must not be empty"))
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid session_id"))
		return
	}

	result, err := ch.conversationService.ProcessTurn(c.Request.Context(), sessionID, req.Message)
	if err != nil {
		ch.respondTurnError(c, err)
		return
	}
	RespondOK(c, result)
}

func (ch *ChatHandler) History(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid session_id"))
		return
	}

	messages, err := ch.conversationService.History(c.Request.Context(), sessionID)
	if err != nil {
		ch.respondTurnError(c, err)
		return
	}
	RespondOK(c, gin.H{"messages": messages})
}

type consentRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Consent   *bool  `json:"consent" binding:"required"`
}

func (ch *ChatHandler) SetConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid session_id"))
		return
	}

	result, err := ch.conversationService.SetConsent(c.Request.Context(), sessionID, *req.Consent)
	if err != nil {
		ch.respondTurnError(c, err)
		return
	}
	RespondOK(c, result)
}

func (ch *ChatHandler) respondTurnError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, services.ErrAlreadyCompleted):
		RespondError(c, http.StatusConflict, "already_completed", err)
	case errors.Is(err, services.ErrSessionBusy):
		RespondError(c, http.StatusConflict, "session_busy", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
