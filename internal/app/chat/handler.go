package chat

import (
	"errors"
	"net/http"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/thread"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	SendMessage(c *gin.Context)
}

type handler struct {
	service Service
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, logger *zap.Logger) Handler {
	return &handler{
		service: service,
		logger:  logger.Sugar(),
	}
}

// @Summary Send a message
// @Description Append a user message (or rewrite one with isRetry) and store the assistant's reply
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Thread ID"
// @Param request body SendRequest true "Message"
// @Success 201 {object} SendResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} SendResult
// @Failure 429 {object} ErrorResponse
// @Failure 502 {object} SendResult
// @Router /api/threads/{id}/messages [post]
func (h *handler) SendMessage(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "content is required"})
		return
	}

	threadID := c.Param("id")
	result, err := h.service.SendMessage(c.Request.Context(), id, threadID, req)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, result)
	case errors.Is(err, ErrCompletionFailed):
		c.JSON(http.StatusBadGateway, result)
	case errors.Is(err, ErrEmptyContent), errors.Is(err, ErrContentTooLong), errors.Is(err, ErrInvalidRetryTarget):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, thread.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "thread not found"})
	case errors.Is(err, ErrSendInProgress):
		c.JSON(http.StatusConflict, SendResult{State: StateSending, Error: err.Error()})
	default:
		h.logger.Errorw("SendMessage: failed", "thread_id", threadID, "user_id", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to send message"})
	}
}
