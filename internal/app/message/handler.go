package message

import (
	"errors"
	"net/http"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/thread"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	ListMessages(c *gin.Context)
}

type handler struct {
	service   Service
	threadSvc thread.Service
	logger    *zap.SugaredLogger
}

func NewHandler(service Service, threadSvc thread.Service, logger *zap.Logger) Handler {
	return &handler{
		service:   service,
		threadSvc: threadSvc,
		logger:    logger.Sugar(),
	}
}

// @Summary List messages
// @Description Messages of a thread in chronological order
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Thread ID"
// @Success 200 {array} Message
// @Failure 404 {object} ErrorResponse
// @Router /api/threads/{id}/messages [get]
func (h *handler) ListMessages(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	threadID := c.Param("id")
	if _, err := h.threadSvc.GetOwnedThread(c.Request.Context(), id.UserID, threadID); err != nil {
		if errors.Is(err, thread.ErrThreadNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "thread not found"})
			return
		}
		h.logger.Errorw("ListMessages: failed to load thread", "thread_id", threadID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	messages, err := h.service.ListMessages(c.Request.Context(), threadID)
	if err != nil {
		h.logger.Errorw("ListMessages: failed", "thread_id", threadID, "error", err)
		messages = []*Message{}
	}
	c.JSON(http.StatusOK, messages)
}
