package share

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	GetPublicThread(c *gin.Context)
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

// @Summary Get a shared thread
// @Description Read-only view of a thread its owner made public
// @Tags Share
// @Produce json
// @Param id path string true "Thread ID"
// @Success 200 {object} PublicThread
// @Failure 404 {object} ErrorResponse
// @Router /api/share/{id} [get]
func (h *handler) GetPublicThread(c *gin.Context) {
	threadID := c.Param("id")

	public, err := h.service.GetPublicThreadData(c.Request.Context(), threadID)
	if err != nil {
		h.logger.Errorw("GetPublicThread: failed", "thread_id", threadID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load chat"})
		return
	}
	if public == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "chat not found"})
		return
	}
	c.JSON(http.StatusOK, public)
}
