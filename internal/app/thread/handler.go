package thread

import (
	"errors"
	"net/http"

	"echoflow/internal/app/identity"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	ListThreads(c *gin.Context)
	CreateThread(c *gin.Context)
	UpdateThread(c *gin.Context)
	DeleteThread(c *gin.Context)
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

// @Summary List threads
// @Description Threads of the current user, most recently active first
// @Tags Threads
// @Produce json
// @Security BearerAuth
// @Success 200 {array} Thread
// @Router /api/threads [get]
func (h *handler) ListThreads(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	threads, err := h.service.ListThreadsForUser(c.Request.Context(), id.UserID)
	if err != nil {
		h.logger.Errorw("ListThreads: failed", "user_id", id.UserID, "error", err)
		threads = []*Thread{}
	}
	c.JSON(http.StatusOK, threads)
}

// @Summary Create thread
// @Tags Threads
// @Produce json
// @Security BearerAuth
// @Success 201 {object} Thread
// @Failure 500 {object} ErrorResponse
// @Router /api/threads [post]
func (h *handler) CreateThread(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	thread, err := h.service.CreateThread(c.Request.Context(), id.UserID)
	if err != nil {
		h.logger.Errorw("CreateThread: failed", "user_id", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create thread"})
		return
	}
	c.JSON(http.StatusCreated, thread)
}

// @Summary Update thread
// @Description Rename a thread or toggle its public share
// @Tags Threads
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Thread ID"
// @Param request body Patch true "Fields to change"
// @Success 200 {object} Thread
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/threads/{id} [patch]
func (h *handler) UpdateThread(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	var patch Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	threadID := c.Param("id")
	if _, err := h.service.GetOwnedThread(c.Request.Context(), id.UserID, threadID); err != nil {
		h.writeError(c, "UpdateThread", threadID, err)
		return
	}

	thread, err := h.service.UpdateThread(c.Request.Context(), threadID, patch)
	if err != nil {
		h.writeError(c, "UpdateThread", threadID, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

// @Summary Delete thread
// @Description Delete a thread together with all of its messages
// @Tags Threads
// @Security BearerAuth
// @Param id path string true "Thread ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /api/threads/{id} [delete]
func (h *handler) DeleteThread(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	threadID := c.Param("id")
	if _, err := h.service.GetOwnedThread(c.Request.Context(), id.UserID, threadID); err != nil {
		h.writeError(c, "DeleteThread", threadID, err)
		return
	}

	if err := h.service.DeleteThreadAndMessages(c.Request.Context(), threadID); err != nil {
		h.writeError(c, "DeleteThread", threadID, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) writeError(c *gin.Context, op, threadID string, err error) {
	switch {
	case errors.Is(err, ErrThreadNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "thread not found"})
	case errors.Is(err, ErrInvalidTitle):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Errorw(op+": failed", "thread_id", threadID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
