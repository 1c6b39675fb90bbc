package user

import (
	"errors"
	"net/http"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/upload"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	GetUser(c *gin.Context)
	UpdateProfile(c *gin.Context)
	UploadAvatar(c *gin.Context)
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

type UpdateProfileRequest struct {
	FullName  string `json:"fullName" binding:"max=100"`
	AvatarURL string `json:"avatarUrl" binding:"omitempty,url,max=2048"`
}

// @Summary Get current user
// @Tags User
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/user [get]
func (h *handler) GetUser(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	user, err := h.service.GetUser(c.Request.Context(), id.UserID)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.logger.Errorw("GetUser: failed", "uid", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// @Summary Update profile
// @Description Merge non-empty profile fields into the current user
// @Tags User
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Router /api/user [patch]
func (h *handler) UpdateProfile(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warnw("UpdateProfile: invalid request", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid profile"})
		return
	}

	user, err := h.service.MergeProfile(c.Request.Context(), id.UserID, Profile{
		FullName:  req.FullName,
		AvatarURL: req.AvatarURL,
	})
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}
	if err != nil {
		h.logger.Errorw("UpdateProfile: failed", "uid", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, user.ToResponse())
}

// @Summary Upload avatar
// @Tags User
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 200 {object} Response
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/user/avatar [post]
func (h *handler) UploadAvatar(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}

	user, err := h.service.UploadAvatar(c.Request.Context(), id.UserID, file)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, user.ToResponse())
	case errors.Is(err, upload.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, upload.ErrUnsupportedType),
		errors.Is(err, upload.ErrFileTooLarge),
		errors.Is(err, upload.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
	default:
		h.logger.Errorw("UploadAvatar: failed", "uid", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to upload avatar"})
	}
}
