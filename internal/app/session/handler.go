package session

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"echoflow/internal/app/identity"
	"echoflow/internal/app/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler interface {
	SignUp(c *gin.Context)
	SignIn(c *gin.Context)
	SignOut(c *gin.Context)
}

type handler struct {
	service Service
	logger  *zap.SugaredLogger
}

func NewHandler(service Service, logger *zap.Logger) Handler {
	return &handler{service: service, logger: logger.Sugar()}
}

// @Summary Sign up
// @Description Create an account with email and password and start a session
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignUpRequest true "Credentials"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/auth/signup [post]
func (h *handler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "a valid email and a password of at least 6 characters are required"})
		return
	}

	resp, err := h.service.SignUp(c.Request.Context(), req, clientMeta(c))
	if errors.Is(err, user.ErrEmailTaken) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("SignUp: failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to create account"})
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignInRequest true "Credentials"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/login [post]
func (h *handler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email and password are required"})
		return
	}

	resp, err := h.service.SignIn(c.Request.Context(), req, clientMeta(c))
	if errors.Is(err, ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Errorw("SignIn: failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to sign in"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Log out
// @Tags Auth
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Router /api/auth/logout [post]
func (h *handler) SignOut(c *gin.Context) {
	id, err := identity.From(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: err.Error()})
		return
	}

	if err := h.service.SignOut(c.Request.Context(), id); err != nil {
		h.logger.Errorw("SignOut: failed", "uid", id.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to sign out"})
		return
	}

	c.Status(http.StatusNoContent)
}

func clientMeta(c *gin.Context) ClientMeta {
	return ClientMeta{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        extractIP(c),
	}
}

func extractIP(c *gin.Context) string {
	clientIP := c.GetHeader("X-Forwarded-For")
	if clientIP != "" {
		ips := strings.Split(clientIP, ",")
		if netIP := net.ParseIP(strings.TrimSpace(ips[0])); netIP != nil {
			return netIP.String()
		}
	}

	if netIP := net.ParseIP(c.GetHeader("X-Real-IP")); netIP != nil {
		return netIP.String()
	}

	ip, _, _ := net.SplitHostPort(c.Request.RemoteAddr)
	return ip
}
