package websocket

import (
	"net/http"

	"echoflow/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS authenticates with the token query parameter (browsers cannot
// set headers on websocket requests) or a bearer header.
func (h *Hub) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		h.logger.Warnw("WebSocket connection rejected: token missing",
			"client_ip", c.ClientIP(),
			"user_agent", c.GetHeader("User-Agent"),
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	id, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		h.logger.Warnw("WebSocket connection rejected: invalid session",
			"client_ip", c.ClientIP(),
			"error", err,
		)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired session"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorw("Failed to upgrade connection", "user_id", id.UserID, "error", err)
		return
	}

	client := newClient(h, conn, id.UserID)
	if !h.add(client) {
		conn.Close()
		return
	}

	h.logger.Infow("WebSocket connection established",
		"client_id", client.ID,
		"user_id", client.UserID,
		"session_id", id.SessionID,
		"client_ip", c.ClientIP(),
	)

	client.subscribeNotices()
	go client.writePump()
	client.readPump()

	client.close()
	h.remove(client)
}
