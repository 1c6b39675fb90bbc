package chat

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the send endpoint behind the given middleware,
// typically the rate limiter.
func RegisterRoutes(rg *gin.RouterGroup, handler Handler, middleware ...gin.HandlerFunc) {
	handlers := append(middleware, handler.SendMessage)
	rg.POST("/threads/:id/messages", handlers...)
}
