package session

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the public auth endpoints on rg and logout on
// protected, which must run the auth middleware.
func RegisterRoutes(rg *gin.RouterGroup, protected *gin.RouterGroup, handler Handler) {
	auth := rg.Group("/auth")
	{
		auth.POST("/signup", handler.SignUp)
		auth.POST("/login", handler.SignIn)
	}
	protected.POST("/auth/logout", handler.SignOut)
}
