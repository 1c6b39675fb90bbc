package user

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler) {
	users := rg.Group("/user")
	{
		users.GET("", handler.GetUser)
		users.PATCH("", handler.UpdateProfile)
		users.POST("/avatar", handler.UploadAvatar)
	}
}
