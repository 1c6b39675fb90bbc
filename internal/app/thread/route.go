package thread

import "github.com/gin-gonic/gin"

func RegisterRoutes(rg *gin.RouterGroup, handler Handler) {
	threads := rg.Group("/threads")
	{
		threads.GET("", handler.ListThreads)
		threads.POST("", handler.CreateThread)
		threads.PATCH("/:id", handler.UpdateThread)
		threads.DELETE("/:id", handler.DeleteThread)
	}
}
