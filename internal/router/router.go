package router

import (
	_ "echoflow/docs"
	"echoflow/internal/app/chat"
	"echoflow/internal/app/health"
	"echoflow/internal/app/message"
	"echoflow/internal/app/session"
	"echoflow/internal/app/share"
	"echoflow/internal/app/thread"
	"echoflow/internal/app/user"
	"echoflow/internal/gateways/websocket"
	"echoflow/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type Router struct {
	Engine *gin.Engine
	// Public serves /api without authentication.
	Public *gin.RouterGroup
	// Protected serves /api behind the auth middleware.
	Protected *gin.RouterGroup
}

func NewRouter(logger *zap.Logger, frontendURL string, auth middleware.Authenticator) *Router {
	engine := gin.New()
	engine.Use(middleware.CORSMiddleware(frontendURL))
	engine.Use(middleware.LoggerMiddleware(logger))
	engine.Use(gin.Recovery())

	return &Router{
		Engine:    engine,
		Public:    engine.Group("/api"),
		Protected: engine.Group("/api", middleware.Auth(auth, logger)),
	}
}

func (r *Router) RegisterHealthRoutes(handler health.Handler) {
	health.RegisterRoutes(r.Public, handler)
}

func (r *Router) RegisterWebSocketRoutes(hub *websocket.Hub) {
	websocket.RegisterRoutes(r.Engine, hub)
}

func (r *Router) RegisterSessionRoutes(handler session.Handler) {
	session.RegisterRoutes(r.Public, r.Protected, handler)
}

func (r *Router) RegisterUserRoutes(handler user.Handler) {
	user.RegisterRoutes(r.Protected, handler)
}

func (r *Router) RegisterThreadRoutes(handler thread.Handler) {
	thread.RegisterRoutes(r.Protected, handler)
}

func (r *Router) RegisterMessageRoutes(handler message.Handler) {
	message.RegisterRoutes(r.Protected, handler)
}

func (r *Router) RegisterChatRoutes(handler chat.Handler, limiters ...gin.HandlerFunc) {
	chat.RegisterRoutes(r.Protected, handler, limiters...)
}

func (r *Router) RegisterShareRoutes(handler share.Handler) {
	share.RegisterRoutes(r.Public, handler)
}

func (r *Router) RegisterMetricsRoutes() {
	r.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (r *Router) RegisterSwaggerRoutes() {
	r.Engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (r *Router) Serve(addr string) error {
	return r.Engine.Run(addr)
}
