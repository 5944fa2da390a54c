package routes

import (
	"relay-service/internal/api/handlers"
	"relay-service/internal/api/middleware"
	"relay-service/internal/config"
	"relay-service/internal/database"
	"relay-service/internal/identity"
	"relay-service/internal/presence"
	"relay-service/internal/repositories/postgres"
	"relay-service/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	engine          *gin.Engine
	cfg             *config.Config
	wsHandler       *handlers.WSHandler
	messageHandler  *handlers.MessageHandler
	presenceHandler *handlers.PresenceHandler
	uploadHandler   *handlers.UploadHandler
	rateLimitMW     *middleware.RateLimitMiddleware
	authMW          *middleware.AuthMiddleware
	provider        identity.Provider
}

func NewRouter(
	cfg *config.Config,
	hub *ws.Hub,
	registry *presence.Registry,
	provider identity.Provider,
	redisClient *redis.Client,
	db *gorm.DB,
	storage *database.MinIOClient,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.LogAPI())

	messageRepo := postgres.NewMessageRepository(db)
	userRepo := postgres.NewUserRepository(db)

	return &Router{
		engine:          engine,
		cfg:             cfg,
		wsHandler:       handlers.NewWSHandler(hub),
		messageHandler:  handlers.NewMessageHandler(messageRepo, userRepo),
		presenceHandler: handlers.NewPresenceHandler(registry),
		uploadHandler:   handlers.NewUploadHandler(storage),
		rateLimitMW:     middleware.NewRateLimitMiddleware(redisClient),
		authMW:          middleware.NewAuthMiddleware(provider),
		provider:        provider,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	limits := r.cfg.Limits

	// Socket endpoint: credential verified during the handshake, before
	// the connection can reach the hub. IP-limited since it runs ahead
	// of authentication.
	api.GET("/ws",
		r.rateLimitMW.RateLimitIP(limits.HTTPIPRequests, limits.HTTPWindow),
		middleware.WSAuth(r.provider),
		r.wsHandler.HandleWebSocket,
	)

	authed := api.Group("")
	authed.Use(r.authMW.RequireAuth())
	authed.Use(r.rateLimitMW.RateLimit(limits.HTTPRequests, limits.HTTPWindow))
	{
		authed.GET("/messages/:userId", r.messageHandler.GetConversation)
		authed.PUT("/messages/:id/read", r.messageHandler.MarkRead)
		authed.GET("/presence/:userId", r.presenceHandler.GetStatus)
		authed.POST("/uploads", r.uploadHandler.Upload)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
