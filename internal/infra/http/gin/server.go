package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"convo/internal/infra/config"
	"convo/internal/infra/obs"
)

type ConversationHTTP interface {
	Start(c *gin.Context)
	List(c *gin.Context)
	AddParticipants(c *gin.Context)
	RemoveParticipant(c *gin.Context)
	Rename(c *gin.Context)
	Leave(c *gin.Context)
}

type MessageHTTP interface {
	List(c *gin.Context)
	Send(c *gin.Context)
}

type UploadHTTP interface {
	Upload(c *gin.Context)
}

type Handlers struct {
	Conversations  ConversationHTTP
	Messages       MessageHTTP
	Uploads        UploadHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.Env, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine without binding it to an address.
func NewRouter(env string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.AccessLog())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			obs.RequestIDHeader,
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Conversations != nil {
		group := api.Group("/conversations")
		group.POST("", h.Conversations.Start)
		group.GET("", h.Conversations.List)
		group.PATCH("/:id", h.Conversations.Rename)
		group.DELETE("/:id", h.Conversations.Leave)
		group.POST("/:id/participants", h.Conversations.AddParticipants)
		group.DELETE("/:id/participants", h.Conversations.RemoveParticipant)
	}
	if h.Messages != nil {
		api.GET("/messages", h.Messages.List)
		api.POST("/messages", h.Messages.Send)
	}
	if h.Uploads != nil {
		api.POST("/uploads", h.Uploads.Upload)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
