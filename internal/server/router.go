package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/scholarport/backend/internal/handlers"
	"github.com/scholarport/backend/internal/middleware"
)

type RouterConfig struct {
	ChatHandler    *handlers.ChatHandler
	AdminHandler   *handlers.AdminHandler
	AuthMiddleware *middleware.AuthMiddleware
	AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("scholarport"))

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.POST("/start", cfg.ChatHandler.Start)
			chat.POST("/message", cfg.ChatHandler.SendMessage)
			chat.GET("/:session_id/history", cfg.ChatHandler.History)
			chat.POST("/consent", cfg.ChatHandler.SetConsent)
		}

		admin := api.Group("/admin")
		admin.Use(cfg.AuthMiddleware.RequireAdmin())
		{
			admin.GET("/profiles", cfg.AdminHandler.ListProfiles)
			admin.GET("/profiles/stats", cfg.AdminHandler.Stats)
			admin.GET("/profiles/export", cfg.AdminHandler.Export)
		}
	}

	return router
}
