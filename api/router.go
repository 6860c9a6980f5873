package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yourusername/tunepack-go/api/handlers"
	"github.com/yourusername/tunepack-go/api/middleware"
	"github.com/yourusername/tunepack-go/internal/app"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
)

// Dependencies carries everything the HTTP surface needs
type Dependencies struct {
	Orchestrator *app.Orchestrator
	Playlists    *infrastructure.PlaylistClient
	Auth         *infrastructure.AuthClient
	Logger       *zap.Logger
	LogsDir      string
}

// SetupRouter sets up the HTTP router. The returned progress handler
// is wired into the orchestrator's callbacks by the caller so batch
// progress reaches WebSocket clients.
func SetupRouter(deps Dependencies) (*gin.Engine, *handlers.ProgressWebSocketHandler, *handlers.BatchHandler) {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(deps.Logger))
	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(deps.Orchestrator)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	progressHandler := handlers.NewProgressWebSocketHandler(deps.Logger)
	batchHandler := handlers.NewBatchHandler(deps.Orchestrator, deps.Playlists, deps.Logger)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		playlistHandler := handlers.NewPlaylistHandler(deps.Playlists, deps.Logger)
		playlists := v1.Group("/playlists")
		{
			playlists.GET("/search", playlistHandler.Search)
			playlists.GET("/:id", playlistHandler.Detail)
		}

		authHandler := handlers.NewAuthHandler(deps.Auth, deps.Logger)
		auth := v1.Group("/auth")
		{
			auth.GET("/status", authHandler.Status)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
		}

		batches := v1.Group("/batches")
		{
			batches.POST("", batchHandler.StartBatch)
			batches.GET("/current", batchHandler.GetStatus)
			batches.GET("/last", batchHandler.GetLastSummary)
			batches.GET("/progress", progressHandler.HandleWebSocket)
		}

		logHandler := handlers.NewLogHandler(deps.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
		}
	}

	return router, progressHandler, batchHandler
}
