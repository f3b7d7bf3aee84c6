package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/ytrelay-go/api/handlers"
	"github.com/yourusername/ytrelay-go/api/middleware"
	"github.com/yourusername/ytrelay-go/internal/app"
	"github.com/yourusername/ytrelay-go/internal/domain"
	"github.com/yourusername/ytrelay-go/internal/infrastructure"
	"github.com/yourusername/ytrelay-go/pkg/logger"
)

// Services bundles the components the HTTP layer dispatches to
type Services struct {
	Media        *app.MediaService
	Orchestrator *app.TaskOrchestrator
	Hub          *app.ProgressHub
	Relay        *infrastructure.StreamRelay
	Files        *app.FileServer
	Checker      domain.ReadinessChecker
	AudioExt     string
	LogsDir      string
}

// SetupRouter sets up the HTTP router
func SetupRouter(svc Services, logAdapter *logger.LoggerAdapter) *gin.Engine {
	router := gin.New()

	router.Use(middleware.LoggerWithAdapter(logAdapter))
	router.Use(middleware.RecoveryWithAdapter(logAdapter))
	router.Use(middleware.CORS())

	// Health endpoints
	healthHandler := handlers.NewHealthHandler(svc.Orchestrator, svc.Hub, svc.Checker)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Progress subscriptions
	wsHandler := handlers.NewProgressWebSocketHandler(svc.Hub, logAdapter.General())
	router.GET("/ws/:client_id", wsHandler.HandleWebSocket)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		downloadHandler := handlers.NewDownloadHandler(svc.Media, svc.Orchestrator, svc.Relay, svc.AudioExt, logAdapter)
		fileHandler := handlers.NewFileHandler(svc.Files, logAdapter)
		download := v1.Group("/download")
		{
			download.POST("/info", downloadHandler.Info)
			download.POST("/start", downloadHandler.Start)
			download.POST("/stream", downloadHandler.Stream)
			download.GET("/file/:filename", fileHandler.Serve)
		}

		// Log endpoints
		logHandler := handlers.NewLogHandler(svc.LogsDir)
		logs := v1.Group("/logs")
		{
			logs.GET("/categories", logHandler.GetCategories)
			logs.GET("/:category", logHandler.GetLogs)
			logs.GET("/:category/search", logHandler.SearchLogs)
			logs.GET("/:category/export", logHandler.ExportLogs)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
	})

	return router
}
