package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tverberg/opds-hub/app/catalog"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, metrics *catalog.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	setupRoutes(r, handler, metrics)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, metrics *catalog.Metrics) {
	r.GET("/health", handler.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	r.GET("/catalogs", handler.ListCatalogs)

	r.POST("/sessions", handler.OpenSession)
	sessions := r.Group("/sessions/:id")
	{
		sessions.DELETE("", handler.CloseSession)
		sessions.GET("/rows", handler.GetRows)
		sessions.POST("/navigate", handler.Navigate)
		sessions.POST("/back", handler.GoBack)
		sessions.POST("/more", handler.LoadMore)
		sessions.POST("/refresh", handler.Refresh)
		sessions.POST("/downloads", handler.StartDownload)
		sessions.POST("/fix-timestamps", handler.FixTimestamps)
	}

	downloads := r.Group("/downloads/:id")
	{
		downloads.GET("", handler.GetDownload)
		downloads.POST("/cancel", handler.CancelDownload)
	}
}
