package httptransport

import (
	"log/slog"

	"github.com/GigaElk/schedfleet/internal/transport/http/handler"
	"github.com/GigaElk/schedfleet/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, fleetHandler *handler.FleetHandler, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(hmacKey)

	// Read-only observability routes
	schedulers := r.Group("/schedulers")
	schedulers.GET("", fleetHandler.ListHealth)
	schedulers.GET("/:name", fleetHandler.GetHealth)
	schedulers.GET("/:name/metrics", fleetHandler.GetMetrics)

	r.GET("/fleet/metrics", fleetHandler.ListMetrics)
	r.GET("/fleet/snapshot", fleetHandler.ExportSnapshot)
	r.GET("/events", fleetHandler.Events)
	r.GET("/recovery/history", fleetHandler.RecoveryHistory)
	r.GET("/readiness", fleetHandler.Readiness)

	// Lifecycle commands require an operator token
	schedulers.POST("/:name/start", authMW, fleetHandler.Start)
	schedulers.POST("/:name/stop", authMW, fleetHandler.Stop)
	schedulers.POST("/:name/restart", authMW, fleetHandler.Restart)
	schedulers.POST("/:name/recover", authMW, fleetHandler.Recover)

	fleetGroup := r.Group("/fleet", authMW)
	fleetGroup.POST("/start", fleetHandler.StartAll)
	fleetGroup.POST("/stop", fleetHandler.StopAll)
	fleetGroup.POST("/snapshot", fleetHandler.ImportSnapshot)

	return r
}
