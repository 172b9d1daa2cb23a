package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yashrajoria/E-Commerce-loadgen/controllers"
)

// RegisterStatusRoutes sets up the health, statistics and metrics routes.
func RegisterStatusRoutes(r *gin.Engine, sc *controllers.StatusController, gatherer prometheus.Gatherer) {
	r.GET("/health", sc.Health)

	statsGroup := r.Group("/stats")
	statsGroup.GET("", sc.Stats)
	statsGroup.POST("/reset", sc.ResetStats)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
