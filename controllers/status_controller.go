package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yashrajoria/E-Commerce-loadgen/stats"
)

// StatsSource is the live statistics of the running population.
type StatsSource interface {
	Snapshot() stats.Snapshot
	Reset()
}

// StatusController serves the load generator's own status endpoints.
type StatusController struct {
	stats StatsSource
	log   *zap.Logger
}

func NewStatusController(s StatsSource, log *zap.Logger) *StatusController {
	return &StatusController{stats: s, log: log}
}

// Health handles GET /health
func (sc *StatusController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats handles GET /stats
func (sc *StatusController) Stats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, sc.stats.Snapshot())
}

// ResetStats handles POST /stats/reset
func (sc *StatusController) ResetStats(ctx *gin.Context) {
	sc.stats.Reset()
	sc.log.Info("Statistics reset", zap.String("client_ip", ctx.ClientIP()))
	ctx.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}
