// Package api serves reports, diffs and update summaries over HTTP.
package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pluginsync/pkg/scheduler"
	"pluginsync/pkg/store"
)

// RegisterRoutes mounts every endpoint on router. runner may be nil, in
// which case POST /api/v1/scan answers 503. Scans started over HTTP run
// under runCtx rather than the request context.
func RegisterRoutes(router *gin.Engine, s store.Store, runner *scheduler.Runner, runCtx context.Context) {
	router.GET("/healthz", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/report", combinedReportHandler(s))
	router.GET("/machines/:machine/report", machineReportHandler(s))

	apiGroup := router.Group("/api/v1")
	{
		apiGroup.GET("/reports", reportsHandler(s))
		apiGroup.GET("/diff", diffHandler(s))
		apiGroup.GET("/summary", summaryHandler(s))
		apiGroup.GET("/machines/:machine/updates", machineUpdatesHandler(s))
		apiGroup.POST("/scan", scanHandler(runner, runCtx))
	}
}
