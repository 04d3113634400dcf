package router

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// setupHealthRoutes registers health check endpoints
func (r *Router) setupHealthRoutes() {
	checks := gin.WrapF(r.Container.Health.HTTPHandler())
	r.Engine.GET("/health", checks)
	r.Engine.GET("/api/v1/health", checks)

	r.Engine.GET("/health/live", func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"env":         r.Config.Server.Env,
			"uptime":      time.Since(startTime).Round(time.Second).String(),
			"connections": r.Container.Hub.Connections(),
			"memory": gin.H{
				"alloc_mb":  memStats.Alloc / 1024 / 1024,
				"sys_mb":    memStats.Sys / 1024 / 1024,
				"gc_cycles": memStats.NumGC,
			},
		})
	})
}
