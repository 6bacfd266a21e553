package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"access-portal/internal/api/dispatch"
	"access-portal/internal/api/interfaces"
	"access-portal/internal/api/models"
)

// Version is reported by the health endpoint.
var Version = "1.0.0"

var startTime = time.Now()

// HealthCheck reports whether the database answers a ping.
func HealthCheck(services interfaces.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		start := time.Now()
		dbCheck := models.HealthCheck{Status: "healthy"}
		if err := services.Ping(ctx); err != nil {
			services.GetLogger().Error("Database health check failed: %v", err)
			dbCheck = models.HealthCheck{Status: "unhealthy", Message: "database unreachable"}
		}
		dbCheck.Latency = time.Since(start).Round(time.Millisecond).String()

		status := http.StatusOK
		overall := "healthy"
		if dbCheck.Status != "healthy" {
			status = http.StatusServiceUnavailable
			overall = "unhealthy"
		}

		c.JSON(status, models.HealthCheckResponse{
			Status:    overall,
			Timestamp: time.Now().Unix(),
			Version:   Version,
			Uptime:    int64(time.Since(startTime).Seconds()),
			Checks:    map[string]models.HealthCheck{"database": dbCheck},
		})
	}
}

// GetSystemStats returns runtime statistics of the server process.
func GetSystemStats(services interfaces.Services) dispatch.HandlerFunc {
	return func(c *gin.Context) error {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		stats := map[string]interface{}{
			"server": map[string]interface{}{
				"uptime":       time.Since(startTime).Seconds(),
				"goroutines":   runtime.NumGoroutine(),
				"memory_alloc": bToMb(m.Alloc),
				"memory_total": bToMb(m.TotalAlloc),
				"memory_sys":   bToMb(m.Sys),
				"gc_runs":      m.NumGC,
			},
			"database":  services.GetConfig().Database.Type,
			"timestamp": time.Now().Unix(),
		}

		c.JSON(http.StatusOK, models.SuccessResponse{
			Success: true,
			Data:    stats,
		})
		return nil
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
