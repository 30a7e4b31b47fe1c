package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/monitoring"
)

// StatsHandler serves the JSON stats endpoint: a human-readable counterpart
// to the Prometheus exposition at /metrics.
type StatsHandler struct {
	metrics *monitoring.Metrics
	manager *terminal.Manager
}

// NewStatsHandler creates the stats endpoint handler.
func NewStatsHandler(metrics *monitoring.Metrics, manager *terminal.Manager) *StatsHandler {
	return &StatsHandler{metrics: metrics, manager: manager}
}

// Stats handles GET /metrics/json
func (s *StatsHandler) Stats(c *gin.Context) {
	snap := s.metrics.GetSnapshot()
	sessions := s.manager.Stats()

	var errorRate float64
	if snap.TotalRequests > 0 {
		errorRate = float64(snap.TotalErrors) / float64(snap.TotalRequests)
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now(),
		"sessions":  sessions,
		"stream": gin.H{
			"output_frames":  snap.OutputFrames,
			"output_bytes":   snap.OutputBytes,
			"input_bytes":    snap.InputBytes,
			"input_rejected": snap.InputRejected,
			"dropped_frames": snap.DroppedFrames,
		},
		"http": gin.H{
			"total_requests":  snap.TotalRequests,
			"total_errors":    snap.TotalErrors,
			"error_rate":      errorRate,
			"avg_duration_ms": snap.AvgDurationMs,
		},
		"lifecycle": gin.H{
			"sessions_created": snap.SessionsCreated,
			"session_restarts": snap.SessionRestarts,
		},
		"connections":    snap.ActiveConnections,
		"uptime_seconds": snap.UptimeSeconds,
	})
}
