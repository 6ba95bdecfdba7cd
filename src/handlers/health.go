package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ServiceName and Version are reported by /info
const (
	ServiceName = "webhook-inbox"
	Version     = "1.0.0"
)

var startTime = time.Now()

// HealthChecker reports whether the event store is reachable
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SchedulerStatus reports whether background processing is running
type SchedulerStatus interface {
	Running() bool
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store     HealthChecker
	scheduler SchedulerStatus
	storeName string
}

// NewHealthHandler creates a new health handler; scheduler may be nil
func NewHealthHandler(store HealthChecker, scheduler SchedulerStatus, storeName string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		scheduler: scheduler,
		storeName: storeName,
	}
}

// HandleHealth returns health status with a store check
func (hh *HealthHandler) HandleHealth(c *gin.Context) {
	start := time.Now()
	err := hh.store.Health(c.Request.Context())
	latency := time.Since(start)

	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"store":  "disconnected",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"store":         "connected",
		"store_latency": latency.String(),
		"processor":     hh.processorState(),
		"uptime":        time.Since(startTime).String(),
	})
}

// HandleInfo returns service information
func (hh *HealthHandler) HandleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   ServiceName,
		"version":   Version,
		"store":     hh.storeName,
		"processor": hh.processorState(),
		"uptime":    time.Since(startTime).String(),
	})
}

// HandleReady returns readiness status (for load balancers)
func (hh *HealthHandler) HandleReady(c *gin.Context) {
	if err := hh.store.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}

func (hh *HealthHandler) processorState() string {
	if hh.scheduler == nil {
		return "disabled"
	}
	if hh.scheduler.Running() {
		return "running"
	}
	return "stopped"
}
