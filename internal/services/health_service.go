package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/Roshiii-8511/gainipo-subscription-scraper/internal/storage"
)

// HealthService provides health check functionality
type HealthService struct {
	version   string
	store     storage.SnapshotStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service reporting on store.
func NewHealthService(version string, store storage.SnapshotStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		store:     store,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck reports overall health including the snapshot store.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
		},
		Services: map[string]ServiceHealth{
			"store": hs.checkStore(ctx),
		},
	}

	for _, sh := range status.Services {
		if sh.Status != "ready" {
			status.Status = "degraded"
			break
		}
	}

	hs.logger.Debug("health check completed", slog.String("status", status.Status))
	return status
}

func (hs *HealthService) checkStore(ctx context.Context) ServiceHealth {
	if hs.store == nil {
		return ServiceHealth{Status: "not_ready", Message: "no snapshot store configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := hs.store.ActiveOfferings(ctx); err != nil {
		return ServiceHealth{Status: "not_ready", Message: err.Error()}
	}
	return ServiceHealth{Status: "ready"}
}
