package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/clipseek/clipseek/internal/database"
	"github.com/clipseek/clipseek/internal/vectorstore"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *database.DB
	store     vectorstore.Store
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(version string, db *database.DB, store vectorstore.Store) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		db:        db,
		store:     store,
	}
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// MemoryInfo reports host memory usage.
type MemoryInfo struct {
	TotalMB     uint64  `json:"total_mb"`
	AvailableMB uint64  `json:"available_mb"`
	UsedPercent float64 `json:"used_percent"`
}

// HealthOutput is the output for the health endpoint.
type HealthOutput struct {
	Body struct {
		Status        string            `json:"status"`
		Version       string            `json:"version"`
		Timestamp     string            `json:"timestamp"`
		UptimeSeconds float64           `json:"uptime_seconds"`
		Goroutines    int               `json:"goroutines"`
		VectorChunks  int               `json:"vector_chunks"`
		Memory        *MemoryInfo       `json:"memory,omitempty"`
		Checks        map[string]string `json:"checks"`
	}
}

// GetHealth reports service and host state.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	now := time.Now()

	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = h.version
	out.Body.Timestamp = now.UTC().Format(time.RFC3339)
	out.Body.UptimeSeconds = now.Sub(h.startTime).Seconds()
	out.Body.Goroutines = runtime.NumGoroutine()
	out.Body.Checks = map[string]string{}
	if h.store != nil {
		out.Body.VectorChunks = h.store.Count()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out.Body.Memory = &MemoryInfo{
			TotalMB:     vm.Total / (1024 * 1024),
			AvailableMB: vm.Available / (1024 * 1024),
			UsedPercent: vm.UsedPercent,
		}
	}

	dbStatus := "ok"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			dbStatus = "error"
			out.Body.Status = "degraded"
		}
	}
	out.Body.Checks["database"] = dbStatus

	return out, nil
}
