package handler

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/ChrisHK/label-printer/internal/service"
	"github.com/ChrisHK/label-printer/pkg/response"
)

// PoolStats reports connection pool usage.
type PoolStats interface {
	Stats() sql.DBStats
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	logs      *service.LogService
	pool      PoolStats
	dbType    string
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(logs *service.LogService, pool PoolStats, dbType string) *AdminHandler {
	return &AdminHandler{
		logs:      logs,
		pool:      pool,
		dbType:    dbType,
		startTime: time.Now(),
	}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]any)

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().UTC().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]any{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_inuse_mb": float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	if h.pool != nil {
		ps := h.pool.Stats()
		stats["pool"] = map[string]any{
			"open":       ps.OpenConnections,
			"in_use":     ps.InUse,
			"idle":       ps.Idle,
			"wait_count": ps.WaitCount,
		}
	}

	if logStats, err := h.logs.Stats(r.Context()); err == nil {
		stats["store"] = logStats
	} else {
		stats["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	stats["runtime"] = map[string]any{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, map[string]any{
		"success": true,
		"stats":   stats,
	})
}
