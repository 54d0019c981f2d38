package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/dkaratzas/intrinsic/internal/database"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers serves system monitoring endpoints.
type SystemHandlers struct {
	log        zerolog.Logger
	dataDir    string
	researchDB *database.DB
	cacheDB    *database.DB
	startedAt  time.Time
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(log zerolog.Logger, dataDir string, researchDB, cacheDB *database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:        log.With().Str("handler", "system").Logger(),
		dataDir:    dataDir,
		researchDB: researchDB,
		cacheDB:    cacheDB,
		startedAt:  time.Now(),
	}
}

// HandleHealth handles GET /api/system/health
// Reports process stats and database integrity.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPct, ramPct := h.getSystemStats()

	databases := map[string]string{}
	status := "ok"
	for name, db := range map[string]*database.DB{
		"research": h.researchDB,
		"cache":    h.cacheDB,
	} {
		if db == nil {
			databases[name] = "not configured"
			continue
		}
		if err := db.QuickCheck(r.Context()); err != nil {
			databases[name] = err.Error()
			status = "degraded"
		} else {
			databases[name] = "ok"
		}
	}

	h.writeJSON(w, map[string]interface{}{
		"status":         status,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"cpu_percent":    cpuPct,
		"ram_percent":    ramPct,
		"databases":      databases,
		"data_dir_mb":    h.getDirectorySizeMB(h.dataDir),
	})
}

// HandleInfo handles GET /api/system/info
func (h *SystemHandlers) HandleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"num_cpu":    runtime.NumCPU(),
		"started_at": h.startedAt.Format(time.RFC3339),
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short sample interval so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDirectorySizeMB walks a directory and sums file sizes.
func (h *SystemHandlers) getDirectorySizeMB(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
