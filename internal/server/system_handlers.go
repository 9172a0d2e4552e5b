package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/database"
	"github.com/phanhuy16/Portfolio-Tracker-Api/internal/scheduler"
)

// JobRunner executes a job outside its schedule.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers serves health, host status and manual job triggers
type SystemHandlers struct {
	log       zerolog.Logger
	databases []*database.DB
	runner    JobRunner
	jobs      map[string]scheduler.Job
	startedAt time.Time

	// Host sampling, replaceable in tests.
	systemStats func() (cpuPercent, ramPercent float64)
}

// DatabaseStatus describes one SQLite database
type DatabaseStatus struct {
	Name    string          `json:"name"`
	Healthy bool            `json:"healthy"`
	Error   string          `json:"error,omitempty"`
	Stats   *database.Stats `json:"stats,omitempty"`
}

// SystemStatusResponse is returned by GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	RAMPercent    float64          `json:"ram_percent"`
	Goroutines    int              `json:"goroutines"`
	GoVersion     string           `json:"go_version"`
	Databases     []DatabaseStatus `json:"databases"`
	Jobs          []string         `json:"jobs"`
	LastChecked   string           `json:"last_checked"`
}

// NewSystemHandlers creates new system handlers. Nil databases are ignored.
func NewSystemHandlers(
	log zerolog.Logger,
	databases []*database.DB,
	runner JobRunner,
	jobs map[string]scheduler.Job,
) *SystemHandlers {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	if jobs == nil {
		jobs = map[string]scheduler.Job{}
	}

	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		databases: dbs,
		runner:    runner,
		jobs:      jobs,
		startedAt: time.Now(),
	}
	h.systemStats = h.getSystemStats
	return h
}

// HandleHealth handles GET /health
// Returns 503 when any database fails its health check.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, db := range h.databases {
		if err := db.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check failed")
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
			})
			return
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.systemStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		GoVersion:     runtime.Version(),
		Databases:     make([]DatabaseStatus, 0, len(h.databases)),
		Jobs:          h.jobNames(),
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	for _, db := range h.databases {
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(r.Context()); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			response.Status = "degraded"
		} else if stats, err := db.GetStats(); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		} else {
			status.Stats = stats
		}
		response.Databases = append(response.Databases, status)
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob handles POST /api/system/jobs/{name}
// The job runs in the background; the response only confirms it was started.
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown job: " + name})
		return
	}

	go func() {
		if err := h.runner.RunNow(job); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "started",
	})
}

func (h *SystemHandlers) jobNames() []string {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// getSystemStats samples CPU over 100ms and returns CPU and RAM usage percentages
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

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
