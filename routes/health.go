package routes

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	GoVersion string            `json:"go_version"`
	Uptime    string            `json:"uptime"`
	StartTime string            `json:"start_time"`
	Stores    map[string]string `json:"stores,omitempty"`
}

// Global start time for uptime calculation
var startTime = time.Now()

// formatUptime formats a duration into days, hours, minutes, seconds
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// HealthHandler reports liveness plus the state of the history stores.
// Any unhealthy store turns the response into a 503.
func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   version,
		GoVersion: runtime.Version(),
		Uptime:    formatUptime(time.Since(startTime)),
		StartTime: startTime.Format("2006-01-02 15:04:05 MST"),
		Stores:    map[string]string{},
	}

	checks := map[string]func() error{}
	if a.opts.Successes != nil {
		checks["success"] = a.opts.Successes.CheckHealth
	}
	if a.opts.Failures != nil {
		checks["failures"] = a.opts.Failures.CheckHealth
	}
	for name, check := range checks {
		if err := check(); err != nil {
			logger.Errorf("Health check of %s store failed: %v", name, err)
			response.Stores[name] = err.Error()
			response.Status = "unhealthy"
			continue
		}
		response.Stores[name] = "ok"
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	logger.Debugf("Health check response: status=%s, version=%s", response.Status, response.Version)
	writeJSON(w, status, response)
}
