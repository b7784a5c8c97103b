package routes

import (
	"net/http"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

// FailureQueryHandler looks up the failure record of one job
func (a *API) FailureQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}
	if a.opts.Failures == nil {
		http.Error(w, "Failure history disabled", http.StatusNotFound)
		return
	}

	record, err := a.opts.Failures.Get(id)
	if err != nil {
		logger.Errorf("Failed to query failure for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"job_id":  id,
			"status":  "not_found",
			"message": "No failure record found for this job",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    record.JobID,
		"status":    "failed",
		"timestamp": record.Timestamp,
		"method":    record.Method,
		"url":       record.URL,
		"class":     record.Class,
		"error":     record.Error,
		"attempts":  record.Attempts,
	})
}

// FailureListHandler handles listing all failures (admin endpoint)
func (a *API) FailureListHandler(w http.ResponseWriter, r *http.Request) {
	if a.opts.Failures == nil {
		http.Error(w, "Failure history disabled", http.StatusNotFound)
		return
	}

	list, err := a.opts.Failures.List()
	if err != nil {
		logger.Errorf("Failed to list failures: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"failures": list,
		"count":    len(list),
	})
}
