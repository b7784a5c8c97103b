package routes

import (
	"net/http"

	"github.com/Atronar/yt-dlp-web-api/logger"
)

// SuccessQueryHandler looks up the success record of one job
func (a *API) SuccessQueryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "id parameter required", http.StatusBadRequest)
		return
	}
	if a.opts.Successes == nil {
		http.Error(w, "Success history disabled", http.StatusNotFound)
		return
	}

	record, err := a.opts.Successes.Get(id)
	if err != nil {
		logger.Errorf("Failed to query success for job %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if record == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"job_id":  id,
			"status":  "not_found",
			"message": "No success record found for this job",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job_id":    record.JobID,
		"status":    "success",
		"timestamp": record.Timestamp,
		"method":    record.Method,
		"url":       record.URL,
		"title":     record.Title,
		"link":      record.Link,
		"attempts":  record.Attempts,
	})
}

// SuccessListHandler handles listing all success records (admin endpoint)
func (a *API) SuccessListHandler(w http.ResponseWriter, r *http.Request) {
	if a.opts.Successes == nil {
		http.Error(w, "Success history disabled", http.StatusNotFound)
		return
	}

	records, err := a.opts.Successes.List()
	if err != nil {
		logger.Errorf("Failed to list success records: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success_records": records,
		"count":           len(records),
	})
}
