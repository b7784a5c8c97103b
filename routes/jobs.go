package routes

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Atronar/yt-dlp-web-api/auth"
	"github.com/Atronar/yt-dlp-web-api/logger"
	"github.com/Atronar/yt-dlp-web-api/models"
)

const maxEnvelopeBytes = 1 << 20

// JobsHandler decodes one job envelope, runs it and writes the response
// envelope. Job failures are reported in the envelope with status 200.
func (a *API) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if a.opts.Auth != nil {
		claims, err := auth.FromRequest(r, *a.opts.Auth)
		if err != nil {
			logger.Warnf("Rejected job request from %s: %v", r.RemoteAddr, err)
			http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}
		logger.Debugf("Job request authorized for subject %q", claims.Subject)
	}

	var req models.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err := dec.Decode(&req); err != nil {
		logger.Warnf("Malformed job envelope from %s: %v", r.RemoteAddr, err)
		writeJSON(w, http.StatusBadRequest, models.Init(req.Method, req.SpinnerID).Fail("Malformed request: "+err.Error()))
		return
	}

	// A disconnecting client does not interrupt the job.
	res := a.opts.Jobs.Execute(context.WithoutCancel(r.Context()), req)
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
