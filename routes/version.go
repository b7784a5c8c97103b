package routes

import (
	"net/http"
	"runtime"
	"runtime/debug"
)

// Build-time variables (injected by ldflags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// VersionResponse represents the version information response
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	GitCommit string `json:"git_commit,omitempty"`
}

// VersionHandler provides version information about the build
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	response := VersionResponse{
		Version:   version,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		GitCommit: gitCommit,
	}

	// Fall back to the VCS stamp when ldflags were not set.
	if response.GitCommit == "unknown" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					response.GitCommit = s.Value
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}
