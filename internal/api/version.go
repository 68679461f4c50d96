package api

import (
	"net/http"
	"runtime"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
)

type versionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// withDefaults fills fields a plain `go build` leaves empty.
func (b BuildInfo) withDefaults() BuildInfo {
	if b.Version == "" {
		b.Version = "dev"
	}
	if b.GitCommit == "" {
		b.GitCommit = "unknown"
	}
	if b.BuildDate == "" {
		b.BuildDate = "unknown"
	}
	return b
}

// VersionHandler reports the build stamped into the binary.
func VersionHandler(build BuildInfo) http.HandlerFunc {
	b := build.withDefaults()
	info := versionInfo{Version: b.Version, GitCommit: b.GitCommit, BuildDate: b.BuildDate, GoVersion: runtime.Version()}
	return func(w http.ResponseWriter, _ *http.Request) {
		response.OK(w, info)
	}
}
