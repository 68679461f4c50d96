package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionHandler(t *testing.T) {
	tests := []struct {
		name  string
		build BuildInfo
		want  versionInfo
	}{
		{
			name:  "stamped build",
			build: BuildInfo{Version: "0.1.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
			want:  versionInfo{Version: "0.1.0", GitCommit: "abc123def456", BuildDate: "2026-01-28T12:00:00Z"},
		},
		{
			name: "plain go build",
			want: versionInfo{Version: "dev", GitCommit: "unknown", BuildDate: "unknown"},
		},
		{
			name:  "commit missing",
			build: BuildInfo{Version: "1.0.0", BuildDate: "2026-01-28"},
			want:  versionInfo{Version: "1.0.0", GitCommit: "unknown", BuildDate: "2026-01-28"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			VersionHandler(tt.build).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var envelope struct {
				Success bool        `json:"success"`
				Data    versionInfo `json:"data"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.True(t, envelope.Success)
			tt.want.GoVersion = runtime.Version()
			assert.Equal(t, tt.want, envelope.Data)
		})
	}
}

func TestVersionRoute(t *testing.T) {
	f := newRouterFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeEnvelope(t, rec)["data"].(map[string]any)
	assert.Equal(t, "1.2.3", data["version"])
	assert.Equal(t, "unknown", data["gitCommit"])

	rec = f.do(t, http.MethodPost, "/version", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
