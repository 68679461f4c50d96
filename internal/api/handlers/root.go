package handlers

import (
	"net/http"

	"github.com/Togather-Foundation/eventplanner/internal/api/response"
)

type banner struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Root handles GET / with a map of the API's top-level resources.
func Root(version string) http.HandlerFunc {
	if version == "" {
		version = "dev"
	}
	body := banner{
		Message: "Event Planning API",
		Version: version,
		Endpoints: map[string]string{
			"health":    "/health",
			"metrics":   "/metrics",
			"openapi":   "/api/openapi.json",
			"auth":      "/api/auth",
			"admin":     "/api/admin",
			"users":     "/api/users",
			"events":    "/api/events",
			"analytics": "/api/analytics",
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Write(w, http.StatusOK, response.Envelope{Success: true, Message: body.Message, Data: body})
	}
}

// NotFound answers every unmatched route.
func NotFound(env string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Fail(w, r, http.StatusNotFound, "Route not found", nil, showDetail(env))
	}
}
