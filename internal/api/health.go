package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database probe so a stuck pool cannot hang
// the endpoint.
const healthCheckTimeout = 2 * time.Second

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth probes the database and reports overall service health.
// Returns 200 when everything is reachable, 503 otherwise. The endpoint is
// public and mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		Version:    s.Config.Build.Version,
		Components: map[string]componentStatus{},
	}

	if s.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.DB.Ping(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.Components["database"] = componentStatus{Status: "unhealthy", Message: err.Error()}
		} else {
			resp.Components["database"] = componentStatus{Status: "healthy"}
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}
