package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-hub/internal/device"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/state", s.handleGetDeviceState)
				r.Put("/state", s.handlePushDeviceState)
				r.Post("/commands", s.handleExecuteCommand)
			})
		})

		r.Route("/commands", func(r chi.Router) {
			r.Get("/", s.handleListCommands)
			r.Post("/batch", s.handleExecuteBatch)
		})

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports per-backend and per-service health and cache counters.
// Any failure turns the status to "degraded" but keeps 200; the hub still
// serves whatever is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	failing := s.hub.Health(r.Context())
	backends := make(map[device.Backend]string)
	for _, b := range s.hub.Directory().Backends() {
		backends[b] = "ok"
	}
	status := "ok"
	for b, err := range failing {
		backends[b] = err.Error()
		status = "degraded"
	}

	body := map[string]any{
		"status":   status,
		"version":  s.version,
		"backends": backends,
		"cache":    s.hub.Stats(),
		"clients":  s.ws.ClientCount(),
	}
	if len(s.services) > 0 {
		services := make(map[string]string, len(s.services))
		for name, svc := range s.services {
			services[name] = "ok"
			if err := svc.HealthCheck(r.Context()); err != nil {
				services[name] = err.Error()
				status = "degraded"
			}
		}
		body["services"] = services
		body["status"] = status
	}

	writeJSON(w, http.StatusOK, body)
}
