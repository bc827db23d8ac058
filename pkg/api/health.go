package api

import (
	"net/http"
	"time"
)

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rootResponse{
		Message: "Trawler Search API",
		Version: Version,
		Status:  "healthy",
	})
}

// HealthResponse reports per-dependency health. The service is degraded
// when either backend is down and still answers queries against the other.
type HealthResponse struct {
	Status    string    `json:"status"`
	Solr      string    `json:"solr"`
	Redis     string    `json:"redis"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	solrStatus := "healthy"
	if err := s.index.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("solr health check failed")
		solrStatus = "unhealthy"
	}
	redisStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("redis health check failed")
		redisStatus = "unhealthy"
	}

	status := "healthy"
	switch {
	case solrStatus == "unhealthy" && redisStatus == "unhealthy":
		status = "unhealthy"
	case solrStatus == "unhealthy" || redisStatus == "unhealthy":
		status = "degraded"
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Solr:      solrStatus,
		Redis:     redisStatus,
		Timestamp: time.Now().UTC(),
	})
}

// ReadyResponse is the readiness reply; not-ready returns 503 so load
// balancers hold traffic until both backends answer.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := make(map[string]string)
	ready := true

	if err := s.index.Ping(ctx); err != nil {
		checks["solr"] = err.Error()
		ready = false
	} else {
		checks["solr"] = "ok"
	}
	if err := s.store.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		ready = false
	} else {
		checks["redis"] = "ok"
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, ReadyResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC(),
	})
}
