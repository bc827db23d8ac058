package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/trawlerdev/trawler/pkg/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument tags each request with an id, records metrics and logs the
// outcome. GET-only enforcement lives here since every route is a read.
func (s *Server) instrument(path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		timer := metrics.NewTimer()
		next(rec, r)

		timer.ObserveDurationVec(metrics.APIRequestDuration, path)
		metrics.APIRequestsTotal.WithLabelValues(path, strconv.Itoa(rec.status)).Inc()

		s.logger.Debug().
			Str("request_id", requestID).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Msg("request served")
	})
}
