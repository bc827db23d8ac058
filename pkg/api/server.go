package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/state"
)

// Version is stamped by the build; the root and health endpoints report it.
var Version = "dev"

// Server is the read-only query surface: search, stats, suggestions,
// thumbnails and health. It never writes to the index or the state store.
type Server struct {
	cfg    config.Config
	store  *state.Store
	index  *solr.Client
	mux    *http.ServeMux
	logger zerolog.Logger
}

// New creates the API server and registers its routes.
func New(cfg config.Config, store *state.Store, index *solr.Client) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		index:  index,
		mux:    http.NewServeMux(),
		logger: log.WithComponent("api"),
	}

	s.handle("/", s.rootHandler)
	s.handle("/search", s.searchHandler)
	s.handle("/stats", s.statsHandler)
	s.handle("/suggest", s.suggestHandler)
	s.handle("/thumbnail", s.thumbnailHandler)
	s.handle("/health", s.healthHandler)
	s.handle("/ready", s.readyHandler)
	s.mux.Handle("/metrics", metrics.Handler())

	return s
}

func (s *Server) handle(path string, h http.HandlerFunc) {
	s.mux.Handle(path, s.instrument(path, h))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.APIAddr,
		Handler:      s.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.APIAddr).Msg("api server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}
