package api

import (
	"net/http"
	"os"

	"github.com/trawlerdev/trawler/pkg/state"
)

var validSizes = map[string]bool{"small": true, "medium": true, "large": true}

// thumbnailHandler serves a rendered thumbnail. The state store maps
// logical path and size to the file on disk; a stale mapping whose file is
// gone reads as not found.
func (s *Server) thumbnailHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filePath := q.Get("file_path")
	size := q.Get("size")

	if filePath == "" {
		s.writeError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if !validSizes[size] {
		s.writeError(w, http.StatusBadRequest, "invalid thumbnail size")
		return
	}

	thumbPath, found, err := s.store.HGet(r.Context(), state.ThumbnailKey(filePath), size)
	if err != nil {
		s.logger.Error().Err(err).Msg("thumbnail lookup failed")
		s.writeError(w, http.StatusInternalServerError, "failed to serve thumbnail")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "thumbnail not found")
		return
	}
	if _, err := os.Stat(thumbPath); err != nil {
		s.writeError(w, http.StatusNotFound, "thumbnail file not found")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, thumbPath)
}
