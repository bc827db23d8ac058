package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/state"
)

const searchFixture = `{
	"responseHeader": {"QTime": 12},
	"response": {"numFound": 2, "docs": [
		{"id": "id1", "file_path": "/photos/a.jpg", "file_name": "a.jpg",
		 "file_type": "image", "file_size": 1000, "width": 800, "height": 600,
		 "camera_make": "Canon", "score": 1.5},
		{"id": "id2", "file_path": "/docs/readme.txt", "file_name": "readme.txt",
		 "file_type": "document", "file_size": 40, "score": 0.8}
	]},
	"highlighting": {"id2": {"content": ["found <mark>term</mark> here"]}},
	"facet_counts": {"facet_fields": {
		"file_type": ["image", 1, "document", 1],
		"content_type": [], "camera_make": ["Canon", 1], "camera_model": [],
		"author": [], "artist": [], "genre": [], "directory_path": []
	}}
}`

func newTestServer(t *testing.T, solrHandler http.HandlerFunc) (*Server, *miniredis.Miniredis, *state.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := state.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	solrSrv := httptest.NewServer(solrHandler)
	t.Cleanup(solrSrv.Close)

	cfg := config.Config{APIAddr: ":0", RequestTimeout: 5 * time.Second}
	return New(cfg, store, solr.New(solrSrv.URL, cfg.RequestTimeout)), mr, store
}

func doGet(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

// TestSearchHandler tests result and facet mapping
func TestSearchHandler(t *testing.T) {
	var gotParams url.Values
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(searchFixture))
	})

	w := doGet(t, s, "/search?q=beach&file_type=image&rows=20")
	require.Equal(t, http.StatusOK, w.Code)

	// Query construction
	assert.Equal(t, "beach", gotParams.Get("q"))
	assert.Equal(t, "20", gotParams.Get("rows"))
	assert.Equal(t, `file_type:"image"`, gotParams.Get("fq"))
	assert.Equal(t, "true", gotParams.Get("facet"))
	assert.Equal(t, "1", gotParams.Get("facet.mincount"))
	assert.Equal(t, "content", gotParams.Get("hl.fl"))
	assert.Equal(t, "*,score", gotParams.Get("fl"))

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "beach", resp.Query)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 12, resp.QueryTime)
	require.Len(t, resp.Docs, 2)

	assert.Equal(t, "id1", resp.Docs[0].ID)
	assert.Equal(t, "Canon", resp.Docs[0].CameraMake)
	assert.Equal(t, 800, resp.Docs[0].Width)
	assert.InDelta(t, 1.5, resp.Docs[0].Score, 0.001)
	assert.Empty(t, resp.Docs[0].Highlights)

	assert.Equal(t, []string{"found <mark>term</mark> here"}, resp.Docs[1].Highlights)

	require.Len(t, resp.Facets.FileType, 2)
	assert.Equal(t, FacetValue{Value: "image", Count: 1}, resp.Facets.FileType[0])
	assert.Equal(t, FacetValue{Value: "Canon", Count: 1}, resp.Facets.CameraMake[0])
}

// TestSearchDateRange tests date filter construction
func TestSearchDateRange(t *testing.T) {
	var gotParams url.Values
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(searchFixture))
	})

	doGet(t, s, "/search?date_from=2024-01-01T00:00:00Z")
	assert.Equal(t, "created_date:[2024-01-01T00:00:00Z TO *]", gotParams.Get("fq"))

	doGet(t, s, "/search?date_to=2024-06-01T00:00:00Z")
	assert.Equal(t, "created_date:[* TO 2024-06-01T00:00:00Z]", gotParams.Get("fq"))
}

// TestSearchDefaults tests the match-all default query
func TestSearchDefaults(t *testing.T) {
	var gotParams url.Values
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotParams = r.URL.Query()
		_, _ = w.Write([]byte(searchFixture))
	})

	w := doGet(t, s, "/search")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*:*", gotParams.Get("q"))
	assert.Equal(t, "0", gotParams.Get("start"))
	assert.Equal(t, "10", gotParams.Get("rows"))
}

// TestSearchBackendDown tests the 503 path
func TestSearchBackendDown(t *testing.T) {
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	w := doGet(t, s, "/search?q=x")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestMethodNotAllowed tests the read-only enforcement
func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchFixture))
	})

	req := httptest.NewRequest(http.MethodPost, "/search", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

// TestThumbnailHandler tests thumbnail lookup and delivery
func TestThumbnailHandler(t *testing.T) {
	s, _, store := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchFixture))
	})
	ctx := context.Background()

	dir := t.TempDir()
	thumb := filepath.Join(dir, "abc_img.jpg")
	require.NoError(t, os.WriteFile(thumb, []byte("jpeg bytes"), 0o644))
	require.NoError(t, store.HSet(ctx, state.ThumbnailKey("/photos/img.jpg"),
		map[string]string{"small": thumb}))

	// Served with caching headers
	w := doGet(t, s, "/thumbnail?file_path=/photos/img.jpg&size=small")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg bytes", w.Body.String())
	assert.Equal(t, "public, max-age=86400", w.Header().Get("Cache-Control"))

	// Unknown path
	w = doGet(t, s, "/thumbnail?file_path=/photos/other.jpg&size=small")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Size never rendered
	w = doGet(t, s, "/thumbnail?file_path=/photos/img.jpg&size=medium")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Invalid size
	w = doGet(t, s, "/thumbnail?file_path=/photos/img.jpg&size=huge")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Mapping present but file deleted from disk
	require.NoError(t, os.Remove(thumb))
	w = doGet(t, s, "/thumbnail?file_path=/photos/img.jpg&size=small")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// TestHealthHandler tests the degraded and healthy states
func TestHealthHandler(t *testing.T) {
	solrUp := true
	s, mr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !solrUp {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})

	w := doGet(t, s, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)

	// Solr down: degraded
	solrUp = false
	w = doGet(t, s, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Solr)
	assert.Equal(t, "healthy", resp.Redis)

	// Both down: unhealthy
	mr.Close()
	w = doGet(t, s, "/health")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
}

// TestReadyHandler tests the readiness status code contract
func TestReadyHandler(t *testing.T) {
	s, mr, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"OK"}`))
	})

	w := doGet(t, s, "/ready")
	assert.Equal(t, http.StatusOK, w.Code)

	mr.Close()
	w = doGet(t, s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// TestStatsHandler tests facet-to-count mapping
func TestStatsHandler(t *testing.T) {
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"responseHeader": {"QTime": 3},
			"response": {"numFound": 42, "docs": []},
			"facet_counts": {"facet_fields": {
				"file_type": ["image", 30, "video", 12],
				"content_type": ["image/jpeg", 28]
			}},
			"stats": {"stats_fields": {"file_size": {"sum": 123456789}}}
		}`))
	})

	w := doGet(t, s, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 42, resp.TotalDocuments)
	assert.Equal(t, map[string]int{"image": 30, "video": 12}, resp.FileTypes)
	assert.Equal(t, map[string]int{"image/jpeg": 28}, resp.ContentTypes)
	assert.Equal(t, int64(123456789), resp.TotalSize)
	assert.Equal(t, "active", resp.IndexStatus)
}

// TestSuggestHandler tests deduplicated filename suggestions
func TestSuggestHandler(t *testing.T) {
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"responseHeader": {"QTime": 2},
			"response": {"numFound": 3, "docs": [
				{"file_name": "beach.jpg"},
				{"file_name": "beach.jpg"},
				{"file_name": "beach-house.jpg"}
			]}
		}`))
	})

	w := doGet(t, s, "/suggest?q=bea")
	require.Equal(t, http.StatusOK, w.Code)

	var resp suggestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"beach.jpg", "beach-house.jpg"}, resp.Suggestions)

	// Missing q is a client error
	w = doGet(t, s, "/suggest")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestRootHandler tests the service banner
func TestRootHandler(t *testing.T) {
	s, _, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	w := doGet(t, s, "/")
	require.Equal(t, http.StatusOK, w.Code)

	var resp rootResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)

	// Unknown paths under the catch-all 404
	w = doGet(t, s, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
