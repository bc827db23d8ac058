package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

func strptr(s string) *string { return &s }

// TestBuildDocument tests event to index document mapping
func TestBuildDocument(t *testing.T) {
	event := &types.FileEvent{
		EventType:      types.EventCreated,
		FilePath:       "/photos/2024/img.jpg",
		ContainerPath:  "/mnt/nas/photos/2024/img.jpg",
		FileName:       "img.jpg",
		FileExtension:  ".jpg",
		FileSize:       2048,
		ContentHash:    "deadbeef",
		CreatedDate:    strptr("2024-06-01T10:00:00Z"),
		ModifiedDate:   strptr("2024-06-01T11:00:00Z"),
		DirectoryPath:  "/photos/2024",
		DirectoryDepth: 1,
		QueuedAt:       "2024-06-01T11:00:05Z",
	}
	meta := solr.Document{
		"width":  1920,
		"height": 1080,
		"format": "JPEG",
	}

	doc := buildDocument(event, "image/jpeg", types.FileTypeImage, meta)

	assert.Equal(t, types.DocumentID("/photos/2024/img.jpg"), doc["id"])
	assert.Equal(t, "/photos/2024/img.jpg", doc["file_path"])
	assert.Equal(t, "img.jpg", doc["file_name"])
	assert.Equal(t, ".jpg", doc["file_extension"])
	assert.Equal(t, int64(2048), doc["file_size"])
	assert.Equal(t, "/photos/2024", doc["directory_path"])
	assert.Equal(t, 1, doc["directory_depth"])
	assert.Equal(t, "image", doc["file_type"])
	assert.Equal(t, "completed", doc["processing_status"])
	assert.Equal(t, "deadbeef", doc["content_hash"])
	assert.Equal(t, "image/jpeg", doc["content_type"])
	assert.Equal(t, "2024-06-01T10:00:00Z", doc["created_date"])
	assert.Equal(t, 1920, doc["width"])

	// Transport-only fields never reach the index
	assert.NotContains(t, doc, "event_type")
	assert.NotContains(t, doc, "queued_at")
	assert.NotContains(t, doc, "container_path")
	assert.NotContains(t, doc, "format")
}

// TestBuildDocumentDelete tests field omission for sparse events
func TestBuildDocumentDelete(t *testing.T) {
	event := &types.FileEvent{
		EventType:     types.EventDeleted,
		FilePath:      "/photos/gone.jpg",
		FileName:      "gone.jpg",
		FileExtension: ".jpg",
	}

	doc := buildDocument(event, "", types.FileTypeOther, solr.Document{})

	assert.NotContains(t, doc, "content_hash")
	assert.NotContains(t, doc, "content_type")
	assert.NotContains(t, doc, "created_date")
	assert.NotContains(t, doc, "modified_date")
}

// fakeSolr records update and delete bodies and answers selects with a
// canned response.
type fakeSolr struct {
	selectBody string
	updates    [][]byte
	deletes    []string
	srv        *httptest.Server
}

func newFakeSolr(t *testing.T, selectBody string) *fakeSolr {
	t.Helper()
	f := &fakeSolr{selectBody: selectBody}
	mux := http.NewServeMux()
	mux.HandleFunc("/select", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(f.selectBody))
	})
	mux.HandleFunc("/update", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") == "text/xml" {
			f.deletes = append(f.deletes, string(body))
		} else {
			f.updates = append(f.updates, body)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

const emptySelect = `{"responseHeader":{"QTime":1},"response":{"numFound":0,"docs":[]}}`

func newTestWorker(t *testing.T, solrURL string) (*Worker, *state.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := state.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { store.Close() })

	cfg := config.Config{
		ExtractWorkers: 1,
		RequestTimeout: 5 * time.Second,
	}
	return &Worker{
		cfg:    cfg,
		store:  store,
		index:  solr.New(solrURL, cfg.RequestTimeout),
		logger: zerolog.Nop(),
	}, store
}

// TestProcessDelete tests that delete events purge the index and forward to
// the thumbnail queue.
func TestProcessDelete(t *testing.T) {
	fake := newFakeSolr(t, emptySelect)
	w, store := newTestWorker(t, fake.srv.URL)
	ctx := context.Background()

	logical := "/photos/gone.jpg"
	require.NoError(t, store.SetEx(ctx, state.GlobalLockKey(logical), "1", state.GlobalLockTTL))

	w.process(ctx, &types.FileEvent{
		EventType:     types.EventDeleted,
		FilePath:      logical,
		FileExtension: ".jpg",
	})

	require.Len(t, fake.deletes, 1)
	assert.Contains(t, fake.deletes[0], "file_path:")
	assert.Contains(t, fake.deletes[0], "gone.jpg")

	// The global lock is released after processing
	_, held, err := store.Get(ctx, state.GlobalLockKey(logical))
	require.NoError(t, err)
	assert.False(t, held)

	// The delete is forwarded so stale thumbnails get removed
	n, err := store.QueueLen(ctx, state.ThumbnailQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

// TestProcessVanished tests that a missing file counts as success
func TestProcessVanished(t *testing.T) {
	fake := newFakeSolr(t, emptySelect)
	w, store := newTestWorker(t, fake.srv.URL)
	ctx := context.Background()

	logical := "/photos/ghost.jpg"
	require.NoError(t, store.SetEx(ctx, state.GlobalLockKey(logical), "1", state.GlobalLockTTL))

	w.process(ctx, &types.FileEvent{
		EventType:     types.EventCreated,
		FilePath:      logical,
		ContainerPath: "/nonexistent/ghost.jpg",
		FileExtension: ".jpg",
	})

	// Nothing written, nothing deleted, lock released
	assert.Empty(t, fake.updates)
	assert.Empty(t, fake.deletes)
	_, held, err := store.Get(ctx, state.GlobalLockKey(logical))
	require.NoError(t, err)
	assert.False(t, held)
}

// TestForwardToThumbnailer tests the renderability gate
func TestForwardToThumbnailer(t *testing.T) {
	fake := newFakeSolr(t, emptySelect)
	w, store := newTestWorker(t, fake.srv.URL)
	ctx := context.Background()

	w.forwardToThumbnailer(ctx, &types.FileEvent{
		FilePath:      "/music/song.mp3",
		FileExtension: ".mp3",
	}, zerolog.Nop())
	w.forwardToThumbnailer(ctx, &types.FileEvent{
		FilePath:      "/photos/img.jpg",
		FileExtension: ".jpg",
	}, zerolog.Nop())

	n, err := store.QueueLen(ctx, state.ThumbnailQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	payload, err := store.DequeueBlocking(ctx, state.ThumbnailQueue, 100*time.Millisecond)
	require.NoError(t, err)
	var ev types.FileEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Equal(t, "/photos/img.jpg", ev.FilePath)
}

// TestMarkProcessed tests the post-index bookkeeping
func TestMarkProcessed(t *testing.T) {
	fake := newFakeSolr(t, emptySelect)
	w, store := newTestWorker(t, fake.srv.URL)
	ctx := context.Background()
	logical := "/photos/img.jpg"

	require.NoError(t, store.SAdd(ctx, state.QueuedSet, logical))
	w.markProcessed(ctx, logical, zerolog.Nop())

	_, found, err := store.Get(ctx, state.ProcessedKey(logical))
	require.NoError(t, err)
	assert.True(t, found)

	processed, err := store.SIsMember(ctx, state.ProcessedSet, logical)
	require.NoError(t, err)
	assert.True(t, processed)

	queued, err := store.SIsMember(ctx, state.QueuedSet, logical)
	require.NoError(t, err)
	assert.False(t, queued)
}
