package extract

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/solr"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

// dequeueTimeout is the BRPOP block interval; it doubles as the shutdown
// latency bound for idle workers.
const dequeueTimeout = 1 * time.Second

// Worker pulls events from the processing queue, extracts type-specific
// metadata and syncs the search index.
type Worker struct {
	cfg    config.Config
	store  *state.Store
	index  *solr.Client
	logger zerolog.Logger
}

// New creates an extractor worker pool.
func New(cfg config.Config, store *state.Store, index *solr.Client) *Worker {
	return &Worker{
		cfg:    cfg,
		store:  store,
		index:  index,
		logger: log.WithComponent("extractor"),
	}
}

// Run blocks until ctx is cancelled, processing the queue with the configured
// number of workers. Item-level failures are logged and dropped; the
// periodic rescan re-feeds anything that mattered.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.ExtractWorkers; i++ {
		g.Go(func() error { return w.loop(ctx) })
	}
	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		payload, err := w.store.DequeueBlocking(ctx, state.ProcessingQueue, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("queue read failed")
			// Brief pause so a dead state store does not spin the loop.
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if payload == nil {
			continue
		}

		var event types.FileEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			w.logger.Error().Err(err).Msg("malformed queue message dropped")
			continue
		}
		w.process(ctx, &event)
	}
}

// process handles one event end to end. The global processing lock is
// released on every exit path; an extractor crash leaves it to the TTL.
func (w *Worker) process(ctx context.Context, event *types.FileEvent) {
	logical := event.FilePath
	logger := w.logger.With().
		Str("file_path", logical).
		Str("event_type", string(event.EventType)).
		Logger()

	// The release must survive shutdown cancellation of the worker context.
	releaseCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := w.store.ReleaseLock(releaseCtx, state.GlobalLockKey(logical)); err != nil {
			logger.Warn().Err(err).Msg("failed to release global lock")
		}
	}()

	if event.EventType == types.EventDeleted {
		if err := w.index.DeleteByPath(ctx, logical); err != nil {
			metrics.FilesProcessed.WithLabelValues("failed").Inc()
			logger.Error().Err(err).Msg("index delete failed")
			return
		}
		w.forwardToThumbnailer(ctx, event, logger)
		metrics.FilesProcessed.WithLabelValues("deleted").Inc()
		logger.Info().Msg("document deleted from index")
		return
	}

	if _, err := os.Stat(event.ContainerPath); err != nil {
		// Vanished mid-flight; a later delete event reconciles the index.
		metrics.FilesProcessed.WithLabelValues("vanished").Inc()
		logger.Warn().Str("container_path", event.ContainerPath).Msg("file no longer exists")
		return
	}

	timer := metrics.NewTimer()
	contentType, fileType, meta := w.extractMetadata(ctx, event.ContainerPath, event.FileExtension, logger)
	timer.ObserveDurationVec(metrics.ExtractDuration, string(fileType))

	doc := buildDocument(event, contentType, fileType, meta)

	needed, err := w.updateNeeded(ctx, doc, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("skip check failed, indexing anyway")
		needed = true
	}
	if !needed {
		metrics.FilesProcessed.WithLabelValues("skipped").Inc()
		logger.Info().Msg("index already current, skipping write")
		w.markProcessed(releaseCtx, logical, logger)
		w.forwardToThumbnailer(ctx, event, logger)
		return
	}

	if err := w.index.Update(ctx, []solr.Document{doc}); err != nil {
		metrics.FilesProcessed.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Msg("index write failed")
		return
	}

	w.markProcessed(releaseCtx, logical, logger)
	w.forwardToThumbnailer(ctx, event, logger)
	metrics.FilesProcessed.WithLabelValues("indexed").Inc()
	logger.Info().Str("file_type", string(fileType)).Msg("file indexed")
}

// markProcessed records a successful pass over a path: recency key, the
// processed set, and removal from the queued set.
func (w *Worker) markProcessed(ctx context.Context, logical string, logger zerolog.Logger) {
	now := strconv.FormatFloat(float64(time.Now().UnixNano())/1e9, 'f', 6, 64)
	if err := w.store.SetEx(ctx, state.ProcessedKey(logical), now, state.ProcessedTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to set processed timestamp")
	}
	if err := w.store.SAdd(ctx, state.ProcessedSet, logical); err != nil {
		logger.Warn().Err(err).Msg("failed to add to processed set")
	}
	if err := w.store.SRem(ctx, state.QueuedSet, logical); err != nil {
		logger.Warn().Err(err).Msg("failed to remove from queued set")
	}
}

// forwardToThumbnailer re-queues the event for rendering when the extension
// has a renderer. Delete events pass through too so stale thumbnails are
// removed.
func (w *Worker) forwardToThumbnailer(ctx context.Context, event *types.FileEvent, logger zerolog.Logger) {
	if !types.IsThumbnailable(event.FileExtension) {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error().Err(err).Msg("failed to marshal thumbnail event")
		return
	}
	if err := w.store.Enqueue(ctx, state.ThumbnailQueue, payload); err != nil {
		logger.Error().Err(err).Msg("failed to trigger thumbnail generation")
		return
	}
	logger.Debug().Msg("thumbnail generation triggered")
}

// buildDocument merges event fields and extracted metadata into the index
// document. event_type, queued_at, container_path and the raw image format
// never reach the index.
func buildDocument(event *types.FileEvent, contentType string, fileType types.FileType, meta solr.Document) solr.Document {
	doc := solr.Document{
		"id":                types.DocumentID(event.FilePath),
		"file_path":         event.FilePath,
		"file_name":         event.FileName,
		"file_extension":    event.FileExtension,
		"file_size":         event.FileSize,
		"directory_path":    event.DirectoryPath,
		"directory_depth":   event.DirectoryDepth,
		"file_type":         string(fileType),
		"processing_status": "completed",
	}
	if event.ContentHash != "" {
		doc["content_hash"] = event.ContentHash
	}
	if contentType != "" {
		doc["content_type"] = contentType
	}
	if event.CreatedDate != nil {
		doc["created_date"] = *event.CreatedDate
	}
	if event.ModifiedDate != nil {
		doc["modified_date"] = *event.ModifiedDate
	}
	for k, v := range meta {
		if k == "format" {
			continue
		}
		doc[k] = v
	}
	return doc
}
