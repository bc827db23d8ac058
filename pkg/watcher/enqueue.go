package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/pathmap"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

// timeLayout is ISO-8601 UTC with a trailing Z, as the index schema expects.
const timeLayout = "2006-01-02T15:04:05Z"

// enqueue runs the five-stage deduplication discipline and commits the event
// to the processing queue.
//
// The global lock acquired in stage 1 is deliberately NOT released on success
// or on a dedup drop: it stays held until the extractor commits (or its
// 30-minute TTL lapses), which bounds how fast a path can re-enter the
// pipeline. Only a failure inside this function cleans up both locks.
func (w *Watcher) enqueue(ctx context.Context, containerPath, logical string, eventType types.EventType) {
	// Stage 1: global processing lock.
	acquired, err := w.store.TryAcquireLock(ctx, state.GlobalLockKey(logical), state.GlobalLockTTL)
	if err != nil {
		w.enqueueFailed(ctx, logical, err)
		return
	}
	if !acquired {
		metrics.EnqueueDropped.WithLabelValues("global_lock").Inc()
		w.logger.Debug().Str("file_path", logical).Msg("path locked for processing")
		return
	}

	// Stage 2: already queued?
	queued, err := w.store.SIsMember(ctx, state.QueuedSet, logical)
	if err != nil {
		w.enqueueFailed(ctx, logical, err)
		return
	}
	if queued {
		metrics.EnqueueDropped.WithLabelValues("queued").Inc()
		w.logger.Debug().Str("file_path", logical).Msg("path already in queue")
		return
	}

	contentHash := ""
	if eventType != types.EventDeleted {
		// Stage 3: processed recently?
		recent, err := w.processedRecently(ctx, logical)
		if err != nil {
			w.enqueueFailed(ctx, logical, err)
			return
		}
		if recent {
			metrics.EnqueueDropped.WithLabelValues("recent").Inc()
			w.logger.Debug().Str("file_path", logical).Msg("path processed recently")
			return
		}

		// Stage 4: identical content already indexed under another path?
		contentHash, err = hashFile(containerPath)
		if err != nil {
			w.enqueueFailed(ctx, logical, fmt.Errorf("hash %s: %w", containerPath, err))
			return
		}
		existing, found, err := w.store.Get(ctx, state.FileHashKey(contentHash))
		if err != nil {
			w.enqueueFailed(ctx, logical, err)
			return
		}
		if found && existing != logical {
			metrics.EnqueueDropped.WithLabelValues("content_hash").Inc()
			w.logger.Debug().
				Str("file_path", logical).
				Str("existing_path", existing).
				Msg("identical content already indexed")
			return
		}
		if err := w.store.SetEx(ctx, state.FileHashKey(contentHash), logical, state.FileHashTTL); err != nil {
			w.enqueueFailed(ctx, logical, err)
			return
		}
	}

	// Stage 5: short lock around the queue write.
	acquired, err = w.store.TryAcquireLock(ctx, state.QueueLockKey(logical), state.QueueLockTTL)
	if err != nil {
		w.enqueueFailed(ctx, logical, err)
		return
	}
	if !acquired {
		metrics.EnqueueDropped.WithLabelValues("queue_lock").Inc()
		w.logger.Debug().Str("file_path", logical).Msg("path being queued elsewhere")
		return
	}

	if err := w.commitEvent(ctx, containerPath, logical, eventType, contentHash); err != nil {
		w.enqueueFailed(ctx, logical, err)
		return
	}
	if err := w.store.ReleaseLock(ctx, state.QueueLockKey(logical)); err != nil {
		w.logger.Warn().Err(err).Str("file_path", logical).Msg("failed to release queue lock")
	}
}

// commitEvent builds the message and writes it plus the queued-set membership.
func (w *Watcher) commitEvent(ctx context.Context, containerPath, logical string, eventType types.EventType, contentHash string) error {
	event, err := w.buildEvent(containerPath, logical, eventType, contentHash)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := w.store.Enqueue(ctx, state.ProcessingQueue, payload); err != nil {
		return err
	}
	if eventType != types.EventDeleted {
		if err := w.store.SAdd(ctx, state.QueuedSet, logical); err != nil {
			return err
		}
	}

	metrics.EventsEnqueued.WithLabelValues(string(eventType)).Inc()
	w.logger.Info().
		Str("file_path", logical).
		Str("event_type", string(eventType)).
		Int64("file_size", event.FileSize).
		Msg("file queued for processing")
	return nil
}

// enqueueFailed logs and clears both locks so the path can re-enter the
// pipeline; the rescanner will retry it.
func (w *Watcher) enqueueFailed(ctx context.Context, logical string, err error) {
	metrics.EnqueueDropped.WithLabelValues("error").Inc()
	w.logger.Error().Err(err).Str("file_path", logical).Msg("enqueue failed")
	if rerr := w.store.ReleaseLock(ctx, state.GlobalLockKey(logical)); rerr != nil {
		w.logger.Warn().Err(rerr).Str("file_path", logical).Msg("failed to clear global lock")
	}
	if rerr := w.store.ReleaseLock(ctx, state.QueueLockKey(logical)); rerr != nil {
		w.logger.Warn().Err(rerr).Str("file_path", logical).Msg("failed to clear queue lock")
	}
}

func (w *Watcher) processedRecently(ctx context.Context, logical string) (bool, error) {
	val, found, err := w.store.Get(ctx, state.ProcessedKey(logical))
	if err != nil || !found {
		return false, err
	}
	last, err := strconv.ParseFloat(val, 64)
	if err != nil {
		// Unparseable tracking value; treat as not recent.
		return false, nil
	}
	age := float64(w.now().Unix()) - last
	return age < state.RecencyWindow.Seconds(), nil
}

// buildEvent assembles the queue message for a path.
func (w *Watcher) buildEvent(containerPath, logical string, eventType types.EventType, contentHash string) (*types.FileEvent, error) {
	name := filepath.Base(containerPath)
	event := &types.FileEvent{
		EventType:      eventType,
		FilePath:       logical,
		ContainerPath:  containerPath,
		FileName:       name,
		FileExtension:  strings.ToLower(filepath.Ext(name)),
		DirectoryPath:  path.Dir(logical),
		DirectoryDepth: pathmap.Depth(logical),
		QueuedAt:       w.now().UTC().Format(timeLayout),
	}
	if eventType == types.EventDeleted {
		return event, nil
	}

	info, err := os.Stat(containerPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", containerPath, err)
	}
	event.FileSize = info.Size()
	event.ContentHash = contentHash

	modified := info.ModTime().UTC().Format(timeLayout)
	created := createdTime(info).UTC().Format(timeLayout)
	event.ModifiedDate = &modified
	event.CreatedDate = &created
	return event, nil
}

// hashFile computes the hex SHA-256 of the full file contents.
func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
