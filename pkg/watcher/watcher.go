package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/pathmap"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

// enqueueWorkers is the number of goroutines running the enqueue discipline.
// Hashing large files must not stall the debounce dispatcher.
const enqueueWorkers = 2

// rawEvent is a single translated filesystem notification.
type rawEvent struct {
	path      string
	eventType types.EventType
}

// pendingEvent is the per-path debounce entry. Only the dispatcher goroutine
// touches these; no lock is needed.
type pendingEvent struct {
	path      string
	eventType types.EventType
	timestamp time.Time
	timer     *time.Timer
}

type enqueueJob struct {
	containerPath string
	eventType     types.EventType
}

// Watcher converts filesystem notifications and periodic full-tree walks into
// a deduplicated stream of file events on the processing queue.
type Watcher struct {
	cfg    config.Config
	store  *state.Store
	mapper *pathmap.Mapper
	logger zerolog.Logger

	fsw     *fsnotify.Watcher
	rawCh   chan rawEvent
	fireCh  chan string
	jobCh   chan enqueueJob
	pending map[string]*pendingEvent
	done    chan struct{}

	// now is swappable for tests
	now func() time.Time
}

// New creates a watcher over the configured volumes.
func New(cfg config.Config, store *state.Store, mapper *pathmap.Mapper) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:     cfg,
		store:   store,
		mapper:  mapper,
		logger:  log.WithComponent("watcher"),
		fsw:     fsw,
		rawCh:   make(chan rawEvent, 256),
		fireCh:  make(chan string, 256),
		jobCh:   make(chan enqueueJob, 64),
		pending: make(map[string]*pendingEvent),
		done:    make(chan struct{}),
		now:     time.Now,
	}, nil
}

// Run watches until ctx is cancelled. It performs the startup walk, then
// consumes notifications and rescans every volume on the configured interval.
func (w *Watcher) Run(ctx context.Context) error {
	for _, v := range w.mapper.Volumes() {
		if err := w.watchTree(v.Root); err != nil {
			return fmt.Errorf("watch volume %s: %w", v.Name, err)
		}
		w.logger.Info().Str("volume", v.Name).Str("root", v.Root).Msg("watching volume")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.notifyLoop(ctx) })
	g.Go(func() error { return w.dispatchLoop(ctx) })
	for i := 0; i < enqueueWorkers; i++ {
		g.Go(func() error { return w.enqueueLoop(ctx) })
	}
	g.Go(func() error { return w.rescanLoop(ctx) })

	err := g.Wait()
	close(w.done)
	if cerr := w.fsw.Close(); cerr != nil {
		w.logger.Warn().Err(cerr).Msg("closing fsnotify watcher")
	}
	if err == context.Canceled {
		return nil
	}
	return err
}

// watchTree registers root and every subdirectory with fsnotify.
func (w *Watcher) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn().Err(err).Str("path", p).Msg("walk error while adding watches")
			return nil
		}
		if d.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				return fmt.Errorf("add watch on %s: %w", p, err)
			}
		}
		return nil
	})
}

// notifyLoop translates fsnotify ops into raw events. Directory creation adds
// new watches and emits created events for any files that landed before the
// watch was in place.
func (w *Watcher) notifyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleNotification(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) handleNotification(ctx context.Context, ev fsnotify.Event) {
	metrics.NotificationsTotal.WithLabelValues(ev.Op.String()).Inc()

	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.adoptDirectory(ctx, ev.Name)
			return
		}
		w.emitRaw(ctx, ev.Name, types.EventCreated)
	case ev.Op.Has(fsnotify.Write):
		w.emitRaw(ctx, ev.Name, types.EventModified)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		// A move surfaces as Rename on the old path and Create on the new
		// path, which decomposes into deleted + created as required.
		w.emitRaw(ctx, ev.Name, types.EventDeleted)
	}
}

// adoptDirectory starts watching a newly created directory tree and emits
// created events for files already inside it.
func (w *Watcher) adoptDirectory(ctx context.Context, dir string) {
	if err := w.watchTree(dir); err != nil {
		w.logger.Warn().Err(err).Str("path", dir).Msg("failed to watch new directory")
		return
	}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		w.emitRaw(ctx, p, types.EventCreated)
		return nil
	})
}

func (w *Watcher) emitRaw(ctx context.Context, path string, eventType types.EventType) {
	ext := strings.ToLower(filepath.Ext(path))
	if !types.IsSupportedExtension(ext) {
		return
	}
	select {
	case w.rawCh <- rawEvent{path: path, eventType: eventType}:
	case <-ctx.Done():
	}
}

// dispatchLoop owns all debounce state. Each raw notification overwrites the
// per-path pending entry and restarts its timer; deleted wins over a pending
// created or modified. Timer callbacks re-enter through fireCh so the map is
// only ever touched here.
func (w *Watcher) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.cancelPending()
			return ctx.Err()
		case raw := <-w.rawCh:
			w.debounce(raw)
		case path := <-w.fireCh:
			w.fire(ctx, path)
		}
	}
}

func (w *Watcher) debounce(raw rawEvent) {
	delay := w.cfg.DebounceDelay
	if raw.eventType == types.EventModified {
		// Let writes settle before the window starts counting.
		delay += w.cfg.ModifySettle
	}

	entry, exists := w.pending[raw.path]
	if exists {
		metrics.EventsCoalesced.Inc()
		entry.timer.Stop()
		if raw.eventType == types.EventDeleted {
			entry.eventType = types.EventDeleted
		} else {
			entry.eventType = raw.eventType
		}
		entry.timestamp = w.now()
	} else {
		entry = &pendingEvent{
			path:      raw.path,
			eventType: raw.eventType,
			timestamp: w.now(),
		}
		w.pending[raw.path] = entry
	}

	path := raw.path
	entry.timer = time.AfterFunc(delay, func() {
		select {
		case w.fireCh <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) fire(ctx context.Context, path string) {
	entry, ok := w.pending[path]
	if !ok {
		return
	}
	delete(w.pending, path)

	if w.now().Sub(entry.timestamp) > 2*w.cfg.DebounceDelay {
		metrics.EnqueueDropped.WithLabelValues("stale").Inc()
		w.logger.Debug().Str("path", path).Msg("dropping stale pending event")
		return
	}
	if entry.eventType != types.EventDeleted {
		if _, err := os.Stat(path); err != nil {
			metrics.EnqueueDropped.WithLabelValues("vanished").Inc()
			w.logger.Debug().Str("path", path).Msg("file gone before enqueue")
			return
		}
	}

	select {
	case w.jobCh <- enqueueJob{containerPath: path, eventType: entry.eventType}:
	case <-ctx.Done():
	}
}

func (w *Watcher) cancelPending() {
	for path, entry := range w.pending {
		entry.timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) enqueueLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-w.jobCh:
			w.processJob(ctx, job)
		}
	}
}

func (w *Watcher) processJob(ctx context.Context, job enqueueJob) {
	logical := w.mapper.Logical(job.containerPath)
	w.enqueue(ctx, job.containerPath, logical, job.eventType)

	if job.eventType == types.EventDeleted {
		// A deleted path is no longer processed nor queued, whatever the
		// enqueue outcome was.
		if err := w.store.SRem(ctx, state.ProcessedSet, logical); err != nil {
			w.logger.Warn().Err(err).Str("file_path", logical).Msg("failed to clear processed membership")
		}
		if err := w.store.SRem(ctx, state.QueuedSet, logical); err != nil {
			w.logger.Warn().Err(err).Str("file_path", logical).Msg("failed to clear queued membership")
		}
	}
}
