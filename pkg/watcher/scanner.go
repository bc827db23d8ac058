package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

// rescanLoop walks every volume at startup and then on each rescan tick. The
// periodic walk is the recovery path for notifications missed while the
// process was down or the notification buffer overflowed.
func (w *Watcher) rescanLoop(ctx context.Context) error {
	w.scan(ctx)

	ticker := time.NewTicker(w.cfg.RescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.logger.Info().Msg("starting periodic rescan")
			w.scan(ctx)
		}
	}
}

// scan walks each volume tree and runs the enqueue discipline, as a created
// event, for every supported file not yet in the processed set.
func (w *Watcher) scan(ctx context.Context) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.RescanDuration)
		metrics.RescanCyclesTotal.Inc()
	}()

	var total, queued int
	for _, v := range w.mapper.Volumes() {
		err := filepath.WalkDir(v.Root, func(p string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				w.logger.Warn().Err(err).Str("path", p).Msg("scan walk error")
				return nil
			}
			if d.IsDir() {
				return nil
			}
			total++

			ext := strings.ToLower(filepath.Ext(p))
			if !types.IsSupportedExtension(ext) {
				return nil
			}
			logical := w.mapper.Logical(p)
			processed, serr := w.store.SIsMember(ctx, state.ProcessedSet, logical)
			if serr != nil {
				w.logger.Warn().Err(serr).Str("file_path", logical).Msg("scan membership check failed")
				return nil
			}
			if processed {
				return nil
			}
			w.enqueue(ctx, p, logical, types.EventCreated)
			queued++
			return nil
		})
		if err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Str("volume", v.Name).Msg("volume scan failed")
		}
	}

	w.logger.Info().
		Int("total_files", total).
		Int("queued_files", queued).
		Msg("file scan completed")
}
