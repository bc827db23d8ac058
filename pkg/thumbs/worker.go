package thumbs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trawlerdev/trawler/pkg/config"
	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
	"github.com/trawlerdev/trawler/pkg/state"
	"github.com/trawlerdev/trawler/pkg/types"
)

const dequeueTimeout = 1 * time.Second

// Size names a render target. Every thumbnailable file gets one file per
// size under <dir>/<size>/.
type Size struct {
	Name   string
	Width  int
	Height int
}

// Sizes are rendered in order; a partial failure leaves the completed sizes
// in place.
var Sizes = []Size{
	{Name: "small", Width: 150, Height: 150},
	{Name: "medium", Width: 300, Height: 300},
	{Name: "large", Width: 800, Height: 600},
}

// Worker renders thumbnails for events on the thumbnail queue and keeps the
// state-store location hash in sync.
type Worker struct {
	cfg    config.Config
	store  *state.Store
	render Renderer
	logger zerolog.Logger
}

// Renderer produces one thumbnail file. Split out so tests can swap the
// ffmpeg-backed video path for a stub.
type Renderer interface {
	Render(ctx context.Context, containerPath, ext, dst string, size Size) error
}

// New creates a thumbnail worker pool using the default renderer.
func New(cfg config.Config, store *state.Store) *Worker {
	return &Worker{
		cfg:    cfg,
		store:  store,
		render: &mediaRenderer{quality: cfg.ThumbnailQuality, timeout: cfg.RequestTimeout},
		logger: log.WithComponent("thumbnailer"),
	}
}

// NewWithRenderer is New with an explicit renderer.
func NewWithRenderer(cfg config.Config, store *state.Store, r Renderer) *Worker {
	w := New(cfg, store)
	w.render = r
	return w
}

// Run blocks until ctx is cancelled, draining the thumbnail queue with the
// configured number of workers.
func (w *Worker) Run(ctx context.Context) error {
	for _, s := range Sizes {
		if err := os.MkdirAll(filepath.Join(w.cfg.ThumbnailDir, s.Name), 0o755); err != nil {
			return fmt.Errorf("create thumbnail dir: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.ThumbnailWorkers; i++ {
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
		payload, err := w.store.DequeueBlocking(ctx, state.ThumbnailQueue, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error().Err(err).Msg("queue read failed")
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

func (w *Worker) process(ctx context.Context, event *types.FileEvent) {
	logical := event.FilePath
	logger := w.logger.With().Str("file_path", logical).Logger()

	if event.EventType == types.EventDeleted {
		w.remove(ctx, logical, logger)
		return
	}
	if _, err := os.Stat(event.ContainerPath); err != nil {
		logger.Warn().Str("container_path", event.ContainerPath).Msg("file no longer exists")
		return
	}

	kind := "image"
	if types.VideoExtensions[event.FileExtension] {
		kind = "video"
	}

	locations := make(map[string]string, len(Sizes))
	rendered := 0
	timer := metrics.NewTimer()
	for _, size := range Sizes {
		dst := w.path(logical, size.Name)
		if _, err := os.Stat(dst); err == nil {
			locations[size.Name] = dst
			continue
		}
		if err := w.render.Render(ctx, event.ContainerPath, event.FileExtension, dst, size); err != nil {
			metrics.ThumbnailsRendered.WithLabelValues(kind, "failed").Inc()
			logger.Error().Err(err).Str("size", size.Name).Msg("thumbnail render failed")
			continue
		}
		locations[size.Name] = dst
		rendered++
		metrics.ThumbnailsRendered.WithLabelValues(kind, "rendered").Inc()
	}
	timer.ObserveDuration(metrics.ThumbnailDuration)

	if len(locations) == 0 {
		return
	}
	key := state.ThumbnailKey(logical)
	if err := w.store.HSet(ctx, key, locations); err != nil {
		logger.Error().Err(err).Msg("failed to record thumbnail locations")
		return
	}
	if err := w.store.Expire(ctx, key, state.ThumbnailTTL); err != nil {
		logger.Warn().Err(err).Msg("failed to set thumbnail key ttl")
	}
	if rendered > 0 {
		logger.Info().Int("rendered", rendered).Msg("thumbnails generated")
	}
}

// remove deletes all rendered sizes and the location hash for a path.
// Missing files are fine; the path may never have been rendered.
func (w *Worker) remove(ctx context.Context, logical string, logger zerolog.Logger) {
	for _, size := range Sizes {
		if err := os.Remove(w.path(logical, size.Name)); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Str("size", size.Name).Msg("failed to remove thumbnail")
		}
	}
	if _, err := w.store.Del(ctx, state.ThumbnailKey(logical)); err != nil {
		logger.Warn().Err(err).Msg("failed to remove thumbnail locations")
	}
	logger.Info().Msg("thumbnails removed")
}

// path builds the on-disk location for one size. The md5 prefix keeps names
// unique across volumes while the stem keeps them recognizable.
func (w *Worker) path(logical, sizeName string) string {
	sum := md5.Sum([]byte(logical))
	base := filepath.Base(logical)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(w.cfg.ThumbnailDir, sizeName,
		hex.EncodeToString(sum[:])+"_"+stem+".jpg")
}
