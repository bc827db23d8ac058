package maintenance

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/state"
)

// ResetResult reports what a tracking reset removed.
type ResetResult struct {
	Sets int64
	Keys int64
}

// ResetState drops all enqueue bookkeeping: the queued and processed sets
// plus every per-path and per-hash tracking key. The index, the queues and
// rendered thumbnails are untouched; the next rescan rebuilds the tracking
// from what is actually on disk.
type ResetState struct {
	store  *state.Store
	logger zerolog.Logger
}

// NewResetState creates a tracking reset.
func NewResetState(store *state.Store) *ResetState {
	return &ResetState{
		store:  store,
		logger: log.WithComponent("reset"),
	}
}

var trackingPrefixes = []string{
	state.ProcessedPrefix,
	state.FileHashPrefix,
	state.GlobalLockPrefix,
	state.QueueLockPrefix,
}

// Run deletes the tracking state and returns counts of what went.
func (r *ResetState) Run(ctx context.Context) (*ResetResult, error) {
	result := &ResetResult{}

	sets, err := r.store.Del(ctx, state.QueuedSet, state.ProcessedSet)
	if err != nil {
		return nil, err
	}
	result.Sets = sets

	for _, prefix := range trackingPrefixes {
		var batch []string
		err := r.store.Scan(ctx, prefix, func(key string) error {
			batch = append(batch, key)
			if len(batch) >= 500 {
				n, derr := r.store.Del(ctx, batch...)
				if derr != nil {
					return derr
				}
				result.Keys += n
				batch = batch[:0]
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		if len(batch) > 0 {
			n, derr := r.store.Del(ctx, batch...)
			if derr != nil {
				return result, derr
			}
			result.Keys += n
		}
	}

	r.logger.Info().
		Int64("sets", result.Sets).
		Int64("keys", result.Keys).
		Msg("tracking state reset")
	return result, nil
}
