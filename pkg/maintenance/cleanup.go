package maintenance

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/solr"
)

const cleanupPageSize = 1000

// duplicate deletes are paced so a large backlog does not hammer the index.
const deletePause = 100 * time.Millisecond

// CleanupResult summarizes a duplicate cleanup pass.
type CleanupResult struct {
	Scanned    int
	Paths      int
	Duplicates int
	Deleted    int
}

// Cleanup walks the whole index, groups documents by file_path and removes
// every copy but the newest. Duplicates predate deterministic ids; a healthy
// index has none. DryRun only reports what would be deleted.
type Cleanup struct {
	index  *solr.Client
	DryRun bool
	logger zerolog.Logger
}

// NewCleanup creates a duplicate cleaner. Dry-run is the default; callers
// opt into deletion explicitly.
func NewCleanup(index *solr.Client) *Cleanup {
	return &Cleanup{
		index:  index,
		DryRun: true,
		logger: log.WithComponent("cleanup"),
	}
}

type indexEntry struct {
	id       string
	modified string
}

// Run executes one full pass and returns its summary.
func (c *Cleanup) Run(ctx context.Context) (*CleanupResult, error) {
	byPath, scanned, err := c.collect(ctx)
	if err != nil {
		return nil, err
	}

	result := &CleanupResult{Scanned: scanned, Paths: len(byPath)}

	paths := make([]string, 0, len(byPath))
	for p, entries := range byPath {
		if len(entries) > 1 {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		entries := byPath[path]
		// Newest modified_date survives; ties keep the first seen.
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].modified > entries[j].modified
		})
		result.Duplicates += len(entries) - 1

		for _, stale := range entries[1:] {
			if c.DryRun {
				c.logger.Info().
					Str("file_path", path).
					Str("id", stale.id).
					Str("modified_date", stale.modified).
					Msg("would delete duplicate")
				continue
			}
			if err := c.index.DeleteByID(ctx, stale.id); err != nil {
				c.logger.Error().Err(err).Str("id", stale.id).Msg("duplicate delete failed")
				continue
			}
			result.Deleted++
			select {
			case <-time.After(deletePause):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	c.logger.Info().
		Int("scanned", result.Scanned).
		Int("paths", result.Paths).
		Int("duplicates", result.Duplicates).
		Int("deleted", result.Deleted).
		Bool("dry_run", c.DryRun).
		Msg("cleanup pass complete")
	return result, nil
}

// collect pages through the index and groups ids by path.
func (c *Cleanup) collect(ctx context.Context) (map[string][]indexEntry, int, error) {
	byPath := make(map[string][]indexEntry)
	scanned := 0

	for start := 0; ; start += cleanupPageSize {
		params := url.Values{}
		params.Set("q", "*:*")
		params.Set("start", strconv.Itoa(start))
		params.Set("rows", strconv.Itoa(cleanupPageSize))
		params.Set("fl", "id,file_path,modified_date")

		resp, err := c.index.Select(ctx, params)
		if err != nil {
			return nil, scanned, fmt.Errorf("page index at %d: %w", start, err)
		}
		for _, doc := range resp.Response.Docs {
			path := docString(doc, "file_path")
			id := docString(doc, "id")
			if path == "" || id == "" {
				continue
			}
			byPath[path] = append(byPath[path], indexEntry{
				id:       id,
				modified: docString(doc, "modified_date"),
			})
			scanned++
		}
		if start+cleanupPageSize >= resp.Response.NumFound {
			break
		}
	}
	return byPath, scanned, nil
}

func docString(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
