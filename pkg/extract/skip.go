package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/solr"
)

// updateNeeded checks whether the index already holds a current version of
// the document. A write is skipped when the stored content hash and size
// match, or when the candidate is no newer than the stored copy at the same
// size. Any ambiguity resolves toward writing.
func (w *Worker) updateNeeded(ctx context.Context, doc solr.Document, logger zerolog.Logger) (bool, error) {
	path, _ := doc["file_path"].(string)
	if path == "" {
		return true, nil
	}

	params := url.Values{}
	params.Set("q", fmt.Sprintf("file_path:%q", path))
	params.Set("fl", "content_hash,modified_date,file_size")
	params.Set("rows", "2")

	resp, err := w.index.Select(ctx, params)
	if err != nil {
		return true, err
	}
	if resp.Response.NumFound == 0 {
		return true, nil
	}
	if resp.Response.NumFound > 1 {
		// One path maps to one deterministic id, so duplicates mean the
		// index has drifted. Reindex and let cleanup sort it out.
		logger.Warn().Int("matches", resp.Response.NumFound).Msg("duplicate index entries for path")
		return true, nil
	}

	existing := resp.Response.Docs[0]

	if !sizeMatches(doc, existing) {
		return true, nil
	}
	if hash, _ := doc["content_hash"].(string); hash != "" {
		if stored := stringField(existing, "content_hash"); stored == hash {
			return false, nil
		}
	}
	if notNewer(doc, existing) {
		return false, nil
	}
	return true, nil
}

func sizeMatches(doc solr.Document, existing map[string]interface{}) bool {
	size, ok := doc["file_size"].(int64)
	if !ok {
		return false
	}
	stored, ok := numberField(existing, "file_size")
	return ok && stored == size
}

// notNewer reports whether the candidate's modified_date is at or before the
// stored one. Unparseable dates count as newer.
func notNewer(doc solr.Document, existing map[string]interface{}) bool {
	candidate, _ := doc["modified_date"].(string)
	stored := stringField(existing, "modified_date")
	if candidate == "" || stored == "" {
		return false
	}
	ct, err1 := time.Parse(timeLayoutLenient, candidate)
	st, err2 := time.Parse(timeLayoutLenient, stored)
	if err1 != nil || err2 != nil {
		return false
	}
	return !ct.After(st)
}

// timeLayoutLenient parses both the writer's second-granular timestamps and
// the millisecond form Solr may echo back.
const timeLayoutLenient = time.RFC3339

func stringField(m map[string]interface{}, key string) string {
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

func numberField(m map[string]interface{}, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
