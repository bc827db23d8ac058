package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trawlerdev/trawler/pkg/log"
	"github.com/trawlerdev/trawler/pkg/metrics"
)

// Document is a single index document. Field values follow the event and
// metadata schema; nil values are stripped before upload.
type Document map[string]interface{}

// Client talks to a Solr-compatible core over HTTP. All calls are bounded by
// the configured timeout and the caller's context.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// New creates a client for the core at baseURL (e.g.
// "http://solr:8983/solr/nas_content").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.WithComponent("solr"),
	}
}

// Update upserts documents with an immediate commit. Documents with the same
// id overwrite in place.
func (c *Client) Update(ctx context.Context, docs []Document) error {
	cleaned := make([]Document, 0, len(docs))
	for _, d := range docs {
		out := make(Document, len(d))
		for k, v := range d {
			if v == nil {
				continue
			}
			out[k] = v
		}
		cleaned = append(cleaned, out)
	}

	body, err := json.Marshal(cleaned)
	if err != nil {
		return fmt.Errorf("marshal documents: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/update?commit=true", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "update")
}

// DeleteByPath removes every document whose file_path matches the logical
// path. With deterministic ids there is at most one, but delete-by-query also
// collapses any stale duplicates left by earlier runs.
func (c *Client) DeleteByPath(ctx context.Context, logicalPath string) error {
	return c.deleteByQuery(ctx, fmt.Sprintf("file_path:%q", logicalPath))
}

// DeleteByID removes a single document by index id.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	return c.deleteByQuery(ctx, fmt.Sprintf("id:%q", id))
}

func (c *Client) deleteByQuery(ctx context.Context, query string) error {
	body := "<delete><query>" + xmlEscape(query) + "</query></delete>"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/update?commit=true", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")

	return c.do(req, "delete")
}

func (c *Client) do(req *http.Request, op string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SolrRequestsTotal.WithLabelValues(op, "error").Inc()
		return fmt.Errorf("solr %s: %w", op, err)
	}
	defer resp.Body.Close()

	metrics.SolrRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("response", string(payload)).
			Msg("solr request rejected")
		return fmt.Errorf("solr %s: status %d", op, resp.StatusCode)
	}
	return nil
}

// SelectResponse mirrors the subset of Solr's JSON select reply the pipeline
// and the query API consume.
type SelectResponse struct {
	ResponseHeader struct {
		QTime int `json:"QTime"`
	} `json:"responseHeader"`
	Response struct {
		NumFound int                      `json:"numFound"`
		Docs     []map[string]interface{} `json:"docs"`
	} `json:"response"`
	Highlighting map[string]map[string][]string `json:"highlighting"`
	FacetCounts  struct {
		FacetFields map[string][]interface{} `json:"facet_fields"`
	} `json:"facet_counts"`
	Stats FieldStats `json:"stats"`
}

// FieldStats carries the stats component's per-field aggregates.
type FieldStats struct {
	StatsFields map[string]struct {
		Sum float64 `json:"sum"`
	} `json:"stats_fields"`
}

// SumOf returns the aggregated sum for a stats field, or zero when the
// field was not requested.
func (s FieldStats) SumOf(field string) int64 {
	return int64(s.StatsFields[field].Sum)
}

// Select runs a query against the core's select handler.
func (c *Client) Select(ctx context.Context, params url.Values) (*SelectResponse, error) {
	params.Set("wt", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/select?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build select request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.SolrRequestsTotal.WithLabelValues("select", "error").Inc()
		return nil, fmt.Errorf("solr select: %w", err)
	}
	defer resp.Body.Close()

	metrics.SolrRequestsTotal.WithLabelValues("select", strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("solr select: status %d: %s", resp.StatusCode, payload)
	}

	var out SelectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode select response: %w", err)
	}
	return &out, nil
}

// Ping checks the core's admin ping handler. Used by the API health check.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/admin/ping", nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("solr ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solr ping: status %d", resp.StatusCode)
	}
	return nil
}

func xmlEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
