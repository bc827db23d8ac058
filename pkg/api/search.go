package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// SearchResult is one hit, flattened from the index document. Optional
// fields drop out of the JSON when absent.
type SearchResult struct {
	ID            string `json:"id"`
	FilePath      string `json:"file_path"`
	FileName      string `json:"file_name"`
	FileType      string `json:"file_type,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	CreatedDate   string `json:"created_date,omitempty"`
	ModifiedDate  string `json:"modified_date,omitempty"`
	DirectoryPath string `json:"directory_path,omitempty"`

	CameraMake  string `json:"camera_make,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
	GPSLocation string `json:"gps_location,omitempty"`

	Duration   int    `json:"duration,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	Resolution string `json:"resolution,omitempty"`

	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Title  string `json:"title,omitempty"`
	Genre  string `json:"genre,omitempty"`

	Author    string `json:"author,omitempty"`
	PageCount int    `json:"page_count,omitempty"`

	Highlights []string `json:"highlights,omitempty"`
	Score      float64  `json:"score,omitempty"`
}

// FacetValue is one bucket of a field facet.
type FacetValue struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// SearchFacets groups the faceted fields the UI filters on.
type SearchFacets struct {
	FileType      []FacetValue `json:"file_type"`
	ContentType   []FacetValue `json:"content_type"`
	CameraMake    []FacetValue `json:"camera_make"`
	CameraModel   []FacetValue `json:"camera_model"`
	Author        []FacetValue `json:"author"`
	Artist        []FacetValue `json:"artist"`
	Genre         []FacetValue `json:"genre"`
	DirectoryPath []FacetValue `json:"directory_path"`
}

// SearchResponse is the /search reply.
type SearchResponse struct {
	Query     string         `json:"query"`
	Total     int            `json:"total"`
	Start     int            `json:"start"`
	Rows      int            `json:"rows"`
	Docs      []SearchResult `json:"docs"`
	Facets    SearchFacets   `json:"facets"`
	QueryTime int            `json:"query_time"`
}

var facetFields = []string{
	"file_type", "content_type", "camera_make",
	"camera_model", "author", "artist", "genre", "directory_path",
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		query = "*:*"
	}
	start := intParam(q, "start", 0, 0, 1<<30)
	rows := intParam(q, "rows", 10, 1, 100)

	params := url.Values{}
	params.Set("q", query)
	params.Set("start", strconv.Itoa(start))
	params.Set("rows", strconv.Itoa(rows))
	params.Set("facet", "true")
	for _, f := range facetFields {
		params.Add("facet.field", f)
	}
	params.Set("facet.mincount", "1")
	params.Set("hl", "true")
	params.Set("hl.fl", "content")
	params.Set("hl.simple.pre", "<mark>")
	params.Set("hl.simple.post", "</mark>")
	params.Set("fl", "*,score")

	if sort := q.Get("sort"); sort != "" {
		params.Set("sort", sort)
	}

	for _, fq := range q["fq"] {
		params.Add("fq", fq)
	}
	if v := q.Get("file_type"); v != "" {
		params.Add("fq", fmt.Sprintf("file_type:%q", v))
	}
	if v := q.Get("content_type"); v != "" {
		params.Add("fq", fmt.Sprintf("content_type:%q", v))
	}
	if v := q.Get("camera_make"); v != "" {
		params.Add("fq", fmt.Sprintf("camera_make:%q", v))
	}
	from, to := q.Get("date_from"), q.Get("date_to")
	if from != "" || to != "" {
		if from == "" {
			from = "*"
		}
		if to == "" {
			to = "*"
		}
		params.Add("fq", fmt.Sprintf("created_date:[%s TO %s]", from, to))
	}

	resp, err := s.index.Select(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("search query failed")
		s.writeError(w, http.StatusServiceUnavailable, "search service unavailable")
		return
	}

	docs := make([]SearchResult, 0, len(resp.Response.Docs))
	for _, doc := range resp.Response.Docs {
		result := resultFromDoc(doc)
		if hl, ok := resp.Highlighting[result.ID]; ok {
			result.Highlights = hl["content"]
		}
		docs = append(docs, result)
	}

	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:     query,
		Total:     resp.Response.NumFound,
		Start:     start,
		Rows:      rows,
		Docs:      docs,
		Facets:    facetsFromFields(resp.FacetCounts.FacetFields),
		QueryTime: resp.ResponseHeader.QTime,
	})
}

// StatsResponse is the /stats reply.
type StatsResponse struct {
	TotalDocuments int            `json:"total_documents"`
	FileTypes      map[string]int `json:"file_types"`
	ContentTypes   map[string]int `json:"content_types"`
	TotalSize      int64          `json:"total_size"`
	IndexStatus    string         `json:"index_status"`
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	params := url.Values{}
	params.Set("q", "*:*")
	params.Set("rows", "0")
	params.Set("facet", "true")
	params.Add("facet.field", "file_type")
	params.Add("facet.field", "content_type")
	params.Set("stats", "true")
	params.Set("stats.field", "file_size")

	resp, err := s.index.Select(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("stats query failed")
		s.writeError(w, http.StatusInternalServerError, "failed to get statistics")
		return
	}

	s.writeJSON(w, http.StatusOK, StatsResponse{
		TotalDocuments: resp.Response.NumFound,
		FileTypes:      facetCounts(resp.FacetCounts.FacetFields["file_type"]),
		ContentTypes:   facetCounts(resp.FacetCounts.FacetFields["content_type"]),
		TotalSize:      resp.Stats.SumOf("file_size"),
		IndexStatus:    "active",
	})
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (s *Server) suggestHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	count := intParam(r.URL.Query(), "count", 5, 1, 20)

	params := url.Values{}
	params.Set("q", fmt.Sprintf("file_name:*%s* OR content:*%s*", q, q))
	params.Set("rows", strconv.Itoa(count))
	params.Set("fl", "file_name")

	resp, err := s.index.Select(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("suggest query failed")
		s.writeError(w, http.StatusInternalServerError, "failed to get suggestions")
		return
	}

	seen := make(map[string]bool)
	suggestions := make([]string, 0, count)
	for _, doc := range resp.Response.Docs {
		name := stringField(doc, "file_name")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		suggestions = append(suggestions, name)
		if len(suggestions) == count {
			break
		}
	}
	s.writeJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

// resultFromDoc flattens an index document. Solr may return single-valued
// fields as one-element arrays depending on schema, so every accessor
// tolerates both shapes.
func resultFromDoc(doc map[string]interface{}) SearchResult {
	return SearchResult{
		ID:            stringField(doc, "id"),
		FilePath:      stringField(doc, "file_path"),
		FileName:      stringField(doc, "file_name"),
		FileType:      stringField(doc, "file_type"),
		ContentType:   stringField(doc, "content_type"),
		FileSize:      int64Field(doc, "file_size"),
		CreatedDate:   stringField(doc, "created_date"),
		ModifiedDate:  stringField(doc, "modified_date"),
		DirectoryPath: stringField(doc, "directory_path"),
		CameraMake:    stringField(doc, "camera_make"),
		CameraModel:   stringField(doc, "camera_model"),
		Width:         intField(doc, "width"),
		Height:        intField(doc, "height"),
		GPSLocation:   stringField(doc, "gps_location"),
		Duration:      intField(doc, "duration"),
		VideoCodec:    stringField(doc, "video_codec"),
		Resolution:    stringField(doc, "resolution"),
		Artist:        stringField(doc, "artist"),
		Album:         stringField(doc, "album"),
		Title:         stringField(doc, "title"),
		Genre:         stringField(doc, "genre"),
		Author:        stringField(doc, "author"),
		PageCount:     intField(doc, "page_count"),
		Score:         floatField(doc, "score"),
	}
}

// facetsFromFields unpacks Solr's flat [value, count, value, count] facet
// arrays into the typed response.
func facetsFromFields(fields map[string][]interface{}) SearchFacets {
	return SearchFacets{
		FileType:      facetValues(fields["file_type"]),
		ContentType:   facetValues(fields["content_type"]),
		CameraMake:    facetValues(fields["camera_make"]),
		CameraModel:   facetValues(fields["camera_model"]),
		Author:        facetValues(fields["author"]),
		Artist:        facetValues(fields["artist"]),
		Genre:         facetValues(fields["genre"]),
		DirectoryPath: facetValues(fields["directory_path"]),
	}
}

func facetValues(flat []interface{}) []FacetValue {
	out := []FacetValue{}
	for i := 0; i+1 < len(flat); i += 2 {
		value, ok := flat[i].(string)
		if !ok {
			continue
		}
		count, ok := flat[i+1].(float64)
		if !ok {
			continue
		}
		out = append(out, FacetValue{Value: value, Count: int(count)})
	}
	return out
}

func facetCounts(flat []interface{}) map[string]int {
	out := make(map[string]int)
	for _, fv := range facetValues(flat) {
		out[fv.Value] = fv.Count
	}
	return out
}

func intParam(q url.Values, key string, def, min, max int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

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

func floatField(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case []interface{}:
		if len(v) > 0 {
			if f, ok := v[0].(float64); ok {
				return f
			}
		}
	}
	return 0
}

func intField(m map[string]interface{}, key string) int {
	return int(floatField(m, key))
}

func int64Field(m map[string]interface{}, key string) int64 {
	return int64(floatField(m, key))
}
