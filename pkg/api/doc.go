// Package api serves the read-only query surface over the index and the
// thumbnail store: full-text search with facets and highlighting, index
// statistics, filename suggestions, thumbnail delivery, and health and
// readiness probes. It holds no pipeline state; every request is answered
// from Solr, the state store or the thumbnail directory.
package api
