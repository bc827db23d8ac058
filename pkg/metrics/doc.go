/*
Package metrics exposes Prometheus instrumentation for the indexing pipeline.

Collectors are package-level variables registered in init() and incremented
directly from the components: notification and enqueue counters from the
watcher (with a per-dedup-stage drop counter), processing results and
extraction latency from the extractor, render outcomes from the thumbnailer,
and request counters for the index and the query API. The API server serves
them on /metrics via Handler().
*/
package metrics
