package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Watcher metrics
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_notifications_total",
			Help: "Raw filesystem notifications received by op",
		},
		[]string{"op"},
	)

	EventsCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_events_coalesced_total",
			Help: "Notifications absorbed into an already pending debounce entry",
		},
	)

	EventsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_events_enqueued_total",
			Help: "Events committed to the processing queue by event type",
		},
		[]string{"event_type"},
	)

	EnqueueDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_enqueue_dropped_total",
			Help: "Events dropped before enqueue by dedup stage",
		},
		[]string{"stage"},
	)

	RescanCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trawler_rescan_cycles_total",
			Help: "Completed full-tree rescan cycles",
		},
	)

	RescanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trawler_rescan_duration_seconds",
			Help:    "Full-tree rescan duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trawler_queue_depth",
			Help: "Current depth of the work queues",
		},
		[]string{"queue"},
	)

	// Extractor metrics
	FilesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_files_processed_total",
			Help: "Queue items handled by the extractor by result",
		},
		[]string{"result"},
	)

	ExtractDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trawler_extract_duration_seconds",
			Help:    "Metadata extraction duration in seconds by file type",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"file_type"},
	)

	// Thumbnail metrics
	ThumbnailsRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_thumbnails_rendered_total",
			Help: "Thumbnail render outcomes by kind",
		},
		[]string{"kind", "result"},
	)

	ThumbnailDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trawler_thumbnail_duration_seconds",
			Help:    "Thumbnail render duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Index metrics
	SolrRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_solr_requests_total",
			Help: "Requests to the search index by operation and status",
		},
		[]string{"op", "status"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trawler_api_requests_total",
			Help: "API requests by path and status",
		},
		[]string{"path", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trawler_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(EventsCoalesced)
	prometheus.MustRegister(EventsEnqueued)
	prometheus.MustRegister(EnqueueDropped)
	prometheus.MustRegister(RescanCyclesTotal)
	prometheus.MustRegister(RescanDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(FilesProcessed)
	prometheus.MustRegister(ExtractDuration)
	prometheus.MustRegister(ThumbnailsRendered)
	prometheus.MustRegister(ThumbnailDuration)
	prometheus.MustRegister(SolrRequestsTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
