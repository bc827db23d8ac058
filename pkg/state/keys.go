package state

import "time"

// Queue and set names shared by every pipeline component.
const (
	ProcessingQueue = "file_processing_queue"
	ThumbnailQueue  = "thumbnail_generation_queue"
	QueuedSet       = "queued_files"
	ProcessedSet    = "processed_files"
)

// Lock and tracking TTLs. The lock TTLs double as the liveness bound after a
// crash: an orphaned global lock clears within 30 minutes, a queue lock
// within 60 seconds.
const (
	GlobalLockTTL = 30 * time.Minute
	QueueLockTTL  = 60 * time.Second
	ProcessedTTL  = 24 * time.Hour
	FileHashTTL   = 24 * time.Hour
	ThumbnailTTL  = 30 * 24 * time.Hour

	// RecencyWindow suppresses re-enqueue of a path processed this recently.
	RecencyWindow = 2 * time.Hour
)

// Key prefixes for per-path and per-hash entries. Maintenance tooling scans
// these prefixes when resetting pipeline state.
const (
	ProcessedPrefix  = "processed:"
	FileHashPrefix   = "file_hash:"
	GlobalLockPrefix = "global_processing:"
	QueueLockPrefix  = "queue_lock:"
	ThumbnailPrefix  = "thumbnails:"
)

// ProcessedKey tracks the time of last successful processing of a path.
func ProcessedKey(logicalPath string) string { return ProcessedPrefix + logicalPath }

// FileHashKey is the content-address entry for cross-file dedup.
func FileHashKey(sha256Hex string) string { return FileHashPrefix + sha256Hex }

// GlobalLockKey is the long lock held from enqueue to index commit.
func GlobalLockKey(logicalPath string) string { return GlobalLockPrefix + logicalPath }

// QueueLockKey is the short lock around the enqueue critical section.
func QueueLockKey(logicalPath string) string { return QueueLockPrefix + logicalPath }

// ThumbnailKey is the hash of size -> rendered thumbnail path.
func ThumbnailKey(logicalPath string) string { return ThumbnailPrefix + logicalPath }
