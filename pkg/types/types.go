package types

import (
	"crypto/sha256"
	"encoding/hex"
)

// EventType represents the kind of filesystem change carried by a FileEvent.
type EventType string

const (
	EventCreated  EventType = "created"
	EventModified EventType = "modified"
	EventDeleted  EventType = "deleted"
)

// Volume is a named filesystem root. The logical path of a file under a
// volume is "/" + Name + "/" + relative path; the container path is used
// only for I/O.
type Volume struct {
	Name string `yaml:"name"`
	Root string `yaml:"root"`
}

// FileEvent is the work-queue message produced by the watcher and consumed
// by the extractor. It is JSON-encoded on the wire; consumers tolerate
// unknown fields.
type FileEvent struct {
	EventType      EventType `json:"event_type"`
	FilePath       string    `json:"file_path"`
	ContainerPath  string    `json:"container_path"`
	FileName       string    `json:"file_name"`
	FileExtension  string    `json:"file_extension"`
	FileSize       int64     `json:"file_size"`
	ContentHash    string    `json:"content_hash"`
	CreatedDate    *string   `json:"created_date"`
	ModifiedDate   *string   `json:"modified_date"`
	DirectoryPath  string    `json:"directory_path"`
	DirectoryDepth int       `json:"directory_depth"`
	QueuedAt       string    `json:"queued_at"`
}

// FileType is the coarse classification stored in the index for faceting.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypeVideo    FileType = "video"
	FileTypeAudio    FileType = "audio"
	FileTypeDocument FileType = "document"
	FileTypeArchive  FileType = "archive"
	FileTypeOther    FileType = "other"
)

// DocumentID returns the deterministic index document id for a logical path.
// Re-indexing the same path always produces the same id, so upserts overwrite
// in place.
func DocumentID(logicalPath string) string {
	sum := sha256.Sum256([]byte(logicalPath))
	return hex.EncodeToString(sum[:])
}
